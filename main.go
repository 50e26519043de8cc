package main

import "eveconsole/cmd"

func main() {
	cmd.Execute()
}
