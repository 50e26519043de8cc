package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newDumpCmd creates the 'dump' subcommand, which writes every stored
// event back out as newline-delimited EVE JSON in timestamp order.
func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump stored events as newline-delimited EVE JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := InitLogger()
			defer logger.Sync()

			db, _, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.ReadDB.QueryContext(context.Background(),
				"SELECT source FROM events ORDER BY timestamp")
			if err != nil {
				return fmt.Errorf("failed to query events: %w", err)
			}
			defer rows.Close()

			out := bufio.NewWriter(os.Stdout)
			defer out.Flush()

			for rows.Next() {
				var source string
				if err := rows.Scan(&source); err != nil {
					return fmt.Errorf("failed to scan event: %w", err)
				}
				if _, err := fmt.Fprintln(out, source); err != nil {
					return fmt.Errorf("failed to write event: %w", err)
				}
			}
			return rows.Err()
		},
	}
}
