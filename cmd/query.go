package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newQueryCmd creates the 'query' subcommand for running ad-hoc SQL
// against the event database. Rows are printed one column set per line.
func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run an ad-hoc SQL query against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := InitLogger()
			defer logger.Sync()

			db, _, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			start := time.Now()
			rows, err := db.ReadDB.QueryContext(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}
			defer rows.Close()

			cols, err := rows.Columns()
			if err != nil {
				return fmt.Errorf("failed to read columns: %w", err)
			}

			count := 0
			values := make([]interface{}, len(cols))
			pointers := make([]interface{}, len(cols))
			for i := range values {
				pointers[i] = &values[i]
			}
			for rows.Next() {
				if err := rows.Scan(pointers...); err != nil {
					return fmt.Errorf("failed to scan row: %w", err)
				}
				for i, col := range cols {
					value := values[i]
					if b, ok := value.([]byte); ok {
						value = string(b)
					}
					fmt.Printf("%s=%v ", col, value)
				}
				fmt.Println()
				count++
			}
			if err := rows.Err(); err != nil {
				return err
			}

			printInfo("Rows returned: %d (%s)", count, time.Since(start))
			return nil
		},
	}
}
