package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// newFtsCmd creates the 'fts' subcommand group for managing the
// full-text search layer of the database.
func newFtsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fts",
		Short: "Manage the full-text search index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable full-text search and index existing events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := InitLogger()
			defer logger.Sync()

			db, _, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if db.FTS() {
				printInfo("Full-text search is already enabled")
				return nil
			}
			if err := db.EnableFTS(context.Background()); err != nil {
				return fmt.Errorf("failed to enable full-text search: %w", err)
			}
			printSuccess("✓ Full-text search enabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable full-text search and drop the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := InitLogger()
			defer logger.Sync()

			db, _, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if !db.FTS() {
				printInfo("Full-text search is not enabled")
				return nil
			}
			if err := db.DisableFTS(context.Background()); err != nil {
				return fmt.Errorf("failed to disable full-text search: %w", err)
			}
			printSuccess("✓ Full-text search disabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check the full-text index against the events table",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := InitLogger()
			defer logger.Sync()

			db, _, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if !db.FTS() {
				printInfo("Full-text search is not enabled")
				return nil
			}
			eventCount, ftsCount, err := db.CheckFTS(context.Background())
			if err != nil {
				return fmt.Errorf("failed to check full-text index: %w", err)
			}
			if eventCount == ftsCount {
				printSuccess("✓ Index is consistent: %d events, %d indexed", eventCount, ftsCount)
			} else {
				errorColor.Printf("Index mismatch: %d events, %d indexed\n", eventCount, ftsCount)
			}
			return nil
		},
	})

	return cmd
}
