package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"eveconsole/eve"
	"eveconsole/storage"
)

// commitBatchSize bounds the number of queued events per transaction.
const commitBatchSize = 1000

// newLoadCmd creates the 'load' subcommand, which imports a file of
// newline-delimited EVE JSON records into the database.
func newLoadCmd() *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "load <eve.json>",
		Short: "Load EVE events from a file into the database",
		Long:  "Load a file of newline-delimited EVE JSON records into the event database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := InitLogger()
			defer logger.Sync()

			ctx := context.Background()

			db, cfg, err := openDatabase(logger)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := storage.NewSQLiteEventRepo(db, storage.NewSensorCache(),
				storage.SQLiteEventRepoOptions{
					Strategy:   cfg.Alerts.Strategy,
					TimeBudget: cfg.Alerts.TimeBudget,
					LogQueries: cfg.Query.LogQueries,
				}, logger)

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer file.Close()

			var s *spinner.Spinner
			if showProgress {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Loading events..."
				s.Start()
			}

			count, skipped, err := loadEvents(ctx, repo.GetImporter(), file, s)

			if s != nil {
				s.Stop()
			}

			if err != nil {
				return err
			}

			printSuccess("✓ Loaded %d events", count)
			if skipped > 0 {
				printInfo("Skipped %d unparseable lines", skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress indicator")

	return cmd
}

// loadEvents reads newline-delimited EVE records from r and submits them
// through the importer, committing in batches. Lines that fail to decode
// or carry no timestamp are counted and skipped.
func loadEvents(ctx context.Context, importer storage.EventImporter, file *os.File, s *spinner.Spinner) (int, int, error) {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	count := 0
	skipped := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := eve.Decode(line)
		if err != nil {
			skipped++
			continue
		}
		if err := importer.Submit(ctx, event); err != nil {
			skipped++
			continue
		}
		count++
		if importer.Pending() >= commitBatchSize {
			if _, err := importer.Commit(ctx); err != nil {
				return count, skipped, fmt.Errorf("failed to commit events: %w", err)
			}
			if s != nil {
				s.Suffix = fmt.Sprintf(" Loading events... %d", count)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return count, skipped, fmt.Errorf("failed to read input: %w", err)
	}
	if importer.Pending() > 0 {
		if _, err := importer.Commit(ctx); err != nil {
			return count, skipped, fmt.Errorf("failed to commit events: %w", err)
		}
	}
	return count, skipped, nil
}
