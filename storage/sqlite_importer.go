package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"eveconsole/eve"
	"eveconsole/metrics"
)

// sqliteImporter is the embedded store's import sink. Events queue in
// memory through Submit and land in the database in one transaction on
// Commit.
type sqliteImporter struct {
	db     *SQLite
	logger *zap.SugaredLogger
	queued []queuedEvent
}

type queuedEvent struct {
	timestamp int64
	source    string
}

func newSQLiteImporter(db *SQLite, logger *zap.SugaredLogger) *sqliteImporter {
	return &sqliteImporter{db: db, logger: logger}
}

// Submit queues one event for the next Commit.
func (im *sqliteImporter) Submit(ctx context.Context, event eve.Event) error {
	timestamp, err := event.Timestamp()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTimeParse, err)
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	im.queued = append(im.queued, queuedEvent{
		timestamp: timestamp,
		source:    string(encoded),
	})
	return nil
}

// Pending returns the number of queued events.
func (im *sqliteImporter) Pending() int {
	return len(im.queued)
}

// Commit writes all queued events in one transaction and clears the
// queue. Returns the number of events written.
func (im *sqliteImporter) Commit(ctx context.Context) (int, error) {
	if len(im.queued) == 0 {
		return 0, nil
	}

	count := len(im.queued)
	err := im.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO events (timestamp, source) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}
		defer stmt.Close()

		for _, event := range im.queued {
			if _, err := stmt.ExecContext(ctx, event.timestamp, event.source); err != nil {
				return fmt.Errorf("%w: %v", ErrQueryFailure, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	im.queued = im.queued[:0]
	metrics.EventsImported.Add(float64(count))
	im.logger.Debugw("Committed events", "count", count)
	return count, nil
}
