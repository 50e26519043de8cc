package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the database connections for the event store. Separate
// read and write pools leverage WAL mode's concurrency model: unlimited
// readers alongside exactly one writer.
type SQLite struct {
	WriteDB *sql.DB // write pool, MaxOpenConns=1 for the WAL single writer
	ReadDB  *sql.DB // read pool, sized for concurrent queries
	Path    string
	logger  *zap.SugaredLogger

	fts bool
}

// configureConnection applies the standard pragmas to a pool.
func configureConnection(db *sql.DB, dbPath string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Queries hitting the single writer briefly should queue, not fail
	// with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	// In-memory databases report "memory" instead of "wal".
	if dbPath != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got %q)", journalMode)
	}

	return nil
}

// NewSQLite opens the event database at dbPath, creating the schema if
// needed. maxReadConns sizes the read pool.
func NewSQLite(dbPath string, maxReadConns int, logger *zap.SugaredLogger) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Shared-cache mode keeps both pools on the same database when the
	// path is :memory:.
	actualPath := dbPath
	if dbPath == ":memory:" {
		actualPath = "file::memory:?cache=shared"
	}

	writeDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}
	if err := configureConnection(writeDB, dbPath); err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to configure write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(0)

	readDB, err := sql.Open("sqlite", actualPath)
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}
	if err := configureConnection(readDB, dbPath); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to configure read connection: %w", err)
	}
	if maxReadConns < 1 {
		maxReadConns = 1
	}
	readDB.SetMaxOpenConns(maxReadConns)
	readDB.SetMaxIdleConns(maxReadConns / 2)
	readDB.SetConnMaxIdleTime(10 * time.Minute)

	s := &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    dbPath,
		logger:  logger,
	}

	if err := s.createTables(); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s.fts, err = s.HasTable("fts")
	if err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("failed to probe fts table: %w", err)
	}

	logger.Infow("Event database initialized",
		"path", dbPath,
		"fts", s.fts,
		"max_read_conns", maxReadConns)

	return s, nil
}

// FTS reports whether the full-text index layer is present. Fixed at
// open time; the CLI toggles it offline.
func (s *SQLite) FTS() bool {
	return s.fts
}

// HasTable reports whether a table or virtual table exists.
func (s *SQLite) HasTable(name string) (bool, error) {
	var count int64
	err := s.ReadDB.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	return count > 0, nil
}

// WithTransaction runs fn inside a transaction on the write pool,
// rolling back on error or panic.
func (s *SQLite) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.WriteDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w, rollback error: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// createTables creates the event schema.
func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		timestamp INTEGER NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		escalated INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		history TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_events_archived ON events(archived);
	CREATE INDEX IF NOT EXISTS idx_events_event_type
		ON events(json_extract(source, '$.event_type'));
	`

	if _, err := s.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// EnableFTS creates the full-text index over the source column and
// backfills it from existing rows. Meant to run offline via the CLI.
func (s *SQLite) EnableFTS(ctx context.Context) error {
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`CREATE VIRTUAL TABLE fts USING fts5(source, content=events, content_rowid=rowid)`,
			`INSERT INTO fts (rowid, source) SELECT rowid, source FROM events`,
			`CREATE TRIGGER events_ai AFTER INSERT ON events BEGIN
				INSERT INTO fts (rowid, source) VALUES (new.rowid, new.source);
			END`,
			`CREATE TRIGGER events_ad AFTER DELETE ON events BEGIN
				INSERT INTO fts (fts, rowid, source) VALUES ('delete', old.rowid, old.source);
			END`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w: %v", ErrQueryFailure, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.fts = true
	return nil
}

// DisableFTS drops the full-text index layer.
func (s *SQLite) DisableFTS(ctx context.Context) error {
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DROP TRIGGER IF EXISTS events_ai`,
			`DROP TRIGGER IF EXISTS events_ad`,
			`DROP TABLE IF EXISTS fts`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w: %v", ErrQueryFailure, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.fts = false
	return nil
}

// CheckFTS verifies the index covers the same row set as the base
// table, returning the two counts.
func (s *SQLite) CheckFTS(ctx context.Context) (int64, int64, error) {
	var events, indexed int64
	if err := s.ReadDB.QueryRowContext(ctx, "SELECT count(*) FROM events").Scan(&events); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	if err := s.ReadDB.QueryRowContext(ctx, "SELECT count(*) FROM fts").Scan(&indexed); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	return events, indexed, nil
}

// Close closes both connection pools.
func (s *SQLite) Close() error {
	var writeErr, readErr error
	if s.WriteDB != nil {
		writeErr = s.WriteDB.Close()
	}
	if s.ReadDB != nil {
		readErr = s.ReadDB.Close()
	}
	if writeErr != nil {
		return fmt.Errorf("failed to close write pool: %w", writeErr)
	}
	if readErr != nil {
		return fmt.Errorf("failed to close read pool: %w", readErr)
	}
	return nil
}
