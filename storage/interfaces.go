package storage

import (
	"context"

	"eveconsole/eve"
	"eveconsole/queryparse"
)

// EventImporter is the sink handed to the ingest pipeline. Events
// accumulate through Submit and hit the database on Commit.
type EventImporter interface {
	Submit(ctx context.Context, event eve.Event) error
	Commit(ctx context.Context) (int, error)
	Pending() int
}

// EventRepo is the backend-polymorphic repository contract. Exactly two
// variants exist, SQLiteEventRepo and SearchEventRepo; a backend that
// does not support an operation returns ErrUnimplemented rather than
// silently doing nothing.
type EventRepo interface {
	// GetImporter returns the backend's import sink, or nil when the
	// backend does not accept local imports.
	GetImporter() EventImporter

	// GetEventByID fetches one event by its identity.
	GetEventByID(ctx context.Context, eventID string) (*EventResult, error)

	// Events lists raw events under the given filters, newest first
	// unless params say otherwise.
	Events(ctx context.Context, params EventQueryParams) (*EventsResult, error)

	// Alerts runs the alert aggregation described by options.
	Alerts(ctx context.Context, options AlertQueryOptions) (*AlertsResult, error)

	// ArchiveEventByID marks one event archived.
	ArchiveEventByID(ctx context.Context, eventID string) error

	// EscalateEventByID marks one event escalated.
	EscalateEventByID(ctx context.Context, eventID string) error

	// DeescalateEventByID clears one event's escalated flag.
	DeescalateEventByID(ctx context.Context, eventID string) error

	// ArchiveByAlertGroup archives every member of an alert group.
	ArchiveByAlertGroup(ctx context.Context, group AlertGroupSpec) error

	// EscalateByAlertGroup escalates every member of an alert group,
	// audited with the acting username.
	EscalateByAlertGroup(ctx context.Context, group AlertGroupSpec, username string) error

	// DeescalateByAlertGroup de-escalates every member of an alert
	// group, audited with the acting username.
	DeescalateByAlertGroup(ctx context.Context, group AlertGroupSpec, username string) error

	// CommentEventByID appends a comment to an event's history trail.
	CommentEventByID(ctx context.Context, eventID, comment, username string) error

	// Agg returns the top size distinct values of a document field
	// under the given query filter.
	Agg(ctx context.Context, field string, size int64, query []queryparse.Element) ([]AggResultBucket, error)
}
