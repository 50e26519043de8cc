package storage

import (
	"context"

	"eveconsole/queryparse"
)

// SearchEventRepo is the distributed search-engine repository variant.
// The engine itself lives outside this layer; this variant exists so
// the two-backend contract stays closed and every call site gets a
// proper ErrUnimplemented instead of a silent no-op when the search
// backend is selected without its client being wired in.
type SearchEventRepo struct{}

// NewSearchEventRepo returns the search-engine variant placeholder.
func NewSearchEventRepo() *SearchEventRepo {
	return &SearchEventRepo{}
}

func (r *SearchEventRepo) GetImporter() EventImporter {
	return nil
}

func (r *SearchEventRepo) GetEventByID(ctx context.Context, eventID string) (*EventResult, error) {
	return nil, ErrUnimplemented
}

func (r *SearchEventRepo) Events(ctx context.Context, params EventQueryParams) (*EventsResult, error) {
	return nil, ErrUnimplemented
}

func (r *SearchEventRepo) Alerts(ctx context.Context, options AlertQueryOptions) (*AlertsResult, error) {
	return nil, ErrUnimplemented
}

func (r *SearchEventRepo) ArchiveEventByID(ctx context.Context, eventID string) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) EscalateEventByID(ctx context.Context, eventID string) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) DeescalateEventByID(ctx context.Context, eventID string) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) ArchiveByAlertGroup(ctx context.Context, group AlertGroupSpec) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) EscalateByAlertGroup(ctx context.Context, group AlertGroupSpec, username string) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) DeescalateByAlertGroup(ctx context.Context, group AlertGroupSpec, username string) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) CommentEventByID(ctx context.Context, eventID, comment, username string) error {
	return ErrUnimplemented
}

func (r *SearchEventRepo) Agg(ctx context.Context, field string, size int64, query []queryparse.Element) ([]AggResultBucket, error) {
	return nil, ErrUnimplemented
}

// Interface conformance for both variants.
var (
	_ EventRepo = (*SQLiteEventRepo)(nil)
	_ EventRepo = (*SearchEventRepo)(nil)
)
