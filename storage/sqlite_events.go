package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"eveconsole/eve"
	"eveconsole/metrics"
	"eveconsole/queryparse"
)

const defaultEventQuerySize = 500

// GetEventByID fetches one event by its rowid identity.
func (r *SQLiteEventRepo) GetEventByID(ctx context.Context, eventID string) (*EventResult, error) {
	rowid, err := strconv.ParseInt(eventID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad event id %q", ErrEventNotFound, eventID)
	}

	var archived, escalated bool
	var source string
	err = r.db.ReadDB.QueryRowContext(ctx,
		"SELECT archived, escalated, source FROM events WHERE rowid = ?", rowid).
		Scan(&archived, &escalated, &source)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(source), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return &EventResult{
		ID:        eventID,
		Source:    parsed,
		Archived:  archived,
		Escalated: escalated,
	}, nil
}

// Events lists raw events under the given filters.
func (r *SQLiteEventRepo) Events(ctx context.Context, params EventQueryParams) (*EventsResult, error) {
	start := time.Now()
	indexed := r.db.FTS()

	builder := NewEventQueryBuilder(indexed)
	builder.
		Select("events.rowid").
		Select("archived").
		Select("escalated").
		Select("source")
	builder.From("events")

	order := "DESC"
	if params.Order == "asc" || params.Order == "ASC" {
		order = "ASC"
	}
	builder.OrderBy("timestamp", order)

	size := params.Size
	if size <= 0 {
		size = defaultEventQuerySize
	}
	builder.Limit(size)

	if params.EventType != "" {
		if err := builder.WhereJSON("event_type", "=", params.EventType); err != nil {
			return nil, err
		}
	}
	if params.MinTimestamp > 0 {
		builder.PushWhere("timestamp >= ?")
		if err := builder.PushArg(params.MinTimestamp); err != nil {
			return nil, err
		}
	}
	if params.MaxTimestamp > 0 {
		builder.PushWhere("timestamp <= ?")
		if err := builder.PushArg(params.MaxTimestamp); err != nil {
			return nil, err
		}
	}

	jsonCol := func(path string) string { return JSONColumn(indexed, path) }
	for _, f := range r.elementFilters(params.QueryString, jsonCol) {
		builder.PushWhere(f.fragment)
		for _, arg := range f.args {
			if err := builder.PushArg(arg); err != nil {
				return nil, err
			}
		}
	}

	sqlText, args, err := builder.Build()
	if err != nil {
		return nil, err
	}
	r.logQuery(sqlText, args)

	rows, err := r.db.ReadDB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	defer rows.Close()

	result := &EventsResult{Events: []EventResult{}}
	for rows.Next() {
		var rowid int64
		var archived, escalated bool
		var source string
		if err := rows.Scan(&rowid, &archived, &escalated, &source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(source), &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}

		result.Events = append(result.Events, EventResult{
			ID:        strconv.FormatInt(rowid, 10),
			Source:    parsed,
			Archived:  archived,
			Escalated: escalated,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}

	metrics.EventQueryDuration.Observe(time.Since(start).Seconds())
	return result, nil
}

// historyEntryJSON renders a history audit record for appending via
// json_insert.
func historyEntryJSON(action, username, comment string) (string, error) {
	entry := eve.HistoryEntry{
		ID:        uuid.NewString(),
		Username:  username,
		Timestamp: eve.FormatTimestamp(time.Now().UTC()),
		Action:    action,
		Comment:   comment,
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return string(encoded), nil
}

// updateEventByID runs one audited flag update in its own transaction.
func (r *SQLiteEventRepo) updateEventByID(ctx context.Context, eventID, set, action, username, comment string) error {
	rowid, err := strconv.ParseInt(eventID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad event id %q", ErrEventNotFound, eventID)
	}

	entry, err := historyEntryJSON(action, username, comment)
	if err != nil {
		return err
	}

	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		sqlText := fmt.Sprintf(
			"UPDATE events SET %s history = json_insert(history, '$[#]', json(?)) WHERE rowid = ?", set)
		result, err := tx.ExecContext(ctx, sqlText, entry, rowid)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}
		if n == 0 {
			return ErrEventNotFound
		}
		return nil
	})
}

// ArchiveEventByID marks one event archived.
func (r *SQLiteEventRepo) ArchiveEventByID(ctx context.Context, eventID string) error {
	return r.updateEventByID(ctx, eventID, "archived = 1,", eve.ActionArchived, "anonymous", "")
}

// EscalateEventByID marks one event escalated.
func (r *SQLiteEventRepo) EscalateEventByID(ctx context.Context, eventID string) error {
	return r.updateEventByID(ctx, eventID, "escalated = 1,", eve.ActionEscalated, "anonymous", "")
}

// DeescalateEventByID clears one event's escalated flag.
func (r *SQLiteEventRepo) DeescalateEventByID(ctx context.Context, eventID string) error {
	return r.updateEventByID(ctx, eventID, "escalated = 0,", eve.ActionDeescalated, "anonymous", "")
}

// CommentEventByID appends an audited comment to an event's history.
func (r *SQLiteEventRepo) CommentEventByID(ctx context.Context, eventID, comment, username string) error {
	return r.updateEventByID(ctx, eventID, "", eve.ActionComment, username, comment)
}

// groupSpecBounds parses an alert group's time range into nanoseconds.
func groupSpecBounds(group AlertGroupSpec) (int64, int64, error) {
	minTs, err := eve.ParseTimestamp(group.MinTimestamp)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrTimeParse, err)
	}
	maxTs, err := eve.ParseTimestamp(group.MaxTimestamp)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrTimeParse, err)
	}
	return minTs.UnixNano(), maxTs.UnixNano(), nil
}

// updateByAlertGroup applies one audited flag update to every member of
// an alert group: the rows matching the dedup key inside the group's
// observed time range.
func (r *SQLiteEventRepo) updateByAlertGroup(ctx context.Context, group AlertGroupSpec, set, action, username string) error {
	minNanos, maxNanos, err := groupSpecBounds(group)
	if err != nil {
		return err
	}

	entry, err := historyEntryJSON(action, username, "")
	if err != nil {
		return err
	}

	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		sqlText := fmt.Sprintf(`
            UPDATE events
            SET %s history = json_insert(history, '$[#]', json(?))
            WHERE json_extract(events.source, '$.event_type') = 'alert'
                AND json_extract(events.source, '$.alert.signature_id') = ?
                AND json_extract(events.source, '$.src_ip') = ?
                AND json_extract(events.source, '$.dest_ip') = ?
                AND timestamp >= ?
                AND timestamp <= ?`, set)
		result, err := tx.ExecContext(ctx, sqlText,
			entry, group.SignatureID, group.SrcIP, group.DestIP, minNanos, maxNanos)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}
		if n == 0 {
			return ErrEventNotFound
		}
		r.logger.Debugw("Alert group updated", "action", action, "events", n)
		return nil
	})
}

// ArchiveByAlertGroup archives every member of an alert group.
func (r *SQLiteEventRepo) ArchiveByAlertGroup(ctx context.Context, group AlertGroupSpec) error {
	return r.updateByAlertGroup(ctx, group, "archived = 1,", eve.ActionArchived, "anonymous")
}

// EscalateByAlertGroup escalates every member of an alert group.
func (r *SQLiteEventRepo) EscalateByAlertGroup(ctx context.Context, group AlertGroupSpec, username string) error {
	return r.updateByAlertGroup(ctx, group, "escalated = 1,", eve.ActionEscalated, username)
}

// DeescalateByAlertGroup clears the escalated flag on every member of
// an alert group.
func (r *SQLiteEventRepo) DeescalateByAlertGroup(ctx context.Context, group AlertGroupSpec, username string) error {
	return r.updateByAlertGroup(ctx, group, "escalated = 0,", eve.ActionDeescalated, username)
}

// Agg returns the top size distinct values of a document field under
// the given query filter.
func (r *SQLiteEventRepo) Agg(ctx context.Context, field string, size int64, query []queryparse.Element) ([]AggResultBucket, error) {
	if !validJSONPath(field) {
		return nil, fmt.Errorf("%w: invalid aggregation field %q", ErrArgumentEncoding, field)
	}
	if size <= 0 {
		size = 10
	}

	aggCol := extractColumn(field)
	fragments := []string{aggCol + " IS NOT NULL"}
	var args []interface{}
	for _, el := range query {
		switch el.Kind {
		case queryparse.KindFrom:
			t, err := eve.ParseTimestamp(el.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimeParse, err)
			}
			fragments = append(fragments, "timestamp >= ?")
			args = append(args, t.UnixNano())
		case queryparse.KindTo:
			t, err := eve.ParseTimestamp(el.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimeParse, err)
			}
			fragments = append(fragments, "timestamp <= ?")
			args = append(args, t.UnixNano())
		default:
			for _, f := range r.elementFilters([]queryparse.Element{el}, extractColumn) {
				fragments = append(fragments, f.fragment)
				args = append(args, f.args...)
			}
		}
	}

	sqlText := fmt.Sprintf(`
        SELECT count(*) AS count, %s AS agg
        FROM events
        WHERE %s
        GROUP BY agg
        ORDER BY count DESC
        LIMIT %d`, aggCol, strings.Join(fragments, " AND "), size)
	r.logQuery(sqlText, args)

	rows, err := r.db.ReadDB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	defer rows.Close()

	buckets := []AggResultBucket{}
	for rows.Next() {
		var count int64
		var key interface{}
		if err := rows.Scan(&count, &key); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
		}
		buckets = append(buckets, AggResultBucket{Key: key, Count: uint64(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}

	return buckets, nil
}
