package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eveconsole/config"
	"eveconsole/eve"
	"eveconsole/queryparse"
)

// eventHistory reads back an event's audit trail.
func eventHistory(t *testing.T, db *SQLite, eventID string) []eve.HistoryEntry {
	t.Helper()
	var raw string
	require.NoError(t, db.ReadDB.QueryRow(
		"SELECT history FROM events WHERE rowid = ?", eventID).Scan(&raw))
	var history []eve.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &history))
	return history
}

func TestGetEventByID(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo, alertEvent(ts, 1001, "SIG", "10.0.0.1", "8.8.8.8"))

	id := eventRowID(t, db, ts)
	event, err := repo.GetEventByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, event.ID)
	assert.False(t, event.Archived)
	assert.False(t, event.Escalated)
	assert.Equal(t, "alert", event.Source["event_type"])
	assert.Equal(t, "10.0.0.1", event.Source["src_ip"])
}

func TestGetEventByID_NotFound(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	_, err := repo.GetEventByID(ctx, "99999")
	assert.True(t, errors.Is(err, ErrEventNotFound))

	// Non-numeric ids cannot exist either.
	_, err = repo.GetEventByID(ctx, "not-a-rowid")
	assert.True(t, errors.Is(err, ErrEventNotFound))
}

func TestArchiveEventByID(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo, alertEvent(ts, 1001, "SIG", "10.0.0.1", "8.8.8.8"))
	id := eventRowID(t, db, ts)

	require.NoError(t, repo.ArchiveEventByID(ctx, id))

	event, err := repo.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, event.Archived)

	history := eventHistory(t, db, id)
	require.Len(t, history, 1)
	assert.Equal(t, eve.ActionArchived, history[0].Action)
	assert.Equal(t, "anonymous", history[0].Username)
	assert.NotEmpty(t, history[0].ID)

	_, err = eve.ParseTimestamp(history[0].Timestamp)
	assert.NoError(t, err)
}

func TestEscalateDeescalateEventByID(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo, alertEvent(ts, 1001, "SIG", "10.0.0.1", "8.8.8.8"))
	id := eventRowID(t, db, ts)

	require.NoError(t, repo.EscalateEventByID(ctx, id))
	event, err := repo.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, event.Escalated)

	require.NoError(t, repo.DeescalateEventByID(ctx, id))
	event, err = repo.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, event.Escalated)

	history := eventHistory(t, db, id)
	require.Len(t, history, 2)
	assert.Equal(t, eve.ActionEscalated, history[0].Action)
	assert.Equal(t, eve.ActionDeescalated, history[1].Action)
}

func TestCommentEventByID(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo, alertEvent(ts, 1001, "SIG", "10.0.0.1", "8.8.8.8"))
	id := eventRowID(t, db, ts)

	require.NoError(t, repo.CommentEventByID(ctx, id, "looks like a false positive", "analyst"))

	// Comments touch only the history, never the flag columns.
	event, err := repo.GetEventByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, event.Archived)
	assert.False(t, event.Escalated)

	history := eventHistory(t, db, id)
	require.Len(t, history, 1)
	assert.Equal(t, eve.ActionComment, history[0].Action)
	assert.Equal(t, "analyst", history[0].Username)
	assert.Equal(t, "looks like a false positive", history[0].Comment)
}

func TestUpdateEventByID_NotFound(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	err := repo.ArchiveEventByID(context.Background(), "99999")
	assert.True(t, errors.Is(err, ErrEventNotFound))
}

func TestUpdateByAlertGroup(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	t1 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t1.Add(2 * time.Minute)
	loadTestEvents(t, repo,
		alertEvent(t1, 1001, "SIG", "10.0.0.1", "8.8.8.8"),
		alertEvent(t2, 1001, "SIG", "10.0.0.1", "8.8.8.8"),
		// Same key, outside the group's observed range.
		alertEvent(t3, 1001, "SIG", "10.0.0.1", "8.8.8.8"),
	)

	group := AlertGroupSpec{
		SignatureID:  1001,
		SrcIP:        "10.0.0.1",
		DestIP:       "8.8.8.8",
		MinTimestamp: eve.FormatTimestamp(t1),
		MaxTimestamp: eve.FormatTimestamp(t2),
	}
	require.NoError(t, repo.EscalateByAlertGroup(ctx, group, "analyst"))

	for ts, want := range map[time.Time]bool{t1: true, t2: true, t3: false} {
		event, err := repo.GetEventByID(ctx, eventRowID(t, db, ts))
		require.NoError(t, err)
		assert.Equal(t, want, event.Escalated, "event at %s", ts)
	}

	history := eventHistory(t, db, eventRowID(t, db, t1))
	require.Len(t, history, 1)
	assert.Equal(t, eve.ActionEscalated, history[0].Action)
	assert.Equal(t, "analyst", history[0].Username)

	require.NoError(t, repo.DeescalateByAlertGroup(ctx, group, "analyst"))
	event, err := repo.GetEventByID(ctx, eventRowID(t, db, t2))
	require.NoError(t, err)
	assert.False(t, event.Escalated)
}

func TestUpdateByAlertGroup_NoMatch(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	t1 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo, alertEvent(t1, 1001, "SIG", "10.0.0.1", "8.8.8.8"))

	err := repo.ArchiveByAlertGroup(context.Background(), AlertGroupSpec{
		SignatureID:  4242,
		SrcIP:        "192.168.1.1",
		DestIP:       "192.168.1.2",
		MinTimestamp: eve.FormatTimestamp(t1),
		MaxTimestamp: eve.FormatTimestamp(t1),
	})
	assert.True(t, errors.Is(err, ErrEventNotFound))
}

func TestUpdateByAlertGroup_BadTimestamps(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	err := repo.ArchiveByAlertGroup(context.Background(), AlertGroupSpec{
		SignatureID:  1001,
		SrcIP:        "10.0.0.1",
		DestIP:       "8.8.8.8",
		MinTimestamp: "garbage",
		MaxTimestamp: "garbage",
	})
	assert.True(t, errors.Is(err, ErrTimeParse))
}

func TestEvents_Listing(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dnsEvent := eve.Event{
		"timestamp":  eve.FormatTimestamp(base.Add(time.Minute)),
		"event_type": "dns",
		"src_ip":     "10.0.0.5",
		"dns":        map[string]interface{}{"rrname": "example.com"},
	}
	loadTestEvents(t, repo,
		alertEvent(base, 1001, "SIG", "10.0.0.1", "8.8.8.8"),
		dnsEvent,
		alertEvent(base.Add(2*time.Minute), 1002, "OTHER", "10.0.0.2", "8.8.8.8"),
	)

	// Default: everything, newest first.
	result, err := repo.Events(ctx, EventQueryParams{})
	require.NoError(t, err)
	require.Len(t, result.Events, 3)
	assert.Equal(t, "alert", result.Events[0].Source["event_type"])
	assert.Equal(t, "dns", result.Events[1].Source["event_type"])

	// Oldest first.
	result, err = repo.Events(ctx, EventQueryParams{Order: "asc"})
	require.NoError(t, err)
	require.Len(t, result.Events, 3)
	assert.EqualValues(t, 1001,
		result.Events[0].Source["alert"].(map[string]interface{})["signature_id"])

	// Filtered by type.
	result, err = repo.Events(ctx, EventQueryParams{EventType: "dns"})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "example.com",
		result.Events[0].Source["dns"].(map[string]interface{})["rrname"])

	// Time window.
	result, err = repo.Events(ctx, EventQueryParams{
		MinTimestamp: base.Add(30 * time.Second).UnixNano(),
		MaxTimestamp: base.Add(90 * time.Second).UnixNano(),
	})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "dns", result.Events[0].Source["event_type"])

	// Size cap.
	result, err = repo.Events(ctx, EventQueryParams{Size: 2})
	require.NoError(t, err)
	assert.Len(t, result.Events, 2)
}

func TestEvents_QueryStringElements(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo,
		alertEvent(base, 1001, "CURL AGENT", "10.0.0.1", "8.8.8.8"),
		alertEvent(base.Add(time.Second), 1002, "SSH SCAN", "10.0.0.2", "8.8.8.8"),
	)

	elements, err := queryparse.Parse("src_ip:10.0.0.1")
	require.NoError(t, err)
	result, err := repo.Events(ctx, EventQueryParams{QueryString: elements})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "10.0.0.1", result.Events[0].Source["src_ip"])

	elements, err = queryparse.Parse("-CURL")
	require.NoError(t, err)
	result, err = repo.Events(ctx, EventQueryParams{QueryString: elements})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "10.0.0.2", result.Events[0].Source["src_ip"])
}

func TestAgg(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo,
		alertEvent(base, 1001, "SIG", "10.0.0.1", "8.8.8.8"),
		alertEvent(base.Add(time.Second), 1001, "SIG", "10.0.0.1", "8.8.4.4"),
		alertEvent(base.Add(2*time.Second), 1002, "OTHER", "10.0.0.2", "8.8.8.8"),
	)

	buckets, err := repo.Agg(ctx, "src_ip", 10, nil)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "10.0.0.1", buckets[0].Key)
	assert.Equal(t, uint64(2), buckets[0].Count)
	assert.Equal(t, "10.0.0.2", buckets[1].Key)
	assert.Equal(t, uint64(1), buckets[1].Count)
}

func TestAgg_WithTimeBounds(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	loadTestEvents(t, repo,
		alertEvent(base, 1001, "SIG", "10.0.0.1", "8.8.8.8"),
		alertEvent(base.Add(time.Hour), 1002, "OTHER", "10.0.0.2", "8.8.8.8"),
	)

	elements, err := queryparse.Parse("@from:" + eve.FormatTimestamp(base.Add(30*time.Minute)))
	require.NoError(t, err)

	buckets, err := repo.Agg(ctx, "src_ip", 10, elements)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "10.0.0.2", buckets[0].Key)
}

func TestAgg_InvalidField(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	_, err := repo.Agg(context.Background(), "src_ip'; DROP TABLE events", 10, nil)
	assert.True(t, errors.Is(err, ErrArgumentEncoding))
}

func TestImporter(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)
	ctx := context.Background()

	importer := repo.GetImporter()
	assert.Equal(t, 0, importer.Pending())

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, importer.Submit(ctx, alertEvent(base, 1001, "SIG", "10.0.0.1", "8.8.8.8")))
	require.NoError(t, importer.Submit(ctx, alertEvent(base.Add(time.Second), 1002, "OTHER", "10.0.0.2", "8.8.8.8")))
	assert.Equal(t, 2, importer.Pending())

	n, err := importer.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, importer.Pending())

	var count int64
	require.NoError(t, db.ReadDB.QueryRow("SELECT count(*) FROM events").Scan(&count))
	assert.Equal(t, int64(2), count)
}

func TestImporter_CommitEmpty(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	n, err := repo.GetImporter().Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestImporter_RejectsEventWithoutTimestamp(t *testing.T) {
	db := setupEventDB(t)
	repo := newTestRepo(t, db, config.StrategyGroupBy)

	importer := repo.GetImporter()
	err := importer.Submit(context.Background(), eve.Event{"event_type": "dns"})
	assert.True(t, errors.Is(err, ErrTimeParse))
	assert.Equal(t, 0, importer.Pending())
}
