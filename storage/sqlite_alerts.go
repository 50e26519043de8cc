package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"eveconsole/config"
	"eveconsole/eve"
	"eveconsole/metrics"
)

// Alerts runs the alert aggregation described by options using the
// configured strategy. Both strategies share filter and grouping
// semantics; they differ only in the completeness/latency tradeoff.
func (r *SQLiteEventRepo) Alerts(ctx context.Context, options AlertQueryOptions) (*AlertsResult, error) {
	start := time.Now()

	var result *AlertsResult
	var err error
	switch r.opts.Strategy {
	case config.StrategyStream:
		result, err = r.alertsStream(ctx, options)
	default:
		result, err = r.alertsGroupBy(ctx, options)
	}
	if err != nil {
		return nil, err
	}

	result.Took = time.Since(start).Milliseconds()
	metrics.AlertQueries.WithLabelValues(string(r.opts.Strategy)).Inc()
	metrics.AlertQueryDuration.WithLabelValues(string(r.opts.Strategy)).
		Observe(time.Since(start).Seconds())
	metrics.AlertGroups.Observe(float64(len(result.Events)))
	if result.TimedOut {
		metrics.AlertQueryTimeouts.Inc()
	}

	return result, nil
}

// alertsGroupBy is the exact strategy: one statement groups the
// filtered rows by the dedup key, then joins back to the base table to
// fetch the full document of each group's most recent member. It scans
// the full filtered set and never times out.
func (r *SQLiteEventRepo) alertsGroupBy(ctx context.Context, options AlertQueryOptions) (*AlertsResult, error) {
	const query = `
        SELECT b.count,
            a.rowid AS id,
            b.mints,
            b.escalated_count,
            a.archived,
            a.source
        FROM events a
        INNER JOIN
        (
            SELECT
                count(json_extract(events.source, '$.alert.signature_id')) AS count,
                min(timestamp) AS mints,
                max(timestamp) AS maxts,
                sum(escalated) AS escalated_count,
                json_extract(events.source, '$.alert.signature_id') AS signature_id,
                json_extract(events.source, '$.src_ip') AS src_ip,
                json_extract(events.source, '$.dest_ip') AS dest_ip
            FROM %FROM%
            WHERE %WHERE%
            GROUP BY signature_id, src_ip, dest_ip
        ) AS b
        WHERE a.timestamp = b.maxts
            AND json_extract(a.source, '$.alert.signature_id') = b.signature_id
            AND json_extract(a.source, '$.src_ip') = b.src_ip
            AND json_extract(a.source, '$.dest_ip') = b.dest_ip
        ORDER BY a.timestamp DESC`

	var fragments []string
	var args []interface{}
	for _, f := range r.alertFilters(options, extractColumn) {
		fragments = append(fragments, f.fragment)
		args = append(args, f.args...)
	}

	sqlText := strings.Replace(query, "%FROM%", "events", 1)
	sqlText = strings.Replace(sqlText, "%WHERE%", strings.Join(fragments, " AND "), 1)
	r.logQuery(sqlText, args)

	rows, err := r.db.ReadDB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	defer rows.Close()

	sensors := make(map[string]struct{})
	results := []AggAlert{}
	for rows.Next() {
		alert, err := groupByRowMapper(rows)
		if err != nil {
			return nil, err
		}
		if host, ok := alert.Source["host"].(string); ok && host != "" {
			sensors[host] = struct{}{}
		}
		results = append(results, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}

	r.sensors.Observe(sensors)

	r.logger.Debugw("Alert group-by query done", "groups", len(results))
	return &AlertsResult{Events: results, TimedOut: false}, nil
}

// groupByRowMapper maps one joined row into an AggAlert, synthesizing
// the group's displayed document from the representative event.
func groupByRowMapper(rows *sql.Rows) (*AggAlert, error) {
	var count, id, minTsNanos, escalatedCount, archived int64
	var source string

	if err := rows.Scan(&count, &id, &minTsNanos, &escalatedCount, &archived, &source); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(source), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	timestamp, _ := parsed["timestamp"].(string)
	maxTs, err := eve.ParseTimestamp(timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeParse, err)
	}

	alertDoc, _ := parsed["alert"].(map[string]interface{})
	synthesized := map[string]interface{}{
		"alert": map[string]interface{}{
			"action":       alertDoc["action"],
			"severity":     alertDoc["severity"],
			"signature":    alertDoc["signature"],
			"signature_id": alertDoc["signature_id"],
		},
		"app_proto": parsed["app_proto"],
		"dest_ip":   parsed["dest_ip"],
		"src_ip":    parsed["src_ip"],
		"tags":      enrichedTags(parsed["tags"], archived > 0),
		"timestamp": parsed["timestamp"],
		"host":      parsed["host"],
		"dns":       parsed["dns"],
		"tls":       parsed["tls"],
	}

	if http, ok := parsed["http"].(map[string]interface{}); ok {
		if hostname, ok := http["hostname"].(string); ok {
			synthesized["http"] = map[string]interface{}{"hostname": hostname}
		}
	}

	return &AggAlert{
		ID:     strconv.FormatInt(id, 10),
		Source: synthesized,
		Metadata: AggAlertMetadata{
			Count:          uint64(count),
			EscalatedCount: uint64(escalatedCount),
			MinTimestamp:   eve.FromNanos(minTsNanos),
			MaxTimestamp:   maxTs,
		},
	}, nil
}

// enrichedTags rebuilds an event's tags array for display, adding the
// archived tag when the flag column is set. The stored document is
// never touched; absent tags normalize to an empty array.
func enrichedTags(stored interface{}, archived bool) []interface{} {
	tags := []interface{}{}
	if storedTags, ok := stored.([]interface{}); ok {
		tags = append(tags, storedTags...)
	}
	if archived {
		tags = append(tags, eve.TagArchived)
	}
	return tags
}

// alertsStream is the time-bounded strategy: one row-producing query
// ordered newest first, grouped client-side into an insertion-ordered
// dedup map. The budget timer starts after the first row so query
// planning and first-byte latency don't count against it. On expiry the
// partial groups accumulated so far are returned with TimedOut set;
// counts may then undercount true totals.
func (r *SQLiteEventRepo) alertsStream(ctx context.Context, options AlertQueryOptions) (*AlertsResult, error) {
	indexed := r.db.FTS()

	builder := NewEventQueryBuilder(indexed)
	builder.
		Select("events.rowid").
		Select("timestamp").
		Select("escalated").
		Select("archived").
		SelectJSON("alert.signature_id").
		SelectJSON("alert.signature").
		SelectJSON("alert.severity").
		SelectJSON("alert.action").
		SelectJSON("dns").
		SelectJSON("tls").
		SelectJSON("quic").
		SelectJSON("app_proto").
		SelectJSON("dest_ip").
		SelectJSON("src_ip").
		SelectJSON("tags").
		SelectJSON("http.hostname").
		SelectJSON("host")
	builder.From("events")
	builder.OrderBy("timestamp", "DESC")

	jsonCol := func(path string) string { return JSONColumn(indexed, path) }
	for _, f := range r.alertFilters(options, jsonCol) {
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

	sensors := make(map[string]struct{})
	groups := make(map[string]*AggAlert)
	var order []string

	timer := time.Now()
	timedOut := false
	count := 0

	for rows.Next() {
		row, err := scanStreamRow(rows)
		if err != nil {
			return nil, err
		}

		if row.host != "" {
			sensors[row.host] = struct{}{}
		}

		key := row.dedupKey()
		if entry, ok := groups[key]; ok {
			entry.Metadata.Count++
			if row.escalated {
				entry.Metadata.EscalatedCount++
			}
			// Rows arrive newest first: the first member seen is the
			// representative and every later one lowers the minimum.
			entry.Metadata.MinTimestamp = eve.FromNanos(row.timestamp)
		} else {
			alert := &AggAlert{
				ID:     strconv.FormatInt(row.rowid, 10),
				Source: row.synthesize(),
				Metadata: AggAlertMetadata{
					Count:        1,
					MinTimestamp: eve.FromNanos(row.timestamp),
					MaxTimestamp: eve.FromNanos(row.timestamp),
				},
			}
			if row.escalated {
				alert.Metadata.EscalatedCount = 1
			}
			groups[key] = alert
			order = append(order, key)
		}

		if count == 0 {
			r.logger.Debugw("First row received", "elapsed", time.Since(timer))
			timer = time.Now()
		}
		count++

		if time.Since(timer) > r.opts.TimeBudget {
			timedOut = true
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}

	r.sensors.Observe(sensors)

	r.logger.Infow("Alert stream query done",
		"timed_out", timedOut,
		"events", count,
		"groups", len(order))

	results := make([]AggAlert, 0, len(order))
	for _, key := range order {
		results = append(results, *groups[key])
	}

	return &AlertsResult{Events: results, TimedOut: timedOut}, nil
}

// streamRow is one scanned row of the streaming query.
type streamRow struct {
	rowid        int64
	timestamp    int64
	escalated    bool
	archived     bool
	signatureID  sql.NullInt64
	signature    sql.NullString
	severity     sql.NullInt64
	action       sql.NullString
	dns          sql.NullString
	tls          sql.NullString
	quic         sql.NullString
	appProto     sql.NullString
	destIP       sql.NullString
	srcIP        sql.NullString
	tags         sql.NullString
	httpHostname sql.NullString
	host         string
}

func scanStreamRow(rows *sql.Rows) (*streamRow, error) {
	var row streamRow
	var host sql.NullString
	err := rows.Scan(
		&row.rowid,
		&row.timestamp,
		&row.escalated,
		&row.archived,
		&row.signatureID,
		&row.signature,
		&row.severity,
		&row.action,
		&row.dns,
		&row.tls,
		&row.quic,
		&row.appProto,
		&row.destIP,
		&row.srcIP,
		&row.tags,
		&row.httpHostname,
		&host,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailure, err)
	}
	row.host = host.String
	return &row, nil
}

// dedupKey concatenates the signature id and address pair. Events that
// differ only in timestamp, severity or tags land in the same group.
func (row *streamRow) dedupKey() string {
	return fmt.Sprintf("%d%s%s", row.signatureID.Int64, row.srcIP.String, row.destIP.String)
}

// synthesize builds the group's displayed document from the scanned
// representative row.
func (row *streamRow) synthesize() map[string]interface{} {
	source := map[string]interface{}{
		"timestamp": eve.FormatTimestamp(eve.FromNanos(row.timestamp)),
		"tags":      enrichedTags(parseJSONValue(row.tags), row.archived),
		"dest_ip":   row.destIP.String,
		"src_ip":    row.srcIP.String,
		"app_proto": row.appProto.String,
		"alert": map[string]interface{}{
			"signature":    row.signature.String,
			"signature_id": row.signatureID.Int64,
			"severity":     row.severity.Int64,
			"action":       row.action.String,
		},
		"tls":  parseJSONValue(row.tls),
		"dns":  parseJSONValue(row.dns),
		"quic": parseJSONValue(row.quic),
	}
	if row.host != "" {
		source["host"] = row.host
	}
	if row.httpHostname.Valid {
		source["http"] = map[string]interface{}{"hostname": row.httpHostname.String}
	}
	return source
}

// parseJSONValue decodes a projected sub-document column. Extraction
// yields JSON text for objects and arrays; a null or undecodable value
// passes through as nil.
func parseJSONValue(col sql.NullString) interface{} {
	if !col.Valid || col.String == "" {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(col.String), &value); err != nil {
		// Scalar column projected as plain text.
		return col.String
	}
	return value
}
