package storage

import (
	"time"

	"eveconsole/queryparse"
)

// AlertQueryOptions describes one alert aggregation request. Every
// field is optional; the zero value means "no constraint".
type AlertQueryOptions struct {
	// Tags holds view-control tag strings (eve.TagArchived,
	// eve.TagNotArchived, eve.TagEscalated). Unrecognized tags are
	// ignored.
	Tags []string
	// Sensor filters to events from one sensor host, exact match.
	Sensor string
	// TimestampGte is a minimum timestamp in nanoseconds since epoch.
	TimestampGte int64
	// QueryString is free text parsed into filter elements. A parse
	// failure is logged and the constraint dropped, never fatal.
	QueryString string
}

// AggAlertMetadata carries the per-group aggregation counters.
type AggAlertMetadata struct {
	Count          uint64    `json:"count"`
	EscalatedCount uint64    `json:"escalated_count"`
	MinTimestamp   time.Time `json:"min_timestamp"`
	MaxTimestamp   time.Time `json:"max_timestamp"`
}

// AggAlert is one deduplicated alert group. Source is a synthesized
// document derived from the group's representative event, not the raw
// stored blob.
type AggAlert struct {
	ID       string                 `json:"id"`
	Source   map[string]interface{} `json:"source"`
	Metadata AggAlertMetadata       `json:"metadata"`
}

// AlertsResult is the uniform alert aggregation result. TimedOut is
// only ever true for the streaming strategy: the result is then partial
// and counts may undercount true totals.
type AlertsResult struct {
	Events   []AggAlert `json:"events"`
	TimedOut bool       `json:"timed_out"`
	Took     int64      `json:"took"`
}

// EventQueryParams filters an event list query.
type EventQueryParams struct {
	EventType    string
	MinTimestamp int64
	MaxTimestamp int64
	Order        string
	Size         int64
	QueryString  []queryparse.Element
}

// EventsResult is a page of raw events.
type EventsResult struct {
	Events []EventResult `json:"events"`
}

// EventResult is one stored event with its identity and flags.
type EventResult struct {
	ID        string                 `json:"_id"`
	Source    map[string]interface{} `json:"_source"`
	Archived  bool                   `json:"archived"`
	Escalated bool                   `json:"escalated"`
}

// AlertGroupSpec identifies every member of one alert group: the dedup
// key plus the time range the group was observed over.
type AlertGroupSpec struct {
	SignatureID  int64  `json:"signature_id"`
	SrcIP        string `json:"src_ip"`
	DestIP       string `json:"dest_ip"`
	MinTimestamp string `json:"min_timestamp"`
	MaxTimestamp string `json:"max_timestamp"`
}

// AggResultBucket is one value bucket from a field aggregation.
type AggResultBucket struct {
	Key   interface{} `json:"key"`
	Count uint64      `json:"doc_count"`
}
