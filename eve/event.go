package eve

import (
	"encoding/json"
	"fmt"
)

// Alert-view tag literals. The archived/escalated flags live in their
// own columns; these tags exist only in synthesized view documents and
// in filter requests.
const (
	TagArchived  = "evebox.archived"
	TagEscalated = "evebox.escalated"

	// TagNotArchived selects only un-archived events when filtering.
	TagNotArchived = "-evebox.archived"
)

// History entry action names. The history column is an append-only JSON
// array auditing every mutation applied to an event.
const (
	ActionArchived    = "archived"
	ActionEscalated   = "escalated"
	ActionDeescalated = "de-escalated"
	ActionComment     = "comment"
)

// HistoryEntry is one audit record on an event.
type HistoryEntry struct {
	ID        string `json:"action_id"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Comment   string `json:"comment,omitempty"`
}

// ErrNoTimestamp is returned for EVE records missing the mandatory
// timestamp field.
var ErrNoTimestamp = fmt.Errorf("event has no timestamp field")

// Event is a decoded EVE record. Only the fields this layer inspects
// are named; everything else rides along in the raw document.
type Event map[string]interface{}

// Decode parses a single EVE JSON record.
func Decode(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return event, nil
}

// Timestamp returns the record's parsed timestamp.
func (e Event) Timestamp() (int64, error) {
	ts, ok := e["timestamp"].(string)
	if !ok {
		return 0, ErrNoTimestamp
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return 0, err
	}
	return t.UnixNano(), nil
}

// EventType returns the event_type discriminator, or an empty string.
func (e Event) EventType() string {
	eventType, _ := e["event_type"].(string)
	return eventType
}

// GetString walks a dotted path into the document and returns the string
// found there, if any.
func (e Event) GetString(path ...string) string {
	var current interface{} = map[string]interface{}(e)
	for _, key := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = obj[key]
	}
	s, _ := current.(string)
	return s
}
