// Package eve holds the EVE event model shared by the storage backends.
//
// EVE is the JSON log record format emitted by Suricata-style network
// sensors: one object per line, always carrying a "timestamp" field and
// an "event_type" discriminator.
package eve

import (
	"fmt"
	"time"
)

// Timestamp layouts seen in EVE output. Suricata emits a numeric zone
// offset without a colon and a six digit fraction, but older sensors and
// re-serialized events vary, so a few fallbacks are accepted.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseTimestamp parses an EVE timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}

// FormatTimestamp renders t in the format Suricata itself uses, a
// microsecond fraction with a colon-less zone offset.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000-0700")
}

// FromNanos converts integer nanoseconds since the epoch, the store's
// sort key, back to a time value in UTC.
func FromNanos(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
