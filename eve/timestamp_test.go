package eve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_SuricataFormat(t *testing.T) {
	ts, err := ParseTimestamp("2024-05-01T12:30:45.123456+0200")
	require.NoError(t, err)

	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, time.May, ts.Month())
	assert.Equal(t, 123456000, ts.Nanosecond())

	_, offset := ts.Zone()
	assert.Equal(t, 2*3600, offset)
}

func TestParseTimestamp_RFC3339(t *testing.T) {
	ts, err := ParseTimestamp("2024-05-01T12:30:45Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1714566645), ts.Unix())

	ts, err = ParseTimestamp("2024-05-01T12:30:45.999999999Z")
	require.NoError(t, err)
	assert.Equal(t, 999999999, ts.Nanosecond())
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, input := range []string{"", "not a timestamp", "2024-05-01", "12:30:45"} {
		_, err := ParseTimestamp(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	original := time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.UTC)

	formatted := FormatTimestamp(original)
	assert.Equal(t, "2024-05-01T12:30:45.123456+0000", formatted)

	parsed, err := ParseTimestamp(formatted)
	require.NoError(t, err)
	assert.Equal(t, original.UnixNano(), parsed.UnixNano())
}

func TestFromNanos(t *testing.T) {
	original := time.Date(2024, 5, 1, 12, 30, 45, 123456789, time.UTC)
	assert.True(t, FromNanos(original.UnixNano()).Equal(original))
}
