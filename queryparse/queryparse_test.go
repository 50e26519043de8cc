package queryparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BareStrings(t *testing.T) {
	elements, err := Parse("8.8.8.8 trojan")
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, Element{Kind: KindString, Value: "8.8.8.8"}, elements[0])
	assert.Equal(t, Element{Kind: KindString, Value: "trojan"}, elements[1])
}

func TestParse_KeyValue(t *testing.T) {
	elements, err := Parse("alert.signature_id:2013028 src_ip:10.0.0.1")
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, KindKeyValue, elements[0].Kind)
	assert.Equal(t, "alert.signature_id", elements[0].Key)
	assert.Equal(t, "2013028", elements[0].Value)
	assert.Equal(t, "src_ip", elements[1].Key)
}

func TestParse_QuotedValues(t *testing.T) {
	elements, err := Parse(`alert.signature:"ET POLICY curl" "free text"`)
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.Equal(t, KindKeyValue, elements[0].Kind)
	assert.Equal(t, "ET POLICY curl", elements[0].Value)
	assert.Equal(t, KindString, elements[1].Kind)
	assert.Equal(t, "free text", elements[1].Value)
}

func TestParse_Negation(t *testing.T) {
	elements, err := Parse("-ssh -event_type:flow")
	require.NoError(t, err)
	require.Len(t, elements, 2)

	assert.True(t, elements[0].Negated)
	assert.Equal(t, "ssh", elements[0].Value)
	assert.True(t, elements[1].Negated)
	assert.Equal(t, "event_type", elements[1].Key)
}

func TestParse_TimeBounds(t *testing.T) {
	elements, err := Parse("@from:2024-05-01T00:00:00Z @to:2024-05-02T00:00:00Z dns")
	require.NoError(t, err)
	require.Len(t, elements, 3)

	assert.Equal(t, KindFrom, elements[0].Kind)
	assert.Equal(t, "2024-05-01T00:00:00Z", elements[0].Value)
	assert.Equal(t, KindTo, elements[1].Kind)
	assert.Equal(t, KindString, elements[2].Kind)
}

func TestParse_UnterminatedQuote(t *testing.T) {
	_, err := Parse(`alert.signature:"unterminated`)
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	elements, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, elements)

	elements, err = Parse("   \t  ")
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestParse_LoneDash(t *testing.T) {
	// A bare "-" is a literal term, not an empty negation.
	elements, err := Parse("-")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.False(t, elements[0].Negated)
	assert.Equal(t, "-", elements[0].Value)
}
