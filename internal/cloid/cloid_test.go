package cloid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUnique(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}

func TestRoundTripHex(t *testing.T) {
	c := New()
	parsed, err := FromHex(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestFromHexAcceptsMissingPrefix(t *testing.T) {
	c := New()
	withoutPrefix := c.String()[2:]
	parsed, err := FromHex(withoutPrefix)
	require.NoError(t, err)
	assert.Equal(t, c, parsed)
}

func TestFromHexRejectsBadLength(t *testing.T) {
	_, err := FromHex("0xdeadbeef")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	c := New()
	data, err := c.MarshalJSON()
	require.NoError(t, err)

	var out CLOID
	require.NoError(t, out.UnmarshalJSON(data))
	assert.Equal(t, c, out)
}

func TestZeroValueIsZero(t *testing.T) {
	var c CLOID
	assert.True(t, c.IsZero())
}
