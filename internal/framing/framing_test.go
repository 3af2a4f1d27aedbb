package framing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractConcatenatedValues(t *testing.T) {
	buf := []byte(`{"a":1}{"b":2}`)
	values, residual, err := Extract(buf)
	require.NoError(t, err)
	require.Empty(t, residual)
	require.Len(t, values, 2)
	require.JSONEq(t, `{"a":1}`, string(values[0]))
	require.JSONEq(t, `{"b":2}`, string(values[1]))
}

func TestExtractGluedFramesNoSeparator(t *testing.T) {
	// Two envelopes glued with no whitespace between them, per spec
	// boundary scenario 6.
	buf := []byte(`{"action":"A","reqId":"1"}{"action":"B","reqId":"2"}`)
	values, residual, err := Extract(buf)
	require.NoError(t, err)
	require.Empty(t, residual)
	require.Len(t, values, 2)
	require.Contains(t, string(values[0]), `"A"`)
	require.Contains(t, string(values[1]), `"B"`)
}

func TestExtractSplitAcrossFeeds(t *testing.T) {
	f := NewFramer()

	half1 := []byte(`{"action":"getPara`)
	half2 := []byte(`meters","reqId":"000003e9"}`)

	values, err := f.Feed(half1)
	require.NoError(t, err)
	require.Empty(t, values)
	require.Equal(t, len(half1), f.Pending())

	values, err = f.Feed(half2)
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Zero(t, f.Pending())
	require.Contains(t, string(values[0]), "getParameters")
}

func TestExtractPartialBufferDoesNotError(t *testing.T) {
	buf := []byte(`{"action":"x", "n`)
	values, residual, err := Extract(buf)
	require.NoError(t, err)
	require.Empty(t, values)
	require.Equal(t, buf, residual)
}

func TestExtractUnrecoverableReportsOffsetAndChar(t *testing.T) {
	buf := []byte(`not json at all`)
	_, _, err := Extract(buf)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, byte('n'), pe.Char)
}

func TestFramerResyncsAfterUnrecoverableError(t *testing.T) {
	f := NewFramer()

	// Garbage with no way to resynchronise, followed (in a later feed)
	// by a clean frame — the framer must recover on the next feed.
	_, err := f.Feed([]byte(`garbage`))
	require.Error(t, err)
	require.Zero(t, f.Pending())

	values, err := f.Feed([]byte(`{"ok":true}`))
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestFramerThreeConcatenatedAcrossTwoFeeds(t *testing.T) {
	f := NewFramer()

	values, err := f.Feed([]byte(`{"a":1}{"b":2}{"c":`))
	require.NoError(t, err)
	require.Len(t, values, 2)

	values, err = f.Feed([]byte(`3}`))
	require.NoError(t, err)
	require.Len(t, values, 1)
	require.JSONEq(t, `{"c":3}`, string(values[0]))
}
