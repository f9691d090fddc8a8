package lp

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMultipleJSON_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeMultipleJSON(&buf, []string{"a", "b", "c"}, map[string]any{
		"a": 1,
		"b": "two",
	})
	require.NoError(t, err)

	fields, order, err := DecodeMultipleJSON(&buf)
	require.NoError(t, err)

	require.Equal(t, []string{"a", "b"}, order)
	var a int
	require.NoError(t, json.Unmarshal(fields["a"], &a))
	assert.Equal(t, 1, a)

	var b string
	require.NoError(t, json.Unmarshal(fields["b"], &b))
	assert.Equal(t, "two", b)

	_, hasC := fields["c"]
	assert.False(t, hasC)
}

func TestDecodeMultipleJSON_EmptyStreamYieldsNoFields(t *testing.T) {
	fields, order, err := DecodeMultipleJSON(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, fields)
	assert.Empty(t, order)
}

func TestDecodeMultipleJSON_RejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	_ = EncodeMultipleJSON(&buf, []string{"a"}, map[string]any{"a": 1})
	truncated := buf.Bytes()[:buf.Len()-1]

	_, _, err := DecodeMultipleJSON(bytes.NewReader(truncated))
	assert.Error(t, err)
}
