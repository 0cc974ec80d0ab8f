package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanJSONStripsFences(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	require.Equal(t, `{"a": 1}`, CleanJSON(in))
}

func TestCleanJSONStripsBareFences(t *testing.T) {
	in := "```\n{\"a\": 1}\n```"
	require.Equal(t, `{"a": 1}`, CleanJSON(in))
}

func TestCleanJSONLeavesPlainJSON(t *testing.T) {
	in := `{"a": 1}`
	require.Equal(t, in, CleanJSON(in))
}

func TestDecodePayloadValid(t *testing.T) {
	raw, ok := DecodePayload("```json\n{\"summary\": \"x\"}\n```")
	require.True(t, ok)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "x", got["summary"])
}

func TestDecodePayloadFallback(t *testing.T) {
	raw, ok := DecodePayload("the model rambled instead of answering")
	require.False(t, ok)
	require.True(t, IsFallbackPayload(raw))

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "the model rambled instead of answering", got["raw"])
	require.NotEmpty(t, got["parse_error"])
}
