package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONFenced(t *testing.T) {
	out := ExtractJSON("Here you go:\n```json\n{\"mode\": \"none\"}\n```\nLet me know!")
	require.Equal(t, `{"mode": "none"}`, out)

	// Generic fence, object content.
	out = ExtractJSON("```\n{\"a\": 1}\n```")
	require.Equal(t, `{"a": 1}`, out)
}

func TestExtractJSONBare(t *testing.T) {
	out := ExtractJSON(`The plan is {"template_id": "q_sales_trend", "params": {"grain": "month"}} as requested.`)
	require.Equal(t, `{"template_id": "q_sales_trend", "params": {"grain": "month"}}`, out)
}

func TestExtractJSONBracesInStrings(t *testing.T) {
	out := ExtractJSON(`{"sql": "SELECT '{' AS brace", "note": "has \" escape"}`)
	require.Equal(t, `{"sql": "SELECT '{' AS brace", "note": "has \" escape"}`, out)
}

func TestExtractJSONNone(t *testing.T) {
	require.Empty(t, ExtractJSON("no structured data here"))
	require.Empty(t, ExtractJSON(""))
	// Unbalanced object never closes.
	require.Empty(t, ExtractJSON(`{"a": 1`))
}

func TestTruncateForError(t *testing.T) {
	short := "short"
	require.Equal(t, short, TruncateForError(short))

	long := strings.Repeat("x", 300)
	out := TruncateForError(long)
	require.Len(t, out, 203)
	require.True(t, strings.HasSuffix(out, "..."))
}
