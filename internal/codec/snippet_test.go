package codec

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	opts := SnippetOptions{MaxBytes: 10, Marker: "..."}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "hello", "hello"},
		{"exact", "0123456789", "0123456789"},
		{"long", "0123456789abc", "0123456..."},
		{"trailing space trimmed", "012345 789abc", "012345..."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, opts))
		})
	}
}

func TestTruncateNeverSplitsRunes(t *testing.T) {
	text := strings.Repeat("žluťoučký kůň 日本語 ", 40)

	for max := 4; max <= 80; max++ {
		opts := SnippetOptions{MaxBytes: max, Marker: "..."}
		got := Truncate(text, opts)

		assert.LessOrEqual(t, len(got), max, "max=%d", max)
		assert.True(t, utf8.ValidString(got), "max=%d", max)

		kept := strings.TrimSuffix(got, "...")
		assert.True(t, strings.HasPrefix(text, kept), "max=%d", max)
	}
}

func TestTruncateMarkerLongerThanBudget(t *testing.T) {
	got := Truncate("abcdefgh", SnippetOptions{MaxBytes: 2, Marker: "..."})
	assert.Equal(t, "ab", got)
}

func TestSnippetFromPlainPart(t *testing.T) {
	part := strings.Repeat("Ünïcödé text ", 30)
	raw := crlf("Subject: s\nContent-Type: text/plain; charset=utf-8\n\n" + part + "\n")

	msg, err := Decode(raw)
	require.NoError(t, err)

	snippet := Snippet(msg, DefaultSnippetOptions())
	assert.LessOrEqual(t, len(snippet), DefaultSnippetMaxBytes)
	assert.True(t, utf8.ValidString(snippet))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.True(t, strings.HasPrefix(part, strings.TrimSuffix(snippet, "...")))
}

func TestSnippetFallsBackToHTML(t *testing.T) {
	raw := crlf("Subject: s\nContent-Type: text/html\n\n<html><body><p>Hello <b>there</b></p></body></html>\n")
	msg, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "Hello there", Snippet(msg, DefaultSnippetOptions()))
}

func TestSnippetEmptyWithoutText(t *testing.T) {
	raw := crlf("Subject: s\nContent-Type: image/png\nContent-Transfer-Encoding: base64\n\niVBORw0KGgo=\n")
	msg, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "", Snippet(msg, DefaultSnippetOptions()))
	assert.Equal(t, "", Snippet(nil, DefaultSnippetOptions()))
}
