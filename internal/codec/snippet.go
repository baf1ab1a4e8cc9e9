package codec

import (
	"strings"
	"unicode/utf8"

	"github.com/k3a/html2text"
)

// Snippet defaults.
const (
	DefaultSnippetMaxBytes = 200
	DefaultSnippetMarker   = "..."
)

// SnippetOptions controls snippet truncation. MaxBytes bounds the whole
// snippet, marker included.
type SnippetOptions struct {
	MaxBytes int
	Marker   string
}

// DefaultSnippetOptions returns the 200 byte, "..." configuration.
func DefaultSnippetOptions() SnippetOptions {
	return SnippetOptions{MaxBytes: DefaultSnippetMaxBytes, Marker: DefaultSnippetMarker}
}

// Snippet returns a short preview of m: the first text/plain part, or
// the first text/html part converted to text. It is "" when m has no
// readable text.
func Snippet(m *Message, opts SnippetOptions) string {
	if m == nil {
		return ""
	}
	text, ok := m.TextBody()
	if !ok {
		html, ok := m.HTMLBody()
		if !ok {
			return ""
		}
		text = html2text.HTML2Text(html)
	}
	return Truncate(CollapseWhitespace(text), opts)
}

// CollapseWhitespace joins the whitespace separated fields of s with
// single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s so that the result, marker included, is at most
// opts.MaxBytes long. The cut never lands inside a multi-byte rune, and
// the kept text is always a prefix of s.
func Truncate(s string, opts SnippetOptions) string {
	max := opts.MaxBytes
	if max <= 0 {
		max = DefaultSnippetMaxBytes
	}
	if len(s) <= max {
		return s
	}

	marker := opts.Marker
	if len(marker) >= max {
		marker = ""
	}

	cut := max - len(marker)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return strings.TrimRight(s[:cut], " ") + marker
}
