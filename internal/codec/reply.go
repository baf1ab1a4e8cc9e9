package codec

import (
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/anymail/internal/model"
)

const (
	replyPrefix = "Re: "
	quoteMarker = "> "
)

// ReplySubject prefixes subject with "Re: " unless it already carries
// one, compared case-insensitively.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	return replyPrefix + trimmed
}

// BuildReplyContext derives the addressing, threading headers and
// quoted text for a reply to m sent by self.
//
// With toAll the original To and Cc recipients land in Cc, minus self
// and the original sender, deduplicated case-insensitively on the
// whole address.
func BuildReplyContext(m *Message, self string, toAll, includeQuote bool) model.ReplyContext {
	rc := model.ReplyContext{
		To:         []string{},
		Cc:         []string{},
		Subject:    ReplySubject(m.Subject),
		InReplyTo:  m.MessageID,
		References: References(m.References, m.MessageID),
	}

	var sender string
	if len(m.From) > 0 {
		sender = m.From[0].Address
		rc.To = append(rc.To, sender)
	}

	if toAll {
		seen := map[string]bool{
			strings.ToLower(self):   true,
			strings.ToLower(sender): true,
		}
		for _, list := range [][]*mail.Address{m.To, m.Cc} {
			for _, a := range list {
				key := strings.ToLower(a.Address)
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				rc.Cc = append(rc.Cc, a.Address)
			}
		}
	}

	if text, ok := m.TextBody(); ok {
		rc.QuoteAvailable = true
		if includeQuote {
			rc.QuotedText = Quote(text)
		}
	}

	return rc
}

// References appends id to refs, dropping duplicates while keeping the
// first occurrence of each id.
func References(refs []string, id string) []string {
	out := make([]string, 0, len(refs)+1)
	seen := make(map[string]bool, len(refs)+1)
	for _, r := range append(append([]string(nil), refs...), id) {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Quote prefixes every line of text with "> ".
func Quote(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
			continue
		}
		lines[i] = quoteMarker + line
	}
	return strings.Join(lines, "\n")
}
