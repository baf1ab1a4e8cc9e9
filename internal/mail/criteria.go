package mail

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/timespec"
)

// Criteria is the structured search filter. All set fields must match.
// Raw is an IMAP SEARCH fragment AND-ed with the rest.
type Criteria struct {
	UnreadOnly bool   `json:"unread_only,omitempty"`
	From       string `json:"from,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Since      string `json:"since,omitempty"`
	Before     string `json:"before,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// IsZero reports whether c matches every message.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Build resolves relative dates against now and returns the IMAP
// criteria.
func (c Criteria) Build(now time.Time) (*imap.SearchCriteria, error) {
	sc := &imap.SearchCriteria{}

	if c.UnreadOnly {
		sc.NotFlag = append(sc.NotFlag, imap.FlagSeen)
	}
	if c.From != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{Key: "From", Value: c.From})
	}
	if c.Subject != "" {
		sc.Header = append(sc.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: c.Subject})
	}
	if c.Since != "" {
		t, err := timespec.Parse(c.Since, now)
		if err != nil {
			return nil, invalidArg("since: %v", err)
		}
		sc.Since = t
	}
	if c.Before != "" {
		t, err := timespec.Parse(c.Before, now)
		if err != nil {
			return nil, invalidArg("before: %v", err)
		}
		sc.Before = t
	}
	if strings.TrimSpace(c.Raw) != "" {
		raw, err := ParseQuery(c.Raw, now)
		if err != nil {
			return nil, err
		}
		sc.And(raw)
	}

	return sc, nil
}

func invalidArg(format string, args ...any) error {
	return mailerr.Config(mailerr.ErrInvalidArgument, format, args...)
}

// ParseQuery parses an IMAP SEARCH key list such as
// `FROM "bob" OR SEEN FLAGGED NOT (SUBJECT x)` into criteria. Dates
// accept the IMAP form (2-Jan-2006) and everything timespec accepts.
func ParseQuery(raw string, now time.Time) (*imap.SearchCriteria, error) {
	toks, err := tokenize(raw)
	if err != nil {
		return nil, err
	}

	p := &queryParser{toks: toks, now: now}
	sc := &imap.SearchCriteria{}
	for !p.done() {
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		sc.And(key)
	}
	return sc, nil
}

type token struct {
	text   string
	quoted bool
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '(' || c == ')':
			toks = append(toks, token{text: string(c)})
			i++
		case c == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if s[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, invalidArg("query: unterminated quoted string")
			}
			toks = append(toks, token{text: b.String(), quoted: true})
		default:
			start := i
			for i < len(s) && !strings.ContainsRune(" \t\r\n()\"", rune(s[i])) {
				i++
			}
			toks = append(toks, token{text: s[start:i]})
		}
	}
	return toks, nil
}

type queryParser struct {
	toks []token
	pos  int
	now  time.Time
}

func (p *queryParser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *queryParser) next() (token, bool) {
	if p.done() {
		return token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *queryParser) arg(key string) (string, error) {
	t, ok := p.next()
	if !ok || (!t.quoted && (t.text == "(" || t.text == ")")) {
		return "", invalidArg("query: %s needs an argument", key)
	}
	return t.text, nil
}

func (p *queryParser) date(key string) (time.Time, error) {
	s, err := p.arg(key)
	if err != nil {
		return time.Time{}, err
	}
	if t, err := time.ParseInLocation("2-Jan-2006", s, p.now.Location()); err == nil {
		return t, nil
	}
	t, err := timespec.Parse(s, p.now)
	if err != nil {
		return time.Time{}, invalidArg("query: %s: %v", key, err)
	}
	return t, nil
}

func (p *queryParser) number(key string) (int64, error) {
	s, err := p.arg(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, invalidArg("query: %s needs a number, got %q", key, s)
	}
	return n, nil
}

// parseUIDSet reads a sequence-set such as "3:5,9,12:*". "*" maps to 0,
// which imap.UIDSet treats as the largest UID.
func parseUIDSet(v string) (imap.UIDSet, bool) {
	var set imap.UIDSet
	for _, part := range strings.Split(v, ",") {
		lo, hi, isRange := strings.Cut(part, ":")
		start, ok := parseUIDBound(lo)
		if !ok {
			return nil, false
		}
		stop := start
		if isRange {
			if stop, ok = parseUIDBound(hi); !ok {
				return nil, false
			}
		}
		set.AddRange(start, stop)
	}
	return set, true
}

func parseUIDBound(s string) (imap.UID, bool) {
	if s == "*" {
		return 0, true
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return imap.UID(n), true
}

// flagRecent is gone from IMAP4rev2 but still answered by IMAP4rev1
// servers.
const flagRecent imap.Flag = `\Recent`

var flagKeys = map[string]struct {
	flag imap.Flag
	not  bool
}{
	"SEEN":       {imap.FlagSeen, false},
	"UNSEEN":     {imap.FlagSeen, true},
	"ANSWERED":   {imap.FlagAnswered, false},
	"UNANSWERED": {imap.FlagAnswered, true},
	"FLAGGED":    {imap.FlagFlagged, false},
	"UNFLAGGED":  {imap.FlagFlagged, true},
	"DELETED":    {imap.FlagDeleted, false},
	"UNDELETED":  {imap.FlagDeleted, true},
	"DRAFT":      {imap.FlagDraft, false},
	"UNDRAFT":    {imap.FlagDraft, true},
}

var headerKeys = map[string]string{
	"FROM":    "From",
	"TO":      "To",
	"CC":      "Cc",
	"BCC":     "Bcc",
	"SUBJECT": "Subject",
}

func (p *queryParser) key() (*imap.SearchCriteria, error) {
	t, ok := p.next()
	if !ok {
		return nil, invalidArg("query: unexpected end")
	}
	if t.quoted {
		return nil, invalidArg("query: unexpected string %q", t.text)
	}

	sc := &imap.SearchCriteria{}
	name := strings.ToUpper(t.text)

	if f, ok := flagKeys[name]; ok {
		if f.not {
			sc.NotFlag = []imap.Flag{f.flag}
		} else {
			sc.Flag = []imap.Flag{f.flag}
		}
		return sc, nil
	}
	if header, ok := headerKeys[name]; ok {
		v, err := p.arg(name)
		if err != nil {
			return nil, err
		}
		sc.Header = []imap.SearchCriteriaHeaderField{{Key: header, Value: v}}
		return sc, nil
	}

	switch name {
	case "(":
		for {
			if p.done() {
				return nil, invalidArg("query: missing )")
			}
			if t := p.toks[p.pos]; !t.quoted && t.text == ")" {
				p.pos++
				return sc, nil
			}
			k, err := p.key()
			if err != nil {
				return nil, err
			}
			sc.And(k)
		}
	case ")":
		return nil, invalidArg("query: unexpected )")
	case "ALL":
		return sc, nil
	case "NEW":
		sc.Flag = []imap.Flag{flagRecent}
		sc.NotFlag = []imap.Flag{imap.FlagSeen}
	case "OLD":
		sc.NotFlag = []imap.Flag{flagRecent}
	case "RECENT":
		sc.Flag = []imap.Flag{flagRecent}
	case "KEYWORD", "UNKEYWORD":
		v, err := p.arg(name)
		if err != nil {
			return nil, err
		}
		if name == "KEYWORD" {
			sc.Flag = []imap.Flag{imap.Flag(v)}
		} else {
			sc.NotFlag = []imap.Flag{imap.Flag(v)}
		}
	case "HEADER":
		k, err := p.arg(name)
		if err != nil {
			return nil, err
		}
		v, err := p.arg(name)
		if err != nil {
			return nil, err
		}
		sc.Header = []imap.SearchCriteriaHeaderField{{Key: k, Value: v}}
	case "BODY", "TEXT":
		v, err := p.arg(name)
		if err != nil {
			return nil, err
		}
		if name == "BODY" {
			sc.Body = []string{v}
		} else {
			sc.Text = []string{v}
		}
	case "SINCE", "BEFORE", "ON", "SENTSINCE", "SENTBEFORE", "SENTON":
		d, err := p.date(name)
		if err != nil {
			return nil, err
		}
		switch name {
		case "SINCE":
			sc.Since = d
		case "BEFORE":
			sc.Before = d
		case "ON":
			sc.Since, sc.Before = d, d.AddDate(0, 0, 1)
		case "SENTSINCE":
			sc.SentSince = d
		case "SENTBEFORE":
			sc.SentBefore = d
		case "SENTON":
			sc.SentSince, sc.SentBefore = d, d.AddDate(0, 0, 1)
		}
	case "LARGER":
		n, err := p.number(name)
		if err != nil {
			return nil, err
		}
		sc.Larger = n
	case "SMALLER":
		n, err := p.number(name)
		if err != nil {
			return nil, err
		}
		sc.Smaller = n
	case "UID":
		v, err := p.arg(name)
		if err != nil {
			return nil, err
		}
		set, ok := parseUIDSet(v)
		if !ok {
			return nil, invalidArg("query: bad UID set %q", v)
		}
		sc.UID = []imap.UIDSet{set}
	case "NOT":
		k, err := p.key()
		if err != nil {
			return nil, err
		}
		sc.Not = []imap.SearchCriteria{*k}
	case "OR":
		a, err := p.key()
		if err != nil {
			return nil, err
		}
		b, err := p.key()
		if err != nil {
			return nil, err
		}
		sc.Or = [][2]imap.SearchCriteria{{*a, *b}}
	default:
		return nil, invalidArg("query: unsupported search key %q", t.text)
	}

	return sc, nil
}
