package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/mail"
	"github.com/nhle/anymail/internal/model"
)

// MailServer is an in-memory mail store. In label mode every message
// delivered to the inbox is also visible in the all-mail folder, and
// expunging from the inbox only drops the inbox copy.
type MailServer struct {
	LabelMode   bool
	AllMail     string
	ReportUIDs  bool
	Password    string
	Folders     []mail.Folder
	boxes       map[string]*mailBox
	SelectCount int
	Closed      atomic.Bool
}

type mailBox struct {
	next imap.UID
	msgs []*storedMsg
}

type storedMsg struct {
	uid   imap.UID
	raw   []byte
	flags []imap.Flag
	date  time.Time
}

// NewMailServer returns a server with Gmail-style folders. In label
// mode the all-mail folder carries \All.
func NewMailServer(labelMode bool) *MailServer {
	s := &MailServer{
		LabelMode:  labelMode,
		AllMail:    model.DefaultFolderAllMail,
		ReportUIDs: true,
		Password:   "app-password",
		boxes:      map[string]*mailBox{},
	}

	allAttrs := []imap.MailboxAttr{}
	if labelMode {
		allAttrs = append(allAttrs, imap.MailboxAttrAll)
	}
	s.AddFolder("INBOX")
	s.AddFolder(model.DefaultFolderAllMail, allAttrs...)
	s.AddFolder(model.DefaultFolderTrash, imap.MailboxAttrTrash)
	s.AddFolder(model.DefaultFolderSent, imap.MailboxAttrSent)
	return s
}

// AddFolder creates an empty folder.
func (s *MailServer) AddFolder(name string, attrs ...imap.MailboxAttr) {
	s.Folders = append(s.Folders, mail.Folder{Name: name, Attrs: attrs})
	s.boxes[name] = &mailBox{next: 1}
}

// Append stores raw in folder and returns its UID.
func (s *MailServer) Append(folder string, raw []byte, date time.Time, flags ...imap.Flag) imap.UID {
	box := s.boxes[folder]
	uid := box.next
	box.next++
	box.msgs = append(box.msgs, &storedMsg{uid: uid, raw: raw, date: date, flags: slices.Clone(flags)})
	return uid
}

// Messages returns the UIDs currently stored in folder.
func (s *MailServer) Messages(folder string) []imap.UID {
	var out []imap.UID
	for _, m := range s.boxes[folder].msgs {
		out = append(out, m.uid)
	}
	return out
}

// Deliver puts raw into the inbox, mirroring it into all-mail in label
// mode.
func (s *MailServer) Deliver(raw []byte, date time.Time, flags ...imap.Flag) imap.UID {
	uid := s.Append("INBOX", raw, date, flags...)
	if s.LabelMode {
		s.Append(s.AllMail, raw, date, flags...)
	}
	return uid
}

// Dial is a mail.Dialer that connects to s.
func (s *MailServer) Dial(context.Context, model.Profile) (mail.Conn, error) {
	return &mailConn{srv: s}, nil
}

type mailConn struct {
	srv      *MailServer
	selected string
	authed   bool
	closed   atomic.Bool
}

var errNoMailbox = errors.New("NO [NONEXISTENT] Unknown Mailbox")

func (c *mailConn) Login(_, password string) error {
	if password != c.srv.Password {
		return errors.New("NO [AUTHENTICATIONFAILED] Invalid credentials")
	}
	c.authed = true
	return nil
}

func (c *mailConn) ListFolders() ([]mail.Folder, error) {
	return slices.Clone(c.srv.Folders), nil
}

func (c *mailConn) Select(name string) error {
	if c.closed.Load() {
		return fmt.Errorf("select: %w", errClosed)
	}
	if _, ok := c.srv.boxes[name]; !ok {
		return errNoMailbox
	}
	c.srv.SelectCount++
	c.selected = name
	return nil
}

func (c *mailConn) box() *mailBox {
	return c.srv.boxes[c.selected]
}

func (c *mailConn) find(uid imap.UID) *storedMsg {
	for _, m := range c.box().msgs {
		if m.uid == uid {
			return m
		}
	}
	return nil
}

func (c *mailConn) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	if c.closed.Load() {
		return nil, errClosed
	}
	var out []imap.UID
	for _, m := range c.box().msgs {
		if matches(m, criteria) {
			out = append(out, m.uid)
		}
	}
	return out, nil
}

func (c *mailConn) Fetch(uids []imap.UID, headerOnly bool) ([]mail.FetchedMessage, error) {
	if c.closed.Load() {
		return nil, errClosed
	}
	var out []mail.FetchedMessage
	for _, uid := range uids {
		m := c.find(uid)
		if m == nil {
			continue
		}
		raw := m.raw
		if headerOnly {
			if i := strings.Index(string(raw), "\r\n\r\n"); i >= 0 {
				raw = raw[:i+4]
			}
		}
		out = append(out, mail.FetchedMessage{UID: m.uid, Flags: slices.Clone(m.flags), InternalDate: m.date, Raw: raw})
	}
	return out, nil
}

func (c *mailConn) Store(uids []imap.UID, op imap.StoreFlagsOp, flags []imap.Flag) error {
	for _, uid := range uids {
		m := c.find(uid)
		if m == nil {
			continue
		}
		for _, f := range flags {
			has := slices.Contains(m.flags, f)
			switch {
			case op == imap.StoreFlagsAdd && !has:
				m.flags = append(m.flags, f)
			case op == imap.StoreFlagsDel && has:
				m.flags = slices.DeleteFunc(m.flags, func(x imap.Flag) bool { return x == f })
			}
		}
	}
	return nil
}

func (c *mailConn) Move(uid imap.UID, dest string) (imap.UID, error) {
	if _, ok := c.srv.boxes[dest]; !ok {
		return 0, errors.New("NO [TRYCREATE] No such mailbox")
	}
	m := c.find(uid)
	if m == nil {
		return 0, errors.New("NO no such message")
	}
	c.box().msgs = slices.DeleteFunc(c.box().msgs, func(x *storedMsg) bool { return x.uid == uid })

	// In label mode the all-mail copy already exists; moving there only
	// drops the source label.
	newUID := imap.UID(0)
	if c.srv.LabelMode && dest == c.srv.AllMail {
		for _, x := range c.srv.boxes[dest].msgs {
			if bytes.Equal(x.raw, m.raw) {
				newUID = x.uid
				break
			}
		}
	}
	if newUID == 0 {
		newUID = c.srv.Append(dest, m.raw, m.date, m.flags...)
	}
	if !c.srv.ReportUIDs {
		return 0, nil
	}
	return newUID, nil
}

func (c *mailConn) Logout() error { return nil }

func (c *mailConn) Close() error {
	c.closed.Store(true)
	c.srv.Closed.Store(true)
	return nil
}

// matches evaluates the subset of SEARCH keys the session produces.
func matches(m *storedMsg, c *imap.SearchCriteria) bool {
	for _, set := range c.UID {
		if !set.Contains(m.uid) {
			return false
		}
	}
	if !c.Since.IsZero() && m.date.Before(c.Since) {
		return false
	}
	if !c.Before.IsZero() && !m.date.Before(c.Before) {
		return false
	}
	for _, f := range c.Flag {
		if !slices.Contains(m.flags, f) {
			return false
		}
	}
	for _, f := range c.NotFlag {
		if slices.Contains(m.flags, f) {
			return false
		}
	}
	if len(c.Header) > 0 {
		msg, err := codec.Decode(m.raw)
		if err != nil {
			return false
		}
		for _, h := range c.Header {
			found := false
			for _, v := range msg.HeaderValues(h.Key) {
				if strings.Contains(strings.ToLower(v), strings.ToLower(h.Value)) {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, text := range append(slices.Clone(c.Body), c.Text...) {
		if !strings.Contains(strings.ToLower(string(m.raw)), strings.ToLower(text)) {
			return false
		}
	}
	for _, not := range c.Not {
		if matches(m, &not) {
			return false
		}
	}
	for _, or := range c.Or {
		if !matches(m, &or[0]) && !matches(m, &or[1]) {
			return false
		}
	}
	return true
}

type closedErr struct{}

func (closedErr) Error() string   { return "use of closed network connection" }
func (closedErr) Timeout() bool   { return false }
func (closedErr) Temporary() bool { return false }

var errClosed error = closedErr{}

// RawMessage builds a minimal text/plain message with CRLF line ends.
func RawMessage(id, from, subject, body string) []byte {
	return []byte(strings.ReplaceAll(fmt.Sprintf(`From: %s
To: work@example.com
Subject: %s
Date: Tue, 03 Mar 2026 09:00:00 +0000
Message-ID: <%s>
Content-Type: text/plain; charset=utf-8

%s
`, from, subject, id, body), "\n", "\r\n"))
}
