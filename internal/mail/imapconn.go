package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/nhle/anymail/internal/model"
)

const dialTimeout = 30 * time.Second

// IMAPConn implements Conn over go-imap's imapclient.
type IMAPConn struct {
	client *imapclient.Client
}

// DialIMAP connects to p's IMAP endpoint with implicit TLS, or STARTTLS
// when the profile disables SSL. The dial honours ctx; later commands are
// bounded by the session closing the connection when ctx ends.
func DialIMAP(ctx context.Context, p model.Profile) (Conn, error) {
	addr := net.JoinHostPort(p.IMAPHost, strconv.Itoa(p.IMAPPort))

	dialer := &net.Dialer{Timeout: dialTimeout}
	tlsConfig := &tls.Config{ServerName: p.IMAPHost}
	opts := &imapclient.Options{
		TLSConfig:   tlsConfig,
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}

	if p.IMAPSSL {
		conn, err := (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
		}
		return &IMAPConn{client: imapclient.New(conn, opts)}, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	client, err := imapclient.NewStartTLS(conn, opts)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("starting TLS with %s: %w", addr, err)
	}
	return &IMAPConn{client: client}, nil
}

func (c *IMAPConn) Login(username, password string) error {
	return c.client.Login(username, password).Wait()
}

// ListFolders lists every mailbox, asking for special-use attributes when
// the server advertises them.
func (c *IMAPConn) ListFolders() ([]Folder, error) {
	var opts *imap.ListOptions
	if c.client.Caps().Has(imap.CapSpecialUse) {
		opts = &imap.ListOptions{ReturnSpecialUse: true}
	}

	data, err := c.client.List("", "*", opts).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders := make([]Folder, 0, len(data))
	for _, d := range data {
		folders = append(folders, Folder{Name: d.Mailbox, Attrs: d.Attrs})
	}
	return folders, nil
}

func (c *IMAPConn) Select(name string) error {
	_, err := c.client.Select(name, nil).Wait()
	return err
}

func (c *IMAPConn) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	data, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllUIDs(), nil
}

func (c *IMAPConn) Fetch(uids []imap.UID, headerOnly bool) ([]FetchedMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	if headerOnly {
		section.Specifier = imap.PartSpecifierHeader
	}
	opts := &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}

	bufs, err := c.client.Fetch(imap.UIDSetNum(uids...), opts).Collect()
	if err != nil {
		return nil, err
	}

	out := make([]FetchedMessage, 0, len(bufs))
	for _, buf := range bufs {
		out = append(out, FetchedMessage{
			UID:          buf.UID,
			Flags:        buf.Flags,
			InternalDate: buf.InternalDate,
			Raw:          buf.FindBodySection(section),
		})
	}
	return out, nil
}

func (c *IMAPConn) Store(uids []imap.UID, op imap.StoreFlagsOp, flags []imap.Flag) error {
	return c.client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil).Close()
}

// Move uses MOVE, which imapclient emulates with COPY/STORE/EXPUNGE on
// servers without the extension. The destination UID comes from COPYUID.
//
// Without UIDPLUS that fallback issues a plain EXPUNGE, so the move is
// refused while any other message in the mailbox carries \Deleted.
func (c *IMAPConn) Move(uid imap.UID, dest string) (imap.UID, error) {
	if needsPlainExpunge(c.client.Caps()) {
		deleted, err := c.UIDSearch(&imap.SearchCriteria{Flag: []imap.Flag{imap.FlagDeleted}})
		if err != nil {
			return 0, err
		}
		if others := otherUIDs(deleted, uid); len(others) > 0 {
			return 0, fmt.Errorf("server lacks MOVE and UIDPLUS; moving would expunge %d other deleted message(s)", len(others))
		}
	}

	data, err := c.client.Move(imap.UIDSetNum(uid), dest).Wait()
	if err != nil {
		return 0, err
	}
	if data == nil {
		return 0, nil
	}
	if set, ok := data.DestUIDs.(imap.UIDSet); ok && len(set) == 1 && set[0].Start == set[0].Stop {
		return set[0].Start, nil
	}
	return 0, nil
}

func needsPlainExpunge(caps imap.CapSet) bool {
	return !caps.Has(imap.CapMove) && !caps.Has(imap.CapUIDPlus)
}

func otherUIDs(uids []imap.UID, self imap.UID) []imap.UID {
	var out []imap.UID
	for _, u := range uids {
		if u != self {
			out = append(out, u)
		}
	}
	return out
}

func (c *IMAPConn) Logout() error {
	return c.client.Logout().Wait()
}

func (c *IMAPConn) Close() error {
	return c.client.Close()
}

func equalFoldAttr(a, b imap.MailboxAttr) bool {
	return strings.EqualFold(string(a), string(b))
}
