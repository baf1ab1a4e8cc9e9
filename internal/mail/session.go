package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
)

// Options configures Connect. Zero values select the production defaults.
type Options struct {
	Dial    Dialer
	Logger  *zap.Logger
	Snippet codec.SnippetOptions
	Now     func() time.Time
}

// Session is one authenticated connection bound to one profile. It is
// owned by a single invocation and is not safe for concurrent use.
type Session struct {
	profile model.Profile
	conn    Conn
	log     *zap.Logger
	snippet codec.SnippetOptions
	now     func() time.Time

	folders  []Folder
	strategy ArchiveStrategy
	allMail  string
	trash    string

	// selected is the folder the server considers selected, "" if none.
	selected string

	// moved holds refs invalidated by a move in this session.
	moved map[model.MessageRef]struct{}

	stopTimeout func() bool
	closed      bool
}

// Connect dials p's server, logs in with secret and probes the folder
// layout. When ctx ends the connection is closed and in-flight commands
// fail with a timeout.
func Connect(ctx context.Context, p model.Profile, secret string, opts Options) (*Session, error) {
	if opts.Dial == nil {
		opts.Dial = DialIMAP
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Snippet.MaxBytes <= 0 {
		opts.Snippet = codec.DefaultSnippetOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := opts.Logger.With(zap.String("profile", p.Name))
	log.Debug("connecting", zap.String("addr", p.IMAPAddr()), zap.Bool("ssl", p.IMAPSSL))

	conn, err := opts.Dial(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			return nil, mailerr.Network(mailerr.ErrTimeout, "connecting to %s: timed out", p.IMAPAddr())
		}
		return nil, mailerr.Network(err, "connecting to %s: %v", p.IMAPAddr(), err)
	}

	s := &Session{
		profile: p,
		conn:    conn,
		log:     log,
		snippet: opts.Snippet,
		now:     opts.Now,
		moved:   make(map[model.MessageRef]struct{}),
	}
	s.stopTimeout = context.AfterFunc(ctx, func() {
		log.Debug("invocation deadline reached, closing connection")
		_ = conn.Close()
	})

	if err := conn.Login(p.Email, secret); err != nil {
		s.Close()
		if ctx.Err() != nil || isNetworkErr(err) {
			return nil, s.wrap(ctx, err, "logging in as %s", p.Email)
		}
		return nil, mailerr.Auth(err, "authentication failed for %s: %v", p.Email, err)
	}

	if err := s.probe(ctx); err != nil {
		s.Close()
		return nil, err
	}

	log.Debug("session ready",
		zap.Stringer("archive_strategy", s.strategy),
		zap.String("all_mail", s.allMail),
		zap.String("trash", s.trash),
	)
	return s, nil
}

// Close logs out and closes the connection. It is safe to call twice.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.stopTimeout != nil {
		s.stopTimeout()
	}
	_ = s.conn.Logout()
	_ = s.conn.Close()
}

// Profile returns the profile the session is bound to.
func (s *Session) Profile() model.Profile {
	return s.profile
}

// Folders returns the folder list captured at connect time.
func (s *Session) Folders() []Folder {
	return s.folders
}

// Selected returns the currently selected folder, "" before the first
// selection.
func (s *Session) Selected() string {
	return s.selected
}

// SelectFolder makes name the selected folder. Selecting the folder that
// is already selected does not touch the server. An empty name selects
// the profile's inbox.
func (s *Session) SelectFolder(ctx context.Context, name string) error {
	if name == "" {
		name = s.profile.FolderInbox
	}
	if s.selected == name {
		return nil
	}

	if err := s.conn.Select(name); err != nil {
		previous := s.selected
		s.selected = ""
		if ctx.Err() != nil || isNetworkErr(err) {
			return s.wrap(ctx, err, "selecting folder %q", name)
		}
		s.log.Debug("folder selection failed", zap.String("from", previous), zap.String("to", name), zap.Error(err))
		return mailerr.Protocol(pkgerrors.Wrap(mailerr.ErrFolderNotFound, err.Error()),
			"folder %q not found: %v", name, err)
	}

	s.log.Debug("folder selected", zap.String("from", s.selected), zap.String("to", name))
	s.selected = name
	return nil
}

// Location maps a folder to where the message lives for the user.
func (s *Session) Location(folder string) model.Location {
	switch {
	case s.isInbox(folder):
		return model.LocationInbox
	case folder == s.trash || folder == s.profile.FolderTrash:
		return model.LocationTrashed
	default:
		return model.LocationArchived
	}
}

func (s *Session) isInbox(folder string) bool {
	return strings.EqualFold(folder, "INBOX") || folder == s.profile.FolderInbox
}

// checkRef rejects refs from another profile and refs invalidated by a
// move earlier in this session.
func (s *Session) checkRef(ref model.MessageRef) error {
	if ref.Profile != "" && ref.Profile != s.profile.Name {
		return mailerr.Protocol(mailerr.ErrMessageNotFound,
			"message %s belongs to profile %q, session is %q", ref, ref.Profile, s.profile.Name)
	}
	if _, ok := s.moved[ref]; ok {
		return mailerr.Protocol(mailerr.ErrMessageNotFound,
			"message %d is no longer in %q", ref.UID, ref.Folder)
	}
	return nil
}

func (s *Session) ref(folder string, uid imap.UID) model.MessageRef {
	return model.MessageRef{Profile: s.profile.Name, Folder: folder, UID: uint32(uid)}
}

// wrap classifies a Conn error. A finished context wins over whatever
// the closed connection reported.
func (s *Session) wrap(ctx context.Context, err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)

	if ctx.Err() != nil {
		return mailerr.Network(mailerr.ErrTimeout, "%s: timed out", what)
	}

	var classified *mailerr.Error
	if errors.As(err, &classified) {
		return err
	}
	if isNetworkErr(err) {
		return mailerr.Network(err, "%s: %v", what, err)
	}
	return mailerr.Protocol(err, "%s: %v", what, err)
}

func isNetworkErr(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// notFound reports a UID missing from folder.
func notFound(folder string, uid uint32) error {
	return mailerr.Protocol(mailerr.ErrMessageNotFound, "message %d not found in %q", uid, folder)
}
