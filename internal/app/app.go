// Package app is the command orchestrator. Every external invocation
// goes through App.Invoke, which resolves the profile, runs exactly one
// operation under the invocation deadline and writes exactly one audit
// record before any output is produced.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/credential"
	"github.com/nhle/anymail/internal/mail"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/profile"
	"github.com/nhle/anymail/internal/store"
)

// auditWriteTimeout bounds the audit append, which runs after the
// invocation deadline may already have passed.
const auditWriteTimeout = 5 * time.Second

// Deps are the collaborators of an App.
type Deps struct {
	Profiles    *profile.Store
	Credentials credential.Store
	Audit       store.AuditLog

	// Dial opens protocol connections. Nil means mail.DialIMAP.
	Dial mail.Dialer

	Logger *zap.Logger

	// Timeout bounds one invocation, connection included. Zero means
	// model.DefaultTimeoutSec.
	Timeout time.Duration

	Snippet codec.SnippetOptions
	Now     func() time.Time
}

// App runs invocations.
type App struct {
	profiles *profile.Store
	creds    credential.Store
	audit    store.AuditLog
	dial     mail.Dialer
	log      *zap.Logger
	timeout  time.Duration
	snippet  codec.SnippetOptions
	now      func() time.Time
}

// New returns an App over deps.
func New(deps Deps) *App {
	a := &App{
		profiles: deps.Profiles,
		creds:    deps.Credentials,
		audit:    deps.Audit,
		dial:     deps.Dial,
		log:      deps.Logger,
		timeout:  deps.Timeout,
		snippet:  deps.Snippet,
		now:      deps.Now,
	}
	if a.dial == nil {
		a.dial = mail.DialIMAP
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.timeout <= 0 {
		a.timeout = model.DefaultTimeoutSec * time.Second
	}
	if a.snippet.MaxBytes <= 0 {
		a.snippet = codec.DefaultSnippetOptions()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Request is a normalized invocation handed over by the CLI.
type Request struct {
	// Command is the command path, e.g. "inbox" or "profile add".
	Command string

	// Profile is the --profile value; empty resolves implicitly.
	Profile string

	// Host overrides the profile's IMAP host for this invocation only.
	Host string

	// Args are the invocation arguments in order. Sensitive values are
	// redacted by the audit store.
	Args []model.Arg
}

// Call is the per-invocation state passed to an operation. It resolves
// the profile and opens the mail session on first use, and only then.
type Call struct {
	app     *App
	req     Request
	profile *model.Profile
	audited string
	session *mail.Session
}

// Profile resolves the invocation's profile once.
func (c *Call) Profile() (model.Profile, error) {
	if c.profile != nil {
		return *c.profile, nil
	}
	p, err := c.app.profiles.Resolve(c.req.Profile)
	if err != nil {
		return model.Profile{}, err
	}
	c.profile = &p
	c.audited = p.Name
	return p, nil
}

// AuditProfile records name as the invocation's profile for operations
// that act on a profile given as an argument rather than resolved.
func (c *Call) AuditProfile(name string) {
	c.audited = name
}

// Session returns the invocation's mail session, connecting on the
// first call.
func (c *Call) Session(ctx context.Context) (*mail.Session, error) {
	if c.session != nil {
		return c.session, nil
	}

	p, err := c.Profile()
	if err != nil {
		return nil, err
	}
	secret, err := c.app.creds.Get(p.Name)
	if err != nil {
		return nil, err
	}
	if c.req.Host != "" {
		p.IMAPHost = c.req.Host
	}

	s, err := mail.Connect(ctx, p, secret, mail.Options{
		Dial:    c.app.dial,
		Logger:  c.app.log,
		Snippet: c.app.snippet,
		Now:     c.app.now,
	})
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

func (c *Call) close() {
	if c.session != nil {
		c.session.Close()
	}
}

// Invoke runs op as one invocation of req. The session, if op opened
// one, is closed before the audit record is written. Audit failures go
// to the operator log and never change op's result.
func Invoke[T any](ctx context.Context, a *App, req Request, op func(context.Context, *Call) (T, error)) (T, error) {
	start := a.now()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	call := &Call{app: a, req: req}
	result, err := op(ctx, call)
	call.close()

	if err != nil && ctx.Err() == context.DeadlineExceeded && !mailerr.Is(err, mailerr.KindNetwork) {
		err = mailerr.Network(mailerr.ErrTimeout, "%s timed out after %s", req.Command, a.timeout)
	}

	a.record(ctx, call, start, err)
	return result, err
}

func (a *App) record(ctx context.Context, call *Call, start time.Time, opErr error) {
	rec := model.AuditRecord{
		Timestamp:  start,
		Command:    call.req.Command,
		Args:       call.req.Args,
		Outcome:    model.OutcomeSuccess,
		DurationMS: a.now().Sub(start).Milliseconds(),
	}
	if call.audited != "" {
		name := call.audited
		rec.Profile = &name
	}
	if opErr != nil {
		rec.Outcome = model.OutcomeError
		rec.ErrorKind = string(mailerr.KindOf(opErr))
		rec.ErrorMessage = mailerr.MessageOf(opErr)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if _, err := a.audit.Append(wctx, rec); err != nil {
		a.log.Warn("audit record not written",
			zap.String("command", rec.Command),
			zap.String("kind", string(mailerr.KindOf(err))),
			zap.Error(err),
		)
	}
}
