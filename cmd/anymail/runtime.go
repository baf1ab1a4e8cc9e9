package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nhle/anymail/internal/app"
	"github.com/nhle/anymail/internal/codec"
	"github.com/nhle/anymail/internal/credential"
	"github.com/nhle/anymail/internal/logging"
	"github.com/nhle/anymail/internal/mailerr"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/output"
	"github.com/nhle/anymail/internal/profile"
	"github.com/nhle/anymail/internal/store"
)

// errReported marks a failure that was already written to the user.
var errReported = errors.New("reported")

// runtime holds the per-process collaborators. They are built on the
// first command action, so help and version output never touch the
// config directory.
type runtime struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// configure adjusts the app dependencies before construction.
	configure func(*app.Deps)

	app     *app.App
	printer *output.Printer
	closers []func()

	// initErr is a configuration failure that still left an app able to
	// audit the rejected invocation.
	initErr error
}

func newRuntime(stdin io.Reader, stdout, stderr io.Writer) *runtime {
	return &runtime{stdin: stdin, stdout: stdout, stderr: stderr}
}

func (rt *runtime) init(c *cli.Context) error {
	mode := output.ModePlain
	if globalBool(c, "json") {
		mode = output.ModeJSON
	}
	rt.printer = output.New(rt.stdout, rt.stderr, mode)
	if rt.app != nil {
		return rt.initErr
	}

	// An unreadable config still gets an audit log at the default path
	// so the failed invocation is recorded.
	cfgPath := globalString(c, "config")
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		rt.initErr = mailerr.Config(err, "loading configuration: %v", err)
		cfg = model.DefaultAppConfig()
	}

	log, syncLog, err := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Quiet:   globalBool(c, "quiet"),
		Verbose: globalBool(c, "verbose"),
	})
	if err != nil {
		return mailerr.Config(err, "configuring logging: %v", err)
	}
	rt.closers = append(rt.closers, syncLog)

	audit, err := store.NewSQLiteStore(cfg.AuditDBPath(cfgPath),
		store.WithRedactor(store.NewRedactor(cfg.Audit.RedactFields)),
		store.WithLogger(log.Named("audit")),
	)
	if err != nil {
		return mailerr.LogWrite(err, "opening audit log: %v", err)
	}
	rt.closers = append(rt.closers, func() {
		if err := audit.Close(); err != nil {
			log.Warn("closing audit log", zap.Error(err))
		}
	})

	deps := app.Deps{
		Profiles:    profile.NewStore(cfgPath),
		Credentials: credential.NewKeyring(filepath.Dir(cfgPath)),
		Audit:       audit,
		Logger:      log,
		Timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
		Snippet:     codec.SnippetOptions{MaxBytes: cfg.SnippetMaxBytes, Marker: codec.DefaultSnippetMarker},
	}
	if rt.configure != nil {
		rt.configure(&deps)
	}
	rt.app = app.New(deps)
	return rt.initErr
}

// close releases collaborators in reverse order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// fail reports err to the user and returns errReported.
func (rt *runtime) fail(err error) error {
	if rt.printer == nil {
		rt.printer = output.New(rt.stdout, rt.stderr, output.ModePlain)
	}
	rt.printer.Error(err)
	return errReported
}

// action wraps a command body with runtime setup, request building and
// error reporting. path is the command path recorded in the audit log.
func (rt *runtime) action(path string, body func(c *cli.Context, req app.Request) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := rt.init(c); err != nil {
			if rt.app != nil {
				err = rt.reject(c.Context, requestOf(c, path), err)
			}
			return rt.fail(err)
		}
		err := body(c, requestOf(c, path))
		if err == nil || errors.Is(err, errReported) {
			return err
		}
		return rt.fail(err)
	}
}

// reject audits an invocation that failed argument validation before
// any operation ran.
func (rt *runtime) reject(ctx context.Context, req app.Request, cause error) error {
	_, err := app.Invoke(ctx, rt.app, req, func(context.Context, *app.Call) (struct{}, error) {
		return struct{}{}, cause
	})
	return err
}

func requestOf(c *cli.Context, path string) app.Request {
	return app.Request{
		Command: path,
		Profile: globalString(c, "profile"),
		Host:    globalString(c, "host"),
		Args:    argsOf(c),
	}
}

// argsOf lists the command's explicitly set flags in declaration order,
// followed by the positional arguments. Global flags are carried by the
// request itself.
func argsOf(c *cli.Context) []model.Arg {
	args := []model.Arg{}
	if c.Command != nil {
		for _, f := range c.Command.Flags {
			name := f.Names()[0]
			if cf, ok := f.(cli.CategorizableFlag); ok && cf.GetCategory() == globalCategory {
				continue
			}
			if !c.IsSet(name) {
				continue
			}
			args = append(args, model.Arg{Name: name, Value: flagValue(c, f, name)})
		}
	}
	for _, v := range c.Args().Slice() {
		args = append(args, model.Arg{Name: "arg", Value: v})
	}
	return args
}

func flagValue(c *cli.Context, f cli.Flag, name string) string {
	switch f.(type) {
	case *cli.BoolFlag:
		return strconv.FormatBool(c.Bool(name))
	case *cli.IntFlag:
		return strconv.Itoa(c.Int(name))
	case *cli.StringSliceFlag:
		return strings.Join(c.StringSlice(name), ",")
	default:
		return c.String(name)
	}
}

func invalidArg(format string, args ...any) error {
	return mailerr.Config(mailerr.ErrInvalidArgument, format, args...)
}

// parseUID parses one positional UID.
func parseUID(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 {
		return 0, invalidArg("invalid UID %q", s)
	}
	return uint32(n), nil
}

// uidArgs returns UIDs from the positional arguments, or from stdin
// when none are given and stdin is not a terminal.
func (rt *runtime) uidArgs(c *cli.Context) ([]uint32, error) {
	tokens := c.Args().Slice()
	if len(tokens) == 0 && !isTerminal(rt.stdin) {
		sc := bufio.NewScanner(rt.stdin)
		sc.Split(bufio.ScanWords)
		for sc.Scan() {
			tokens = append(tokens, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, invalidArg("reading UIDs from stdin: %v", err)
		}
	}
	if len(tokens) == 0 {
		return nil, invalidArg("at least one UID is required")
	}

	uids := make([]uint32, 0, len(tokens))
	for _, tok := range tokens {
		uid, err := parseUID(tok)
		if err != nil {
			return nil, err
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// optionalBool parses a true/false flag value. Unset flags yield nil.
func optionalBool(c *cli.Context, name string) (*bool, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	v, err := strconv.ParseBool(c.String(name))
	if err != nil {
		return nil, invalidArg("--%s expects true or false, got %q", name, c.String(name))
	}
	return &v, nil
}

// optionalString returns a pointer to the flag value when it is set.
func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}
