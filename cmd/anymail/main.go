// Command anymail is a profile-scoped IMAP client with a local audit
// log of every invocation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/nhle/anymail/internal/model"
)

// Version information, injected at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newRuntime(os.Stdin, os.Stdout, os.Stderr), os.Args)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code:
// 0 on success, 1 when the command failed, 2 on usage errors.
func run(ctx context.Context, rt *runtime, args []string) int {
	err := newCLI(rt).RunContext(ctx, args)
	rt.close()

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errReported):
		return 1
	default:
		fmt.Fprintf(rt.stderr, "Error: %v\n", err)
		return 2
	}
}

func newCLI(rt *runtime) *cli.App {
	return &cli.App{
		Name:            "anymail",
		Usage:           "read, search and triage IMAP mail from the command line",
		Version:         fmt.Sprintf("%s (%s)", version, commit),
		Reader:          rt.stdin,
		Writer:          rt.stdout,
		ErrWriter:       rt.stderr,
		HideHelpCommand: true,
		// Failures are printed by the runtime; keep urfave from exiting.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags:          globalFlags(),
		Commands: withGlobalFlags([]*cli.Command{
			inboxCommand(rt),
			searchCommand(rt),
			readCommand(rt),
			flagCommand(rt),
			replyCommand(rt),
			authCommand(rt),
			profileCommand(rt),
			doctorCommand(rt),
			logsCommand(rt),
		}),
	}
}

// globalCategory groups the global flags in help output and keeps them
// out of the audited argument list.
const globalCategory = "GLOBAL"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Category: globalCategory, Usage: "profile to use", EnvVars: []string{"ANYMAIL_PROFILE"}},
		&cli.StringFlag{Name: "host", Category: globalCategory, Usage: "override the IMAP host for this invocation"},
		&cli.BoolFlag{Name: "json", Category: globalCategory, Usage: "write JSON output"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Category: globalCategory, Usage: "only log errors"},
		&cli.BoolFlag{Name: "verbose", Category: globalCategory, Usage: "log debug output"},
		&cli.StringFlag{Name: "config", Category: globalCategory, Usage: "config file path", EnvVars: []string{"ANYMAIL_CONFIG"}, Value: model.DefaultConfigPath()},
	}
}

// withGlobalFlags repeats the global flags on every leaf command, so
// "anymail inbox --json" works like "anymail --json inbox". A command's
// own flag of the same name wins.
func withGlobalFlags(cmds []*cli.Command) []*cli.Command {
	for _, cmd := range cmds {
		if len(cmd.Subcommands) > 0 {
			withGlobalFlags(cmd.Subcommands)
			continue
		}
		own := map[string]bool{}
		for _, f := range cmd.Flags {
			for _, n := range f.Names() {
				own[n] = true
			}
		}
		for _, f := range globalFlags() {
			if own[f.Names()[0]] {
				continue
			}
			// Defaults and env vars stay on the root flag only, so an unset
			// leaf copy never shadows it; see globalString.
			switch f := f.(type) {
			case *cli.StringFlag:
				f.Value, f.EnvVars = "", nil
			case *cli.BoolFlag:
				f.EnvVars = nil
			}
			cmd.Flags = append(cmd.Flags, f)
		}
	}
	return cmds
}

// globalString returns the innermost explicitly set value of a global
// flag, falling back to the root value with its default and env var.
func globalString(c *cli.Context, name string) string {
	lineage := c.Lineage()
	for _, ctx := range lineage {
		if ctx.IsSet(name) {
			return ctx.String(name)
		}
	}
	for _, ctx := range lineage {
		if v := ctx.String(name); v != "" {
			return v
		}
	}
	return ""
}

// globalBool is globalString for boolean flags.
func globalBool(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx.IsSet(name) {
			return ctx.Bool(name)
		}
	}
	return false
}
