package main

import (
	"bufio"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/nhle/anymail/internal/app"
	"github.com/nhle/anymail/internal/mailerr"
)

func authCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "manage stored passwords",
		Subcommands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "store the app password of a profile",
				ArgsUsage: "[PROFILE]",
				Action: rt.action("auth set", func(c *cli.Context, req app.Request) error {
					name := profileArg(c)
					secret, err := rt.readSecret(name)
					if err != nil {
						return rt.reject(c.Context, req, err)
					}
					if _, err := rt.app.AuthSet(c.Context, req, name, secret); err != nil {
						return err
					}
					return rt.printer.Done("Password stored.")
				}),
			},
			{
				Name:      "clear",
				Usage:     "remove the stored password of a profile",
				ArgsUsage: "[PROFILE]",
				Action: rt.action("auth clear", func(c *cli.Context, req app.Request) error {
					if _, err := rt.app.AuthClear(c.Context, req, profileArg(c)); err != nil {
						return err
					}
					return rt.printer.Done("Password removed.")
				}),
			},
			{
				Name:  "status",
				Usage: "check the stored password and try to log in",
				Action: rt.action("auth status", func(c *cli.Context, req app.Request) error {
					st, err := rt.app.AuthStatus(c.Context, req)
					if err != nil {
						return err
					}
					return rt.printer.AuthStatus(st)
				}),
			},
		},
	}
}

// profileArg is the positional profile name, falling back to --profile.
func profileArg(c *cli.Context) string {
	if c.NArg() > 0 {
		return c.Args().First()
	}
	return globalString(c, "profile")
}

// readSecret prompts for a password on a terminal and otherwise reads
// the first line of stdin.
func (rt *runtime) readSecret(name string) (string, error) {
	if !isTerminal(rt.stdin) {
		line, err := bufio.NewReader(rt.stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", mailerr.Auth(mailerr.ErrInvalidArgument, "no password on stdin")
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	title := "App password"
	if name != "" {
		title += " for " + name
	}
	var secret string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&secret).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return "", mailerr.Auth(mailerr.ErrInvalidArgument, "password entry cancelled")
	}
	if err != nil {
		return "", mailerr.Auth(err, "reading password: %v", err)
	}
	return secret, nil
}

// confirm asks a yes/no question on a terminal. Without a terminal it
// refuses, so scripts must pass --yes.
func (rt *runtime) confirm(title string) (bool, error) {
	if !isTerminal(rt.stdin) {
		return false, invalidArg("confirmation needed; pass --yes")
	}
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Remove").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil && !errors.Is(err, huh.ErrUserAborted) {
		return false, mailerr.Config(err, "reading confirmation: %v", err)
	}
	return ok, nil
}

func profileCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "manage mail profiles",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add a profile (Gmail defaults unless --imap and --smtp are given)",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "account address"},
					&cli.StringFlag{Name: "imap", Usage: "IMAP host"},
					&cli.IntFlag{Name: "imap-port", Usage: "IMAP port"},
					&cli.BoolFlag{Name: "imap-ssl", Value: true, Usage: "use implicit TLS for IMAP"},
					&cli.StringFlag{Name: "smtp", Usage: "SMTP host"},
					&cli.IntFlag{Name: "smtp-port", Usage: "SMTP port"},
					&cli.BoolFlag{Name: "smtp-starttls", Value: true, Usage: "use STARTTLS for SMTP"},
					&cli.BoolFlag{Name: "gmail", Usage: "use Gmail defaults"},
				},
				Action: rt.action("profile add", func(c *cli.Context, req app.Request) error {
					if c.NArg() != 1 {
						return rt.reject(c.Context, req, invalidArg("profile add takes exactly one NAME"))
					}
					spec := app.ProfileSpec{
						Name:     c.Args().First(),
						Email:    c.String("email"),
						IMAPHost: c.String("imap"),
						IMAPPort: c.Int("imap-port"),
						SMTPHost: c.String("smtp"),
						SMTPPort: c.Int("smtp-port"),
						Gmail:    c.Bool("gmail"),
					}
					if c.IsSet("imap-ssl") {
						v := c.Bool("imap-ssl")
						spec.IMAPSSL = &v
					}
					if c.IsSet("smtp-starttls") {
						v := c.Bool("smtp-starttls")
						spec.SMTPStartTLS = &v
					}
					p, err := rt.app.ProfileAdd(c.Context, req, spec)
					if err != nil {
						return err
					}
					return rt.printer.Profile(p)
				}),
			},
			{
				Name:      "set",
				Usage:     "change folders or defaults of a profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "folder-inbox", Usage: "inbox folder"},
					&cli.StringFlag{Name: "folder-sent", Usage: "sent folder"},
					&cli.StringFlag{Name: "folder-trash", Usage: "trash folder"},
					&cli.StringFlag{Name: "folder-allmail", Usage: "all-mail folder"},
					&cli.StringFlag{Name: "star-flag", Usage: "IMAP keyword used for starring"},
					&cli.StringFlag{Name: "default-from-name", Usage: "display name for replies"},
				},
				Action: rt.action("profile set", func(c *cli.Context, req app.Request) error {
					if c.NArg() != 1 {
						return rt.reject(c.Context, req, invalidArg("profile set takes exactly one NAME"))
					}
					p, err := rt.app.ProfileSet(c.Context, req, c.Args().First(), app.ProfileUpdate{
						FolderInbox:     optionalString(c, "folder-inbox"),
						FolderSent:      optionalString(c, "folder-sent"),
						FolderTrash:     optionalString(c, "folder-trash"),
						FolderAllMail:   optionalString(c, "folder-allmail"),
						StarFlag:        optionalString(c, "star-flag"),
						DefaultFromName: optionalString(c, "default-from-name"),
					})
					if err != nil {
						return err
					}
					return rt.printer.Profile(p)
				}),
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "list profiles",
				Action: rt.action("profile list", func(c *cli.Context, req app.Request) error {
					profiles, err := rt.app.ProfileList(c.Context, req)
					if err != nil {
						return err
					}
					return rt.printer.Profiles(profiles)
				}),
			},
			{
				Name:      "show",
				Usage:     "show a profile",
				ArgsUsage: "NAME",
				Action: rt.action("profile show", func(c *cli.Context, req app.Request) error {
					p, err := rt.app.ProfileShow(c.Context, req, profileArg(c))
					if err != nil {
						return err
					}
					return rt.printer.Profile(p)
				}),
			},
			{
				Name:      "rm",
				Aliases:   []string{"remove"},
				Usage:     "remove a profile and its stored password",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "skip the confirmation"},
				},
				Action: rt.action("profile rm", func(c *cli.Context, req app.Request) error {
					if c.NArg() != 1 {
						return rt.reject(c.Context, req, invalidArg("profile rm takes exactly one NAME"))
					}
					name := c.Args().First()
					if !c.Bool("yes") {
						ok, err := rt.confirm("Remove profile " + name + "?")
						if err != nil {
							return rt.reject(c.Context, req, err)
						}
						if !ok {
							return rt.printer.Done("Cancelled.")
						}
					}
					if _, err := rt.app.ProfileRemove(c.Context, req, name); err != nil {
						return err
					}
					return rt.printer.Done("Profile %s removed.", name)
				}),
			},
		},
	}
}

func doctorCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "check configuration, credentials, connectivity and folders",
		Action: rt.action("doctor", func(c *cli.Context, req app.Request) error {
			report, err := rt.app.Doctor(c.Context, req)
			if perr := rt.printer.Doctor(report); perr != nil {
				return perr
			}
			if err != nil {
				// The failed check is already listed in the report.
				return errReported
			}
			return nil
		}),
	}
}
