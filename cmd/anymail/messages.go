package main

import (
	"github.com/urfave/cli/v2"

	"github.com/nhle/anymail/internal/app"
	"github.com/nhle/anymail/internal/mail"
	"github.com/nhle/anymail/internal/model"
	"github.com/nhle/anymail/internal/output"
)

func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "unread", Usage: "only unread messages"},
		&cli.IntFlag{Name: "limit", Usage: "maximum number of messages"},
		&cli.StringFlag{Name: "since", Usage: "messages since a date or age (7d, 12h, 2026-03-01)"},
		&cli.StringFlag{Name: "from", Usage: "filter by sender"},
		&cli.StringFlag{Name: "folder", Usage: "folder to list (default: the profile inbox)"},
		&cli.BoolFlag{Name: "pipe", Usage: "print UIDs only, one per line"},
	}
}

func (rt *runtime) listPrinter(c *cli.Context) *output.Printer {
	if c.Bool("pipe") {
		return rt.printer.WithMode(output.ModePipe)
	}
	return rt.printer
}

func inboxCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "inbox",
		Usage: "list messages in the inbox",
		Flags: listFlags(),
		Action: rt.action("inbox", func(c *cli.Context, req app.Request) error {
			params := app.ListParams{
				Folder: c.String("folder"),
				Criteria: mail.Criteria{
					UnreadOnly: c.Bool("unread"),
					Since:      c.String("since"),
					From:       c.String("from"),
				},
				Limit:    c.Int("limit"),
				RefsOnly: c.Bool("pipe"),
			}
			listing, err := rt.app.Inbox(c.Context, req, params)
			if err != nil {
				return err
			}
			return rt.listPrinter(c).Listing(listing)
		}),
	}
}

func searchCommand(rt *runtime) *cli.Command {
	flags := append(listFlags(),
		&cli.StringFlag{Name: "before", Usage: "messages before a date or age"},
		&cli.StringFlag{Name: "subject", Usage: "filter by subject"},
		&cli.StringFlag{Name: "raw-imap", Usage: "raw IMAP SEARCH criteria, e.g. 'OR FROM a FROM b'"},
	)
	return &cli.Command{
		Name:  "search",
		Usage: "search messages",
		Flags: flags,
		Action: rt.action("search", func(c *cli.Context, req app.Request) error {
			params := app.ListParams{
				Folder: c.String("folder"),
				Criteria: mail.Criteria{
					UnreadOnly: c.Bool("unread"),
					Since:      c.String("since"),
					Before:     c.String("before"),
					From:       c.String("from"),
					Subject:    c.String("subject"),
					Raw:        c.String("raw-imap"),
				},
				Limit:    c.Int("limit"),
				RefsOnly: c.Bool("pipe"),
			}
			listing, err := rt.app.Search(c.Context, req, params)
			if err != nil {
				return err
			}
			return rt.listPrinter(c).Listing(listing)
		}),
	}
}

func readCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "show messages by UID; UIDs are read from stdin when none are given",
		ArgsUsage: "[UID...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "headers", Usage: "show headers only"},
			&cli.BoolFlag{Name: "body", Usage: "show body only"},
			&cli.StringFlag{Name: "attachments", Usage: "list or save attachments (list|save)"},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "directory for saved attachments"},
			&cli.StringFlag{Name: "part", Usage: "save only this attachment part"},
			&cli.StringFlag{Name: "folder", Usage: "folder the UIDs belong to (default: the profile inbox)"},
		},
		Action: rt.action("read", func(c *cli.Context, req app.Request) error {
			uids, err := rt.uidArgs(c)
			if err != nil {
				return rt.reject(c.Context, req, err)
			}

			switch mode := c.String("attachments"); mode {
			case "":
			case "list", "save":
				if len(uids) != 1 {
					return rt.reject(c.Context, req, invalidArg("--attachments takes exactly one UID"))
				}
				params := app.AttachmentParams{Folder: c.String("folder"), UID: uids[0], PartID: c.String("part")}
				if mode == "save" {
					params.Dir = c.String("out")
				}
				res, err := rt.app.Attachments(c.Context, req, params)
				if err != nil {
					return err
				}
				return rt.printer.Attachments(res)
			default:
				return rt.reject(c.Context, req, invalidArg("--attachments must be list or save, got %q", mode))
			}

			// Neither flag means both.
			headers, body := c.Bool("headers"), c.Bool("body")
			if !headers && !body {
				headers, body = true, true
			}
			details, err := rt.app.Read(c.Context, req, app.ReadParams{
				Folder: c.String("folder"),
				UIDs:   uids,
				Parts:  mail.Parts{Headers: true, Body: body, Attachments: body},
			})
			if err != nil {
				return err
			}
			return rt.printer.Details(details, headers, body)
		}),
	}
}

func flagCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "flag",
		Usage:     "change flags, archive or trash a message",
		ArgsUsage: "UID",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seen", Usage: "set the seen flag (true|false)"},
			&cli.StringFlag{Name: "star", Usage: "set the starred flag (true|false)"},
			&cli.BoolFlag{Name: "archive", Usage: "remove the message from the inbox"},
			&cli.BoolFlag{Name: "trash", Usage: "move the message to trash"},
			&cli.StringFlag{Name: "folder", Usage: "folder the UID belongs to (default: the profile inbox)"},
		},
		Action: rt.action("flag", func(c *cli.Context, req app.Request) error {
			params, err := flagParams(c)
			if err != nil {
				return rt.reject(c.Context, req, err)
			}
			res, err := rt.app.Flag(c.Context, req, params)
			if err != nil {
				return err
			}
			return rt.printer.Flag(res)
		}),
	}
}

func flagParams(c *cli.Context) (app.FlagParams, error) {
	if c.NArg() != 1 {
		return app.FlagParams{}, invalidArg("flag takes exactly one UID")
	}
	uid, err := parseUID(c.Args().First())
	if err != nil {
		return app.FlagParams{}, err
	}
	seen, err := optionalBool(c, "seen")
	if err != nil {
		return app.FlagParams{}, err
	}
	star, err := optionalBool(c, "star")
	if err != nil {
		return app.FlagParams{}, err
	}
	return app.FlagParams{
		Folder: c.String("folder"),
		UID:    uid,
		Change: model.FlagChange{
			Seen:    seen,
			Star:    star,
			Archive: c.Bool("archive"),
			Trash:   c.Bool("trash"),
		},
	}, nil
}

func replyCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "reply",
		Usage:     "derive reply headers and quoted text for a message",
		ArgsUsage: "UID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "to-all", Usage: "reply to all recipients"},
			&cli.BoolFlag{Name: "include-quote", Value: true, Usage: "quote the original plain text"},
			&cli.StringFlag{Name: "folder", Usage: "folder the UID belongs to (default: the profile inbox)"},
		},
		Action: rt.action("reply", func(c *cli.Context, req app.Request) error {
			if c.NArg() != 1 {
				return rt.reject(c.Context, req, invalidArg("reply takes exactly one UID"))
			}
			uid, err := parseUID(c.Args().First())
			if err != nil {
				return rt.reject(c.Context, req, err)
			}
			rc, err := rt.app.Reply(c.Context, req, app.ReplyParams{
				Folder:       c.String("folder"),
				UID:          uid,
				ToAll:        c.Bool("to-all"),
				IncludeQuote: c.Bool("include-quote"),
			})
			if err != nil {
				return err
			}
			return rt.printer.Reply(rc)
		}),
	}
}
