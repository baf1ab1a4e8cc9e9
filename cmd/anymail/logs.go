package main

import (
	"github.com/urfave/cli/v2"

	"github.com/nhle/anymail/internal/app"
)

func logFilterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "since", Usage: "entries at or after a date or age (7d, 2026-03-01)"},
		&cli.StringFlag{Name: "until", Usage: "entries before a date or age"},
		&cli.StringFlag{Name: "command", Usage: "filter by command path, e.g. 'profile add'"},
		&cli.StringFlag{Name: "outcome", Usage: "filter by outcome (success|error)"},
		&cli.StringFlag{Name: "profile", Usage: "filter by profile"},
	}
}

func logsCommand(rt *runtime) *cli.Command {
	logs := func(path string) cli.ActionFunc {
		return rt.action(path, func(c *cli.Context, req app.Request) error {
			// The local --profile filters records; it is not the
			// invocation's profile.
			req.Profile = ""
			page, err := rt.app.Logs(c.Context, req, app.LogsParams{
				Since:   c.String("since"),
				Until:   c.String("until"),
				Command: c.String("command"),
				Outcome: c.String("outcome"),
				Profile: c.String("profile"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return err
			}
			return rt.printer.Logs(page)
		})
	}

	return &cli.Command{
		Name:  "logs",
		Usage: "inspect the invocation audit log",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "show recent entries",
				Flags:  append(logFilterFlags(), &cli.IntFlag{Name: "limit", Value: 50, Usage: "maximum entries"}),
				Action: logs("logs list"),
			},
			{
				Name:  "query",
				Usage: "page through entries",
				Flags: append(logFilterFlags(),
					&cli.IntFlag{Name: "limit", Value: 100, Usage: "maximum entries"},
					&cli.IntFlag{Name: "offset", Usage: "entries to skip"},
				),
				Action: logs("logs query"),
			},
		},
	}
}
