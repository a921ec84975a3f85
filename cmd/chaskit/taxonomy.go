package main

import (
	"fmt"
	"strconv"

	"github.com/chaskitbooks/chaskit/pkg/client"
	"github.com/urfave/cli/v2"
)

func taxonomyCommand(kind client.Kind, singular string) *cli.Command {
	return &cli.Command{
		Name:  string(kind),
		Usage: "manage the " + singular + " list",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every " + singular + " with its book count",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}},
				},
				Action: func(c *cli.Context) error {
					entries, err := newClient(c).ListEntries(c.Context, kind, c.String("search"))
					if err != nil {
						return err
					}

					t := newTable(c.App.Writer)
					t.row("ID", "NAME", "BOOKS")
					for _, e := range entries {
						name := e.Name
						if e.IsCustom {
							name += " (custom)"
						}
						t.row(e.ID, name, strconv.Itoa(e.BookCount))
					}
					return t.flush()
				},
			},
			{
				Name:      "add",
				Usage:     "add a " + singular,
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					name, err := requireArg(c, 0, "name")
					if err != nil {
						return err
					}
					entry, err := newClient(c).AddEntry(c.Context, kind, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Added %s %q (%s)\n", singular, entry.Name, entry.ID)
					return nil
				},
			},
			{
				Name:      "rename",
				Usage:     "rename a " + singular + " and every book that uses it",
				ArgsUsage: "<id> <new name>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, 0, "id")
					if err != nil {
						return err
					}
					name, err := requireArg(c, 1, "new name")
					if err != nil {
						return err
					}
					entry, updated, err := newClient(c).RenameEntry(c.Context, kind, id, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Renamed %s to %q, %d books updated\n", singular, entry.Name, updated)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a " + singular + " (books keep the name)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, 0, "id")
					if err != nil {
						return err
					}
					if err := newClient(c).DeleteEntry(c.Context, kind, id); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Deleted %s %s\n", singular, id)
					return nil
				},
			},
		},
	}
}
