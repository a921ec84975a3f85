package main

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/feed"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/urfave/cli/v2"
)

var queryFlags = []cli.Flag{
	&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "match title, author or series"},
	&cli.StringFlag{Name: "genre", Usage: "only books with this genre"},
	&cli.IntFlag{Name: "year", Usage: "only books finished in this year"},
	&cli.StringFlag{Name: "witch", Usage: "only books tagged with this witch"},
	&cli.StringFlag{Name: "sort", Value: string(browse.SortDate), Usage: "title, author, date, rating or genre"},
	&cli.StringFlag{Name: "direction", Usage: "asc or desc (defaults to desc for date, asc otherwise)"},
	&cli.IntFlag{Name: "page-size", Value: feed.DefaultPageSize},
}

func queryFromFlags(c *cli.Context) (browse.Query, error) {
	q := browse.Query{
		Search:     c.String("search"),
		Genre:      c.String("genre"),
		Year:       c.Int("year"),
		WhichWitch: c.String("witch"),
		Sort:       browse.SortField(c.String("sort")),
		Direction:  browse.Direction(c.String("direction")),
	}.Normalize()
	return q, errors.WithStack(q.Validate())
}

func booksCommand() *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "list and manage books",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list books a page at a time",
				Flags: append(slices.Clone(queryFlags),
					&cli.IntFlag{Name: "pages", Value: 1, Usage: "number of pages to load"},
					&cli.BoolFlag{Name: "all", Usage: "load every page"},
				),
				Action: func(c *cli.Context) error {
					q, err := queryFromFlags(c)
					if err != nil {
						return err
					}

					f := feed.New(newClient(c), feed.Options{PageSize: c.Int("page-size")})
					if err := f.Reset(c.Context, q); err != nil {
						return err
					}
					for loaded := 1; f.HasMore() && (c.Bool("all") || loaded < c.Int("pages")); loaded++ {
						if _, err := f.LoadMore(c.Context); err != nil {
							return err
						}
					}

					if err := printBooks(c.App.Writer, f.Books()); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "\n%d of %d books\n", len(f.Books()), f.Total())
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "show one book",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, 0, "id")
					if err != nil {
						return err
					}
					book, err := newClient(c).Book(c.Context, id)
					if err != nil {
						return err
					}
					return printBook(c.App.Writer, book)
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a book",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, 0, "id")
					if err != nil {
						return err
					}
					if err := newClient(c).DeleteBook(c.Context, id); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
					return nil
				},
			},
			{
				Name:  "search",
				Usage: "search interactively, one search term per line",
				Flags: append(slices.Clone(queryFlags),
					&cli.DurationFlag{Name: "debounce", Value: feed.DefaultDebounce},
				),
				Action: runSearch,
			},
		},
	}
}

// runSearch reads search terms from the app's reader. Terms typed in quick
// succession only trigger one request for the last of them.
func runSearch(c *cli.Context) error {
	base, err := queryFromFlags(c)
	if err != nil {
		return err
	}
	log := logger.FromContext(c.Context)
	f := feed.New(newClient(c), feed.Options{PageSize: c.Int("page-size")})

	var (
		mu      sync.Mutex
		pending string
		wg      sync.WaitGroup
	)
	run := func() {
		defer wg.Done()
		mu.Lock()
		q := base
		q.Search = pending
		mu.Unlock()

		if err := f.Reset(context.WithoutCancel(c.Context), q); err != nil {
			log.Err(err).Warn("search failed")
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(c.App.Writer, "%q: %d books\n", q.Search, f.Total())
		_ = printBooks(c.App.Writer, f.Books())
	}

	debouncer := feed.NewDebouncer(durationOrDefault(c.Duration("debounce"), feed.DefaultDebounce), func() {
		run()
	})

	scanner := bufio.NewScanner(c.App.Reader)
	for scanner.Scan() {
		mu.Lock()
		pending = strings.TrimSpace(scanner.Text())
		mu.Unlock()

		// Every trigger that replaces a pending call cancels that call, so only
		// count the call that will actually run.
		if !debouncer.Stop() {
			wg.Add(1)
		}
		debouncer.Trigger()
	}
	wg.Wait()

	return errors.WithStack(scanner.Err())
}

func requireArg(c *cli.Context, i int, name string) (string, error) {
	v := strings.TrimSpace(c.Args().Get(i))
	if v == "" {
		return "", errors.Errorf("missing <%s> argument", name)
	}
	return v, nil
}

