package main

import (
	"io"
	"os"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/client"
	"github.com/chaskitbooks/chaskit/pkg/version"
	"github.com/joho/godotenv"
	"github.com/robinjoseph08/golib/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	_ = godotenv.Load()

	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		log.Err(err).Fatal("chaskit error")
	}
}

func newApp(in io.Reader, out io.Writer) *cli.App {
	return &cli.App{
		Name:    "chaskit",
		Usage:   "browse and manage your reading log",
		Version: version.Version,
		Reader:  in,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "base URL of the chaskit API",
				EnvVars: []string{"CHASKIT_URL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key sent with every request",
				EnvVars: []string{"CHASKIT_API_KEY"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "HTTP timeout for each request",
				Value: client.DefaultTimeout,
			},
		},
		Commands: []*cli.Command{
			statusCommand(),
			booksCommand(),
			taxonomyCommand(client.Genres, "genre"),
			taxonomyCommand(client.Series, "series"),
			taxonomyCommand(client.Authors, "author"),
			rateCommand(),
		},
	}
}

// newClient builds the API client from the global flags. It's valid even when
// the flags are empty.
func newClient(c *cli.Context) *client.Client {
	return client.New(client.Options{
		URL:     c.String("url"),
		APIKey:  c.String("api-key"),
		Timeout: c.Duration("timeout"),
	})
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "check the connection to the API",
		Action: func(c *cli.Context) error {
			st := newClient(c).Status(c.Context)

			w := newTable(c.App.Writer)
			state := "disconnected"
			if st.Connected {
				state = "connected"
			}
			w.row("connection", state)
			w.row("message", st.Message)
			for _, name := range sortedKeys(st.Components) {
				w.row(name, st.Components[name])
			}
			return w.flush()
		},
	}
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
