package main

import (
	"fmt"

	"github.com/chaskitbooks/chaskit/pkg/ratings"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var categoryFlags = map[string]string{
	ratings.CategoryCharacters:    "characters",
	ratings.CategoryWorldBuilding: "world-building",
	ratings.CategoryPlot:          "plot",
	ratings.CategoryWritingStyle:  "writing-style",
	ratings.CategoryEnjoyment:     "enjoyment",
}

// rateCommand computes ratings locally without talking to the API.
func rateCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.BoolFlag{Name: "legacy", Usage: "also show the divide-by-five rating"},
		&cli.BoolFlag{Name: "guide", Usage: "describe each score"},
	}
	for _, category := range ratings.Categories {
		flags = append(flags, &cli.IntFlag{
			Name:  categoryFlags[category],
			Usage: category + " score from 1 to 10, omit for N/A",
		})
	}

	return &cli.Command{
		Name:  "rate",
		Usage: "compute the overall and star rating for a set of scores",
		Flags: flags,
		Action: func(c *cli.Context) error {
			score := func(category string) *int {
				name := categoryFlags[category]
				if !c.IsSet(name) {
					return nil
				}
				return ratings.Score(c.Int(name))
			}
			r := ratings.Ratings{
				Characters:    score(ratings.CategoryCharacters),
				WorldBuilding: score(ratings.CategoryWorldBuilding),
				Plot:          score(ratings.CategoryPlot),
				WritingStyle:  score(ratings.CategoryWritingStyle),
				Enjoyment:     score(ratings.CategoryEnjoyment),
			}
			if err := r.Validate(); err != nil {
				return errors.WithStack(err)
			}

			t := newTable(c.App.Writer)
			values := []*int{r.Characters, r.WorldBuilding, r.Plot, r.WritingStyle, r.Enjoyment}
			for i, category := range ratings.Categories {
				row := []string{category, formatScore(values[i])}
				if c.Bool("guide") && values[i] != nil {
					row = append(row, ratings.Describe(category, *values[i]))
				}
				t.row(row...)
			}

			overall := ratings.Overall(r)
			t.row("Overall", fmt.Sprintf("%.1f", overall), stars(ratings.Stars(overall)))
			if c.Bool("legacy") {
				legacy := ratings.LegacyOverall(r)
				t.row("Legacy overall", fmt.Sprintf("%.1f", legacy), stars(ratings.LegacyStars(legacy)))
			}
			return t.flush()
		},
	}
}
