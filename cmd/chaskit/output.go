package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/ratings"
	"github.com/pkg/errors"
)

type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer) *table {
	return &table{tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.w, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return errors.WithStack(t.w.Flush())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// stars renders a 0-5 star rating as a bar of whole and half stars.
func stars(v float64) string {
	half := int(v*2 + 0.5)
	return strings.Repeat("★", half/2) + strings.Repeat("½", half%2) + strings.Repeat("·", ratings.MaxStars-half/2-half%2)
}

func formatScore(s *int) string {
	if s == nil {
		return "N/A"
	}
	return strconv.Itoa(*s)
}

func printBooks(out io.Writer, books []*models.Book) error {
	t := newTable(out)
	t.row("ID", "TITLE", "AUTHOR", "FINISHED", "RATING", "GENRES", "WITCH")
	for _, b := range books {
		t.row(
			b.ID,
			b.Title,
			b.Author,
			fmt.Sprintf("%04d-%02d", b.CompletionYear, b.CompletionMonth),
			fmt.Sprintf("%.1f %s", b.OverallRating, stars(b.StarRating)),
			strings.Join(b.Genres, ", "),
			b.WhichWitch,
		)
	}
	return t.flush()
}

func printBook(out io.Writer, b *models.Book) error {
	t := newTable(out)
	t.row("id", b.ID)
	t.row("title", b.Title)
	t.row("author", b.Author)
	t.row("finished", fmt.Sprintf("%04d-%02d", b.CompletionYear, b.CompletionMonth))
	t.row("genres", strings.Join(b.Genres, ", "))
	if b.SeriesName != nil {
		t.row("series", *b.SeriesName)
	} else if b.IsStandalone {
		t.row("series", "standalone")
	}
	t.row("which witch", b.WhichWitch)
	t.row(ratings.CategoryCharacters, formatScore(b.Ratings.Characters))
	t.row(ratings.CategoryWorldBuilding, formatScore(b.Ratings.WorldBuilding))
	t.row(ratings.CategoryPlot, formatScore(b.Ratings.Plot))
	t.row(ratings.CategoryWritingStyle, formatScore(b.Ratings.WritingStyle))
	t.row(ratings.CategoryEnjoyment, formatScore(b.Ratings.Enjoyment))
	t.row("overall", fmt.Sprintf("%.1f %s", b.OverallRating, stars(b.StarRating)))
	if b.CoverImage != nil {
		cover := *b.CoverImage
		if strings.HasPrefix(cover, "data:") {
			cover = "embedded image"
		}
		t.row("cover", cover)
	}
	t.row("version", strconv.Itoa(b.Version))
	return t.flush()
}
