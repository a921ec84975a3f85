package browse

import (
	"cmp"
	"slices"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort returns a stably sorted copy of books. Books without genres sort last
// in both directions when sorting by genre.
func Sort(books []*models.Book, field SortField, dir Direction) []*models.Book {
	out := slices.Clone(books)
	if out == nil {
		out = []*models.Book{}
	}
	// Collators keep internal buffers, so each sort gets its own.
	col := collate.New(language.English)

	var compare func(a, b *models.Book) int
	switch field {
	case SortTitle:
		compare = func(a, b *models.Book) int { return col.CompareString(a.Title, b.Title) }
	case SortAuthor:
		compare = func(a, b *models.Book) int { return col.CompareString(a.Author, b.Author) }
	case SortRating:
		compare = func(a, b *models.Book) int { return cmp.Compare(a.OverallRating, b.OverallRating) }
	case SortGenre:
		slices.SortStableFunc(out, func(a, b *models.Book) int {
			ga, okA := a.FirstGenre()
			gb, okB := b.FirstGenre()
			switch {
			case !okA && !okB:
				return 0
			case !okA:
				return 1
			case !okB:
				return -1
			}
			return directed(col.CompareString(ga, gb), dir)
		})
		return out
	default:
		compare = func(a, b *models.Book) int {
			if c := cmp.Compare(a.CompletionYear, b.CompletionYear); c != 0 {
				return c
			}
			return cmp.Compare(a.CompletionMonth, b.CompletionMonth)
		}
	}

	slices.SortStableFunc(out, func(a, b *models.Book) int {
		return directed(compare(a, b), dir)
	})
	return out
}

func directed(c int, dir Direction) int {
	if dir == Desc {
		return -c
	}
	return c
}

// Apply filters and then sorts books according to q.
func Apply(books []*models.Book, q Query) []*models.Book {
	q = q.Normalize()
	return Sort(Filter(books, q), q.Sort, q.Direction)
}
