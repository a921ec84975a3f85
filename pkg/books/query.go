package books

import (
	"strings"

	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/database"
	"github.com/uptrace/bun"
)

// firstGenreExpr selects the genre a book sorts under.
const firstGenreExpr = "(SELECT fg.name FROM book_genres AS fg WHERE fg.book_id = b.id ORDER BY fg.sort_order ASC LIMIT 1)"

// applyQuery narrows and orders q the same way browse.Apply does in memory.
// Every ordering ends with created_at DESC, id ASC so pages never overlap.
func applyQuery(q *bun.SelectQuery, bq browse.Query) *bun.SelectQuery {
	bq = bq.Normalize()

	if strings.TrimSpace(bq.Search) != "" {
		pattern := database.ContainsPattern(bq.Search)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where(`LOWER(b.title) LIKE ? ESCAPE '\'`, pattern).
				WhereOr(`LOWER(b.author) LIKE ? ESCAPE '\'`, pattern).
				WhereOr(`LOWER(COALESCE(b.series_name, '')) LIKE ? ESCAPE '\'`, pattern)
		})
	}
	if bq.Genre != "" {
		q = q.Where("EXISTS (SELECT 1 FROM book_genres AS gf WHERE gf.book_id = b.id AND gf.name = ?)", bq.Genre)
	}
	if bq.Year != 0 {
		q = q.Where("b.completion_year = ?", bq.Year)
	}
	if bq.WhichWitch != "" {
		q = q.Where("b.which_witch = ?", bq.WhichWitch)
	}

	dir := " ASC"
	if bq.Direction == browse.Desc {
		dir = " DESC"
	}

	switch bq.Sort {
	case browse.SortTitle:
		q = q.OrderExpr("LOWER(b.title)" + dir)
	case browse.SortAuthor:
		q = q.OrderExpr("LOWER(b.author)" + dir)
	case browse.SortRating:
		q = q.OrderExpr("b.overall_rating" + dir)
	case browse.SortGenre:
		// Books without genres go last regardless of direction.
		q = q.
			OrderExpr("CASE WHEN " + firstGenreExpr + " IS NULL THEN 1 ELSE 0 END ASC").
			OrderExpr("LOWER(" + firstGenreExpr + ")" + dir)
	default:
		q = q.
			OrderExpr("b.completion_year" + dir).
			OrderExpr("b.completion_month" + dir)
	}

	return q.
		OrderExpr("b.created_at DESC").
		OrderExpr("b.id ASC")
}
