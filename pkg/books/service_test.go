package books

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/chaskitbooks/chaskit/pkg/migrations"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/ratings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func str(s string) *string { return &s }

// fixture is a small collection with distinct creation times so that the
// database and in-memory orderings can be compared exactly.
func fixture() []*models.Book {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	books := []*models.Book{
		{Title: "Dune", Author: "Frank Herbert", CompletionMonth: 3, CompletionYear: 1965, Genres: []string{"Sci-Fi"}, WhichWitch: models.WitchChlo, Ratings: ratings.Ratings{Plot: ratings.Score(9), Enjoyment: ratings.Score(8)}},
		{Title: "Emma", Author: "Jane Austen", CompletionMonth: 7, CompletionYear: 2023, Genres: []string{"Romance", "Classics"}, WhichWitch: models.WitchLouLou, Ratings: ratings.Ratings{Characters: ratings.Score(7)}},
		{Title: "Hyperion", Author: "Dan Simmons", CompletionMonth: 3, CompletionYear: 2023, Genres: []string{"Sci-Fi", "Horror"}, WhichWitch: models.WitchAffo, IsStandalone: false, SeriesName: str("Hyperion Cantos")},
		{Title: "Mistborn", Author: "Brandon Sanderson", CompletionMonth: 11, CompletionYear: 2024, Genres: []string{"Fantasy"}, WhichWitch: models.WitchChlo, SeriesName: str("Mistborn"), Ratings: ratings.Ratings{Plot: ratings.Score(9), Enjoyment: ratings.Score(8)}},
		{Title: "Neuromancer", Author: "William Gibson", CompletionMonth: 3, CompletionYear: 2023, Genres: []string{}, WhichWitch: models.WitchLouLou, IsStandalone: true},
		{Title: "Rebecca", Author: "Daphne du Maurier", CompletionMonth: 1, CompletionYear: 2024, Genres: []string{"Mystery", "Romance"}, WhichWitch: models.WitchAffo, IsStandalone: true, Ratings: ratings.Ratings{Characters: ratings.Score(10), Plot: ratings.Score(9)}},
		{Title: "Solaris", Author: "Stanislaw Lem", CompletionMonth: 3, CompletionYear: 2023, Genres: []string{"Sci-Fi"}, WhichWitch: models.WitchChlo, IsStandalone: true},
		{Title: "Warbreaker", Author: "Brandon Sanderson", CompletionMonth: 8, CompletionYear: 2022, Genres: []string{"Fantasy", "Romance"}, WhichWitch: models.WitchAffo, IsStandalone: true, Ratings: ratings.Ratings{WritingStyle: ratings.Score(6)}},
	}
	for i, b := range books {
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
	}
	return books
}

func seed(t *testing.T, svc *Service) []*models.Book {
	t.Helper()
	books := fixture()
	for _, b := range books {
		require.NoError(t, svc.CreateBook(context.Background(), b))
	}
	return books
}

func ids(books []*models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

// newestFirst orders books the way the database breaks ties.
func newestFirst(books []*models.Book) []*models.Book {
	out := make([]*models.Book, len(books))
	for i, b := range books {
		out[len(books)-1-i] = b
	}
	return out
}

func TestCreateBook(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()

	book := &models.Book{
		Title:           "Dune",
		Author:          "Frank Herbert",
		CompletionMonth: 3,
		CompletionYear:  1965,
		Genres:          []string{"Sci-Fi", "Classics"},
		WhichWitch:      models.WitchChlo,
		IsStandalone:    true,
		Ratings: ratings.Ratings{
			Characters:   ratings.Score(8),
			Plot:         ratings.Score(6),
			WritingStyle: ratings.Score(7),
		},
		// Never trusted from callers.
		OverallRating: 10,
	}
	require.NoError(t, svc.CreateBook(ctx, book))
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, 1, book.Version)
	assert.InDelta(t, 7.0, book.OverallRating, 0.0001)
	assert.InDelta(t, 3.5, book.StarRating, 0.0001)

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, []string{"Sci-Fi", "Classics"}, got.Genres)
	assert.InDelta(t, 7.0, got.OverallRating, 0.0001)
	assert.InDelta(t, 3.5, got.StarRating, 0.0001)
	require.NotNil(t, got.Ratings.Characters)
	assert.Equal(t, 8, *got.Ratings.Characters)
	assert.Nil(t, got.Ratings.WorldBuilding)

	missing := "nope"
	_, err = svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &missing})
	assert.True(t, errors.Is(err, errcodes.NotFound("Book")))
}

func TestUpdateBook(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()

	books := seed(t, svc)
	book, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &books[0].ID})
	require.NoError(t, err)

	book.Title = "Dune Messiah"
	book.Genres = []string{"Classics", "Sci-Fi"}
	require.NoError(t, svc.UpdateBook(ctx, book, UpdateBookOptions{Columns: []string{"title"}, UpdateGenres: true}))
	assert.Equal(t, 2, book.Version)

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", got.Title)
	assert.Equal(t, []string{"Classics", "Sci-Fi"}, got.Genres)
	assert.Equal(t, 2, got.Version)

	// Nothing to write.
	require.NoError(t, svc.UpdateBook(ctx, got, UpdateBookOptions{}))
	assert.Equal(t, 2, got.Version)
}

func TestUpdateBook_VersionConflict(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()

	books := seed(t, svc)
	first, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &books[0].ID})
	require.NoError(t, err)
	second, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &books[0].ID})
	require.NoError(t, err)

	first.Title = "First Writer"
	require.NoError(t, svc.UpdateBook(ctx, first, UpdateBookOptions{Columns: []string{"title"}}))

	second.Title = "Second Writer"
	second.Genres = []string{"Horror"}
	err = svc.UpdateBook(ctx, second, UpdateBookOptions{Columns: []string{"title"}, UpdateGenres: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcodes.VersionConflict("Book")))
	assert.Equal(t, 1, second.Version)

	got, err := svc.RetrieveBook(ctx, RetrieveBookOptions{ID: &books[0].ID})
	require.NoError(t, err)
	assert.Equal(t, "First Writer", got.Title)
	assert.Equal(t, []string{"Sci-Fi"}, got.Genres)
	assert.Equal(t, 2, got.Version)

	gone := &models.Book{ID: "missing", Version: 1, Title: "x"}
	err = svc.UpdateBook(ctx, gone, UpdateBookOptions{Columns: []string{"title"}})
	assert.True(t, errors.Is(err, errcodes.NotFound("Book")))
}

func TestDeleteBook(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()

	books := seed(t, svc)
	require.NoError(t, svc.DeleteBook(ctx, books[1].ID))
	assert.True(t, errors.Is(svc.DeleteBook(ctx, books[1].ID), errcodes.NotFound("Book")))

	count, err := db.NewSelect().Model((*models.BookGenre)(nil)).Where("book_id = ?", books[1].ID).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	all, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{})
	require.NoError(t, err)
	assert.Equal(t, len(books)-1, total)
	assert.Len(t, all, len(books)-1)
}

func TestListBooks_MatchesInMemoryPipeline(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()

	books := newestFirst(seed(t, svc))

	queries := []browse.Query{
		{},
		{Search: "dune", Genre: "Sci-Fi", Year: 1965},
		{Search: "SANDERSON"},
		{Search: "cantos"},
		{Genre: "Romance"},
		{Year: 2023},
		{WhichWitch: models.WitchAffo},
		{Genre: "Sci-Fi", Year: 2023, WhichWitch: models.WitchAffo},
		{Search: "zzz"},
	}
	for _, field := range browse.SortFields {
		for _, dir := range []browse.Direction{browse.Asc, browse.Desc} {
			queries = append(queries,
				browse.Query{Sort: field, Direction: dir},
				browse.Query{Sort: field, Direction: dir, Year: 2023},
			)
		}
	}

	for _, q := range queries {
		q := q
		t.Run(fmt.Sprintf("%+v", q), func(t *testing.T) {
			expected := browse.Apply(books, q)

			got, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{Query: q})
			require.NoError(t, err)
			assert.Equal(t, len(expected), total)
			assert.Equal(t, ids(expected), ids(got))
		})
	}
}

func TestListBooks_Fixture(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()
	seed(t, svc)

	got, err := svc.ListBooks(ctx, ListBooksOptions{Query: browse.Query{Search: "dune", Genre: "Sci-Fi", Year: 1965}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dune", got[0].Title)
	assert.Equal(t, []string{"Sci-Fi"}, got[0].Genres)

	// Books without genres go last in both directions.
	for _, dir := range []browse.Direction{browse.Asc, browse.Desc} {
		got, err = svc.ListBooks(ctx, ListBooksOptions{Query: browse.Query{Sort: browse.SortGenre, Direction: dir}})
		require.NoError(t, err)
		assert.Equal(t, "Neuromancer", got[len(got)-1].Title)
	}
}

func TestListBooks_PagesConcatenate(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()
	seed(t, svc)

	for _, q := range []browse.Query{
		browse.DefaultQuery(),
		{Sort: browse.SortRating, Direction: browse.Desc},
		{Sort: browse.SortAuthor},
		{Genre: "Sci-Fi", Sort: browse.SortTitle},
	} {
		all, err := svc.ListBooks(ctx, ListBooksOptions{Query: q})
		require.NoError(t, err)

		paged := []*models.Book{}
		limit := 3
		for offset := 0; ; offset += limit {
			offset := offset
			page, total, err := svc.ListBooksWithTotal(ctx, ListBooksOptions{Query: q, Limit: &limit, Offset: &offset})
			require.NoError(t, err)
			assert.Equal(t, len(all), total)
			paged = append(paged, page...)
			if !browse.HasMore(offset+len(page), total) {
				break
			}
		}
		assert.Equal(t, ids(all), ids(paged))
	}
}

func TestListBooks_SearchEscapesWildcards(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()
	seed(t, svc)

	special := &models.Book{
		Title:           "100% Wolf_Pack",
		Author:          "Someone",
		CompletionMonth: 1,
		CompletionYear:  2024,
		Genres:          []string{"Humor"},
		WhichWitch:      models.WitchChlo,
	}
	require.NoError(t, svc.CreateBook(ctx, special))

	for _, search := range []string{"%", "_", "0% w", "f_p", "r_o"} {
		got, err := svc.ListBooks(ctx, ListBooksOptions{Query: browse.Query{Search: search}})
		require.NoError(t, err)
		// "r_o" would match Hyperion if the underscore were a wildcard.
		if search == "r_o" {
			assert.Empty(t, got, search)
			continue
		}
		require.Len(t, got, 1, search)
		assert.Equal(t, special.ID, got[0].ID)
	}
}

func TestRetrieveStats(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, 0)
	ctx := context.Background()

	stats, err := svc.RetrieveStats(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)

	seed(t, svc)

	stats, err = svc.RetrieveStats(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 8, stats.TotalBooks)
	assert.Equal(t, 2, stats.BooksThisYear)
	// Rated books: 8.5, 7, 8.5, 9.5, 6.
	assert.InDelta(t, 7.9, stats.AverageRating, 0.0001)

	years, err := svc.ListYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023, 2022, 1965}, years)
}
