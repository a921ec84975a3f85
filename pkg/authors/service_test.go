package authors

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/chaskitbooks/chaskit/pkg/migrations"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/google/uuid"
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

func insertBook(t *testing.T, db *bun.DB, title, author string) *models.Book {
	t.Helper()

	book := &models.Book{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Version:         1,
		Title:           title,
		Author:          author,
		CompletionMonth: 6,
		CompletionYear:  2022,
		WhichWitch:      models.WitchLouLou,
		IsStandalone:    true,
	}
	_, err := db.NewInsert().Model(book).Exec(context.Background())
	require.NoError(t, err)
	return book
}

func loadBook(t *testing.T, db *bun.DB, id string) *models.Book {
	t.Helper()

	book := &models.Book{}
	err := db.NewSelect().Model(book).Where("b.id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return book
}

func TestListAuthors_Defaults(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	insertBook(t, db, "Fourth Wing", "Rebecca Yarros")
	insertBook(t, db, "Iron Flame", "Rebecca Yarros")

	authors := svc.ListAllAuthors(ctx)
	require.Len(t, authors, len(taxcache.DefaultAuthorNames))
	for _, a := range authors {
		if a.Name == "Rebecca Yarros" {
			assert.Equal(t, 2, a.BookCount)
		}
	}

	search := "san"
	found, total, err := svc.ListAuthorsWithTotal(ctx, ListAuthorsOptions{Search: &search})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Brandon Sanderson", found[0].Name)
}

func TestRenameAuthor_Cascades(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	author, err := svc.FindOrCreateAuthor(ctx, "J.K. Rowling")
	require.NoError(t, err)
	book := insertBook(t, db, "Philosopher's Stone", "J.K. Rowling")
	other := insertBook(t, db, "Mistborn", "Brandon Sanderson")

	renamed, updated, err := svc.RenameAuthor(ctx, author.ID, "Robert Galbraith")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, "Robert Galbraith", renamed.Name)

	got := loadBook(t, db, book.ID)
	assert.Equal(t, "Robert Galbraith", got.Author)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 1, loadBook(t, db, other.ID).Version)

	_, _, err = svc.RenameAuthor(ctx, author.ID, "colleen hoover")
	assert.True(t, errors.Is(err, errcodes.AlreadyExists("Author", "colleen hoover")))
	assert.Equal(t, "Robert Galbraith", loadBook(t, db, book.ID).Author)
}

func TestRenameAuthor_MatchesAnySpelling(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	author, err := svc.FindOrCreateAuthor(ctx, "Ursula K. Le Guin")
	require.NoError(t, err)
	found, err := svc.FindOrCreateAuthor(ctx, "ursula k. le guin")
	require.NoError(t, err)
	assert.Equal(t, author.ID, found.ID)

	book := insertBook(t, db, "A Wizard of Earthsea", "ursula k. le guin")

	renamed, updated, err := svc.RenameAuthor(ctx, author.ID, "Ursula Le Guin")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, renamed.BookCount)

	got := loadBook(t, db, book.ID)
	assert.Equal(t, "Ursula Le Guin", got.Author)
	assert.Equal(t, 2, got.Version)

	_, err = svc.RetrieveAuthor(ctx, RetrieveAuthorOptions{Name: &got.Author})
	assert.NoError(t, err)
}

func TestDeleteAuthor(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	author, err := svc.FindOrCreateAuthor(ctx, "Ursula K. Le Guin")
	require.NoError(t, err)
	book := insertBook(t, db, "A Wizard of Earthsea", "Ursula K. Le Guin")

	require.NoError(t, svc.DeleteAuthor(ctx, author.ID))
	assert.True(t, errors.Is(svc.DeleteAuthor(ctx, author.ID), errcodes.NotFound("Author")))
	assert.Equal(t, "Ursula K. Le Guin", loadBook(t, db, book.ID).Author)
}
