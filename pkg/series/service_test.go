package series

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

func insertBook(t *testing.T, db *bun.DB, title string, series *string) *models.Book {
	t.Helper()

	book := &models.Book{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Version:         1,
		Title:           title,
		Author:          "Brandon Sanderson",
		CompletionMonth: 3,
		CompletionYear:  2023,
		WhichWitch:      models.WitchAffo,
		IsStandalone:    series == nil,
		SeriesName:      series,
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

func name(s string) *string { return &s }

func TestListAllSeries_StartsEmpty(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)

	assert.Empty(t, svc.ListAllSeries(context.Background()))
}

func TestRenameSeries_Cascades(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	series := &models.Series{Name: "Mistborn"}
	require.NoError(t, svc.CreateSeries(ctx, series))

	first := insertBook(t, db, "The Final Empire", name("Mistborn"))
	second := insertBook(t, db, "The Well of Ascension", name("Mistborn"))
	other := insertBook(t, db, "The Way of Kings", name("The Stormlight Archive"))
	standalone := insertBook(t, db, "Elantris", nil)

	got, err := svc.RetrieveSeries(ctx, RetrieveSeriesOptions{ID: &series.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.BookCount)

	renamed, updated, err := svc.RenameSeries(ctx, series.ID, "Mistborn Era One")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, "Mistborn Era One", renamed.Name)
	assert.Equal(t, 2, renamed.BookCount)

	for _, id := range []string{first.ID, second.ID} {
		book := loadBook(t, db, id)
		require.NotNil(t, book.SeriesName)
		assert.Equal(t, "Mistborn Era One", *book.SeriesName)
		assert.Equal(t, 2, book.Version)
	}
	assert.Equal(t, 1, loadBook(t, db, other.ID).Version)
	assert.Nil(t, loadBook(t, db, standalone.ID).SeriesName)
}

func TestRenameSeries_MatchesAnySpelling(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	series := &models.Series{Name: "Mistborn"}
	require.NoError(t, svc.CreateSeries(ctx, series))
	found, err := svc.FindOrCreateSeries(ctx, "mistborn")
	require.NoError(t, err)
	assert.Equal(t, series.ID, found.ID)

	book := insertBook(t, db, "The Final Empire", name("mistborn"))

	renamed, updated, err := svc.RenameSeries(ctx, series.ID, "Mistborn Era One")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, renamed.BookCount)

	got := loadBook(t, db, book.ID)
	require.NotNil(t, got.SeriesName)
	assert.Equal(t, "Mistborn Era One", *got.SeriesName)
	assert.Equal(t, 2, got.Version)

	_, err = svc.RetrieveSeries(ctx, RetrieveSeriesOptions{Name: got.SeriesName})
	assert.NoError(t, err)
}

func TestRenameSeries_ConflictRollsBack(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	mistborn := &models.Series{Name: "Mistborn"}
	require.NoError(t, svc.CreateSeries(ctx, mistborn))
	require.NoError(t, svc.CreateSeries(ctx, &models.Series{Name: "Stormlight"}))
	book := insertBook(t, db, "The Final Empire", name("Mistborn"))

	_, _, err := svc.RenameSeries(ctx, mistborn.ID, "STORMLIGHT")
	assert.True(t, errors.Is(err, errcodes.AlreadyExists("Series", "STORMLIGHT")))

	got := loadBook(t, db, book.ID)
	assert.Equal(t, "Mistborn", *got.SeriesName)
	assert.Equal(t, 1, got.Version)
}

func TestDeleteSeries(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	series, err := svc.FindOrCreateSeries(ctx, "Mistborn")
	require.NoError(t, err)
	book := insertBook(t, db, "The Final Empire", name("Mistborn"))

	require.NoError(t, svc.DeleteSeries(ctx, series.ID))
	_, err = svc.RetrieveSeries(ctx, RetrieveSeriesOptions{ID: &series.ID})
	assert.True(t, errors.Is(err, errcodes.NotFound("Series")))

	assert.Equal(t, "Mistborn", *loadBook(t, db, book.ID).SeriesName)
}
