package genres

import (
	"context"
	"database/sql"
	"sync"
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

func insertBook(t *testing.T, db *bun.DB, title string, genres ...string) *models.Book {
	t.Helper()
	ctx := context.Background()

	book := &models.Book{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
		Version:         1,
		Title:           title,
		Author:          "Frank Herbert",
		CompletionMonth: 1,
		CompletionYear:  2024,
		WhichWitch:      models.WitchChlo,
		IsStandalone:    true,
	}
	_, err := db.NewInsert().Model(book).Exec(ctx)
	require.NoError(t, err)

	for i, name := range genres {
		_, err := db.NewInsert().Model(&models.BookGenre{
			ID:        uuid.NewString(),
			BookID:    book.ID,
			SortOrder: i,
			Name:      name,
		}).Exec(ctx)
		require.NoError(t, err)
	}
	return book
}

func loadBook(t *testing.T, db *bun.DB, id string) *models.Book {
	t.Helper()

	book := &models.Book{}
	err := db.NewSelect().
		Model(book).
		Relation("GenreLinks", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("bg.sort_order ASC")
		}).
		Where("b.id = ?", id).
		Scan(context.Background())
	require.NoError(t, err)
	book.Hydrate()
	return book
}

func deleteGenreNamed(t *testing.T, db *bun.DB, name string) {
	t.Helper()
	_, err := db.NewDelete().Model((*models.Genre)(nil)).Where("name = ?", name).Exec(context.Background())
	require.NoError(t, err)
}

func TestCreateGenre(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	genre := &models.Genre{Name: "  Cozy Mystery ", IsCustom: true}
	require.NoError(t, svc.CreateGenre(ctx, genre))
	assert.NotEmpty(t, genre.ID)
	assert.Equal(t, "Cozy Mystery", genre.Name)

	err := svc.CreateGenre(ctx, &models.Genre{Name: "cozy mystery"})
	assert.True(t, errors.Is(err, errcodes.AlreadyExists("Genre", "cozy mystery")))
}

func TestFindOrCreateGenre(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	existing, err := svc.FindOrCreateGenre(ctx, "epic fantasy")
	require.NoError(t, err)
	assert.Equal(t, "Epic Fantasy", existing.Name)
	assert.False(t, existing.IsCustom)

	created, err := svc.FindOrCreateGenre(ctx, " Solarpunk ")
	require.NoError(t, err)
	assert.Equal(t, "Solarpunk", created.Name)
	assert.True(t, created.IsCustom)

	again, err := svc.FindOrCreateGenre(ctx, "SOLARPUNK")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = svc.FindOrCreateGenre(ctx, "   ")
	require.Error(t, err)
}

func TestListGenres(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	insertBook(t, db, "Dune", "Science Fiction")
	insertBook(t, db, "Hyperion", "Science Fiction", "Science Fiction")

	limit := 3
	genres, total, err := svc.ListGenresWithTotal(ctx, ListGenresOptions{Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, len(taxcache.DefaultGenreNames), total)
	require.Len(t, genres, 3)
	assert.Equal(t, "Biography/Memoir", genres[0].Name)

	search := "fiction"
	genres, total, err = svc.ListGenresWithTotal(ctx, ListGenresOptions{Search: &search})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	for _, g := range genres {
		assert.Contains(t, g.Name, "Fiction")
		if g.Name == "Science Fiction" {
			assert.Equal(t, 2, g.BookCount)
		}
	}

	search = "100%"
	genres, err = svc.ListGenres(ctx, ListGenresOptions{Search: &search})
	require.NoError(t, err)
	assert.Empty(t, genres)
}

func TestListAllGenres_FallsBackToDefaults(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	require.Len(t, svc.ListAllGenres(ctx), len(taxcache.DefaultGenreNames))

	require.NoError(t, db.Close())
	genres := svc.ListAllGenres(ctx)
	require.Len(t, genres, len(taxcache.DefaultGenreNames))
	for _, g := range genres {
		assert.False(t, g.IsCustom)
	}
}

func TestRenameGenre_Cascades(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	fantasy := &models.Genre{Name: "Fantasy", IsCustom: true}
	require.NoError(t, svc.CreateGenre(ctx, fantasy))
	deleteGenreNamed(t, db, "Epic Fantasy")

	first := insertBook(t, db, "The Hobbit", "Fantasy", "Horror")
	second := insertBook(t, db, "Mistborn", "Horror", "Fantasy")
	untouched := insertBook(t, db, "Dune", "Science Fiction")

	genre, updated, err := svc.RenameGenre(ctx, fantasy.ID, "Epic Fantasy")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, "Epic Fantasy", genre.Name)
	assert.Equal(t, 2, genre.BookCount)

	book := loadBook(t, db, first.ID)
	assert.Equal(t, []string{"Epic Fantasy", "Horror"}, book.Genres)
	assert.Equal(t, 2, book.Version)

	book = loadBook(t, db, second.ID)
	assert.Equal(t, []string{"Horror", "Epic Fantasy"}, book.Genres)
	assert.Equal(t, 2, book.Version)

	book = loadBook(t, db, untouched.ID)
	assert.Equal(t, []string{"Science Fiction"}, book.Genres)
	assert.Equal(t, 1, book.Version)
}

func TestRenameGenre_DropsDuplicate(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	sff := &models.Genre{Name: "SFF", IsCustom: true}
	require.NoError(t, svc.CreateGenre(ctx, sff))
	deleteGenreNamed(t, db, "Science Fiction")

	book := insertBook(t, db, "Dune", "Science Fiction", "SFF", "Classics")

	_, updated, err := svc.RenameGenre(ctx, sff.ID, "Science Fiction")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	got := loadBook(t, db, book.ID)
	assert.Equal(t, []string{"Science Fiction", "Classics"}, got.Genres)
}

func TestRenameGenre_MatchesAnySpelling(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	fantasy := &models.Genre{Name: "Fantasy", IsCustom: true}
	require.NoError(t, svc.CreateGenre(ctx, fantasy))
	deleteGenreNamed(t, db, "High Fantasy")

	found, err := svc.FindOrCreateGenre(ctx, "fantasy")
	require.NoError(t, err)
	assert.Equal(t, fantasy.ID, found.ID)

	lower := insertBook(t, db, "The Hobbit", "fantasy", "Horror")
	mixed := insertBook(t, db, "Mistborn", "FANTASY", "Fantasy", "Classics")

	genre, err := svc.RetrieveGenre(ctx, RetrieveGenreOptions{ID: &fantasy.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, genre.BookCount)

	genre, updated, err := svc.RenameGenre(ctx, fantasy.ID, "High Fantasy")
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 2, genre.BookCount)

	book := loadBook(t, db, lower.ID)
	assert.Equal(t, []string{"High Fantasy", "Horror"}, book.Genres)
	assert.Equal(t, 2, book.Version)

	book = loadBook(t, db, mixed.ID)
	assert.Equal(t, []string{"High Fantasy", "Classics"}, book.Genres)

	first, _ := book.FirstGenre()
	_, err = svc.RetrieveGenre(ctx, RetrieveGenreOptions{Name: &first})
	assert.NoError(t, err)
}

func TestRenameGenre_Conflict(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	genre := &models.Genre{Name: "Fantasy", IsCustom: true}
	require.NoError(t, svc.CreateGenre(ctx, genre))
	book := insertBook(t, db, "The Hobbit", "Fantasy")

	_, _, err := svc.RenameGenre(ctx, genre.ID, "romantasy")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcodes.AlreadyExists("Genre", "romantasy")))

	// Nothing changed.
	got := loadBook(t, db, book.ID)
	assert.Equal(t, []string{"Fantasy"}, got.Genres)
	assert.Equal(t, 1, got.Version)

	_, _, err = svc.RenameGenre(ctx, "missing", "Whatever")
	assert.True(t, errors.Is(err, errcodes.NotFound("Genre")))

	// Renaming to the same name is a no-op.
	same, updated, err := svc.RenameGenre(ctx, genre.ID, "Fantasy")
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.Equal(t, "Fantasy", same.Name)
}

func TestDeleteGenre_LeavesBooks(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	svc := NewService(db, taxcache.Disabled(), 0)
	ctx := context.Background()

	genre := &models.Genre{Name: "Fantasy", IsCustom: true}
	require.NoError(t, svc.CreateGenre(ctx, genre))
	book := insertBook(t, db, "The Hobbit", "Fantasy")

	require.NoError(t, svc.DeleteGenre(ctx, genre.ID))
	assert.True(t, errors.Is(svc.DeleteGenre(ctx, genre.ID), errcodes.NotFound("Genre")))

	got := loadBook(t, db, book.ID)
	assert.Equal(t, []string{"Fantasy"}, got.Genres)
}

type mapStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", taxcache.ErrMiss
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *mapStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

func (s *mapStore) Ping(context.Context) error { return nil }

func TestListAllGenres_UsesCache(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	store := &mapStore{m: map[string]string{}}
	svc := NewService(db, taxcache.New(store, time.Minute), 0)
	ctx := context.Background()

	require.Len(t, svc.ListAllGenres(ctx), len(taxcache.DefaultGenreNames))
	assert.Contains(t, store.m, taxcache.GenresKey)

	// Rows written behind the service's back aren't seen until invalidation.
	_, err := db.NewInsert().Model(&models.Genre{ID: uuid.NewString(), Name: "Cli-Fi", IsCustom: true}).Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, svc.ListAllGenres(ctx), len(taxcache.DefaultGenreNames))

	require.NoError(t, svc.CreateGenre(ctx, &models.Genre{Name: "Grimdark", IsCustom: true}))
	assert.NotContains(t, store.m, taxcache.GenresKey)
	assert.Len(t, svc.ListAllGenres(ctx), len(taxcache.DefaultGenreNames)+2)
}
