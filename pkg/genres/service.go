package genres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/database"
	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type RetrieveGenreOptions struct {
	ID   *string
	Name *string
}

type ListGenresOptions struct {
	Limit  *int
	Offset *int
	Search *string

	includeTotal bool
}

type Service struct {
	db         *bun.DB
	cache      *taxcache.Cache
	maxRetries int
}

func NewService(db *bun.DB, cache *taxcache.Cache, maxRetries int) *Service {
	return &Service{db, cache, maxRetries}
}

func (svc *Service) CreateGenre(ctx context.Context, genre *models.Genre) error {
	now := time.Now()
	if genre.CreatedAt.IsZero() {
		genre.CreatedAt = now
	}
	genre.UpdatedAt = genre.CreatedAt
	genre.Name = strings.TrimSpace(genre.Name)

	if genre.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		genre.ID = id.String()
	}

	_, err := svc.db.
		NewInsert().
		Model(genre).
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.AlreadyExists("Genre", genre.Name)
		}
		return errors.WithStack(err)
	}

	svc.cache.Invalidate(ctx, taxcache.GenresKey)
	return nil
}

func (svc *Service) RetrieveGenre(ctx context.Context, opts RetrieveGenreOptions) (*models.Genre, error) {
	genre := &models.Genre{}

	q := svc.db.
		NewSelect().
		Model(genre).
		ColumnExpr("g.*").
		ColumnExpr(bookCountExpr)

	if opts.ID != nil {
		q = q.Where("g.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("LOWER(g.name) = LOWER(?)", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Genre")
		}
		return nil, errors.WithStack(err)
	}

	return genre, nil
}

// FindOrCreateGenre finds an existing genre or creates a new one (case-insensitive match).
func (svc *Service) FindOrCreateGenre(ctx context.Context, name string) (*models.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("genre name cannot be empty")
	}

	genre, err := svc.RetrieveGenre(ctx, RetrieveGenreOptions{Name: &name})
	if err == nil {
		return genre, nil
	}
	if !errors.Is(err, errcodes.NotFound("Genre")) {
		return nil, err
	}

	genre = &models.Genre{Name: name, IsCustom: true}
	err = svc.CreateGenre(ctx, genre)
	if err != nil {
		// Lost a race with another writer.
		if errors.Is(err, errcodes.AlreadyExists("Genre", name)) {
			return svc.RetrieveGenre(ctx, RetrieveGenreOptions{Name: &name})
		}
		return nil, err
	}
	return genre, nil
}

func (svc *Service) ListGenres(ctx context.Context, opts ListGenresOptions) ([]*models.Genre, error) {
	g, _, err := svc.listGenresWithTotal(ctx, opts)
	return g, errors.WithStack(err)
}

func (svc *Service) ListGenresWithTotal(ctx context.Context, opts ListGenresOptions) ([]*models.Genre, int, error) {
	opts.includeTotal = true
	return svc.listGenresWithTotal(ctx, opts)
}

func (svc *Service) listGenresWithTotal(ctx context.Context, opts ListGenresOptions) ([]*models.Genre, int, error) {
	genres := []*models.Genre{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&genres).
		ColumnExpr("g.*").
		ColumnExpr(bookCountExpr).
		OrderExpr("LOWER(g.name) ASC")

	if opts.Search != nil && strings.TrimSpace(*opts.Search) != "" {
		q = q.Where(`LOWER(g.name) LIKE ? ESCAPE '\'`, database.ContainsPattern(*opts.Search))
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return genres, total, nil
}

// ListAllGenres returns every genre, preferring the cached copy. If the
// database can't be read the built-in defaults are returned instead.
func (svc *Service) ListAllGenres(ctx context.Context) []*models.Genre {
	genres := []*models.Genre{}
	if svc.cache.Load(ctx, taxcache.GenresKey, &genres) {
		return genres
	}

	genres, err := svc.ListGenres(ctx, ListGenresOptions{})
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to list genres, serving defaults")
		return taxcache.DefaultGenres()
	}

	svc.cache.Save(ctx, taxcache.GenresKey, genres)
	return genres
}

// RenameGenre renames the genre and rewrites it in every book that lists it,
// all in one transaction. It returns the number of books that changed.
func (svc *Service) RenameGenre(ctx context.Context, id, name string) (*models.Genre, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, errcodes.ValidationError("Genre name cannot be empty.")
	}

	genre := &models.Genre{}
	updated := 0

	err := database.RunInTx(ctx, svc.db, svc.maxRetries, func(ctx context.Context, tx bun.Tx) error {
		updated = 0
		err := tx.
			NewSelect().
			Model(genre).
			Where("g.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Genre")
			}
			return errors.WithStack(err)
		}

		oldName := genre.Name
		if oldName == name {
			return nil
		}

		taken, err := tx.
			NewSelect().
			Model((*models.Genre)(nil)).
			Where("LOWER(g.name) = LOWER(?)", name).
			Where("g.id != ?", id).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if taken {
			return errcodes.AlreadyExists("Genre", name)
		}

		now := time.Now()
		genre.Name = name
		genre.UpdatedAt = now
		_, err = tx.
			NewUpdate().
			Model(genre).
			Column("name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.AlreadyExists("Genre", name)
			}
			return errors.WithStack(err)
		}

		res, err := tx.
			NewUpdate().
			Model((*models.Book)(nil)).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("id IN (SELECT og.book_id FROM book_genres AS og WHERE LOWER(og.name) = LOWER(?))", oldName).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		updated = int(affected)

		// Books may spell the genre in any case since they're linked to it
		// case-insensitively.
		_, err = tx.
			NewUpdate().
			Model((*models.BookGenre)(nil)).
			Set("name = ?", name).
			Where("LOWER(name) = LOWER(?)", oldName).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		// A book that now lists the new name twice keeps the first entry.
		var duplicates []string
		err = tx.
			NewSelect().
			Model((*models.BookGenre)(nil)).
			Column("bg.id").
			Where("bg.name = ?", name).
			Where("EXISTS (SELECT 1 FROM book_genres AS dg WHERE dg.book_id = bg.book_id AND dg.name = ? AND dg.sort_order < bg.sort_order)", name).
			Scan(ctx, &duplicates)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(duplicates) == 0 {
			return nil
		}
		_, err = tx.
			NewDelete().
			Model((*models.BookGenre)(nil)).
			Where("id IN (?)", bun.In(duplicates)).
			Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	svc.cache.Invalidate(ctx, taxcache.GenresKey)

	genre, err = svc.RetrieveGenre(ctx, RetrieveGenreOptions{ID: &id})
	if err != nil {
		return nil, 0, err
	}
	return genre, updated, nil
}

// DeleteGenre removes the genre from the list. Books that use it keep the
// name.
func (svc *Service) DeleteGenre(ctx context.Context, id string) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Genre)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		return errcodes.NotFound("Genre")
	}

	svc.cache.Invalidate(ctx, taxcache.GenresKey)
	return nil
}

const bookCountExpr = "(SELECT COUNT(DISTINCT cg.book_id) FROM book_genres AS cg WHERE LOWER(cg.name) = LOWER(g.name)) AS book_count"
