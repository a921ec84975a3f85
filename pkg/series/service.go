package series

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

type RetrieveSeriesOptions struct {
	ID   *string
	Name *string
}

type ListSeriesOptions struct {
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

func (svc *Service) CreateSeries(ctx context.Context, series *models.Series) error {
	now := time.Now()
	if series.CreatedAt.IsZero() {
		series.CreatedAt = now
	}
	series.UpdatedAt = series.CreatedAt
	series.Name = strings.TrimSpace(series.Name)

	if series.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		series.ID = id.String()
	}

	_, err := svc.db.
		NewInsert().
		Model(series).
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.AlreadyExists("Series", series.Name)
		}
		return errors.WithStack(err)
	}

	svc.cache.Invalidate(ctx, taxcache.SeriesKey)
	return nil
}

func (svc *Service) RetrieveSeries(ctx context.Context, opts RetrieveSeriesOptions) (*models.Series, error) {
	series := &models.Series{}

	q := svc.db.
		NewSelect().
		Model(series).
		ColumnExpr("s.*").
		ColumnExpr(bookCountExpr)

	if opts.ID != nil {
		q = q.Where("s.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("LOWER(s.name) = LOWER(?)", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Series")
		}
		return nil, errors.WithStack(err)
	}

	return series, nil
}

// FindOrCreateSeries finds an existing series or creates a new one (case-insensitive match).
func (svc *Service) FindOrCreateSeries(ctx context.Context, name string) (*models.Series, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("series name cannot be empty")
	}

	series, err := svc.RetrieveSeries(ctx, RetrieveSeriesOptions{Name: &name})
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, errcodes.NotFound("Series")) {
		return nil, err
	}

	series = &models.Series{Name: name}
	err = svc.CreateSeries(ctx, series)
	if err != nil {
		// Lost a race with another writer.
		if errors.Is(err, errcodes.AlreadyExists("Series", name)) {
			return svc.RetrieveSeries(ctx, RetrieveSeriesOptions{Name: &name})
		}
		return nil, err
	}
	return series, nil
}

func (svc *Service) ListSeries(ctx context.Context, opts ListSeriesOptions) ([]*models.Series, error) {
	s, _, err := svc.listSeriesWithTotal(ctx, opts)
	return s, errors.WithStack(err)
}

func (svc *Service) ListSeriesWithTotal(ctx context.Context, opts ListSeriesOptions) ([]*models.Series, int, error) {
	opts.includeTotal = true
	return svc.listSeriesWithTotal(ctx, opts)
}

func (svc *Service) listSeriesWithTotal(ctx context.Context, opts ListSeriesOptions) ([]*models.Series, int, error) {
	series := []*models.Series{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&series).
		ColumnExpr("s.*").
		ColumnExpr(bookCountExpr).
		OrderExpr("LOWER(s.name) ASC")

	if opts.Search != nil && strings.TrimSpace(*opts.Search) != "" {
		q = q.Where(`LOWER(s.name) LIKE ? ESCAPE '\'`, database.ContainsPattern(*opts.Search))
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

	return series, total, nil
}

// ListAllSeries returns every series, preferring the cached copy. If the
// database can't be read the built-in defaults are returned instead.
func (svc *Service) ListAllSeries(ctx context.Context) []*models.Series {
	series := []*models.Series{}
	if svc.cache.Load(ctx, taxcache.SeriesKey, &series) {
		return series
	}

	series, err := svc.ListSeries(ctx, ListSeriesOptions{})
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to list series, serving defaults")
		return taxcache.DefaultSeries()
	}

	svc.cache.Save(ctx, taxcache.SeriesKey, series)
	return series
}

// RenameSeries renames the series and rewrites it in every book that belongs
// to it,
// all in one transaction. It returns the number of books that changed.
func (svc *Service) RenameSeries(ctx context.Context, id, name string) (*models.Series, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, errcodes.ValidationError("Series name cannot be empty.")
	}

	series := &models.Series{}
	updated := 0

	err := database.RunInTx(ctx, svc.db, svc.maxRetries, func(ctx context.Context, tx bun.Tx) error {
		updated = 0
		err := tx.
			NewSelect().
			Model(series).
			Where("s.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Series")
			}
			return errors.WithStack(err)
		}

		oldName := series.Name
		if oldName == name {
			return nil
		}

		taken, err := tx.
			NewSelect().
			Model((*models.Series)(nil)).
			Where("LOWER(s.name) = LOWER(?)", name).
			Where("s.id != ?", id).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if taken {
			return errcodes.AlreadyExists("Series", name)
		}

		now := time.Now()
		series.Name = name
		series.UpdatedAt = now
		_, err = tx.
			NewUpdate().
			Model(series).
			Column("name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.AlreadyExists("Series", name)
			}
			return errors.WithStack(err)
		}

		res, err := tx.
			NewUpdate().
			Model((*models.Book)(nil)).
			Set("series_name = ?", name).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("LOWER(series_name) = LOWER(?)", oldName).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		affected, err := res.RowsAffected()
		updated = int(affected)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	svc.cache.Invalidate(ctx, taxcache.SeriesKey)

	series, err = svc.RetrieveSeries(ctx, RetrieveSeriesOptions{ID: &id})
	if err != nil {
		return nil, 0, err
	}
	return series, updated, nil
}

// DeleteSeries removes the series from the list. Books that use it keep the
// name.
func (svc *Service) DeleteSeries(ctx context.Context, id string) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Series)(nil)).
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
		return errcodes.NotFound("Series")
	}

	svc.cache.Invalidate(ctx, taxcache.SeriesKey)
	return nil
}

const bookCountExpr = "(SELECT COUNT(*) FROM books AS cb WHERE LOWER(cb.series_name) = LOWER(s.name)) AS book_count"
