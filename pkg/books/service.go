package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/browse"
	"github.com/chaskitbooks/chaskit/pkg/database"
	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID *string
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int
	Query  browse.Query

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns      []string
	UpdateGenres bool
}

// Stats summarises the whole collection.
type Stats struct {
	TotalBooks    int     `json:"total_books"`
	BooksThisYear int     `json:"books_this_year"`
	AverageRating float64 `json:"average_rating"`
}

type Service struct {
	db         *bun.DB
	maxRetries int
}

func NewService(db *bun.DB, maxRetries int) *Service {
	return &Service{db, maxRetries}
}

func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = book.CreatedAt
	book.Version = 1
	book.Recalculate()

	if book.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		book.ID = id.String()
	}

	err := database.RunInTx(ctx, svc.db, svc.maxRetries, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewInsert().
			Model(book).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		return insertGenreLinks(ctx, tx, book)
	})
	if err != nil {
		return errors.WithStack(err)
	}

	book.GenreLinks = nil
	book.Hydrate()
	return nil
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book).
		Relation("GenreLinks", orderGenreLinks)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	book.Hydrate()
	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&books).
		Relation("GenreLinks", orderGenreLinks)

	q = applyQuery(q, opts.Query)

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

	for _, book := range books {
		book.Hydrate()
	}

	return books, total, nil
}

// UpdateBook writes the given columns if the stored version still matches
// book.Version. On success the version is bumped in place.
func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 && !opts.UpdateGenres {
		return nil
	}

	expected := book.Version
	updatedAt := book.UpdatedAt

	err := database.RunInTx(ctx, svc.db, svc.maxRetries, func(ctx context.Context, tx bun.Tx) error {
		book.UpdatedAt = time.Now()
		book.Version = expected + 1
		columns := append(opts.Columns, "updated_at", "version")

		res, err := tx.
			NewUpdate().
			Model(book).
			Column(columns...).
			WherePK().
			Where("version = ?", expected).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		if affected == 0 {
			exists, err := tx.
				NewSelect().
				Model((*models.Book)(nil)).
				Where("b.id = ?", book.ID).
				Exists(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			if !exists {
				return errcodes.NotFound("Book")
			}
			return errcodes.VersionConflict("Book")
		}

		if opts.UpdateGenres {
			_, err := tx.
				NewDelete().
				Model((*models.BookGenre)(nil)).
				Where("book_id = ?", book.ID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
			return insertGenreLinks(ctx, tx, book)
		}

		return nil
	})
	if err != nil {
		book.Version = expected
		book.UpdatedAt = updatedAt
		return errors.WithStack(err)
	}

	book.GenreLinks = nil
	book.Hydrate()
	return nil
}

func (svc *Service) DeleteBook(ctx context.Context, id string) error {
	err := database.RunInTx(ctx, svc.db, svc.maxRetries, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.BookGenre)(nil)).
			Where("book_id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		res, err := tx.
			NewDelete().
			Model((*models.Book)(nil)).
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
			return errcodes.NotFound("Book")
		}
		return nil
	})
	return errors.WithStack(err)
}

// RetrieveStats counts the collection. year selects which completion year
// counts as "this year".
func (svc *Service) RetrieveStats(ctx context.Context, year int) (*Stats, error) {
	var row struct {
		Total     int             `bun:"total"`
		ThisYear  int             `bun:"this_year"`
		RatingSum sql.NullFloat64 `bun:"rating_sum"`
		Rated     int             `bun:"rated"`
	}

	err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN b.completion_year = ? THEN 1 ELSE 0 END), 0) AS this_year", year).
		ColumnExpr("SUM(CASE WHEN b.overall_rating > 0 THEN b.overall_rating END) AS rating_sum").
		ColumnExpr("COALESCE(SUM(CASE WHEN b.overall_rating > 0 THEN 1 ELSE 0 END), 0) AS rated").
		Scan(ctx, &row)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	stats := &Stats{TotalBooks: row.Total, BooksThisYear: row.ThisYear}
	if row.Rated > 0 && row.RatingSum.Valid {
		avg := decimal.NewFromFloat(row.RatingSum.Float64).Div(decimal.NewFromInt(int64(row.Rated))).Round(1)
		stats.AverageRating, _ = avg.Float64()
	}
	return stats, nil
}

// ListYears returns the distinct completion years, newest first.
func (svc *Service) ListYears(ctx context.Context) ([]int, error) {
	years := []int{}
	err := svc.db.
		NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("DISTINCT b.completion_year").
		OrderExpr("b.completion_year DESC").
		Scan(ctx, &years)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return years, nil
}

func orderGenreLinks(sq *bun.SelectQuery) *bun.SelectQuery {
	return sq.Order("bg.sort_order ASC")
}

func insertGenreLinks(ctx context.Context, tx bun.Tx, book *models.Book) error {
	if len(book.Genres) == 0 {
		return nil
	}

	links := make([]*models.BookGenre, 0, len(book.Genres))
	for i, name := range book.Genres {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		links = append(links, &models.BookGenre{
			ID:        id.String(),
			BookID:    book.ID,
			SortOrder: i,
			Name:      name,
		})
	}

	_, err := tx.
		NewInsert().
		Model(&links).
		Exec(ctx)
	return errors.WithStack(err)
}
