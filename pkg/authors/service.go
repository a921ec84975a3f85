package authors

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

type RetrieveAuthorOptions struct {
	ID   *string
	Name *string
}

type ListAuthorsOptions struct {
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

func (svc *Service) CreateAuthor(ctx context.Context, author *models.Author) error {
	now := time.Now()
	if author.CreatedAt.IsZero() {
		author.CreatedAt = now
	}
	author.UpdatedAt = author.CreatedAt
	author.Name = strings.TrimSpace(author.Name)

	if author.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		author.ID = id.String()
	}

	_, err := svc.db.
		NewInsert().
		Model(author).
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.AlreadyExists("Author", author.Name)
		}
		return errors.WithStack(err)
	}

	svc.cache.Invalidate(ctx, taxcache.AuthorsKey)
	return nil
}

func (svc *Service) RetrieveAuthor(ctx context.Context, opts RetrieveAuthorOptions) (*models.Author, error) {
	author := &models.Author{}

	q := svc.db.
		NewSelect().
		Model(author).
		ColumnExpr("a.*").
		ColumnExpr(bookCountExpr)

	if opts.ID != nil {
		q = q.Where("a.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		q = q.Where("LOWER(a.name) = LOWER(?)", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Author")
		}
		return nil, errors.WithStack(err)
	}

	return author, nil
}

// FindOrCreateAuthor finds an existing author or creates a new one (case-insensitive match).
func (svc *Service) FindOrCreateAuthor(ctx context.Context, name string) (*models.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("author name cannot be empty")
	}

	author, err := svc.RetrieveAuthor(ctx, RetrieveAuthorOptions{Name: &name})
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, errcodes.NotFound("Author")) {
		return nil, err
	}

	author = &models.Author{Name: name}
	err = svc.CreateAuthor(ctx, author)
	if err != nil {
		// Lost a race with another writer.
		if errors.Is(err, errcodes.AlreadyExists("Author", name)) {
			return svc.RetrieveAuthor(ctx, RetrieveAuthorOptions{Name: &name})
		}
		return nil, err
	}
	return author, nil
}

func (svc *Service) ListAuthors(ctx context.Context, opts ListAuthorsOptions) ([]*models.Author, error) {
	a, _, err := svc.listAuthorsWithTotal(ctx, opts)
	return a, errors.WithStack(err)
}

func (svc *Service) ListAuthorsWithTotal(ctx context.Context, opts ListAuthorsOptions) ([]*models.Author, int, error) {
	opts.includeTotal = true
	return svc.listAuthorsWithTotal(ctx, opts)
}

func (svc *Service) listAuthorsWithTotal(ctx context.Context, opts ListAuthorsOptions) ([]*models.Author, int, error) {
	authors := []*models.Author{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&authors).
		ColumnExpr("a.*").
		ColumnExpr(bookCountExpr).
		OrderExpr("LOWER(a.name) ASC")

	if opts.Search != nil && strings.TrimSpace(*opts.Search) != "" {
		q = q.Where(`LOWER(a.name) LIKE ? ESCAPE '\'`, database.ContainsPattern(*opts.Search))
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

	return authors, total, nil
}

// ListAllAuthors returns every author, preferring the cached copy. If the
// database can't be read the built-in defaults are returned instead.
func (svc *Service) ListAllAuthors(ctx context.Context) []*models.Author {
	authors := []*models.Author{}
	if svc.cache.Load(ctx, taxcache.AuthorsKey, &authors) {
		return authors
	}

	authors, err := svc.ListAuthors(ctx, ListAuthorsOptions{})
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to list authors, serving defaults")
		return taxcache.DefaultAuthors()
	}

	svc.cache.Save(ctx, taxcache.AuthorsKey, authors)
	return authors
}

// RenameAuthor renames the author and rewrites it in every book they wrote,
// all in one transaction. It returns the number of books that changed.
func (svc *Service) RenameAuthor(ctx context.Context, id, name string) (*models.Author, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, errcodes.ValidationError("Author name cannot be empty.")
	}

	author := &models.Author{}
	updated := 0

	err := database.RunInTx(ctx, svc.db, svc.maxRetries, func(ctx context.Context, tx bun.Tx) error {
		updated = 0
		err := tx.
			NewSelect().
			Model(author).
			Where("a.id = ?", id).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Author")
			}
			return errors.WithStack(err)
		}

		oldName := author.Name
		if oldName == name {
			return nil
		}

		taken, err := tx.
			NewSelect().
			Model((*models.Author)(nil)).
			Where("LOWER(a.name) = LOWER(?)", name).
			Where("a.id != ?", id).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if taken {
			return errcodes.AlreadyExists("Author", name)
		}

		now := time.Now()
		author.Name = name
		author.UpdatedAt = now
		_, err = tx.
			NewUpdate().
			Model(author).
			Column("name", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.AlreadyExists("Author", name)
			}
			return errors.WithStack(err)
		}

		res, err := tx.
			NewUpdate().
			Model((*models.Book)(nil)).
			Set("author = ?", name).
			Set("version = version + 1").
			Set("updated_at = ?", now).
			Where("LOWER(author) = LOWER(?)", oldName).
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

	svc.cache.Invalidate(ctx, taxcache.AuthorsKey)

	author, err = svc.RetrieveAuthor(ctx, RetrieveAuthorOptions{ID: &id})
	if err != nil {
		return nil, 0, err
	}
	return author, updated, nil
}

// DeleteAuthor removes the author from the list. Books that use it keep the
// name.
func (svc *Service) DeleteAuthor(ctx context.Context, id string) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Author)(nil)).
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
		return errcodes.NotFound("Author")
	}

	svc.cache.Invalidate(ctx, taxcache.AuthorsKey)
	return nil
}

const bookCountExpr = "(SELECT COUNT(*) FROM books AS cb WHERE LOWER(cb.author) = LOWER(a.name)) AS book_count"
