package testutils

import (
	"context"
	"net/http"

	"github.com/chaskitbooks/chaskit/pkg/books"
	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type handler struct {
	db          *bun.DB
	cache       *taxcache.Cache
	bookService *books.Service
}

// seedBooksRequest is the request body for inserting fixture books. IDs and
// created_at are kept when given so fixtures can rely on them.
type seedBooksRequest struct {
	Books []*models.Book `json:"books" validate:"required,min=1"`
}

type seedBooksResponse struct {
	Books []*models.Book `json:"books"`
}

// seedBooks inserts books directly, skipping cover handling and taxonomy
// registration.
// POST /test/books.
func (h *handler) seedBooks(c echo.Context) error {
	ctx := c.Request().Context()

	var req seedBooksRequest
	if err := c.Bind(&req); err != nil {
		return errors.WithStack(err)
	}

	for _, book := range req.Books {
		if err := h.bookService.CreateBook(ctx, book); err != nil {
			return errors.Wrapf(err, "failed to seed book %q", book.Title)
		}
	}
	h.cache.Invalidate(ctx, taxcache.GenresKey, taxcache.SeriesKey, taxcache.AuthorsKey)

	return c.JSON(http.StatusCreated, seedBooksResponse{Books: req.Books})
}

// resetResponse is the response body for wiping test data.
type resetResponse struct {
	DeletedBooks int `json:"deleted_books"`
}

// reset deletes every book along with the custom genres, series and authors.
// The default genres and authors are left in place.
// DELETE /test/data.
func (h *handler) reset(c echo.Context) error {
	ctx := c.Request().Context()

	deleted := 0
	err := h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.BookGenre)(nil)).Where("1=1").Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to delete book genres")
		}

		result, err := tx.NewDelete().Model((*models.Book)(nil)).Where("1=1").Exec(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to delete books")
		}
		n, _ := result.RowsAffected()
		deleted = int(n)

		if _, err := tx.NewDelete().Model((*models.Genre)(nil)).Where("is_custom = ?", true).Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to delete custom genres")
		}
		if _, err := tx.NewDelete().Model((*models.Series)(nil)).Where("1=1").Exec(ctx); err != nil {
			return errors.Wrap(err, "failed to delete series")
		}
		_, err = tx.NewDelete().
			Model((*models.Author)(nil)).
			Where("name NOT IN (?)", bun.In(taxcache.DefaultAuthorNames)).
			Exec(ctx)
		return errors.Wrap(err, "failed to delete authors")
	})
	if err != nil {
		return err
	}
	h.cache.Invalidate(ctx, taxcache.GenresKey, taxcache.SeriesKey, taxcache.AuthorsKey)

	return c.JSON(http.StatusOK, resetResponse{DeletedBooks: deleted})
}

