package authors

import (
	"net/http"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	authorService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	author, err := h.authorService.RetrieveAuthor(ctx, RetrieveAuthorOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, author))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListAuthorsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// The unfiltered list is served from the cache.
	if params.Search == nil && params.Limit == 0 && params.Offset == 0 {
		authors := h.authorService.ListAllAuthors(ctx)
		return errors.WithStack(c.JSON(http.StatusOK, listResponse(authors, len(authors))))
	}

	opts := ListAuthorsOptions{
		Offset: &params.Offset,
		Search: params.Search,
	}
	if params.Limit > 0 {
		opts.Limit = &params.Limit
	}

	authors, total, err := h.authorService.ListAuthorsWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse(authors, total)))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateAuthorPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	author := &models.Author{
		Name: params.Name,
	}
	if err := h.authorService.CreateAuthor(ctx, author); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, author))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateAuthorPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	author, updated, err := h.authorService.RenameAuthor(ctx, id, params.Name)
	if err != nil {
		return errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("renamed author", logger.Data{"author_id": id, "books_updated": updated})

	resp := struct {
		*models.Author
		BooksUpdated int `json:"books_updated"`
	}{author, updated}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.authorService.DeleteAuthor(ctx, c.Param("id")); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func listResponse(authors []*models.Author, total int) any {
	return struct {
		Authors []*models.Author `json:"authors"`
		Total  int             `json:"total"`
	}{authors, total}
}
