package genres

import (
	"net/http"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	genreService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	genre, err := h.genreService.RetrieveGenre(ctx, RetrieveGenreOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, genre))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListGenresQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// The unfiltered list is served from the cache.
	if params.Search == nil && params.Limit == 0 && params.Offset == 0 {
		genres := h.genreService.ListAllGenres(ctx)
		return errors.WithStack(c.JSON(http.StatusOK, listResponse(genres, len(genres))))
	}

	opts := ListGenresOptions{
		Offset: &params.Offset,
		Search: params.Search,
	}
	if params.Limit > 0 {
		opts.Limit = &params.Limit
	}

	genres, total, err := h.genreService.ListGenresWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse(genres, total)))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateGenrePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	genre := &models.Genre{
		Name:     params.Name,
		IsCustom: true,
	}
	if err := h.genreService.CreateGenre(ctx, genre); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, genre))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateGenrePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	genre, updated, err := h.genreService.RenameGenre(ctx, id, params.Name)
	if err != nil {
		return errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("renamed genre", logger.Data{"genre_id": id, "books_updated": updated})

	resp := struct {
		*models.Genre
		BooksUpdated int `json:"books_updated"`
	}{genre, updated}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.genreService.DeleteGenre(ctx, c.Param("id")); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func listResponse(genres []*models.Genre, total int) any {
	return struct {
		Genres []*models.Genre `json:"genres"`
		Total  int             `json:"total"`
	}{genres, total}
}
