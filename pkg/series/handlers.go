package series

import (
	"net/http"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	seriesService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	series, err := h.seriesService.RetrieveSeries(ctx, RetrieveSeriesOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, series))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListSeriesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// The unfiltered list is served from the cache.
	if params.Search == nil && params.Limit == 0 && params.Offset == 0 {
		series := h.seriesService.ListAllSeries(ctx)
		return errors.WithStack(c.JSON(http.StatusOK, listResponse(series, len(series))))
	}

	opts := ListSeriesOptions{
		Offset: &params.Offset,
		Search: params.Search,
	}
	if params.Limit > 0 {
		opts.Limit = &params.Limit
	}

	series, total, err := h.seriesService.ListSeriesWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse(series, total)))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateSeriesPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	series := &models.Series{
		Name: params.Name,
	}
	if err := h.seriesService.CreateSeries(ctx, series); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, series))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateSeriesPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	series, updated, err := h.seriesService.RenameSeries(ctx, id, params.Name)
	if err != nil {
		return errors.WithStack(err)
	}

	logger.FromContext(ctx).Info("renamed series", logger.Data{"series_id": id, "books_updated": updated})

	resp := struct {
		*models.Series
		BooksUpdated int `json:"books_updated"`
	}{series, updated}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.seriesService.DeleteSeries(ctx, c.Param("id")); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func listResponse(series []*models.Series, total int) any {
	return struct {
		Series []*models.Series `json:"series"`
		Total  int             `json:"total"`
	}{series, total}
}
