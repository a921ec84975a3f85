package ratings

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct{}

func (h *handler) guide(c echo.Context) error {
	resp := struct {
		Categories []CategoryGuide `json:"categories"`
	}{Guide()}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}
