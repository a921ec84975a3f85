package status

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	statusService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	status := h.statusService.Check(ctx)

	code := http.StatusOK
	if !status.Connected {
		code = http.StatusServiceUnavailable
	}
	return errors.WithStack(c.JSON(code, status))
}
