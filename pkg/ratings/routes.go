package ratings

import "github.com/labstack/echo/v4"

func RegisterRoutesWithGroup(g *echo.Group) {
	h := &handler{}

	g.GET("/guide", h.guide)
}
