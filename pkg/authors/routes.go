package authors

import (
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers author routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cache *taxcache.Cache, maxRetries int) {
	h := &handler{
		authorService: NewService(db, cache, maxRetries),
	}

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}
