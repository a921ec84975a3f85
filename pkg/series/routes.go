package series

import (
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers series routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cache *taxcache.Cache, maxRetries int) {
	h := &handler{
		seriesService: NewService(db, cache, maxRetries),
	}

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}
