package books

import (
	"github.com/chaskitbooks/chaskit/pkg/authors"
	"github.com/chaskitbooks/chaskit/pkg/config"
	"github.com/chaskitbooks/chaskit/pkg/covers"
	"github.com/chaskitbooks/chaskit/pkg/genres"
	"github.com/chaskitbooks/chaskit/pkg/series"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, cfg *config.Config, cache *taxcache.Cache, coverService *covers.Service) {
	h := &handler{
		config:        cfg,
		cache:         cache,
		bookService:   NewService(db, cfg.DatabaseMaxRetries),
		coverService:  coverService,
		genreService:  genres.NewService(db, cache, cfg.DatabaseMaxRetries),
		seriesService: series.NewService(db, cache, cfg.DatabaseMaxRetries),
		authorService: authors.NewService(db, cache, cfg.DatabaseMaxRetries),
	}

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/stats", h.stats)
	g.GET("/years", h.years)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.PUT("/:id/cover", h.uploadCover)
	g.DELETE("/:id/cover", h.deleteCover)
}
