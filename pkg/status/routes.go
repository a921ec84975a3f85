package status

import (
	"github.com/chaskitbooks/chaskit/pkg/covers"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, coverService *covers.Service, cache *taxcache.Cache) {
	h := &handler{statusService: NewService(db, coverService, cache)}

	g.GET("", h.retrieve)
}
