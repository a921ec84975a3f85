package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/chaskitbooks/chaskit/pkg/authors"
	"github.com/chaskitbooks/chaskit/pkg/binder"
	"github.com/chaskitbooks/chaskit/pkg/books"
	"github.com/chaskitbooks/chaskit/pkg/config"
	"github.com/chaskitbooks/chaskit/pkg/covers"
	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/chaskitbooks/chaskit/pkg/genres"
	"github.com/chaskitbooks/chaskit/pkg/ratings"
	"github.com/chaskitbooks/chaskit/pkg/series"
	"github.com/chaskitbooks/chaskit/pkg/status"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/chaskitbooks/chaskit/pkg/testutils"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

// Dependencies are the long-lived clients shared by every request handler.
type Dependencies struct {
	DB     *bun.DB
	Covers *covers.Service
	Cache  *taxcache.Cache
}

func New(cfg *config.Config, deps Dependencies) (*http.Server, error) {
	e, err := newEcho(cfg, deps)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, deps Dependencies) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, apiKeyHeader},
	}))
	if cfg.APIKey != "" {
		e.Use(requireAPIKey(cfg.APIKey))
	}

	health.RegisterRoutes(e)

	if deps.Cache == nil {
		deps.Cache = taxcache.Disabled()
	}
	if deps.Covers == nil {
		deps.Covers = covers.NewService(nil)
	}
	maxRetries := cfg.DatabaseMaxRetries

	books.RegisterRoutesWithGroup(e.Group("/books"), deps.DB, cfg, deps.Cache, deps.Covers)
	genres.RegisterRoutesWithGroup(e.Group("/genres"), deps.DB, deps.Cache, maxRetries)
	series.RegisterRoutesWithGroup(e.Group("/series"), deps.DB, deps.Cache, maxRetries)
	authors.RegisterRoutesWithGroup(e.Group("/authors"), deps.DB, deps.Cache, maxRetries)
	ratings.RegisterRoutesWithGroup(e.Group("/ratings"))
	config.RegisterRoutesWithGroup(e.Group("/config"), cfg)
	status.RegisterRoutesWithGroup(e.Group("/status"), deps.DB, deps.Covers, deps.Cache)

	if cfg.Environment == "test" {
		testutils.RegisterRoutes(e, deps.DB, deps.Cache, maxRetries)
	}

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
