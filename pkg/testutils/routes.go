// Package testutils provides test-only API endpoints.
// These routes are only registered when ENVIRONMENT=test.
package testutils

import (
	"github.com/chaskitbooks/chaskit/pkg/books"
	"github.com/chaskitbooks/chaskit/pkg/taxcache"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers test-only routes.
// These endpoints should ONLY be registered in test environments.
func RegisterRoutes(e *echo.Echo, db *bun.DB, cache *taxcache.Cache, maxRetries int) {
	h := &handler{
		db:          db,
		cache:       cache,
		bookService: books.NewService(db, maxRetries),
	}

	test := e.Group("/test")
	test.POST("/books", h.seedBooks)
	test.DELETE("/data", h.reset)
}
