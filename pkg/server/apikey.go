package server

import (
	"crypto/subtle"
	"strings"

	"github.com/chaskitbooks/chaskit/pkg/errcodes"
	"github.com/labstack/echo/v4"
)

const apiKeyHeader = "apikey"

// requireAPIKey rejects requests that don't carry key, either in the apikey
// header or as a bearer token. Health checks are always let through.
func requireAPIKey(key string) echo.MiddlewareFunc {
	expected := []byte(key)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == "/health" {
				return next(c)
			}

			provided := c.Request().Header.Get(apiKeyHeader)
			if provided == "" {
				auth := c.Request().Header.Get(echo.HeaderAuthorization)
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
					provided = strings.TrimSpace(token)
				}
			}

			if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
				return errcodes.Unauthorized()
			}
			return next(c)
		}
	}
}
