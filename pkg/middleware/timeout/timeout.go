// Package timeout applies a deadline to the request context so store
// calls inherit it. Handlers that overrun answer 504 unless a response
// already went out.
package timeout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// Config controls request deadlines.
type Config struct {
	// Enabled turns the middleware into a pass-through when false.
	Enabled bool

	// Default is the deadline applied to every request.
	Default time.Duration

	// ExcludedPathPrefixes lists path prefixes that never get a deadline,
	// for example streaming or long-poll endpoints.
	ExcludedPathPrefixes []string
}

// DefaultConfig keeps the middleware disabled with a 15s deadline ready.
func DefaultConfig() Config {
	return Config{
		Default: 15 * time.Second,
	}
}

// Middleware returns deadline middleware for cfg.
func Middleware(cfg Config) router.MiddlewareFunc {
	if cfg.Default <= 0 {
		cfg.Default = DefaultConfig().Default
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !cfg.Enabled || excluded(cfg.ExcludedPathPrefixes, c.Request().URL.Path) {
				return next(c)
			}

			reqCtx, cancel := context.WithTimeout(c.Request().Context(), cfg.Default)
			defer cancel()

			c.SetRequest(c.Request().WithContext(reqCtx))
			err := next(c)
			if !deadlineExceeded(err, reqCtx.Err()) {
				return err
			}
			if c.Response().Written() {
				return nil
			}
			return c.JSON(http.StatusGatewayTimeout, map[string]interface{}{
				"message":        "request timed out",
				"success_status": false,
				"error":          "InternalError",
			})
		}
	}
}

func excluded(prefixes []string, path string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func deadlineExceeded(err error, reqErr error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(reqErr, context.DeadlineExceeded)
}
