// Package logging emits one structured log line per HTTP request, with an
// optional start line for long-running requests. Paths under an excluded
// prefix (health probes, metrics scrapes) are skipped entirely.
package logging

import (
	"strings"
	"time"

	"github.com/crudkit/crudkit/pkg/middleware/requestid"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// Config controls request logging.
type Config struct {
	// Enabled turns the middleware into a pass-through when false.
	Enabled bool

	// LogStart also logs a line when the request begins.
	LogStart bool

	// ExcludedPathPrefixes lists path prefixes that are never logged.
	ExcludedPathPrefixes []string
}

// DefaultConfig enables completion logging only.
func DefaultConfig() Config {
	return Config{Enabled: true}
}

// Logging returns request logging middleware with the default config.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig returns request logging middleware. Each request logs
// method, path, status, duration and the correlation id; failed requests
// log at error level with the handler error attached.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if !cfg.Enabled || excluded(cfg.ExcludedPathPrefixes, req.URL.Path) {
				return next(c)
			}

			start := time.Now()
			requestID := requestid.GetRequestID(req.Context())

			if cfg.LogStart {
				log.Info("request started",
					"request_id", requestID,
					"method", req.Method,
					"path", req.URL.Path,
					"remote_addr", req.RemoteAddr,
				)
			}

			err := next(c)
			duration := time.Since(start)
			status := c.Response().Status()

			fields := []any{
				"request_id", requestID,
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"remote_addr", req.RemoteAddr,
			}

			if err != nil {
				log.Error("request failed", append(fields, "error", err)...)
				return err
			}

			log.Info("request completed", fields...)
			return nil
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
