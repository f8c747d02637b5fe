// Package metrics instruments HTTP requests with the Prometheus
// collectors from observability/metrics.
package metrics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crudkit/crudkit/pkg/observability/metrics"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// Metrics returns middleware that records the request duration histogram,
// the request counter and the in-flight gauge for every request.
func Metrics() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			metrics.IncrementInFlight()
			defer metrics.DecrementInFlight()

			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			metrics.RecordHTTPMetrics(
				c.Request().Method,
				pathLabel(c.Request().URL.Path),
				c.Response().Status(),
				duration,
			)

			return err
		}
	}
}

// pathLabel collapses identifier-looking segments to ":id" so the path
// label stays bounded. Document routes carry the id in the path
// (/users/68a8f0f2e13e7a5d9c0b1a2f), and labelling by the raw path would
// mint one Prometheus series per document.
func pathLabel(path string) string {
	segments := strings.Split(path, "/")
	changed := false
	for i, segment := range segments {
		if isIdentifierSegment(segment) {
			segments[i] = ":id"
			changed = true
		}
	}
	if !changed {
		return path
	}
	return strings.Join(segments, "/")
}

// isIdentifierSegment matches the id shapes documents use: ObjectID hex,
// UUID, or an all-digit sequence.
func isIdentifierSegment(segment string) bool {
	if segment == "" {
		return false
	}
	if len(segment) == 24 && isHex(segment) {
		return true
	}
	if len(segment) == 36 {
		if _, err := uuid.Parse(segment); err == nil {
			return true
		}
	}
	return isDigits(segment)
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && (r < 'A' || r > 'F') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
