// Package recovery turns handler panics into logged 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/crudkit/crudkit/pkg/middleware/requestid"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// Recovery returns middleware that recovers panics, logs the stack with
// the request id, and answers 500 in the standard response envelope when
// nothing has been written yet.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			defer func() {
				if r := recover(); r != nil {
					requestID := requestid.GetRequestID(c.Request().Context())

					log.Error("panic recovered",
						"request_id", requestID,
						"panic", r,
						"stack", string(debug.Stack()),
					)

					if !c.Response().Written() {
						body := map[string]interface{}{
							"message":        "an unexpected error occurred",
							"success_status": false,
							"error":          "InternalError",
							"request_id":     requestID,
						}
						if err := c.JSON(http.StatusInternalServerError, body); err != nil {
							log.Error("failed to send panic response",
								"request_id", requestID,
								"error", err,
							)
						}
					}
				}
			}()

			return next(c)
		}
	}
}
