// Package requestid assigns every request a correlation id. Downstream
// middleware and handlers read it from the request context; clients get
// it back in the response header.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/crudkit/crudkit/pkg/middleware"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// RequestIDHeader is the header carrying the correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that adopts the caller's X-Request-ID or
// generates a UUID when the header is absent. The id is stored in the
// router context, the request context and the response header.
func RequestID() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			requestID := c.Request().Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			c.Set(string(middleware.RequestIDKey), requestID)
			c.Response().Header().Set(RequestIDHeader, requestID)

			ctx := context.WithValue(c.Request().Context(), middleware.RequestIDKey, requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetRequestID returns the correlation id stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
