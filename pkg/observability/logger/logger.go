// Package logger provides the structured logging contract used across the
// framework, with a zap-backed implementation and an optional async wrapper.
package logger

import (
	"context"
)

// Logger is the structured logging interface shared by all packages.
// Log methods accept a message followed by alternating key-value pairs.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)

	// With returns a child logger whose entries always carry the given
	// key-value pairs.
	With(args ...any) Logger

	// WithContext returns a child logger enriched with request-scoped
	// fields found in ctx, such as the request ID.
	WithContext(ctx context.Context) Logger
}

type contextKey int

const requestIDContextKey contextKey = iota

// ContextWithRequestID stores the request ID in ctx so WithContext and
// transports can correlate entries belonging to the same request.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(requestIDContextKey).(string); ok {
		return requestID
	}
	return ""
}

type nopLogger struct{}

// NewNop returns a logger that discards everything. Intended for tests and
// for components constructed before logging is configured.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any)                 {}
func (nopLogger) Info(string, ...any)                  {}
func (nopLogger) Warn(string, ...any)                  {}
func (nopLogger) Error(string, ...any)                 {}
func (n nopLogger) With(...any) Logger                 { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
