// Package middleware holds the context keys shared by the HTTP middleware
// chain. The middleware themselves live in subpackages.
package middleware

// ContextKey is a typed key for request-scoped values.
type ContextKey string

// RequestIDKey carries the request correlation id.
const RequestIDKey ContextKey = "request_id"
