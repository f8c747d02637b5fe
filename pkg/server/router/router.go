// Package router defines the transport-neutral routing contract the REST
// layer is written against. Handlers and middleware see only these
// interfaces; the concrete engine (net/http, gin, gorilla/mux) is chosen
// by configuration at startup.
package router

import "net/http"

// Router registers handlers by method and path and serves HTTP. Paths use
// :name segments for parameters, for example /users/:id.
type Router interface {
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Group returns a sub-router sharing this router's engine, with the
	// prefix prepended and the middleware applied to every route it mounts.
	Group(prefix string, middleware ...MiddlewareFunc) Router

	// Use appends middleware applied to routes registered after the call.
	Use(middleware ...MiddlewareFunc)

	// ServeHTTP implements http.Handler.
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// HandlerFunc handles one request. A non-nil error with nothing written
// yet becomes a 500; once a response is written the error is dropped.
type HandlerFunc func(Context) error

// MiddlewareFunc wraps a handler. Chains run outermost-first in
// registration order: global, then group, then route middleware.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context carries one request/response pair through the chain in an
// engine-agnostic way.
type Context interface {
	// Request returns the underlying HTTP request.
	Request() *http.Request

	// SetRequest replaces the request, typically after context enrichment.
	SetRequest(r *http.Request)

	// Response returns the response writer.
	Response() ResponseWriter

	// SetResponse replaces the response writer, typically to wrap it.
	SetResponse(w ResponseWriter)

	// Param returns the value of a :name path segment, or "".
	Param(name string) string

	// Query returns the first value of a query parameter, or "".
	Query(name string) string

	// Bind decodes a JSON request body into v.
	Bind(v interface{}) error

	// JSON writes v as a JSON response with the given status.
	JSON(code int, v interface{}) error

	// String writes a plain text response with the given status.
	String(code int, s string) error

	// Get returns a request-scoped value stored with Set, or nil.
	Get(key string) interface{}

	// Set stores a request-scoped value.
	Set(key string, value interface{})
}

// ResponseWriter extends http.ResponseWriter with write-state tracking so
// error handling and middleware can tell whether a response went out.
type ResponseWriter interface {
	http.ResponseWriter

	// Status returns the status code written, or 200 before any write.
	Status() int

	// Written reports whether headers have been sent.
	Written() bool
}
