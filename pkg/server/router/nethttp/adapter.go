// Package nethttp implements the router contract on the standard library
// alone. It is the default engine: an ordered route table, a segment
// matcher for :name parameters, no third-party dependency.
package nethttp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// Router dispatches requests against an ordered route table. Construct
// with NewRouter; the zero value has no table to register into.
type Router struct {
	core       *core
	prefix     string
	middleware []router.MiddlewareFunc
}

// core is the route table shared by a root router and all groups
// derived from it.
type core struct {
	mu          sync.RWMutex
	routes      []route
	optionsSeen map[string]struct{}
}

// route holds a handler with its middleware chain already composed at
// registration time. Use calls after registration do not reach it.
type route struct {
	method  string
	pattern string
	handler router.HandlerFunc
}

// NewRouter returns an empty router backed by the standard library.
func NewRouter() *Router {
	return &Router{
		core: &core{
			optionsSeen: map[string]struct{}{},
		},
	}
}

// GET registers a GET route.
func (r *Router) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodGet, path, handler, middleware)
}

// POST registers a POST route.
func (r *Router) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPost, path, handler, middleware)
}

// PUT registers a PUT route.
func (r *Router) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPut, path, handler, middleware)
}

// DELETE registers a DELETE route.
func (r *Router) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodDelete, path, handler, middleware)
}

// PATCH registers a PATCH route.
func (r *Router) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.addRoute(http.MethodPatch, path, handler, middleware)
}

// Group returns a view onto the same route table with the prefix and
// middleware stacked on top of the receiver's.
func (r *Router) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.core.mu.RLock()
	stacked := make([]router.MiddlewareFunc, 0, len(r.middleware)+len(middleware))
	stacked = append(stacked, r.middleware...)
	r.core.mu.RUnlock()
	stacked = append(stacked, middleware...)

	return &Router{
		core:       r.core,
		prefix:     r.prefix + prefix,
		middleware: stacked,
	}
}

// Use appends middleware for routes registered after this call. Routes
// already in the table keep the chain they were registered with.
func (r *Router) Use(middleware ...router.MiddlewareFunc) {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// ServeHTTP implements http.Handler. The first route matching method and
// path wins; unmatched requests get the standard 404.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.core.mu.RLock()
	routes := r.core.routes
	r.core.mu.RUnlock()

	for i := range routes {
		rt := &routes[i]
		if rt.method != req.Method {
			continue
		}
		params, ok := matchPattern(rt.pattern, req.URL.Path)
		if !ok {
			continue
		}

		ctx := newContext(w, req, params)
		if err := rt.handler(ctx); err != nil && !ctx.Response().Written() {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	http.NotFound(w, req)
}

func (r *Router) addRoute(method, path string, handler router.HandlerFunc, middleware []router.MiddlewareFunc) {
	fullPath := r.prefix + path

	r.core.mu.Lock()
	defer r.core.mu.Unlock()

	base := make([]router.MiddlewareFunc, len(r.middleware))
	copy(base, r.middleware)

	composed := compose(handler, middleware)
	composed = compose(composed, base)

	r.core.routes = append(r.core.routes, route{
		method:  method,
		pattern: fullPath,
		handler: composed,
	})

	r.registerOptionsLocked(fullPath, base)
}

// registerOptionsLocked adds a 204 OPTIONS route once per path so
// preflight requests succeed without the caller declaring them. Only the
// base middleware runs, keeping headers set there (CORS and friends) on
// the preflight response.
func (r *Router) registerOptionsLocked(path string, base []router.MiddlewareFunc) {
	if _, ok := r.core.optionsSeen[path]; ok {
		return
	}
	r.core.optionsSeen[path] = struct{}{}

	handler := compose(func(c router.Context) error {
		if !c.Response().Written() {
			c.Response().WriteHeader(http.StatusNoContent)
		}
		return nil
	}, base)

	r.core.routes = append(r.core.routes, route{
		method:  http.MethodOptions,
		pattern: path,
		handler: handler,
	})
}

// compose wraps handler in middleware so the first entry runs outermost.
func compose(handler router.HandlerFunc, middleware []router.MiddlewareFunc) router.HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// matchPattern compares a registered pattern against a request path
// segment by segment. Segments starting with ':' capture the path value.
func matchPattern(pattern, path string) (map[string]string, bool) {
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	if len(patternParts) != len(pathParts) {
		return nil, false
	}

	var params map[string]string
	for i, part := range patternParts {
		if strings.HasPrefix(part, ":") {
			if params == nil {
				params = map[string]string{}
			}
			params[part[1:]] = pathParts[i]
			continue
		}
		if part != pathParts[i] {
			return nil, false
		}
	}
	return params, true
}

// requestContext carries one request through the chain.
type requestContext struct {
	request  *http.Request
	response router.ResponseWriter
	params   map[string]string

	mu    sync.RWMutex
	store map[string]interface{}
}

func newContext(w http.ResponseWriter, r *http.Request, params map[string]string) *requestContext {
	return &requestContext{
		request:  r,
		response: &responseWriter{ResponseWriter: w},
		params:   params,
	}
}

func (c *requestContext) Request() *http.Request {
	return c.request
}

func (c *requestContext) SetRequest(r *http.Request) {
	c.request = r
}

func (c *requestContext) Response() router.ResponseWriter {
	return c.response
}

func (c *requestContext) SetResponse(w router.ResponseWriter) {
	c.response = w
}

func (c *requestContext) Param(name string) string {
	return c.params[name]
}

func (c *requestContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *requestContext) Bind(v interface{}) error {
	if c.request.Body == nil {
		return fmt.Errorf("request body is empty")
	}
	defer c.request.Body.Close()

	contentType := c.request.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("unsupported content type: %s", contentType)
	}
	return json.NewDecoder(c.request.Body).Decode(v)
}

func (c *requestContext) JSON(code int, v interface{}) error {
	c.response.Header().Set("Content-Type", "application/json")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain")
	c.response.WriteHeader(code)
	_, err := io.WriteString(c.response, s)
	return err
}

func (c *requestContext) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store[key]
}

func (c *requestContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]interface{}{}
	}
	c.store[key] = value
}

// responseWriter tracks write state so the router can tell whether a
// handler error still needs a response. The first WriteHeader wins.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *responseWriter) Written() bool {
	return w.written
}

// Hijack exposes the underlying connection for protocol upgrades.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush forwards to the underlying writer when it supports streaming.
func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
