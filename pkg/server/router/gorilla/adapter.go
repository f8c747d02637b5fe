// Package gorilla implements the router contract on gorilla/mux. Paths
// registered with :name segments are rewritten to mux's {name} syntax.
package gorilla

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// Router adapts a gorilla/mux router to the router contract.
type Router struct {
	mux        *mux.Router
	core       *core
	middleware []router.MiddlewareFunc
}

// core is shared by a root router and all groups derived from it.
type core struct {
	mu          sync.RWMutex
	optionsSeen map[string]struct{}
}

// NewRouter returns a router backed by a fresh gorilla/mux router.
func NewRouter() *Router {
	return &Router{
		mux: mux.NewRouter(),
		core: &core{
			optionsSeen: map[string]struct{}{},
		},
	}
}

// GET registers a GET route.
func (r *Router) GET(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, handler, middleware)
}

// POST registers a POST route.
func (r *Router) POST(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, handler, middleware)
}

// PUT registers a PUT route.
func (r *Router) PUT(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPut, path, handler, middleware)
}

// DELETE registers a DELETE route.
func (r *Router) DELETE(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodDelete, path, handler, middleware)
}

// PATCH registers a PATCH route.
func (r *Router) PATCH(path string, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) {
	r.handle(http.MethodPatch, path, handler, middleware)
}

// Group returns a view onto a mux subrouter with the prefix and
// middleware stacked on top of the receiver's.
func (r *Router) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.core.mu.RLock()
	stacked := make([]router.MiddlewareFunc, 0, len(r.middleware)+len(middleware))
	stacked = append(stacked, r.middleware...)
	r.core.mu.RUnlock()
	stacked = append(stacked, middleware...)

	return &Router{
		mux:        r.mux.PathPrefix(prefix).Subrouter(),
		core:       r.core,
		middleware: stacked,
	}
}

// Use appends middleware for routes registered after this call.
func (r *Router) Use(middleware ...router.MiddlewareFunc) {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handle(method, path string, handler router.HandlerFunc, middleware []router.MiddlewareFunc) {
	r.core.mu.RLock()
	base := make([]router.MiddlewareFunc, len(r.middleware))
	copy(base, r.middleware)
	r.core.mu.RUnlock()

	composed := compose(handler, middleware)
	composed = compose(composed, base)

	muxPath := toMuxPath(path)
	r.mux.HandleFunc(muxPath, func(w http.ResponseWriter, req *http.Request) {
		ctx := newContext(w, req)
		if err := composed(ctx); err != nil && !ctx.Response().Written() {
			http.Error(ctx.Response(), err.Error(), http.StatusInternalServerError)
		}
	}).Methods(method)

	r.registerOptions(muxPath, base)
}

// registerOptions adds a 204 OPTIONS route once per mux path, carrying
// only the base middleware, so preflight requests succeed without the
// caller declaring them.
func (r *Router) registerOptions(muxPath string, base []router.MiddlewareFunc) {
	r.core.mu.Lock()
	if _, ok := r.core.optionsSeen[muxPath]; ok {
		r.core.mu.Unlock()
		return
	}
	r.core.optionsSeen[muxPath] = struct{}{}
	r.core.mu.Unlock()

	composed := compose(func(c router.Context) error {
		if !c.Response().Written() {
			c.Response().WriteHeader(http.StatusNoContent)
		}
		return nil
	}, base)

	r.mux.HandleFunc(muxPath, func(w http.ResponseWriter, req *http.Request) {
		_ = composed(newContext(w, req))
	}).Methods(http.MethodOptions)
}

// compose wraps handler in middleware so the first entry runs outermost.
func compose(handler router.HandlerFunc, middleware []router.MiddlewareFunc) router.HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// toMuxPath rewrites :name segments to mux's {name} placeholders.
func toMuxPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

// requestContext carries one request through the chain.
type requestContext struct {
	request  *http.Request
	response router.ResponseWriter

	mu    sync.RWMutex
	store map[string]interface{}
}

func newContext(w http.ResponseWriter, r *http.Request) *requestContext {
	return &requestContext{
		request:  r,
		response: &responseWriter{ResponseWriter: w},
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
	return mux.Vars(c.request)[name]
}

func (c *requestContext) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *requestContext) Bind(v interface{}) error {
	if c.request.Body == nil || c.request.Body == http.NoBody {
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
	mu      sync.RWMutex
	status  int
	written bool
}

func (w *responseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Status() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *responseWriter) Written() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
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
