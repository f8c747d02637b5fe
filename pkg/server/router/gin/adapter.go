// Package gin implements the router contract on gin-gonic/gin. Gin keeps
// the :name parameter syntax, so paths pass through unchanged.
package gin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	ginpkg "github.com/gin-gonic/gin"

	"github.com/crudkit/crudkit/pkg/server/router"
)

// Router adapts a gin engine to the router contract.
type Router struct {
	engine     *ginpkg.Engine
	group      *ginpkg.RouterGroup
	core       *core
	middleware []router.MiddlewareFunc
}

// core is shared by a root router and all groups derived from it.
type core struct {
	mu          sync.RWMutex
	optionsSeen map[string]struct{}
}

// NewRouter returns a router backed by a fresh gin engine in release mode.
func NewRouter() *Router {
	ginpkg.SetMode(ginpkg.ReleaseMode)
	return &Router{
		engine: ginpkg.New(),
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

// Group returns a view onto the same engine with the prefix and
// middleware stacked on top of the receiver's.
func (r *Router) Group(prefix string, middleware ...router.MiddlewareFunc) router.Router {
	r.core.mu.RLock()
	stacked := make([]router.MiddlewareFunc, 0, len(r.middleware)+len(middleware))
	stacked = append(stacked, r.middleware...)
	r.core.mu.RUnlock()
	stacked = append(stacked, middleware...)

	group := r.engine.Group(prefix)
	if r.group != nil {
		group = r.group.Group(prefix)
	}

	return &Router{
		engine:     r.engine,
		group:      group,
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
	r.engine.ServeHTTP(w, req)
}

func (r *Router) handle(method, path string, handler router.HandlerFunc, middleware []router.MiddlewareFunc) {
	r.core.mu.RLock()
	base := make([]router.MiddlewareFunc, len(r.middleware))
	copy(base, r.middleware)
	r.core.mu.RUnlock()

	composed := compose(handler, middleware)
	composed = compose(composed, base)

	ginHandler := func(gc *ginpkg.Context) {
		ctx := newContext(gc)
		if err := composed(ctx); err != nil && !ctx.Response().Written() {
			gc.AbortWithStatus(http.StatusInternalServerError)
		}
	}

	if r.group != nil {
		r.group.Handle(method, path, ginHandler)
	} else {
		r.engine.Handle(method, path, ginHandler)
	}
	r.registerOptions(path, base)
}

// registerOptions adds a 204 OPTIONS route once per full path, carrying
// only the base middleware, so preflight requests succeed without the
// caller declaring them.
func (r *Router) registerOptions(path string, base []router.MiddlewareFunc) {
	key := path
	if r.group != nil {
		key = r.group.BasePath() + path
	}

	r.core.mu.Lock()
	if _, ok := r.core.optionsSeen[key]; ok {
		r.core.mu.Unlock()
		return
	}
	r.core.optionsSeen[key] = struct{}{}
	r.core.mu.Unlock()

	composed := compose(func(c router.Context) error {
		if !c.Response().Written() {
			c.Response().WriteHeader(http.StatusNoContent)
		}
		return nil
	}, base)

	optionsHandler := func(gc *ginpkg.Context) {
		_ = composed(newContext(gc))
	}

	if r.group != nil {
		r.group.Handle(http.MethodOptions, path, optionsHandler)
		return
	}
	r.engine.Handle(http.MethodOptions, path, optionsHandler)
}

// compose wraps handler in middleware so the first entry runs outermost.
func compose(handler router.HandlerFunc, middleware []router.MiddlewareFunc) router.HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// requestContext adapts gin.Context to the router contract.
type requestContext struct {
	gc       *ginpkg.Context
	response router.ResponseWriter
}

func newContext(gc *ginpkg.Context) *requestContext {
	return &requestContext{
		gc:       gc,
		response: &responseWriter{ResponseWriter: gc.Writer},
	}
}

func (c *requestContext) Request() *http.Request {
	return c.gc.Request
}

func (c *requestContext) SetRequest(r *http.Request) {
	c.gc.Request = r
}

func (c *requestContext) Response() router.ResponseWriter {
	return c.response
}

func (c *requestContext) SetResponse(w router.ResponseWriter) {
	c.response = w
}

func (c *requestContext) Param(name string) string {
	return c.gc.Param(name)
}

func (c *requestContext) Query(name string) string {
	return c.gc.Query(name)
}

func (c *requestContext) Bind(v interface{}) error {
	if c.gc.Request.Body == nil || c.gc.Request.Body == http.NoBody {
		return fmt.Errorf("request body is empty")
	}
	defer c.gc.Request.Body.Close()

	contentType := c.gc.GetHeader("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("unsupported content type: %s", contentType)
	}
	return json.NewDecoder(c.gc.Request.Body).Decode(v)
}

func (c *requestContext) JSON(code int, v interface{}) error {
	c.response.Header().Set("Content-Type", "application/json")
	c.response.WriteHeader(code)
	return json.NewEncoder(c.response).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.response.Header().Set("Content-Type", "text/plain")
	c.response.WriteHeader(code)
	_, err := c.response.Write([]byte(s))
	return err
}

func (c *requestContext) Get(key string) interface{} {
	v, ok := c.gc.Get(key)
	if !ok {
		return nil
	}
	return v
}

func (c *requestContext) Set(key string, value interface{}) {
	c.gc.Set(key, value)
}

// responseWriter tracks writes made through the router contract. Gin's
// own writer counts bytes it wrote itself; this wrapper only reports
// what passed through here, which is what error handling needs.
type responseWriter struct {
	ginpkg.ResponseWriter
	mu      sync.RWMutex
	status  int
	written bool
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

// Flush sends buffered data to the client.
func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
