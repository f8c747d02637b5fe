package nethttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crudkit/crudkit/pkg/server/router"
)

func TestRouter_BasicRouting(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		registerPath   string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "GET route",
			method:         http.MethodGet,
			path:           "/documents",
			registerPath:   "/documents",
			expectedStatus: http.StatusOK,
			expectedBody:   "documents list",
		},
		{
			name:           "POST route",
			method:         http.MethodPost,
			path:           "/documents",
			registerPath:   "/documents",
			expectedStatus: http.StatusCreated,
			expectedBody:   "document created",
		},
		{
			name:           "PUT route",
			method:         http.MethodPut,
			path:           "/documents/1",
			registerPath:   "/documents/:id",
			expectedStatus: http.StatusOK,
			expectedBody:   "document replaced",
		},
		{
			name:           "DELETE route",
			method:         http.MethodDelete,
			path:           "/documents/1",
			registerPath:   "/documents/:id",
			expectedStatus: http.StatusNoContent,
			expectedBody:   "",
		},
		{
			name:           "PATCH route",
			method:         http.MethodPatch,
			path:           "/documents/1",
			registerPath:   "/documents/:id",
			expectedStatus: http.StatusOK,
			expectedBody:   "document updated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter()

			handler := func(c router.Context) error {
				return c.String(tt.expectedStatus, tt.expectedBody)
			}

			switch tt.method {
			case http.MethodGet:
				r.GET(tt.registerPath, handler)
			case http.MethodPost:
				r.POST(tt.registerPath, handler)
			case http.MethodPut:
				r.PUT(tt.registerPath, handler)
			case http.MethodDelete:
				r.DELETE(tt.registerPath, handler)
			case http.MethodPatch:
				r.PATCH(tt.registerPath, handler)
			}

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedBody != "" && w.Body.String() != tt.expectedBody {
				t.Errorf("expected body %q, got %q", tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		match   bool
		params  map[string]string
	}{
		{name: "exact", pattern: "/models", path: "/models", match: true},
		{name: "trailing slash on request", pattern: "/models", path: "/models/", match: true},
		{name: "single param", pattern: "/documents/:id", path: "/documents/42", match: true, params: map[string]string{"id": "42"}},
		{
			name:    "two params",
			pattern: "/models/:name/documents/:docId",
			path:    "/models/users/documents/7",
			match:   true,
			params:  map[string]string{"name": "users", "docId": "7"},
		},
		{name: "static mismatch", pattern: "/models", path: "/documents", match: false},
		{name: "length mismatch", pattern: "/documents/:id", path: "/documents", match: false},
		{name: "extra segment", pattern: "/documents/:id", path: "/documents/42/extra", match: false},
		{name: "root", pattern: "/", path: "/", match: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, ok := matchPattern(tt.pattern, tt.path)
			if ok != tt.match {
				t.Fatalf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, ok, tt.match)
			}
			for name, want := range tt.params {
				if params[name] != want {
					t.Errorf("param %q = %q, want %q", name, params[name], want)
				}
			}
		})
	}
}

func TestRouter_PathParameters(t *testing.T) {
	r := NewRouter()

	r.GET("/models/:name/documents/:docId", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"model":    c.Param("name"),
			"document": c.Param("docId"),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/models/users/documents/456", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["model"] != "users" {
		t.Errorf("expected model users, got %s", result["model"])
	}
	if result["document"] != "456" {
		t.Errorf("expected document 456, got %s", result["document"])
	}
}

func TestRouter_QueryParameters(t *testing.T) {
	r := NewRouter()

	r.GET("/search", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"page": c.Query("page"),
			"size": c.Query("size"),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/search?page=2&size=25", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["page"] != "2" {
		t.Errorf("expected page 2, got %s", result["page"])
	}
	if result["size"] != "25" {
		t.Errorf("expected size 25, got %s", result["size"])
	}
}

func TestRouter_JSONBinding(t *testing.T) {
	r := NewRouter()

	type document struct {
		Title string `json:"title"`
		Owner string `json:"owner"`
	}

	r.POST("/documents", func(c router.Context) error {
		var doc document
		if err := c.Bind(&doc); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, doc)
	})

	payload := document{Title: "launch plan", Owner: "ops"}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}

	var result document
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result != payload {
		t.Errorf("expected %+v echoed back, got %+v", payload, result)
	}
}

func TestRouter_Middleware(t *testing.T) {
	r := NewRouter()

	called := false
	r.Use(func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			called = true
			c.Set("middleware", "global")
			return next(c)
		}
	})

	r.GET("/records", func(c router.Context) error {
		return c.String(http.StatusOK, c.Get("middleware").(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if !called {
		t.Error("middleware was not called")
	}
	if w.Body.String() != "global" {
		t.Errorf("expected body %q, got %q", "global", w.Body.String())
	}
}

func TestRouter_UseAfterRegistration(t *testing.T) {
	r := NewRouter()

	r.GET("/early", func(c router.Context) error {
		if c.Get("late") != nil {
			t.Error("route registered before Use must not see later middleware")
		}
		return c.String(http.StatusOK, "early")
	})

	r.Use(func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			c.Set("late", "yes")
			return next(c)
		}
	})

	r.GET("/late", func(c router.Context) error {
		if c.Get("late") != "yes" {
			t.Error("route registered after Use must see the middleware")
		}
		return c.String(http.StatusOK, "late")
	})

	for _, path := range []string{"/early", "/late"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, w.Code)
		}
	}
}

func TestRouter_RouteSpecificMiddleware(t *testing.T) {
	r := NewRouter()

	middleware := func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			c.Set("route_middleware", "applied")
			return next(c)
		}
	}

	echo := func(c router.Context) error {
		value := c.Get("route_middleware")
		if value == nil {
			return c.String(http.StatusOK, "not applied")
		}
		return c.String(http.StatusOK, value.(string))
	}

	r.GET("/guarded", echo, middleware)
	r.GET("/open", echo)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/guarded", nil))
	if w.Body.String() != "applied" {
		t.Errorf("expected %q on guarded route, got %q", "applied", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	if w.Body.String() != "not applied" {
		t.Errorf("expected %q on open route, got %q", "not applied", w.Body.String())
	}
}

func TestRouter_Group(t *testing.T) {
	r := NewRouter()

	api := r.Group("/api")
	api.GET("/models", func(c router.Context) error {
		return c.String(http.StatusOK, "models")
	})

	v1 := api.Group("/v1")
	v1.GET("/documents", func(c router.Context) error {
		return c.String(http.StatusOK, "documents")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if w.Code != http.StatusOK || w.Body.String() != "models" {
		t.Errorf("expected 200 %q for /api/models, got %d %q", "models", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	if w.Code != http.StatusOK || w.Body.String() != "documents" {
		t.Errorf("expected 200 %q for /api/v1/documents, got %d %q", "documents", w.Code, w.Body.String())
	}
}

func TestRouter_AutoOptions(t *testing.T) {
	r := NewRouter()

	r.GET("/documents/:id", func(c router.Context) error {
		return c.String(http.StatusOK, c.Param("id"))
	})
	r.DELETE("/documents/:id", func(c router.Context) error {
		return c.String(http.StatusNoContent, "")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/documents/42", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}

	// Registering a second method on the same path must not duplicate the
	// OPTIONS route.
	count := 0
	for _, rt := range r.core.routes {
		if rt.method == http.MethodOptions && rt.pattern == "/documents/:id" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one OPTIONS route, got %d", count)
	}
}

func TestRouter_NotFound(t *testing.T) {
	r := NewRouter()

	r.GET("/models", func(c router.Context) error {
		return c.String(http.StatusOK, "models")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestRouter_ContextStore(t *testing.T) {
	r := NewRouter()

	r.GET("/records", func(c router.Context) error {
		if c.Get("absent") != nil {
			t.Error("expected nil for an unset key")
		}
		c.Set("key1", "value1")
		c.Set("key2", 42)

		if c.Get("key1") != "value1" {
			t.Error("expected key1 to be value1")
		}
		if c.Get("key2") != 42 {
			t.Error("expected key2 to be 42")
		}
		return c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/records", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}
