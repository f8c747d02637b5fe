package openapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/crudkit/crudkit/pkg/server/router/nethttp"
)

func TestSwaggerHandler_ServesUI(t *testing.T) {
	handler := NewSwaggerHandler(true, "/openapi.json")

	r := nethttp.NewRouter()
	handler.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/html") {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `url: "/openapi.json"`) {
		t.Fatal("page must point Swagger UI at the document")
	}
	if !strings.Contains(body, "swagger-ui") {
		t.Fatal("expected the Swagger UI bootstrap markup")
	}
}

func TestSwaggerHandler_DefaultsSpecPath(t *testing.T) {
	handler := NewSwaggerHandler(true, "")

	r := nethttp.NewRouter()
	handler.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), DefaultSpecPath) {
		t.Fatalf("blank spec path must default to %s", DefaultSpecPath)
	}
}

func TestSwaggerHandler_DisabledRegistersNothing(t *testing.T) {
	handler := NewSwaggerHandler(false, "/openapi.json")

	r := nethttp.NewRouter()
	handler.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", rec.Code)
	}
}
