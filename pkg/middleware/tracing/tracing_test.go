package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/crudkit/crudkit/pkg/middleware/requestid"
	"github.com/crudkit/crudkit/pkg/server/router"
	"github.com/crudkit/crudkit/pkg/server/router/nethttp"
)

func setupTestTracerProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	spanRecorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(spanRecorder),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return spanRecorder
}

func findAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_CreatesSpan(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	r := nethttp.NewRouter()
	r.Use(Tracing(Config{TracerName: "test-tracer"}))
	r.GET("/documents", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP GET /documents" {
		t.Errorf("expected span name 'HTTP GET /documents', got %q", spans[0].Name())
	}
}

func TestTracing_AddsHTTPAttributes(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	r := nethttp.NewRouter()
	r.Use(Tracing(Config{}))
	r.POST("/models/orders/documents", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/models/orders/documents?filter=active", nil)
	req.Header.Set("User-Agent", "test-client/1.0")
	req.RemoteAddr = "192.168.1.1:12345"
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := spans[0].Attributes()
	expected := map[string]interface{}{
		"http.method":      "POST",
		"http.target":      "/models/orders/documents",
		"http.user_agent":  "test-client/1.0",
		"http.remote_addr": "192.168.1.1:12345",
	}
	for key, want := range expected {
		value, ok := findAttr(attrs, key)
		if !ok {
			t.Errorf("expected attribute %s not found", key)
			continue
		}
		if value.AsInterface() != want {
			t.Errorf("expected attribute %s=%v, got %v", key, want, value.AsInterface())
		}
	}
}

func TestTracing_ExcludedPathPrefixes(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	r := nethttp.NewRouter()
	r.Use(Tracing(Config{ExcludedPathPrefixes: []string{"/health"}}))
	r.GET("/health/live", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if spans := recorder.Ended(); len(spans) != 0 {
		t.Fatalf("expected 0 spans for excluded path, got %d", len(spans))
	}
}

func TestTracing_AddsRequestID(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	r := nethttp.NewRouter()
	r.Use(requestid.RequestID())
	r.Use(Tracing(Config{}))
	r.GET("/documents", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set(requestid.RequestIDHeader, "test-request-id-123")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	value, ok := findAttr(spans[0].Attributes(), "request.id")
	if !ok {
		t.Fatal("expected request.id attribute not found")
	}
	if value.AsString() != "test-request-id-123" {
		t.Errorf("expected request.id=test-request-id-123, got %v", value.AsString())
	}
}

func TestTracing_RecordsStatusCode(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	tests := []struct {
		name           string
		statusCode     int
		expectedStatus codes.Code
	}{
		{"success 200", http.StatusOK, codes.Ok},
		{"success 201", http.StatusCreated, codes.Ok},
		{"client error 404", http.StatusNotFound, codes.Ok},
		{"conflict 409", http.StatusConflict, codes.Ok},
		{"server error 500", http.StatusInternalServerError, codes.Error},
		{"server error 503", http.StatusServiceUnavailable, codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder.Reset()

			r := nethttp.NewRouter()
			r.Use(Tracing(Config{}))
			r.GET("/documents", func(c router.Context) error {
				return c.String(tt.statusCode, "body")
			})

			req := httptest.NewRequest(http.MethodGet, "/documents", nil)
			r.ServeHTTP(httptest.NewRecorder(), req)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]

			value, ok := findAttr(span.Attributes(), "http.status_code")
			if !ok {
				t.Fatal("expected http.status_code attribute not found")
			}
			if value.AsInt64() != int64(tt.statusCode) {
				t.Errorf("expected status_code=%d, got %v", tt.statusCode, value.AsInt64())
			}

			if span.Status().Code != tt.expectedStatus {
				t.Errorf("expected span status %v, got %v", tt.expectedStatus, span.Status().Code)
			}
		})
	}
}

func TestTracing_RecordsError(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	testErr := errors.New("store unavailable")

	r := nethttp.NewRouter()
	r.Use(Tracing(Config{}))
	r.GET("/documents", func(c router.Context) error {
		return testErr
	})

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected the error to surface as 500, got %d", rec.Code)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	events := span.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "exception" {
		t.Errorf("expected event name 'exception', got %q", events[0].Name)
	}

	if span.Status().Code != codes.Error {
		t.Errorf("expected span status Error, got %v", span.Status().Code)
	}
}

func TestTracing_CustomSpanNameFormatter(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	r := nethttp.NewRouter()
	r.Use(Tracing(Config{
		SpanNameFormatter: func(c router.Context) string {
			return "documents." + c.Request().Method
		},
	}))
	r.GET("/documents/abc123", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/documents/abc123", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "documents.GET" {
		t.Errorf("expected span name 'documents.GET', got %q", spans[0].Name())
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	recorder := setupTestTracerProvider(t)

	parentCtx, parentSpan := otel.Tracer("test").Start(context.Background(), "parent")

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	propagator := otel.GetTextMapPropagator()
	propagator.Inject(parentCtx, propagation.HeaderCarrier(req.Header))

	r := nethttp.NewRouter()
	r.Use(Tracing(Config{}))
	r.GET("/documents", func(c router.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	r.ServeHTTP(httptest.NewRecorder(), req)

	parentSpan.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected parent and child spans, got %d", len(spans))
	}

	var childSpan sdktrace.ReadOnlySpan
	for _, span := range spans {
		if span.Name() == "HTTP GET /documents" {
			childSpan = span
			break
		}
	}
	if childSpan == nil {
		t.Fatal("request span not found")
	}

	if childSpan.Parent().TraceID() != parentSpan.SpanContext().TraceID() {
		t.Error("request span does not continue the caller's trace")
	}
}
