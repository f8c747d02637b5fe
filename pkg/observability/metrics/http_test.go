package metrics

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// TestRecordHTTPMetrics verifies that HTTP metrics are recorded correctly.
func TestRecordHTTPMetrics(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name     string
		method   string
		path     string
		status   int
		duration time.Duration
	}{
		{
			name:     "GET request success",
			method:   "GET",
			path:     "/users",
			status:   200,
			duration: 100 * time.Millisecond,
		},
		{
			name:     "POST request created",
			method:   "POST",
			path:     "/users",
			status:   201,
			duration: 150 * time.Millisecond,
		},
		{
			name:     "GET request not found",
			method:   "GET",
			path:     "/missing",
			status:   404,
			duration: 50 * time.Millisecond,
		},
		{
			name:     "POST request error",
			method:   "POST",
			path:     "/orders",
			status:   500,
			duration: 200 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordHTTPMetrics(tt.method, tt.path, tt.status, tt.duration)

			body := scrape(t, registry)

			expectedLabels := `method="` + tt.method + `",path="` + tt.path + `",status="`
			if !strings.Contains(body, expectedLabels) {
				t.Errorf("expected labels %s not found in metrics output", expectedLabels)
			}

			if !strings.Contains(body, "http_request_duration_seconds_count") {
				t.Error("http_request_duration_seconds_count not found in metrics output")
			}
		})
	}
}

// TestHTTPMetricsLabels verifies that metrics have correct labels.
func TestHTTPMetricsLabels(t *testing.T) {
	registry := NewRegistry()

	RecordHTTPMetrics("GET", "/books", 200, 100*time.Millisecond)
	RecordHTTPMetrics("GET", "/books", 404, 50*time.Millisecond)
	RecordHTTPMetrics("POST", "/books", 201, 150*time.Millisecond)
	RecordHTTPMetrics("DELETE", "/books/123", 204, 75*time.Millisecond)

	body := scrape(t, registry)

	expectedLabels := []string{
		`method="GET",path="/books",status="200"`,
		`method="GET",path="/books",status="404"`,
		`method="POST",path="/books",status="201"`,
		`method="DELETE",path="/books/123",status="204"`,
	}

	for _, labels := range expectedLabels {
		if !strings.Contains(body, labels) {
			t.Errorf("expected labels %s not found in metrics output", labels)
		}
	}
}

// TestHTTPMetricsDurationHistogram verifies histogram buckets.
func TestHTTPMetricsDurationHistogram(t *testing.T) {
	registry := NewRegistry()

	durations := []time.Duration{
		10 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		500 * time.Millisecond,
		1 * time.Second,
		5 * time.Second,
	}

	for _, duration := range durations {
		RecordHTTPMetrics("GET", "/histogram-test", 200, duration)
	}

	body := scrape(t, registry)

	histogramComponents := []string{
		"http_request_duration_seconds_bucket",
		"http_request_duration_seconds_sum",
		"http_request_duration_seconds_count",
	}

	for _, component := range histogramComponents {
		if !strings.Contains(body, component) {
			t.Errorf("expected histogram component %s not found", component)
		}
	}

	bucketCount := strings.Count(body, "http_request_duration_seconds_bucket")
	if bucketCount < 5 {
		t.Errorf("expected at least 5 histogram buckets, found %d", bucketCount)
	}
}

// TestHTTPMetricsCounterIncrement verifies counter increments.
func TestHTTPMetricsCounterIncrement(t *testing.T) {
	registry := NewRegistry()

	method := "GET"
	path := "/counter-test"
	status := 200

	for i := 0; i < 5; i++ {
		RecordHTTPMetrics(method, path, status, 100*time.Millisecond)
	}

	body := scrape(t, registry)

	expectedCounter := `http_requests_total{method="GET",path="/counter-test",status="200"} 5`
	if !strings.Contains(body, expectedCounter) {
		t.Errorf("expected counter value not found. Looking for: %s", expectedCounter)
		lines := strings.Split(body, "\n")
		for _, line := range lines {
			if strings.Contains(line, "http_requests_total") && strings.Contains(line, "/counter-test") {
				t.Logf("Found: %s", line)
			}
		}
	}
}

// TestHTTPMetricsStatusCodes verifies different status codes are tracked.
func TestHTTPMetricsStatusCodes(t *testing.T) {
	registry := NewRegistry()

	statusCodes := []int{200, 201, 204, 400, 401, 403, 404, 500, 502, 503}

	for _, status := range statusCodes {
		RecordHTTPMetrics("GET", "/status-test", status, 100*time.Millisecond)
	}

	body := scrape(t, registry)

	for _, status := range statusCodes {
		statusStr := strconv.Itoa(status)
		labelStr := `status="` + statusStr + `"`
		if !strings.Contains(body, labelStr) {
			t.Errorf("expected status code %d not found in metrics", status)
		}
	}
}

// TestHTTPMetricsConcurrency verifies metrics work correctly under concurrent access.
func TestHTTPMetricsConcurrency(t *testing.T) {
	registry := NewRegistry()

	done := make(chan bool)
	numGoroutines := 10
	requestsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := 0; j < requestsPerGoroutine; j++ {
				IncrementInFlight()
				RecordHTTPMetrics("GET", "/concurrent", 200, 10*time.Millisecond)
				DecrementInFlight()
			}
			done <- true
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	body := scrape(t, registry)

	expectedTotal := numGoroutines * requestsPerGoroutine
	expectedCounter := `http_requests_total{method="GET",path="/concurrent",status="200"} ` + strconv.Itoa(expectedTotal)

	if !strings.Contains(body, expectedCounter) {
		t.Errorf("expected counter value %d not found", expectedTotal)
		lines := strings.Split(body, "\n")
		for _, line := range lines {
			if strings.Contains(line, "http_requests_total") && strings.Contains(line, "/concurrent") {
				t.Logf("Found: %s", line)
			}
		}
	}

	if !strings.Contains(body, "http_requests_in_flight") {
		t.Error("expected http_requests_in_flight metric to exist")
	}
}
