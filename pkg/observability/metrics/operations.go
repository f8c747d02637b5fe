package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crudkit/crudkit/pkg/crud"
)

var (
	// operationDuration tracks data-access operation duration in seconds.
	// Labels: operation, collection, outcome
	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crud_operation_duration_seconds",
			Help:    "Data-access operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection", "outcome"},
	)

	// operationsTotal tracks total number of data-access operations.
	// Labels: operation, collection, outcome
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crud_operations_total",
			Help: "Total number of data-access operations",
		},
		[]string{"operation", "collection", "outcome"},
	)
)

// Recorder feeds service operation timings into the Prometheus metrics.
// The outcome label is "success" for completed operations and the stable
// error kind (Conflict, NotFound, ValidationError, InternalError) for
// failures, so dashboards can split error rates by cause.
type Recorder struct{}

// NewRecorder creates a recorder suitable for crud.ServiceOptions.Metrics.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordOperation updates the operation duration histogram and counter.
func (*Recorder) RecordOperation(operation, collection, outcome string, duration time.Duration) {
	operationDuration.WithLabelValues(operation, collection, outcome).Observe(duration.Seconds())
	operationsTotal.WithLabelValues(operation, collection, outcome).Inc()
}

var _ crud.OperationRecorder = (*Recorder)(nil)
