package crud

import (
	"time"

	"github.com/crudkit/crudkit/pkg/apperror"
)

// Operation names used for metrics and tracing.
const (
	OpCreate     = "create"
	OpCreateMany = "create_many"
	OpUpdate     = "update"
	OpGetMany    = "get_many"
	OpGetOne     = "get_one"
	OpDelete     = "delete"
)

// OperationRecorder observes service operations for metrics backends. The
// outcome is "success" or the stable error kind of the failure.
type OperationRecorder interface {
	RecordOperation(operation, collection, outcome string, duration time.Duration)
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	return string(apperror.KindOf(err))
}
