// Package store selects and manages storage adapters. Concrete adapters live
// in subpackages; this package carries the shared lifecycle contract and the
// config-driven factories.
package store

import "context"

// Adapter is the minimal lifecycle and health contract for storage adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}
