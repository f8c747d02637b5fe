package store

import (
	"fmt"
	"strings"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/store/mongodb"
	"github.com/crudkit/crudkit/pkg/store/redis"
)

// Cosa fa: seleziona e inizializza lo storage adapter in base alla config.
// Cosa NON fa: non gestisce fallback tra provider diversi.
// Esempio minimo: adp, err := store.NewStorageAdapter(cfg.Database, log)
func NewStorageAdapter(cfg config.DatabaseConfig, log logger.Logger) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.DatabaseTypeMongoDB:
		return mongodb.NewAdapter(mongodb.Config{
			URL:              cfg.URL,
			Database:         cfg.DatabaseName,
			ConnectTimeout:   cfg.ConnectTimeout,
			OperationTimeout: cfg.QueryTimeout,
			MaxPoolSize:      cfg.MaxPoolSize,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported database.type %q (supported: mongodb)", cfg.Type)
	}
}

// NewCacheAdapter selects and initializes a cache adapter from config.
// An empty or inmemory cache type returns a nil adapter: the in-process cache
// needs no external connection or health check.
func NewCacheAdapter(cfg config.CacheConfig, log logger.Logger) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "inmemory":
		return nil, nil
	case "redis":
		return redis.NewAdapter(redis.Config{
			URL:              cfg.URL,
			MaxConns:         cfg.MaxConns,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported cache.type %q (supported: redis, inmemory)", cfg.Type)
	}
}
