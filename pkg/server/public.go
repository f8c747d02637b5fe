package server

import (
	"context"
	"strings"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/middleware/cache"
	"github.com/crudkit/crudkit/pkg/middleware/logging"
	"github.com/crudkit/crudkit/pkg/middleware/metrics"
	"github.com/crudkit/crudkit/pkg/middleware/ratelimit"
	"github.com/crudkit/crudkit/pkg/middleware/recovery"
	"github.com/crudkit/crudkit/pkg/middleware/requestid"
	timeoutmiddleware "github.com/crudkit/crudkit/pkg/middleware/timeout"
	"github.com/crudkit/crudkit/pkg/middleware/tracing"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// PublicAPIServer wraps Server for application traffic. It carries the
// ambient middleware stack for the collection routes mounted on it.
type PublicAPIServer struct {
	*Server
	cacheStore  cache.Store
	rateLimiter interface{ Close() error }
}

// NewPublicAPIServer creates a public API server with the default
// middleware stack: request ID, logging, recovery, metrics and timeout.
// Rate limiting and response caching stay off unless configured.
func NewPublicAPIServer(cfg config.HTTPConfig, r router.Router, log logger.Logger) *PublicAPIServer {
	defaults := config.DefaultConfig()
	return NewPublicAPIServerWithConfig(
		cfg,
		defaults.RateLimit,
		defaults.Cache,
		defaults.Observability,
		r,
		log,
	)
}

// NewPublicAPIServerWithObservability creates a public API server with
// observability-aware middleware options.
func NewPublicAPIServerWithObservability(
	cfg config.HTTPConfig,
	obsCfg config.ObservabilityConfig,
	r router.Router,
	log logger.Logger,
) *PublicAPIServer {
	defaults := config.DefaultConfig()
	return NewPublicAPIServerWithConfig(
		cfg,
		defaults.RateLimit,
		defaults.Cache,
		obsCfg,
		r,
		log,
	)
}

// NewPublicAPIServerWithConfig creates a public API server wiring the
// full middleware stack from configuration.
//
// The stack is applied in the following order:
//  1. Request ID - adopts or mints the correlation id
//  2. Logging - structured request logs
//  3. Recovery - panics become logged 500 envelopes
//  4. Metrics - Prometheus HTTP collectors
//  5. Tracing - OpenTelemetry server spans (when tracing is enabled)
//  6. Timeout - per-request deadline
//  7. Rate limit - per-client budget (when enabled)
//  8. Cache - GET response cache (when enabled)
func NewPublicAPIServerWithConfig(
	cfg config.HTTPConfig,
	rateLimitCfg config.RateLimitConfig,
	cacheCfg config.CacheConfig,
	obsCfg config.ObservabilityConfig,
	r router.Router,
	log logger.Logger,
) *PublicAPIServer {
	effectiveLogger := logger.WrapAsync(log, logger.AsyncConfig{
		Enabled:      obsCfg.AsyncLogging.Enabled,
		QueueSize:    obsCfg.AsyncLogging.QueueSize,
		WorkerCount:  obsCfg.AsyncLogging.WorkerCount,
		DropWhenFull: obsCfg.AsyncLogging.DropWhenFull,
	})

	loggingCfg := logging.Config{
		Enabled:              obsCfg.RequestLogging.Enabled,
		LogStart:             obsCfg.RequestLogging.LogStart,
		ExcludedPathPrefixes: obsCfg.RequestLogging.ExcludedPathPrefixes,
	}
	timeoutCfg := timeoutmiddleware.Config{
		Enabled:              obsCfg.RequestTimeout.Enabled,
		Default:              obsCfg.RequestTimeout.Default,
		ExcludedPathPrefixes: obsCfg.RequestTimeout.ExcludedPathPrefixes,
	}
	tracingCfg := tracing.Config{
		TracerName:           "http-server",
		ExcludedPathPrefixes: obsCfg.RequestTracing.ExcludedPathPrefixes,
	}

	type middlewareEntry struct {
		name string
		fn   router.MiddlewareFunc
	}
	namedMiddlewares := []middlewareEntry{
		{name: "request_id", fn: requestid.RequestID()},
		{name: "logging", fn: logging.WithConfig(effectiveLogger, loggingCfg)},
		{name: "recovery", fn: recovery.Recovery(effectiveLogger)},
		{name: "metrics", fn: metrics.Metrics()},
	}
	if obsCfg.TracingEnabled && obsCfg.RequestTracing.Enabled {
		namedMiddlewares = append(namedMiddlewares, middlewareEntry{name: "tracing", fn: tracing.Tracing(tracingCfg)})
	}
	namedMiddlewares = append(namedMiddlewares, middlewareEntry{name: "timeout", fn: timeoutmiddleware.Middleware(timeoutCfg)})

	var limiterCloser interface{ Close() error }
	if rateLimitCfg.Enabled {
		limiter, closer := createRateLimiter(rateLimitCfg, effectiveLogger)
		limiterCloser = closer
		namedMiddlewares = append(namedMiddlewares, middlewareEntry{
			name: "rate_limit",
			fn: ratelimit.RateLimit(limiter, ratelimit.Config{
				RequestsPerSecond: rateLimitCfg.RequestsPerSecond,
				Burst:             rateLimitCfg.Burst,
				KeyFunc: func(c router.Context) string {
					return ratelimit.ExtractIPFromRequest(c.Request())
				},
			}),
		})
	}

	var cacheStore cache.Store
	if cacheCfg.HTTP.Enabled {
		cacheStore = createCacheStore(cacheCfg, effectiveLogger)
		if cacheStore != nil {
			httpCacheCfg := cache.DefaultConfig()
			httpCacheCfg.Enabled = true
			httpCacheCfg.Store = cacheStore
			if cacheCfg.HTTP.TTL > 0 {
				httpCacheCfg.TTL = cacheCfg.HTTP.TTL
			}
			httpCacheCfg.StaleWhileRevalidate = cacheCfg.HTTP.StaleWhileRevalidate
			if cacheCfg.HTTP.KeyPrefix != "" {
				httpCacheCfg.KeyPrefix = cacheCfg.HTTP.KeyPrefix
			}
			httpCacheCfg.InvalidateOnWrite = cacheCfg.HTTP.InvalidateOnWrite
			namedMiddlewares = append(namedMiddlewares, middlewareEntry{
				name: "cache",
				fn:   cache.Middleware(httpCacheCfg),
			})
		}
	}

	middlewareFuncs := make([]router.MiddlewareFunc, 0, len(namedMiddlewares))
	middlewareNames := make([]string, 0, len(namedMiddlewares))
	for _, entry := range namedMiddlewares {
		middlewareFuncs = append(middlewareFuncs, entry.fn)
		middlewareNames = append(middlewareNames, entry.name)
	}
	effectiveLogger.Debug("active middleware stack", "middlewares", strings.Join(middlewareNames, ", "))
	r.Use(middlewareFuncs...)

	serverCfg := Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	baseServer := NewServer(serverCfg, r, effectiveLogger)

	return &PublicAPIServer{
		Server:      baseServer,
		cacheStore:  cacheStore,
		rateLimiter: limiterCloser,
	}
}

// Start starts the public API server.
func (s *PublicAPIServer) Start(ctx context.Context) error {
	return s.Server.Start(ctx)
}

// Shutdown gracefully shuts down the public API server and releases the
// cache store and rate limiter connections.
func (s *PublicAPIServer) Shutdown(ctx context.Context) error {
	if err := s.Server.Shutdown(ctx); err != nil {
		return err
	}
	if s.cacheStore != nil {
		if err := s.cacheStore.Close(); err != nil {
			return err
		}
	}
	if s.rateLimiter != nil {
		return s.rateLimiter.Close()
	}
	return nil
}

// Router returns the router the public API server serves.
func (s *PublicAPIServer) Router() router.Router {
	return s.router
}

// createRateLimiter builds the limiter backend. Redis failures fall back
// to the local token bucket so the budget keeps being enforced.
func createRateLimiter(cfg config.RateLimitConfig, log logger.Logger) (ratelimit.RateLimiter, interface{ Close() error }) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "local":
		return ratelimit.NewTokenBucketLimiter(cfg.RequestsPerSecond, cfg.Burst), nil
	case "redis":
		limiter, err := ratelimit.NewRedisRateLimiter(cfg.Redis, cfg.Window, cfg.RequestsPerSecond, cfg.Burst, log)
		if err != nil {
			log.Error("failed to initialize redis rate limiter, falling back to local", "error", err)
			return ratelimit.NewTokenBucketLimiter(cfg.RequestsPerSecond, cfg.Burst), nil
		}
		return limiter, limiter
	default:
		log.Warn("unknown rate limiter type configured, using local", "type", cfg.Type)
		return ratelimit.NewTokenBucketLimiter(cfg.RequestsPerSecond, cfg.Burst), nil
	}
}

func createCacheStore(cfg config.CacheConfig, log logger.Logger) cache.Store {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "inmemory":
		return cache.NewMemoryStore()
	case "redis":
		store, err := cache.NewRedisStore(cfg)
		if err != nil {
			log.Error("failed to initialize redis cache store, response cache disabled", "error", err)
			return nil
		}
		return store
	default:
		log.Warn("unknown cache type configured, response cache disabled", "type", cfg.Type)
		return nil
	}
}
