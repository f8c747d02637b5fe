package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/health"
	"github.com/crudkit/crudkit/pkg/middleware/logging"
	"github.com/crudkit/crudkit/pkg/middleware/recovery"
	"github.com/crudkit/crudkit/pkg/middleware/requestid"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/observability/metrics"
	"github.com/crudkit/crudkit/pkg/server/router"
	"github.com/crudkit/crudkit/pkg/version"
)

// ManagementServer wraps Server for operational traffic. It listens on its
// own port so health probes, metrics scrapes and the OpenAPI document never
// compete with API requests and are not exposed through the public listener.
type ManagementServer struct {
	*Server
	serviceName     string
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
}

// NewManagementServer creates the management server and registers its
// endpoints on r:
//   - /healthz: liveness, always 200
//   - /readyz: readiness, 503 when a registered dependency check fails
//   - /metrics: Prometheus metrics
//   - /version: build information
//
// The middleware stack is lighter than the public API's: request id,
// logging and recovery only. A configured certificate turns on TLS; a
// client CA file additionally requires verified client certificates.
func NewManagementServer(
	cfg config.ManagementConfig,
	serviceName string,
	r router.Router,
	log logger.Logger,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
) (*ManagementServer, error) {
	r.Use(
		requestid.RequestID(),
		logging.WithConfig(log, logging.DefaultConfig()),
		recovery.Recovery(log),
	)

	serverCfg := Config{
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	tlsConfig, err := managementTLSConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure management TLS: %w", err)
	}
	if tlsConfig != nil {
		serverCfg.TLSConfig = tlsConfig
		log.Info("management TLS enabled", "mtls", cfg.TLSCAFile != "")
	}

	mgmtServer := &ManagementServer{
		Server:          NewServer(serverCfg, r, log),
		serviceName:     serviceName,
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
	}
	mgmtServer.registerEndpoints(r)

	return mgmtServer, nil
}

func (s *ManagementServer) registerEndpoints(r router.Router) {
	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/version", s.handleVersion)
}

// handleHealthz reports process liveness. It never consults dependencies,
// so a wedged database cannot make the orchestrator restart the process.
func (s *ManagementServer) handleHealthz(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
	})
}

// handleReadyz runs every registered dependency check and reports 503 when
// any of them fails, taking the instance out of the load balancer rotation.
func (s *ManagementServer) handleReadyz(c router.Context) error {
	result := s.healthRegistry.Check(c.Request().Context())
	if !result.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}

// handleMetrics serves the Prometheus registry in text exposition format.
func (s *ManagementServer) handleMetrics(c router.Context) error {
	s.metricsRegistry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

// handleVersion reports the running build: version, commit and build time.
func (s *ManagementServer) handleVersion(c router.Context) error {
	return c.JSON(http.StatusOK, version.Current(s.serviceName))
}

// Start starts the management server.
func (s *ManagementServer) Start(ctx context.Context) error {
	return s.Server.Start(ctx)
}

// Shutdown gracefully shuts down the management server.
func (s *ManagementServer) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// Router returns the underlying router for registering custom routes.
func (s *ManagementServer) Router() router.Router {
	return s.router
}
