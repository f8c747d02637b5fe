package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/health"
	"github.com/crudkit/crudkit/pkg/observability/metrics"
	"github.com/crudkit/crudkit/pkg/server/router"
	"github.com/crudkit/crudkit/pkg/server/router/nethttp"
)

func getStatus(t *testing.T, url string) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

// The public listener carries collection routes and the management
// listener carries probes. Neither leaks onto the other port, and
// stopping one leaves the other serving.
func TestDualServersServeIndependently(t *testing.T) {
	publicPort := 18092
	managementPort := 18093
	log := testLogger(t)

	publicRouter := nethttp.NewRouter()
	publicRouter.GET("/documents", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"server": "public"})
	})
	publicSrv := NewPublicAPIServer(config.HTTPConfig{
		Port:         publicPort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
	}, publicRouter, log)

	managementSrv, err := NewManagementServer(config.ManagementConfig{
		Port:         managementPort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, "crudkit-test", nethttp.NewRouter(), log, health.NewRegistry(), metrics.NewRegistry())
	if err != nil {
		t.Fatalf("create management server: %v", err)
	}

	publicCtx, cancelPublic := context.WithCancel(context.Background())
	defer cancelPublic()
	managementCtx, cancelManagement := context.WithCancel(context.Background())
	defer cancelManagement()

	publicErr := make(chan error, 1)
	managementErr := make(chan error, 1)
	go func() { publicErr <- publicSrv.Start(publicCtx) }()
	go func() { managementErr <- managementSrv.Start(managementCtx) }()

	publicBase := fmt.Sprintf("http://localhost:%d", publicPort)
	managementBase := fmt.Sprintf("http://localhost:%d", managementPort)
	waitForServer(t, publicBase+"/documents")
	waitForServer(t, managementBase+"/healthz")

	if got := getStatus(t, publicBase+"/documents"); got != http.StatusOK {
		t.Errorf("expected public route to serve 200, got %d", got)
	}
	if got := getStatus(t, publicBase+"/healthz"); got != http.StatusNotFound {
		t.Errorf("expected probes to stay off the public port, got %d", got)
	}
	if got := getStatus(t, managementBase+"/healthz"); got != http.StatusOK {
		t.Errorf("expected management probe to serve 200, got %d", got)
	}
	if got := getStatus(t, managementBase+"/documents"); got != http.StatusNotFound {
		t.Errorf("expected collection routes to stay off the management port, got %d", got)
	}

	cancelManagement()
	select {
	case err := <-managementErr:
		if err != nil {
			t.Errorf("management shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("management server did not shut down in time")
	}

	if got := getStatus(t, publicBase+"/documents"); got != http.StatusOK {
		t.Errorf("expected public server to keep serving after management shutdown, got %d", got)
	}

	cancelPublic()
	select {
	case err := <-publicErr:
		if err != nil {
			t.Errorf("public shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("public server did not shut down in time")
	}
}

func TestDualServersStartInEitherOrder(t *testing.T) {
	publicPort := 18094
	managementPort := 18095
	log := testLogger(t)

	managementSrv, err := NewManagementServer(config.ManagementConfig{
		Port:         managementPort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, "crudkit-test", nethttp.NewRouter(), log, health.NewRegistry(), metrics.NewRegistry())
	if err != nil {
		t.Fatalf("create management server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- managementSrv.Start(ctx) }()
	waitForServer(t, fmt.Sprintf("http://localhost:%d/healthz", managementPort))

	publicRouter := nethttp.NewRouter()
	publicRouter.GET("/documents", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"server": "public"})
	})
	publicSrv := NewPublicAPIServer(config.HTTPConfig{
		Port:         publicPort,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
	}, publicRouter, log)
	go func() { errs <- publicSrv.Start(ctx) }()
	waitForServer(t, fmt.Sprintf("http://localhost:%d/documents", publicPort))

	if got := getStatus(t, fmt.Sprintf("http://localhost:%d/documents", publicPort)); got != http.StatusOK {
		t.Errorf("expected public server started second to serve 200, got %d", got)
	}
	if got := getStatus(t, fmt.Sprintf("http://localhost:%d/healthz", managementPort)); got != http.StatusOK {
		t.Errorf("expected management server started first to serve 200, got %d", got)
	}

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Errorf("shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("servers did not shut down in time")
		}
	}
}
