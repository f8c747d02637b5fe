package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/crudkit/crudkit/pkg/config"
	"github.com/crudkit/crudkit/pkg/health"
	"github.com/crudkit/crudkit/pkg/observability/metrics"
)

func mtlsClient(t *testing.T, caPath string, certPath, keyPath string) *http.Client {
	t.Helper()

	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		t.Fatalf("read CA file: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		t.Fatal("failed to add CA certificate to pool")
	}

	tlsCfg := &tls.Config{RootCAs: pool}
	if certPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			t.Fatalf("load client key pair: %v", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return &http.Client{
		Timeout:   time.Second,
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}
}

// waitForTLSServer polls with the given client until the server answers.
// The shared waitForServer helper cannot be used here because the probe
// itself must pass the mutual TLS handshake.
func waitForTLSServer(t *testing.T, client *http.Client, url string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s did not become ready", url)
}

func TestManagementServerMTLS(t *testing.T) {
	dir := t.TempDir()
	caPath, serverCertPath, serverKeyPath, clientCertPath, clientKeyPath := writeTestCertificates(t, dir)

	cfg := config.ManagementConfig{
		Port:         18096,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		TLSCertFile:  serverCertPath,
		TLSKeyFile:   serverKeyPath,
		TLSCAFile:    caPath,
	}
	srv := testManagementServer(t, cfg, health.NewRegistry(), metrics.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	url := fmt.Sprintf("https://localhost:%d/healthz", cfg.Port)
	authed := mtlsClient(t, caPath, clientCertPath, clientKeyPath)
	waitForTLSServer(t, authed, url)

	t.Run("accepts a client certificate signed by the CA", func(t *testing.T) {
		resp, err := authed.Get(url)
		if err != nil {
			t.Fatalf("request with valid client certificate: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("rejects a client without a certificate", func(t *testing.T) {
		bare := mtlsClient(t, caPath, "", "")
		resp, err := bare.Get(url)
		if err == nil {
			resp.Body.Close()
			t.Fatal("expected the handshake to fail without a client certificate")
		}
	})

	t.Run("rejects a certificate from an unknown CA", func(t *testing.T) {
		untrustedCert, untrustedKey := writeUntrustedClientCert(t, dir)
		untrusted := mtlsClient(t, caPath, untrustedCert, untrustedKey)
		resp, err := untrusted.Get(url)
		if err == nil {
			resp.Body.Close()
			t.Fatal("expected the handshake to fail with an untrusted client certificate")
		}
	})

	t.Run("plain HTTP is refused", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/healthz", cfg.Port))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				t.Fatal("expected plain HTTP to be refused on a TLS listener")
			}
		}
	})

	cancel()
	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
