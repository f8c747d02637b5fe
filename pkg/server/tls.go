package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/crudkit/crudkit/pkg/config"
)

// managementTLSConfig builds the listener TLS configuration for the
// management server, or nil when no certificate is configured. A
// certificate and key alone give plain TLS; configuring a client CA file
// additionally requires verified client certificates, which is how the
// probe and metrics endpoints get fenced off on shared networks.
func managementTLSConfig(cfg config.ManagementConfig) (*tls.Config, error) {
	if cfg.TLSCertFile == "" {
		return nil, nil
	}

	serverCert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load management certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.TLSCAFile == "" {
		return tlsCfg, nil
	}

	caBytes, err := os.ReadFile(cfg.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("read client CA certificate: %w", err)
	}
	clientCAPool := x509.NewCertPool()
	if !clientCAPool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no PEM certificates found in %s", cfg.TLSCAFile)
	}
	tlsCfg.ClientCAs = clientCAPool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert

	return tlsCfg, nil
}
