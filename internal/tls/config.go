// Package tls builds TLS configurations for talking to a backend behind a
// self-signed certificate, and generates such certificates for the mock
// backend.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// ClientConfig returns a config that trusts the system roots plus the PEM
// certificates in caFile. An empty caFile yields nil, meaning the defaults.
func ClientConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		debug.Warning("System certificate pool unavailable, trusting %s only", caFile)
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	debug.Info("Trusting CA certificate from %s", caFile)
	return &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// ServerConfig serves cert with the same minimum version the client expects
func ServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
}
