// Package tlsconfig builds the TLS configuration for the panel's optional
// HTTPS listener.
package tlsconfig

import (
	"crypto/tls"
	"fmt"
)

// Config holds the operator-supplied certificate pair.
type Config struct {
	CertPath string
	KeyPath  string
}

// Server loads the certificate pair and returns a tls.Config for the HTTP
// server. The panel serves a single operator on a trusted network, so plain
// server-side TLS without client certificates is sufficient.
func Server(config *Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}, nil
}
