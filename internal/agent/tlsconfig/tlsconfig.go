// Package tlsconfig builds the *tls.Config used for the agent's outbound
// connection to the relay server, grounded on relay-client/src/tls.rs's
// optional CA-pinning connector.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Build returns nil when caCertPath is empty, meaning the standard
// system trust store is used (the zero value of *tls.Config passed to a
// websocket.Dialer). When caCertPath is set, it returns a config whose
// RootCAs is exactly that one certificate, matching the original's
// rustls::RootCertStore::empty() + single add().
func Build(caCertPath string) (*tls.Config, error) {
	if caCertPath == "" {
		return nil, nil
	}

	pem, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("reading ca certificate %s: %w", caCertPath, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca certificate at %s is not valid PEM", caCertPath)
	}

	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool,
	}, nil
}
