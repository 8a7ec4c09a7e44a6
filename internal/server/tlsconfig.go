package server

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"
)

// loadTLSConfig attempts to load the configured cert/key pair. A missing
// or unreadable pair is not an error: the caller falls back to serving
// plain HTTP only, suitable for deployment behind an external TLS
// terminator.
func loadTLSConfig(certFile, keyFile string) (*tls.Config, bool) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		slog.Info("TLS material not available, serving plain HTTP only",
			"cert_file", certFile, "key_file", keyFile, "error", err)
		return nil, false
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, true
}

// NewHTTPSServer builds the TLS listener for cfg, if cert/key material is
// available. The second return value reports whether TLS is enabled; a
// caller should simply skip starting the returned server when it's false.
func NewHTTPSServer(cfg *Config, handler http.Handler) (*http.Server, bool) {
	tlsConfig, ok := loadTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
	if !ok {
		return nil, false
	}

	return &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      handler,
		TLSConfig:    tlsConfig,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, true
}
