package server

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the relay server, resolved
// from environment variables with sane defaults. Ports, TLS file paths,
// the connect token and the log level come from RUSTY_RELAY_* variables;
// ClientTTL, ProxyTimeout and KeepaliveInterval are fixed defaults that
// no environment variable overrides.
type Config struct {
	HTTPPort  string
	HTTPSPort string

	TLSCertFile string
	TLSKeyFile  string

	// ConnectToken is the shared secret an agent must present on
	// /connect via the PRIVATE-TOKEN header. Random at startup unless
	// overridden.
	ConnectToken string

	// ClientTTL is how long a registered client-id survives without
	// being explicitly torn down (default 24h).
	ClientTTL time.Duration

	// ProxyTimeout bounds how long the proxy handler waits for a
	// ProxyResponse before returning 504 (default 5s).
	ProxyTimeout time.Duration

	// KeepaliveInterval is how often the session manager sends a ping
	// frame to a connected agent (default 25s).
	KeepaliveInterval time.Duration

	LogLevel string
}

// LoadConfig resolves Config from the process environment. A .env file in
// the working directory is loaded first (if present) via godotenv, so
// local development doesn't require exporting RUSTY_RELAY_* into the
// shell.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := &Config{
		HTTPPort:          envOr("RUSTY_RELAY_HTTP_PORT", "8080"),
		HTTPSPort:         envOr("RUSTY_RELAY_HTTPS_PORT", "8443"),
		TLSCertFile:       envOr("RUSTY_RELAY_TLS_CERT_FILE", "./certs/cert.pem"),
		TLSKeyFile:        envOr("RUSTY_RELAY_TLS_KEY_FILE", "./certs/key.pem"),
		ClientTTL:         24 * time.Hour,
		ProxyTimeout:      5 * time.Second,
		KeepaliveInterval: 25 * time.Second,
		LogLevel:          envOr("RUSTY_RELAY_LOG_LEVEL", "info"),
	}

	if token := os.Getenv("RUSTY_RELAY_CONNECT_TOKEN"); token != "" {
		cfg.ConnectToken = token
	} else {
		cfg.ConnectToken = mustGenerateID(connectTokenLength)
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
