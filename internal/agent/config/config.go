// Package config resolves the tunnel agent's runtime configuration from
// CLI flags and RUSTY_RELAY_* environment variables, using cobra for flag
// definitions and viper for flag/env binding.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds everything the tunnel agent needs to dial the relay
// server and forward traffic to a local target.
type Config struct {
	// Server is the relay server's host[:port], without scheme
	// (relay-client/src/cli.rs: --server / RUSTY_RELAY_SERVER).
	Server string `mapstructure:"server"`

	// Token is the shared connect-token presented via PRIVATE-TOKEN.
	Token string `mapstructure:"token"`

	// Target is the local URL traffic is forwarded to, e.g.
	// http://localhost:3000.
	Target string `mapstructure:"target"`

	// Insecure connects to the relay server over ws:// / http:// instead
	// of wss:// / https://.
	Insecure bool `mapstructure:"insecure"`

	// CACert optionally pins a CA certificate (PEM) for the relay
	// server's TLS connection, mirroring relay-client/src/tls.rs.
	CACert string `mapstructure:"ca_cert"`

	LogLevel string `mapstructure:"log_level"`
}

// BindFlags registers the agent's CLI flags on cmd and binds each one to
// its RUSTY_RELAY_* environment variable via viper, the same pairing
// relay-client/src/cli.rs expresses with clap's `env = "..."` attribute.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("server", "", "relay server hostname, e.g. localhost:8080 or my.server.com")
	flags.String("token", "", "connection token generated on the relay server")
	flags.String("target", "", "target URL to the local webserver, e.g. http://localhost:3000")
	flags.BoolP("insecure", "i", false, "connect to the relay server without TLS")
	flags.String("ca-cert", "", "path to a CA certificate (PEM encoded) for the relay connection")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	v.SetEnvPrefix("RUSTY_RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"server":    "server",
		"token":     "token",
		"target":    "target",
		"insecure":  "insecure",
		"ca-cert":   "ca_cert",
		"log-level": "log_level",
	}
	for flagName, key := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(flagName))
	}
}

// Load resolves a Config from v, validating the required fields.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server:   v.GetString("server"),
		Token:    v.GetString("token"),
		Target:   v.GetString("target"),
		Insecure: v.GetBool("insecure"),
		CACert:   v.GetString("ca_cert"),
		LogLevel: v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required fields relay-client/src/cli.rs marks as
// mandatory (server, token, target carry no clap default).
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required (--server or RUSTY_RELAY_SERVER)")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required (--token or RUSTY_RELAY_TOKEN)")
	}
	if c.Target == "" {
		return fmt.Errorf("target is required (--target or RUSTY_RELAY_TARGET)")
	}
	return nil
}

// WSScheme returns "ws" or "wss" depending on Insecure.
func (c *Config) WSScheme() string {
	if c.Insecure {
		return "ws"
	}
	return "wss"
}

// HTTPScheme returns "http" or "https" depending on Insecure.
func (c *Config) HTTPScheme() string {
	if c.Insecure {
		return "http"
	}
	return "https"
}
