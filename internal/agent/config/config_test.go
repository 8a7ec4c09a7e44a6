package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T) (*cobra.Command, *viper.Viper) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	BindFlags(cmd, v)
	return cmd, v
}

func TestLoadFromFlags(t *testing.T) {
	cmd, v := newTestCmd(t)
	require.NoError(t, cmd.Flags().Set("server", "relay.example.com:8080"))
	require.NoError(t, cmd.Flags().Set("token", "secret-token"))
	require.NoError(t, cmd.Flags().Set("target", "http://localhost:3000"))

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "relay.example.com:8080", cfg.Server)
	require.Equal(t, "secret-token", cfg.Token)
	require.Equal(t, "http://localhost:3000", cfg.Target)
	require.False(t, cfg.Insecure)
}

func TestLoadFromEnv(t *testing.T) {
	_, v := newTestCmd(t)
	t.Setenv("RUSTY_RELAY_SERVER", "env.example.com")
	t.Setenv("RUSTY_RELAY_TOKEN", "env-token")
	t.Setenv("RUSTY_RELAY_TARGET", "http://localhost:4000")

	cfg, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "env.example.com", cfg.Server)
	require.Equal(t, "env-token", cfg.Token)
	require.Equal(t, "http://localhost:4000", cfg.Target)
}

func TestLoadMissingRequiredFieldErrors(t *testing.T) {
	_, v := newTestCmd(t)
	_, err := Load(v)
	require.Error(t, err)
}

func TestSchemeHelpers(t *testing.T) {
	cfg := &Config{Insecure: true}
	require.Equal(t, "ws", cfg.WSScheme())
	require.Equal(t, "http", cfg.HTTPScheme())

	cfg.Insecure = false
	require.Equal(t, "wss", cfg.WSScheme())
	require.Equal(t, "https", cfg.HTTPScheme())
}
