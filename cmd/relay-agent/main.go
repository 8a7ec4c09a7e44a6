package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	agentconfig "github.com/thatcooperguy/rusty-relay-go/internal/agent/config"
	"github.com/thatcooperguy/rusty-relay-go/internal/agent/tunnel"
)

const (
	serviceName        = "RustyRelayAgent"
	serviceDisplayName = "rusty-relay tunnel agent"
	serviceDescription = "Maintains the tunnel agent's WebSocket connection to a rusty-relay server"
)

// svcWrapper adapts tunnel.Run to kardianos/service.Interface so the
// tunnel loop can run as an installed OS service or in the foreground.
type svcWrapper struct {
	cfg    *agentconfig.Config
	cancel context.CancelFunc
}

func (s *svcWrapper) Start(svc service.Service) error {
	go s.run()
	return nil
}

func (s *svcWrapper) Stop(svc service.Service) error {
	slog.Info("service stop requested")
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *svcWrapper) run() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	defer cancel()

	if err := tunnel.Run(ctx, s.cfg); err != nil && ctx.Err() == nil {
		slog.Error("agent exited with error", "error", err)
		os.Exit(1)
	}
}

func main() {
	v := viper.New()

	var (
		doInstall   bool
		doUninstall bool
	)

	rootCmd := &cobra.Command{
		Use:   "relay-agent",
		Short: "rusty-relay tunnel agent",
		Long:  "Connects to a rusty-relay server and forwards proxy/webhook traffic to a local target.",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogger(v.GetString("log_level"))

			cfg, err := agentconfig.Load(v)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			svcConfig := &service.Config{
				Name:        serviceName,
				DisplayName: serviceDisplayName,
				Description: serviceDescription,
			}

			wrapper := &svcWrapper{cfg: cfg}
			svc, err := service.New(wrapper, svcConfig)
			if err != nil {
				return fmt.Errorf("creating service: %w", err)
			}

			switch {
			case doInstall:
				if err := svc.Install(); err != nil {
					return fmt.Errorf("installing service: %w", err)
				}
				fmt.Println("service installed:", serviceName)
				return nil

			case doUninstall:
				_ = svc.Stop()
				if err := svc.Uninstall(); err != nil {
					return fmt.Errorf("uninstalling service: %w", err)
				}
				fmt.Println("service uninstalled:", serviceName)
				return nil

			case service.Interactive():
				ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()

				slog.Info("starting rusty-relay agent in foreground mode")
				return tunnel.Run(ctx, cfg)

			default:
				return svc.Run()
			}
		},
	}

	agentconfig.BindFlags(rootCmd, v)
	rootCmd.Flags().BoolVar(&doInstall, "install", false, "install as an OS service")
	rootCmd.Flags().BoolVar(&doUninstall, "uninstall", false, "uninstall the OS service")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("relay-agent exited with error", "error", err)
		os.Exit(1)
	}
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
