package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thatcooperguy/rusty-relay-go/internal/server"
)

func main() {
	var logLevel slog.LevelVar // zero value is info
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: &logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting rusty-relay server")

	cfg := server.LoadConfig()
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		slog.Warn("unknown log level, keeping info", "log_level", cfg.LogLevel)
	}
	slog.Info("configuration loaded",
		"http_port", cfg.HTTPPort,
		"https_port", cfg.HTTPSPort,
		"client_ttl", cfg.ClientTTL,
		"proxy_timeout", cfg.ProxyTimeout,
		"keepalive_interval", cfg.KeepaliveInterval,
	)
	slog.Info("connect token minted; share it with agents out of band", "connect_token", cfg.ConnectToken)

	app := server.NewApp(cfg)
	router := server.NewRouter(app)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	httpsServer, tlsEnabled := server.NewHTTPSServer(cfg, router)

	errCh := make(chan error, 2)

	go func() {
		slog.Info("HTTP listener starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if tlsEnabled {
		go func() {
			slog.Info("HTTPS listener starting", "addr", httpsServer.Addr)
			if err := httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("HTTPS server error: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("server error, shutting down", "error", err)
	}

	slog.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if tlsEnabled {
		if err := httpsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTPS server shutdown error", "error", err)
		}
	}

	slog.Info("rusty-relay server shut down cleanly")
}
