// Package tunnel maintains the agent's persistent WebSocket connection to
// the relay server, dispatching ProxyRequest/Webhook frames to a
// localhttp.Forwarder and replying with ProxyResponse frames. The
// reconnect-with-backoff supervisor retries indefinitely across dropped
// connections, since an agent that dies on the first network blip is not
// production-shaped.
package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	agentconfig "github.com/thatcooperguy/rusty-relay-go/internal/agent/config"
	"github.com/thatcooperguy/rusty-relay-go/internal/agent/localhttp"
	"github.com/thatcooperguy/rusty-relay-go/internal/agent/tlsconfig"
	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 2 * time.Minute
)

// Run dials the relay server and services frames until ctx is cancelled,
// reconnecting with exponential backoff on any disconnect.
func Run(ctx context.Context, cfg *agentconfig.Config) error {
	forwarder := localhttp.NewForwarder(cfg.Target)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Info("connecting to relay server", "server", cfg.Server, "attempt", attempt)

		err := runSession(ctx, cfg, forwarder)
		if err != nil {
			slog.Warn("tunnel session ended", "error", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := calculateBackoff(attempt)
		attempt++

		slog.Info("reconnecting to relay server", "delay", delay, "attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runSession owns one WebSocket connection from dial through its first
// read error, returning nil only if ctx is cancelled mid-session.
func runSession(ctx context.Context, cfg *agentconfig.Config, forwarder *localhttp.Forwarder) error {
	tlsCfg, err := tlsconfig.Build(cfg.CACert)
	if err != nil {
		return fmt.Errorf("building tls config: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig:  tlsCfg,
	}

	url := fmt.Sprintf("%s://%s/connect", cfg.WSScheme(), cfg.Server)
	header := http.Header{}
	header.Set("PRIVATE-TOKEN", cfg.Token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("relay server rejected connection (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dialing relay server: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("reading ClientId frame: %w", err)
	}
	first, err := wire.Decode(raw)
	if err != nil || first.Kind != wire.KindClientID {
		return fmt.Errorf("expected ClientId as first frame, got kind=%q err=%v", first.Kind, err)
	}

	printConnectedURLs(cfg, first.ClientID)

	// gorilla/websocket permits only one concurrent writer; proxy requests
	// are handled concurrently (one local HTTP round trip per request),
	// so their responses funnel through a single writer goroutine instead
	// of writing to conn directly.
	outbound := make(chan wire.Message, fanoutBuffer)
	stop := make(chan struct{})
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- writePump(conn, outbound, stop)
	}()

	readErr := readPump(ctx, stop, forwarder, conn, outbound)
	close(stop)
	<-writerDone

	if ctx.Err() != nil {
		return nil
	}
	return readErr
}

const fanoutBuffer = 32

// writePump is the sole writer to conn. It drains outbound until stop is
// closed, at which point any proxy-handling goroutine still trying to
// send simply observes stop instead of blocking or panicking on a closed
// channel — outbound itself is never closed.
func writePump(conn *websocket.Conn, outbound <-chan wire.Message, stop <-chan struct{}) error {
	for {
		select {
		case msg := <-outbound:
			encoded, err := msg.Encode()
			if err != nil {
				slog.Error("failed to encode outbound frame", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, encoded); err != nil {
				return fmt.Errorf("websocket write: %w", err)
			}
		case <-stop:
			return nil
		}
	}
}

func readPump(ctx context.Context, stop <-chan struct{}, forwarder *localhttp.Forwarder, conn *websocket.Conn, outbound chan<- wire.Message) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket read: %w", err)
		}

		msg, err := wire.Decode(raw)
		if err != nil {
			slog.Debug("dropping malformed frame from relay server", "error", err)
			continue
		}

		switch msg.Kind {
		case wire.KindWebhook:
			go forwarder.HandleWebhook(ctx, msg)

		case wire.KindProxyRequest:
			go func(req wire.Message) {
				resp, err := forwarder.HandleProxyRequest(ctx, req)
				if err != nil {
					return
				}
				select {
				case outbound <- resp:
				case <-stop:
				case <-ctx.Done():
				}
			}(msg)

		default:
			slog.Debug("ignoring frame from relay server", "kind", msg.Kind)
		}
	}
}

func printConnectedURLs(cfg *agentconfig.Config, clientID string) {
	scheme := cfg.HTTPScheme()
	fmt.Printf("connected. client id: %s\n", clientID)
	fmt.Printf("webhook url: %s://%s/webhook/%s\n", scheme, cfg.Server, clientID)
	fmt.Printf("proxy url: %s://%s/proxy/%s\n", scheme, cfg.Server, clientID)
}

func calculateBackoff(attempt int) time.Duration {
	if attempt == 0 {
		return baseReconnectDelay
	}

	delay := time.Duration(math.Pow(2, float64(attempt))) * baseReconnectDelay
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}
