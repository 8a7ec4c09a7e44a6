// Package localhttp forwards relay frames to the local target process,
// the agent-side counterpart of relay-client/src/proxy.rs and
// relay-client/src/webhook.rs.
package localhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// Forwarder relays ProxyRequest/Webhook frames to a fixed local target.
type Forwarder struct {
	target string
	client *http.Client
}

// NewForwarder builds a Forwarder for target, e.g. "http://localhost:3000".
func NewForwarder(target string) *Forwarder {
	return &Forwarder{
		target: strings.TrimSuffix(target, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// HandleProxyRequest forwards a ProxyRequest frame to the local target and
// returns the ProxyResponse frame to send back, or an error if the local
// request could not even be issued (a local 5xx is still a valid
// ProxyResponse, not a Go error).
func (f *Forwarder) HandleProxyRequest(ctx context.Context, req wire.Message) (wire.Message, error) {
	url := f.target
	if req.Path != nil && *req.Path != "" {
		url = f.target + "/" + *req.Path
	}
	if req.Query != nil && *req.Query != "" {
		url += "?" + *req.Query
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return wire.Message{}, fmt.Errorf("building local proxy request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		slog.Warn("local proxy request failed", "target", url, "error", err)
		return wire.Message{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return wire.Message{}, fmt.Errorf("reading local response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, values := range resp.Header {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}

	slog.Info("forwarded proxy request", "method", req.Method, "target", url, "status", resp.StatusCode)

	return wire.NewProxyResponse(req.RequestID, uint16(resp.StatusCode), headers, body), nil
}

// HandleWebhook forwards a Webhook frame to the local target and logs the
// outcome; there is no reply to send back to the relay server.
func (f *Forwarder) HandleWebhook(ctx context.Context, msg wire.Message) {
	httpReq, err := http.NewRequestWithContext(ctx, msg.Method, f.target, bytes.NewReader(msg.Body))
	if err != nil {
		slog.Warn("building local webhook request failed", "error", err)
		return
	}
	for k, v := range msg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		slog.Warn("local webhook request failed", "target", f.target, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		slog.Warn("local webhook target returned an error",
			"target", f.target, "status", resp.StatusCode, "body", string(body))
		return
	}

	slog.Info("forwarded webhook", "method", msg.Method, "target", f.target, "status", resp.StatusCode)
}
