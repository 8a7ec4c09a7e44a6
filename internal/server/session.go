package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// session is the state machine for one WebSocket connection to one tunnel
// agent, from upgrade to teardown.
//
// The lifecycle is a select loop over four event sources, but
// gorilla/websocket only allows one concurrent reader per connection, so
// the inbound socket is drained by its own goroutine that feeds decoded
// frames back into the select loop over a channel — the rest of the
// lifecycle (outbound relay frames, keepalive ticks, eviction) is still a
// single serial writer, preserving delivery order per agent.
type session struct {
	app      *App
	clientID string
	corrID   string
	conn     *websocket.Conn

	outbound <-chan wire.Message
	evicted  <-chan struct{}
}

// inboundFrame is what the reader goroutine hands to the select loop.
type inboundFrame struct {
	msg    wire.Message
	closed bool
	err    error
}

// newSession wraps a just-upgraded connection. clientID is not yet
// visible to callers through the registry; run registers it only once
// the ClientId frame has actually reached the agent.
func newSession(app *App, clientID string, conn *websocket.Conn) *session {
	return &session{
		app:      app,
		clientID: clientID,
		corrID:   uuid.NewString(),
		conn:     conn,
	}
}

// run drives the session until teardown. clientID becomes visible to
// external callers (proxy, webhook) only after sendClientID succeeds —
// an agent must have its own assignment before anyone can address it.
// Once registered, run always removes clientID from the registry and
// closes the socket before returning, regardless of which exit path was
// taken.
func (s *session) run(ctx context.Context) {
	log := slog.With("client_id", s.clientID, "corr_id", s.corrID)

	defer func() {
		_ = s.conn.Close()
	}()

	if err := s.sendClientID(); err != nil {
		log.Error("failed to send ClientId frame, aborting before registration", "error", err)
		return
	}

	s.outbound, s.evicted = s.app.Registry.Register(s.clientID)
	defer func() {
		s.app.Registry.Remove(s.clientID)
		log.Info("agent disconnected")
	}()

	log.Info("agent connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan inboundFrame, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.readPump(gctx, inbound)
		return nil
	})

	s.eventLoop(ctx, inbound, log)
	cancel()
	_ = g.Wait()
}

// sendClientID sends the ClientId frame as the first message on the
// socket, before the event loop starts.
func (s *session) sendClientID() error {
	msg := wire.NewClientID(s.clientID)
	raw, err := msg.Encode()
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

// readPump is the sole reader of s.conn. It runs until the socket closes
// or errors, feeding every text frame (decoded) and the terminal signal
// back to inbound.
func (s *session) readPump(ctx context.Context, inbound chan<- inboundFrame) {
	defer close(inbound)

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case inbound <- inboundFrame{err: err}:
			case <-ctx.Done():
			}
			return
		}

		if msgType == websocket.CloseMessage {
			select {
			case inbound <- inboundFrame{closed: true}:
			case <-ctx.Done():
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		decoded, err := wire.Decode(data)
		if err != nil {
			slog.Debug("dropping malformed frame from agent", "client_id", s.clientID, "corr_id", s.corrID, "error", err)
			continue
		}

		select {
		case inbound <- inboundFrame{msg: decoded}:
		case <-ctx.Done():
			return
		}
	}
}

// eventLoop is the single writer to s.conn, selecting over eviction
// notices, keepalive ticks, outbound relay frames, and decoded inbound
// frames.
func (s *session) eventLoop(ctx context.Context, inbound <-chan inboundFrame, log *slog.Logger) {
	ticker := time.NewTicker(s.app.Config.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.evicted:
			log.Info("client id evicted by ttl, tearing down session")
			return

		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to send keepalive ping", "error", err)
				return
			}

		case relayMsg, ok := <-s.outbound:
			if !ok {
				return
			}
			raw, err := relayMsg.Encode()
			if err != nil {
				log.Error("failed to encode outbound relay message", "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Debug("failed to deliver relay message to agent", "error", err)
				return
			}

		case frame, ok := <-inbound:
			if !ok {
				return
			}
			if frame.closed {
				log.Debug("received websocket close from agent")
				return
			}
			if frame.err != nil {
				log.Debug("websocket read error", "error", frame.err)
				return
			}
			s.handleInbound(frame.msg, log)
		}
	}
}

// handleInbound processes one decoded frame from the agent. Only
// ProxyResponse is meaningful here; every other known variant is an
// agent->server message type that doesn't exist in this direction and is
// logged and ignored, same as an unknown tag.
func (s *session) handleInbound(msg wire.Message, log *slog.Logger) {
	if msg.Kind != wire.KindProxyResponse {
		log.Debug("ignoring non-ProxyResponse frame from agent", "kind", msg.Kind)
		return
	}

	slot, ok := s.app.Pending.Take(msg.RequestID)
	if !ok {
		log.Debug("discarding proxy response for unknown or already-completed request",
			"request_id", msg.RequestID)
		return
	}

	select {
	case slot <- msg:
	default:
		// The waiting proxy handler already gave up (timeout) and nobody
		// is reading; slot has capacity 1 so this can only happen if
		// Take somehow raced a second writer, which the table's mutex
		// rules out. Close defensively so the handler's receive doesn't
		// leak.
		close(slot)
	}
}
