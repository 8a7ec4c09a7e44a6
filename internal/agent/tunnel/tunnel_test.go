package tunnel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	agentconfig "github.com/thatcooperguy/rusty-relay-go/internal/agent/config"
	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// fakeRelayServer upgrades each incoming connection, sends a ClientId
// frame, then hands the conn to onConnect so the test can script further
// frames.
func fakeRelayServer(t *testing.T, onConnect func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		first := wire.NewClientID("agent-test-id")
		raw, err := first.Encode()
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))

		onConnect(conn)
	}))
	return ts
}

func TestRunForwardsProxyRequestAndRepliesWithProxyResponse(t *testing.T) {
	localTarget := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("local-ok"))
	}))
	defer localTarget.Close()

	proxyReplyCh := make(chan wire.Message, 1)

	relay := fakeRelayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()

		path := "ping"
		req := wire.NewProxyRequest("req-xyz", http.MethodGet, nil, nil, &path, nil)
		raw, err := req.Encode()
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))

		_, respRaw, err := conn.ReadMessage()
		require.NoError(t, err)
		resp, err := wire.Decode(respRaw)
		require.NoError(t, err)
		proxyReplyCh <- resp
	})
	defer relay.Close()

	cfg := &agentconfig.Config{
		Server:   strings.TrimPrefix(relay.URL, "http://"),
		Token:    "unused-in-fake-server",
		Target:   localTarget.URL,
		Insecure: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() { _ = Run(ctx, cfg) }()

	select {
	case reply := <-proxyReplyCh:
		require.Equal(t, wire.KindProxyResponse, reply.Kind)
		require.Equal(t, "req-xyz", reply.RequestID)
		require.EqualValues(t, http.StatusOK, reply.Status)
		require.Equal(t, "local-ok", string(reply.Body))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for proxy response")
	}
}

func TestCalculateBackoffGrowsAndCaps(t *testing.T) {
	require.Equal(t, baseReconnectDelay, calculateBackoff(0))
	require.Greater(t, calculateBackoff(3), calculateBackoff(1))
	require.LessOrEqual(t, calculateBackoff(30), maxReconnectDelay)
}
