package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// newTestApp builds an App with a fast proxy timeout suitable for tests
// that exercise the timeout path without slowing the suite down.
func newTestApp(t *testing.T, proxyTimeout time.Duration) (*App, *httptest.Server) {
	t.Helper()

	cfg := &Config{
		ConnectToken:      "right",
		ClientTTL:         time.Hour,
		ProxyTimeout:      proxyTimeout,
		KeepaliveInterval: time.Hour,
	}
	app := NewApp(cfg)
	ts := httptest.NewServer(NewRouter(app))
	t.Cleanup(ts.Close)
	return app, ts
}

// dialAgent performs the /connect handshake and returns the connection
// plus the client-id carried in the first ClientId frame.
func dialAgent(t *testing.T, ts *httptest.Server, token string) (*websocket.Conn, string) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connect"
	header := http.Header{}
	header.Set("PRIVATE-TOKEN", token)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	msg, err := wire.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, wire.KindClientID, msg.Kind)
	require.NotEmpty(t, msg.ClientID)

	return conn, msg.ClientID
}

// TestHappyProxyScenario covers spec scenario 1: a full request/response
// splice plus the content-length elision and cookie emission invariants.
func TestHappyProxyScenario(t *testing.T) {
	_, ts := newTestApp(t, 5*time.Second)
	conn, clientID := dialAgent(t, ts, "right")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		req, err := wire.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, wire.KindProxyRequest, req.Kind)
		require.Equal(t, http.MethodGet, req.Method)
		require.NotNil(t, req.Path)
		require.Equal(t, "ping", *req.Path)
		require.Empty(t, req.Body)

		resp := wire.NewProxyResponse(req.RequestID, 200,
			map[string]string{"content-type": "text/plain", "content-length": "4"},
			[]byte("pong"))
		encoded, err := resp.Encode()
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, encoded))
	}()

	httpResp, err := http.Get(ts.URL + "/proxy/" + clientID + "/ping")
	require.NoError(t, err)
	defer httpResp.Body.Close()

	<-done

	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Equal(t, "text/plain", httpResp.Header.Get("Content-Type"))
	require.Empty(t, httpResp.Header.Get("Content-Length"))

	body, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	require.Equal(t, "pong", string(body))

	var sawCookie bool
	for _, c := range httpResp.Cookies() {
		if c.Name == "client_id" {
			sawCookie = true
			require.Equal(t, clientID, c.Value)
			require.True(t, c.HttpOnly)
			require.Equal(t, "/", c.Path)
		}
	}
	require.True(t, sawCookie, "expected Set-Cookie: client_id=...")
}

// TestProxyTimeoutScenario covers spec scenario 2: no reply within the
// configured window yields 504, and a late reply afterward is discarded
// without panicking anything.
func TestProxyTimeoutScenario(t *testing.T) {
	app, ts := newTestApp(t, 50*time.Millisecond)
	conn, clientID := dialAgent(t, ts, "right")

	var requestID string
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := wire.Decode(raw)
		require.NoError(t, err)
		requestID = req.RequestID
	}()

	httpResp, err := http.Get(ts.URL + "/proxy/" + clientID + "/slow")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusGatewayTimeout, httpResp.StatusCode)

	<-readDone
	require.NotEmpty(t, requestID)
	require.Equal(t, 0, app.Pending.Count())

	late := wire.NewProxyResponse(requestID, 200, nil, []byte("too late"))
	encoded, err := late.Encode()
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, encoded))

	time.Sleep(20 * time.Millisecond)
}

// TestWebhookUnknownClientScenario covers spec scenario 3.
func TestWebhookUnknownClientScenario(t *testing.T) {
	_, ts := newTestApp(t, time.Second)

	resp, err := http.Post(ts.URL+"/webhook/does-not-exist", "application/json", bytes.NewBufferString(`{"x":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	require.Equal(t, "Client id is unknown: does-not-exist", buf.String())
}

// TestConnectAuthMissingScenario covers spec scenario 4.
func TestConnectAuthMissingScenario(t *testing.T) {
	_, ts := newTestApp(t, time.Second)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connect"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	require.Equal(t, "Connection token is missing from header", buf.String())
}

// TestConnectAuthWrongScenario covers spec scenario 5.
func TestConnectAuthWrongScenario(t *testing.T) {
	_, ts := newTestApp(t, time.Second)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/connect"
	header := http.Header{}
	header.Set("PRIVATE-TOKEN", "wrong")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	require.Equal(t, "Connection token is invalid", buf.String())
}

// TestCookieRerouteScenario covers spec scenario 6.
func TestCookieRerouteScenario(t *testing.T) {
	_, ts := newTestApp(t, time.Second)
	_, clientID := dialAgent(t, ts, "right")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/assets/logo.png", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "client_id", Value: clientID})

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	require.Equal(t, "/proxy/"+clientID+"/assets/logo.png", resp.Header.Get("Location"))
}

// TestCatchAllWithoutCookie covers the non-cookie branch of C7.
func TestCatchAllWithoutCookie(t *testing.T) {
	_, ts := newTestApp(t, time.Second)

	rootResp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer rootResp.Body.Close()
	require.Equal(t, http.StatusNotFound, rootResp.StatusCode)

	pathResp, err := http.Get(ts.URL + "/whatever")
	require.NoError(t, err)
	defer pathResp.Body.Close()
	require.Equal(t, http.StatusOK, pathResp.StatusCode)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(pathResp.Body)
	require.Empty(t, buf.String())
}

// TestAgentIDRoundTrip covers the agent-id round-trip invariant: the
// first frame after upgrade is ClientId(id) and id matches what the
// registry holds.
func TestAgentIDRoundTrip(t *testing.T) {
	app, ts := newTestApp(t, time.Second)
	_, clientID := dialAgent(t, ts, "right")

	_, known := app.Registry.Get(clientID)
	require.True(t, known)
}

// TestFanoutFIFOPerProducer covers the FIFO-per-producer invariant: two
// webhooks enqueued by one producer arrive at the agent in order.
func TestFanoutFIFOPerProducer(t *testing.T) {
	_, ts := newTestApp(t, time.Second)
	conn, clientID := dialAgent(t, ts, "right")

	resp1, err := http.Post(ts.URL+"/webhook/"+clientID, "text/plain", bytes.NewBufferString("first"))
	require.NoError(t, err)
	resp1.Body.Close()
	resp2, err := http.Post(ts.URL+"/webhook/"+clientID, "text/plain", bytes.NewBufferString("second"))
	require.NoError(t, err)
	resp2.Body.Close()

	_, raw1, err := conn.ReadMessage()
	require.NoError(t, err)
	m1, err := wire.Decode(raw1)
	require.NoError(t, err)
	require.Equal(t, "first", string(m1.Body))

	_, raw2, err := conn.ReadMessage()
	require.NoError(t, err)
	m2, err := wire.Decode(raw2)
	require.NoError(t, err)
	require.Equal(t, "second", string(m2.Body))
}
