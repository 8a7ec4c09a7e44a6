package server

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// handleProxy splices one external HTTP request/response cycle through a
// tunnel agent's socket.
func (a *App) handleProxy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	clientID := vars["client_id"]
	suffixPath := vars["path"]

	if _, known := a.Registry.Get(clientID); !known {
		writeHTTPError(w, badRequest(fmt.Sprintf("Client id is unknown: %s", clientID)))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeHTTPError(w, badRequest("Failed to read request body"))
		return
	}

	requestID := mustGenerateID(requestIDLength)

	var path *string
	if suffixPath != "" {
		path = &suffixPath
	}

	var query *string
	if q := formatQuery(r.URL.Query()); q != "" {
		query = &q
	}

	msg := wire.NewProxyRequest(requestID, r.Method, flattenHeaders(r.Header), body, path, query)

	slot := make(chan wire.Message, 1)
	a.Pending.Insert(requestID, slot)

	delivered, known := a.Registry.Send(clientID, msg)
	if !known {
		a.Pending.Remove(requestID)
		writeHTTPError(w, badRequest(fmt.Sprintf("Client id is unknown: %s", clientID)))
		return
	}
	if !delivered {
		// Fan-out channel is full: the agent exists but isn't draining.
		// Treated the same as no reply ever arriving, rather than as a
		// distinct error.
		a.Pending.Remove(requestID)
		writeHTTPError(w, gatewayTimeout("Timeout"))
		return
	}

	setClientIDCookie(w, clientID)

	timer := time.NewTimer(a.Config.ProxyTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-slot:
		if !ok {
			writeHTTPError(w, gatewayTimeout("Timeout"))
			return
		}
		renderProxyResponse(w, resp)

	case <-timer.C:
		a.Pending.Remove(requestID)
		writeHTTPError(w, gatewayTimeout("Timeout"))
	}
}

// renderProxyResponse copies a ProxyResponse wire message onto w:
// content-length is always dropped (net/http recomputes it), every other
// header passes through verbatim.
func renderProxyResponse(w http.ResponseWriter, resp wire.Message) {
	header := w.Header()
	for k, v := range resp.Headers {
		if strings.EqualFold(k, "content-length") {
			continue
		}
		header.Set(k, v)
	}

	status := int(resp.Status)
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// setClientIDCookie sets the pinning cookie: session-lifetime, HttpOnly,
// path "/".
func setClientIDCookie(w http.ResponseWriter, clientID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "client_id",
		Value:    clientID,
		Path:     "/",
		HttpOnly: true,
	})
}

// flattenHeaders collapses net/http's multi-value header map into the
// single-string-per-key mapping the wire protocol carries, joining
// repeated values with ", " the way HTTP permits.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[k] = strings.Join(values, ", ")
	}
	return out
}

// formatQuery renders url.Values back into "k1=v1&k2=v2" form, escaping
// each key and value so characters with structural meaning in a query
// string (&, =, %, ...) round-trip instead of splitting or merging
// parameters. The original parameter order is not recoverable from
// url.Values (Go's parser discards ordering), so this renders in Values'
// own iteration order — acceptable because the agent only round-trips
// the string without needing to preserve original caller intent.
func formatQuery(values map[string][]string) string {
	if len(values) == 0 {
		return ""
	}

	var b strings.Builder
	first := true
	for k, vs := range values {
		ek := url.QueryEscape(k)
		for _, v := range vs {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(ek)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
