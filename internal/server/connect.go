package server

import (
	"context"
	"log/slog"
	"net/http"
	"unicode/utf8"
)

// handleConnect authenticates the upgrade request, mints a client-id, and
// hands off to a session. It is registered on the router as GET /connect.
func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := a.checkConnectToken(r); err != nil {
		if he, ok := err.(HTTPError); ok {
			writeHTTPError(w, he)
			return
		}
		writeHTTPError(w, badRequest(err.Error()))
		return
	}

	clientID := mustGenerateID(clientIDLength)

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(a, clientID, conn)
	go sess.run(context.Background())
}

// checkConnectToken validates the PRIVATE-TOKEN header against the
// configured connect token.
func (a *App) checkConnectToken(r *http.Request) error {
	values := r.Header.Values("PRIVATE-TOKEN")
	if len(values) == 0 {
		return unauthorized("Connection token is missing from header")
	}

	token := values[0]
	if !utf8.ValidString(token) {
		return badRequest("Connection token has invalid format")
	}

	if token != a.Config.ConnectToken {
		return unauthorized("Connection token is invalid")
	}

	return nil
}
