package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// handleWebhook delivers a webhook payload to a tunnel agent fire-and-
// forget: no reply slot, no wait.
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["client_id"]

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeHTTPError(w, badRequest("Failed to read request body"))
		return
	}

	msg := wire.NewWebhook(r.Method, flattenHeaders(r.Header), body)

	_, known := a.Registry.Send(clientID, msg)
	if !known {
		writeHTTPError(w, badRequest(fmt.Sprintf("Client id is unknown: %s", clientID)))
		return
	}

	w.WriteHeader(http.StatusOK)
}
