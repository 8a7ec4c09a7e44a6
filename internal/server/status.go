package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// statusResponse is an admin operational snapshot: connected-client and
// pending-request counts plus uptime. It leaks no client payload data.
type statusResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	ConnectedClients int    `json:"connectedClients"`
	PendingRequests  int    `json:"pendingRequests"`
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:           "UP",
		UptimeSeconds:    int64(time.Since(a.StartedAt).Seconds()),
		ConnectedClients: a.Registry.Count(),
		PendingRequests:  a.Pending.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
