package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse reports a liveness status plus process uptime and the
// current connected-client count.
type healthResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	ConnectedClients int    `json:"connectedClients"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "UP",
		UptimeSeconds:    int64(time.Since(a.StartedAt).Seconds()),
		ConnectedClients: a.Registry.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
