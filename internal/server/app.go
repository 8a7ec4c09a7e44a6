package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// App holds the shared state every HTTP handler and session needs: the
// client registry, the pending-request table, and resolved config. It
// plays the role of the original's Arc<AppState> passed into every axum
// handler, but as a plain struct whose methods are registered on a
// gorilla/mux router (see router.go).
type App struct {
	Config    *Config
	Registry  *Registry
	Pending   *PendingTable
	StartedAt time.Time

	upgrader websocket.Upgrader
}

// NewApp builds a ready-to-serve App from cfg.
func NewApp(cfg *Config) *App {
	return &App{
		Config:    cfg,
		Registry:  NewRegistry(cfg.ClientTTL),
		Pending:   NewPendingTable(),
		StartedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Tunnel agents are a separate process/host from any browser
			// origin; the origin check that matters is the PRIVATE-TOKEN
			// header, not Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
