package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter builds the full route table, wrapped with request logging
// and panic recovery gorilla/mux middleware.
func NewRouter(a *App) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	r.HandleFunc("/connect", a.handleConnect).Methods(http.MethodGet)

	r.HandleFunc("/webhook/{client_id}", a.handleWebhook)
	r.HandleFunc("/proxy/{client_id}", a.handleProxy)
	r.HandleFunc("/proxy/{client_id}/{path:.*}", a.handleProxy)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", a.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/", a.handleCatchAllRoot).Methods(http.MethodGet)
	r.HandleFunc("/{path:.*}", a.handleCatchAll)

	return r
}

// loggingMiddleware records method, path, status, and latency for every
// request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoveryMiddleware converts a panicking handler into a 500 instead of
// taking down the listener goroutine.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panicked", "panic", rec, "path", r.URL.Path)
				writeHTTPError(w, HTTPError{Status: http.StatusInternalServerError, Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Hijack passes the websocket upgrader's hijack on /connect through to the
// wrapped ResponseWriter.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	sw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
