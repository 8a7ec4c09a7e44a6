package server

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
)

var collapseSlashes = regexp.MustCompile(`/{2,}`)

// handleCatchAllRoot and handleCatchAll handle bare navigation outside
// /proxy, /webhook, /connect, /health, and /status: a client_id cookie
// pins future bare navigation back through the proxy.
func (a *App) handleCatchAllRoot(w http.ResponseWriter, r *http.Request) {
	if target, ok := a.catchAllRedirectTarget(r, ""); ok {
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (a *App) handleCatchAll(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	if target, ok := a.catchAllRedirectTarget(r, path); ok {
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// catchAllRedirectTarget builds the "/proxy/{client_id}[/{path}][?query]"
// redirect target when the caller carries a client_id cookie, collapsing
// any doubled slashes produced by an empty path segment.
func (a *App) catchAllRedirectTarget(r *http.Request, path string) (string, bool) {
	cookie, err := r.Cookie("client_id")
	if err != nil || cookie.Value == "" {
		return "", false
	}

	target := fmt.Sprintf("/proxy/%s/%s", cookie.Value, path)
	target = collapseSlashes.ReplaceAllString(target, "/")

	if q := r.URL.RawQuery; q != "" {
		target += "?" + q
	}

	return target, true
}
