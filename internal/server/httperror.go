package server

import "net/http"

// HTTPError is a small closed set of error dispositions, each knowing
// its own status code and message, written once to the response.
type HTTPError struct {
	Status  int
	Message string
}

func (e HTTPError) Error() string { return e.Message }

func badRequest(msg string) HTTPError     { return HTTPError{http.StatusBadRequest, msg} }
func unauthorized(msg string) HTTPError   { return HTTPError{http.StatusUnauthorized, msg} }
func gatewayTimeout(msg string) HTTPError { return HTTPError{http.StatusGatewayTimeout, msg} }

// writeHTTPError writes e as a plain-text response with its status code.
func writeHTTPError(w http.ResponseWriter, e HTTPError) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(e.Status)
	_, _ = w.Write([]byte(e.Message))
}
