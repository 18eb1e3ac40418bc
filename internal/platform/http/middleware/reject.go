package middleware

import "net/http"

// RejectFunc writes the response for a request a middleware refuses to pass
// on. The server supplies one that writes the API error envelope.
type RejectFunc func(w http.ResponseWriter, r *http.Request, status int)

// plainReject is used when no RejectFunc is configured.
func plainReject(w http.ResponseWriter, r *http.Request, status int) {
	http.Error(w, http.StatusText(status), status)
}
