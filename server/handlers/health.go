package handlers

import "net/http"

// HandleHealth is a liveness check that returns "ok". It does not touch the
// campaign host.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
