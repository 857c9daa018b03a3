// Package handlers provides HTTP handlers for the statement converter API.
package handlers

import (
	"encoding/json"
	"net/http"
)

const (
	sessionHeader  = "X-Session-ID"
	defaultSession = "default"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// sessionID extracts the caller's session from the request headers. Callers
// that do not identify themselves share the default session.
func sessionID(r *http.Request) string {
	if s := r.Header.Get(sessionHeader); s != "" {
		return s
	}
	return defaultSession
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
