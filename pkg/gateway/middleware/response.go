package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody is the sanitized JSON shape for every error response. No raw
// exception text is ever returned to a caller.
type errorBody struct {
	Reason string `json:"reason"`
}

// WriteError writes a sanitized JSON error body with the given status.
// Never pass raw error text here — only fixed, user-facing reason strings.
func WriteError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Reason: reason})
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
