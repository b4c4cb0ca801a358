// Package httpx holds the JSON response helpers shared by the middleware and
// the HTTP handlers.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error response. Code is an opaque,
// stable identifier; store or exception text never reaches the client.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorCode writes {"error": code} with the given status.
func WriteErrorCode(w http.ResponseWriter, status int, code string) {
	WriteJSON(w, status, ErrorResponse{Error: code})
}

// WriteError maps err onto its status and code and writes it.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusForError(err)
	WriteErrorCode(w, status, code)
}
