// Package response writes the JSON bodies of the orchestrator API.
package response

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx answer.
type Error struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Error{Error: message})
}

// WriteAccepted answers 202 for work that runs later. location points at
// the resource that tracks it.
func WriteAccepted(w http.ResponseWriter, location string, v any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	WriteJSON(w, http.StatusAccepted, v)
}
