// Package web exposes the REST and WebSocket surface of the backend.
package web

import (
	"encoding/json"
	"net/http"

	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

// ApiResponse is the uniform envelope of every REST reply.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ApiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.MapToHTTPStatus(err))
	_ = json.NewEncoder(w).Encode(ApiResponse{Success: false, Error: err.Error()})
}
