// Package api provides the JSON helpers and request types of the HTTP surface.
package api

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the envelope written for requests rejected before they reach
// the service. It has the same shape as a failed service envelope.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// JSON writes data as a JSON response with the given status.
func JSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// Success sends a successful HTTP response with optional JSON data.
func Success(w http.ResponseWriter, statusCode int, data any) {
	_ = JSON(w, statusCode, data)
}

// Error sends an error envelope.
func Error(w http.ResponseWriter, statusCode int, code, message string) {
	_ = JSON(w, statusCode, ErrorBody{Error: message, Code: code})
}
