// Package response defines the JSON envelope every HTTP handler writes.
package response

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the wire envelope: status is "success" or "error", message
// carries the human-readable error text, data the payload.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes a success envelope with the given payload.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Status: "success",
		Data:   data,
	})
}

// Error writes an error envelope with the given message.
func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(APIResponse{
		Status:  "error",
		Message: msg,
	})
}
