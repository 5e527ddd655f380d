package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the structured body carried by user-visible failures.
type ErrorBody struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service,omitempty"`
}

// Error writes a structured JSON error response.
func Error(w http.ResponseWriter, status int, errMsg, message, service string) {
	JSON(w, status, ErrorBody{
		Error:     errMsg,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Service:   service,
	})
}
