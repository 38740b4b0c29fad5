package api

import (
	"encoding/json"
	"net/http"

	"github.com/prepbot/prepbot/internal/log"
)

// writeJSON writes a JSON response with the given status code. Encoding
// failures after WriteHeader cannot reach the client; they are only
// logged.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, logger log.Logger, status int, errCode, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: errCode, Message: message})
}
