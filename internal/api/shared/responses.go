package shared

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		LoggerFrom(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("Failed to encode JSON response")
	}
}

// RespondWithError writes a JSON error response with the given status code and message.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// RespondWithErrorAndLog writes a sanitized error response and logs the full error.
// 5xx responses are logged at ERROR, 502/503 at WARN, everything else at DEBUG.
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, status int, userMessage string, err error) {
	reqID := middleware.GetReqID(r.Context())
	entry := LoggerFrom(r.Context()).WithFields(logrus.Fields{
		"request_id":   reqID,
		"path":         r.URL.Path,
		"method":       r.Method,
		"status_code":  status,
		"user_message": userMessage,
	})
	if err != nil {
		entry = entry.WithError(err).WithField("error_type", fmt.Sprintf("%T", err))
	}

	switch {
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		entry.Warn("API error response")
	case status >= http.StatusInternalServerError:
		entry.Error("API error response")
	default:
		entry.Debug("API error response")
	}

	RespondWithJSON(w, r, status, ErrorResponse{Error: userMessage, RequestID: reqID})
}
