package api

import (
	"errors"
	"net/http"

	"snapletter/internal/app"
	"snapletter/internal/domain/delivery"
	idb "snapletter/internal/infra/database"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	var trackErr *app.TrackError
	switch {
	case errors.Is(err, idb.ErrConstraintViolation),
		errors.Is(err, app.ErrValidation),
		errors.Is(err, app.ErrCorrelationIDRequired):
		return http.StatusBadRequest

	case errors.Is(err, idb.ErrPreferencesNotFound):
		return http.StatusNotFound

	// Tracking failures are upstream trouble, not a failed run
	case errors.As(err, &trackErr):
		return http.StatusBadGateway

	case errors.Is(err, delivery.ErrEngineNotConfigured):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a message that can be shown to the caller
// without leaking store or engine internals.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var trackErr *app.TrackError
	switch {
	case errors.Is(err, idb.ErrConstraintViolation):
		return "Invalid preference values"
	case errors.Is(err, app.ErrValidation):
		// Validation messages are built from field names only.
		return err.Error()
	case errors.Is(err, app.ErrCorrelationIDRequired):
		return "Missing correlation id"
	case errors.Is(err, idb.ErrPreferencesNotFound):
		return "Preferences not found"
	case errors.As(err, &trackErr):
		return "Could not reach the execution engine to check delivery status, try again later"
	case errors.Is(err, delivery.ErrEngineNotConfigured):
		return "Execution engine not configured"
	default:
		return "An unexpected error occurred"
	}
}
