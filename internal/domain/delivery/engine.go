package delivery

import (
	"context"
	"errors"
)

// ErrEngineNotConfigured is returned by an Engine that has no credentials.
// Callers treat it as "scheduling skipped", never as a failure.
var ErrEngineNotConfigured = errors.New("execution engine is not configured")

// Engine is the asynchronous job runner that accepts scheduled work and
// reports its lifecycle. Every call may fail; none is retried by the core.
type Engine interface {
	// Submit hands one event to the engine and returns the correlation id
	// the engine assigned to it.
	Submit(ctx context.Context, event Event) (string, error)
	// ListRuns returns every run the engine started for the correlation id.
	ListRuns(ctx context.Context, correlationID string) ([]Run, error)
}
