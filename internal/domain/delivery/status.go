package delivery

import (
	"encoding/json"
	"time"
)

// RunStatus is the normalized lifecycle state reported to callers.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Raw engine lifecycle states that are terminal. Anything else is still running.
const (
	EngineStateCompleted = "Completed"
	EngineStateFailed    = "Failed"
	EngineStateCancelled = "Cancelled"
)

// Run is one execution attempt of a dispatched event, as reported by the engine.
type Run struct {
	ID        string
	State     string
	StartedAt time.Time // zero if the engine did not report it
	EndedAt   time.Time
	Output    json.RawMessage
}

// NormalizeState maps a raw engine state onto RunStatus.
func NormalizeState(state string) RunStatus {
	switch state {
	case EngineStateCompleted:
		return RunStatusCompleted
	case EngineStateFailed, EngineStateCancelled:
		return RunStatusFailed
	default:
		return RunStatusInProgress
	}
}
