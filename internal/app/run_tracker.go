// internal/app/run_tracker.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"snapletter/internal/domain/delivery"

	"github.com/sirupsen/logrus"
)

var errNoRunState = errors.New("engine reported a run without a lifecycle state")

// RunReport is the normalized status of one scheduled delivery.
type RunReport struct {
	CorrelationID string             `json:"correlation_id"`
	Status        delivery.RunStatus `json:"status"`
	RunID         string             `json:"run_id,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	Result        json.RawMessage    `json:"result,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// RunTracker answers "what happened to the delivery I scheduled?".
type RunTracker struct {
	engine delivery.Engine
	logger *logrus.Entry
}

func NewRunTracker(e delivery.Engine, logger *logrus.Entry) *RunTracker {
	return &RunTracker{engine: e, logger: logger}
}

// Status queries the engine once. Failing to learn the status returns a
// *TrackError; it is never reported as a failed run.
func (t *RunTracker) Status(ctx context.Context, correlationID string) (*RunReport, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, ErrCorrelationIDRequired
	}

	runs, err := t.engine.ListRuns(ctx, correlationID)
	if err != nil {
		t.logger.WithError(err).WithField("correlation_id", correlationID).Warn("Failed to fetch run status")
		return nil, &TrackError{CorrelationID: correlationID, Err: err}
	}
	if len(runs) == 0 {
		return &RunReport{CorrelationID: correlationID, Status: delivery.RunStatusPending}, nil
	}

	latest := latestRun(runs)
	if latest.State == "" {
		return nil, &TrackError{CorrelationID: correlationID, Err: errNoRunState}
	}

	report := &RunReport{
		CorrelationID: correlationID,
		Status:        delivery.NormalizeState(latest.State),
		RunID:         latest.ID,
	}
	if !latest.StartedAt.IsZero() {
		started := latest.StartedAt
		report.StartedAt = &started
	}
	if !latest.EndedAt.IsZero() {
		ended := latest.EndedAt
		report.EndedAt = &ended
	}

	switch report.Status {
	case delivery.RunStatusCompleted:
		if len(latest.Output) > 0 && string(latest.Output) != "null" {
			report.Result = latest.Output
		}
	case delivery.RunStatusFailed:
		report.Error = runError(latest)
	}
	return report, nil
}

// latestRun picks the run with the most recent start time. Runs that never
// reported a start sort oldest; ties keep the engine's order.
func latestRun(runs []delivery.Run) delivery.Run {
	latest := runs[0]
	for _, r := range runs[1:] {
		if r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	return latest
}

// runError extracts the failure message from a run's output. The engine puts
// it under "error", either as a string or as an object with a message.
func runError(run delivery.Run) string {
	var out struct {
		Error json.RawMessage `json:"error"`
	}
	if len(run.Output) > 0 && json.Unmarshal(run.Output, &out) == nil && len(out.Error) > 0 {
		var msg string
		if json.Unmarshal(out.Error, &msg) == nil && msg != "" {
			return msg
		}
		var obj struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.Unmarshal(out.Error, &obj) == nil && obj.Message != "" {
			if obj.Name != "" {
				return obj.Name + ": " + obj.Message
			}
			return obj.Message
		}
		if string(out.Error) != "null" {
			return string(out.Error)
		}
	}
	if run.State == delivery.EngineStateCancelled {
		return "run cancelled"
	}
	return "run failed"
}
