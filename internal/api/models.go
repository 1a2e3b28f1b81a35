package api

import (
	"time"

	"snapletter/internal/app"
	"snapletter/internal/domain/preference"
)

// PreferencesRequest is the body of PUT /api/subscribers/{subscriberID}/preferences.
// Field validation happens in the subscription service.
type PreferencesRequest struct {
	Topics         []string `json:"topics"`
	Cadence        string   `json:"cadence"`
	ContactAddress string   `json:"contact_address"`
}

// ActivationRequest is the body of PATCH /api/subscribers/{subscriberID}/activation.
type ActivationRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// PreferencesResponse represents stored preferences.
type PreferencesResponse struct {
	SubscriberID      string     `json:"subscriber_id"`
	Topics            []string   `json:"topics"`
	Cadence           string     `json:"cadence"`
	ContactAddress    string     `json:"contact_address"`
	IsActive          bool       `json:"is_active"`
	Version           int64      `json:"version"`
	NextFireAt        *time.Time `json:"next_fire_at,omitempty"`
	LastCorrelationID string     `json:"last_correlation_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// SchedulingResponse reports what happened to the delivery scheduling step.
type SchedulingResponse struct {
	Outcome       string     `json:"outcome"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	ScheduledFor  *time.Time `json:"scheduled_for,omitempty"`
	Warning       string     `json:"warning,omitempty"`
}

// SaveResponse is returned by savePreferences and setActivation. A failed
// scheduling step still yields success=true with a warning.
type SaveResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Warning     string              `json:"warning,omitempty"`
	Preferences PreferencesResponse `json:"preferences"`
	Scheduling  *SchedulingResponse `json:"scheduling,omitempty"`
}

// EngineInfoResponse is returned by GET /api/engine.
type EngineInfoResponse struct {
	EngineConfigured  bool   `json:"engine_configured"`
	SigningKeyPresent bool   `json:"signing_key_present"`
	EventKeyPresent   bool   `json:"event_key_present"`
	EventName         string `json:"event_name"`
	Environment       string `json:"environment"`
}

// EngineTestResponse is returned by POST /api/engine/test.
type EngineTestResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	EventID          string `json:"event_id"`
	EngineConfigured bool   `json:"engine_configured"`
}

func preferencesToResponse(rec *preference.Record) PreferencesResponse {
	topics := rec.Topics
	if topics == nil {
		topics = []string{}
	}
	return PreferencesResponse{
		SubscriberID:      rec.SubscriberID,
		Topics:            topics,
		Cadence:           string(rec.Cadence),
		ContactAddress:    rec.ContactAddress,
		IsActive:          rec.IsActive,
		Version:           rec.Version,
		NextFireAt:        rec.NextFireAt,
		LastCorrelationID: rec.LastCorrelationID,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func schedulingToResponse(res *app.DispatchResult) *SchedulingResponse {
	if res == nil {
		return nil
	}
	out := &SchedulingResponse{
		Outcome: string(res.Outcome),
		Warning: res.Warning,
	}
	if res.Occurrence != nil {
		out.CorrelationID = res.Occurrence.CorrelationID
		fireAt := res.Occurrence.FireAt
		out.ScheduledFor = &fireAt
	}
	return out
}

// saveMessage mirrors the scheduling outcome in a human readable line.
func saveMessage(subject string, res *app.DispatchResult) string {
	if res == nil {
		return subject + " saved"
	}
	switch res.Outcome {
	case app.OutcomeScheduled:
		return subject + " saved and delivery scheduled"
	case app.OutcomeSkipped:
		return subject + " saved (delivery scheduling skipped)"
	default:
		return subject + " saved (delivery scheduling failed)"
	}
}
