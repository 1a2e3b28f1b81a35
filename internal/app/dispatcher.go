// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"time"

	"snapletter/internal/domain/delivery"
	"snapletter/internal/domain/preference"
	idb "snapletter/internal/infra/database"
	"snapletter/internal/infra/engine"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Outcome is the result class of one dispatch attempt.
type Outcome string

const (
	OutcomeScheduled Outcome = "scheduled"
	OutcomeSkipped   Outcome = "skipped" // engine not configured
	OutcomeFailed    Outcome = "failed"
)

const engineNotConfiguredWarning = "delivery scheduling skipped: execution engine is not configured"

// DispatchResult describes what happened to a scheduling request. It is
// always reported next to the preference write, never in place of it.
type DispatchResult struct {
	Outcome    Outcome              `json:"outcome"`
	Occurrence *delivery.Occurrence `json:"-"`
	Warning    string               `json:"warning,omitempty"`
	Err        error                `json:"-"`
}

// CorrelationID returns the engine id of the dispatched occurrence, if any.
func (r *DispatchResult) CorrelationID() string {
	if r == nil || r.Occurrence == nil {
		return ""
	}
	return r.Occurrence.CorrelationID
}

// Dispatcher hands one future delivery occurrence to the execution engine.
// Delivery is at-least-once from here on; a dispatch is never retried.
// Re-dispatching an occurrence (same subscriber, version and fire time)
// reuses its dispatch key, and the engine drops the duplicate.
type Dispatcher struct {
	engine    delivery.Engine
	prefRepo  preference.Repository
	eventName string
	logger    *logrus.Entry
	now       func() time.Time
	newKey    func(subscriberID string, version int64, fireAt time.Time) uuid.UUID
}

func NewDispatcher(e delivery.Engine, pr preference.Repository, eventName string, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		engine:    e,
		prefRepo:  pr,
		eventName: eventName,
		logger:    logger,
		now:       time.Now,
		newKey:    delivery.DispatchKeyFor,
	}
}

// Dispatch schedules delivery of rec's digest at fireAt. The returned error is
// a *DispatchError when the engine refused the occurrence; an unconfigured
// engine is not an error and yields OutcomeSkipped.
func (d *Dispatcher) Dispatch(ctx context.Context, rec *preference.Record, fireAt time.Time) (*DispatchResult, error) {
	occ := &delivery.Occurrence{
		DispatchKey:       d.newKey(rec.SubscriberID, rec.Version, fireAt),
		SubscriberID:      rec.SubscriberID,
		FireAt:            fireAt,
		Cadence:           rec.Cadence,
		PreferenceVersion: rec.Version,
		CreatedAt:         d.now(),
	}
	log := d.logger.WithFields(logrus.Fields{
		"subscriber_id": rec.SubscriberID,
		"fire_at":       fireAt.Format(time.RFC3339),
		"version":       rec.Version,
		"dispatch_key":  occ.DispatchKey.String(),
	})

	event := delivery.Event{
		ID:   occ.DispatchKey.String(),
		Name: d.eventName,
		Data: delivery.Payload{
			SubscriberID:       rec.SubscriberID,
			ContactAddress:     rec.ContactAddress,
			Topics:             rec.Topics,
			Cadence:            string(rec.Cadence),
			PreferencesVersion: rec.Version,
			ScheduledFor:       fireAt,
			DispatchKey:        occ.DispatchKey.String(),
		},
		FireAt: fireAt,
	}

	correlationID, err := d.engine.Submit(ctx, event)
	if errors.Is(err, delivery.ErrEngineNotConfigured) {
		log.Warn("Execution engine not configured, skipping delivery scheduling")
		return &DispatchResult{Outcome: OutcomeSkipped, Warning: engineNotConfiguredWarning}, nil
	}
	if err != nil {
		dErr := &DispatchError{Reason: dispatchFailureReason(err), Err: err}
		log.WithError(err).WithField("reason", dErr.Reason).Error("Failed to dispatch delivery occurrence")
		return &DispatchResult{
			Outcome: OutcomeFailed,
			Warning: "delivery scheduling failed: " + dErr.Reason,
			Err:     dErr,
		}, dErr
	}
	occ.CorrelationID = correlationID
	log = log.WithField("correlation_id", correlationID)
	log.Info("Delivery occurrence scheduled")

	// Bookkeeping only. The occurrence is already with the engine.
	if err := d.prefRepo.RecordDispatch(ctx, rec.SubscriberID, rec.Version, fireAt, correlationID); err != nil {
		if errors.Is(err, idb.ErrDispatchSuperseded) {
			log.Info("Preferences changed while dispatching; occurrence will be skipped as superseded")
		} else {
			log.WithError(err).Warn("Failed to record dispatched occurrence")
		}
	} else {
		rec.NextFireAt = &fireAt
		rec.LastCorrelationID = correlationID
	}

	return &DispatchResult{Outcome: OutcomeScheduled, Occurrence: occ}, nil
}

func dispatchFailureReason(err error) string {
	var statusErr *engine.StatusError
	switch {
	case errors.Is(err, engine.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, engine.ErrMalformedResponse):
		return "malformed_response"
	case errors.As(err, &statusErr):
		return "rejected"
	default:
		return "unreachable"
	}
}
