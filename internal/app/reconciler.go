// internal/app/reconciler.go
package app

import (
	"context"
	"time"

	"snapletter/internal/domain/preference"

	"github.com/sirupsen/logrus"
)

// Reconciler keeps the engine's pending occurrences in line with the
// activation state. None of its methods fail the caller: errors are logged
// and folded into the returned result.
type Reconciler struct {
	prefRepo   preference.Repository
	dispatcher *Dispatcher
	location   *time.Location
	logger     *logrus.Entry
	now        func() time.Time
}

func NewReconciler(pr preference.Repository, d *Dispatcher, loc *time.Location, logger *logrus.Entry) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		prefRepo:   pr,
		dispatcher: d,
		location:   loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Activate reads the current record and dispatches exactly one occurrence
// for its next fire time.
func (r *Reconciler) Activate(ctx context.Context, subscriberID string) *DispatchResult {
	log := r.logger.WithField("subscriber_id", subscriberID)

	rec, err := r.prefRepo.Get(ctx, subscriberID)
	if err != nil {
		log.WithError(err).Error("Activation reconcile: failed to load preferences")
		return &DispatchResult{Outcome: OutcomeFailed, Warning: "delivery scheduling failed: could not load preferences", Err: err}
	}
	if !rec.IsActive {
		// Deactivated between the toggle and this read.
		log.Info("Activation reconcile: subscriber no longer active, nothing to schedule")
		return &DispatchResult{Outcome: OutcomeSkipped, Warning: "delivery scheduling skipped: subscriber is inactive"}
	}
	return r.ScheduleNext(ctx, rec, r.now())
}

// Deactivate only does bookkeeping. Occurrences already with the engine stay
// there and are skipped by the delivery pipeline because the record is
// inactive. It reports whether the armed schedule was cleared in the store.
func (r *Reconciler) Deactivate(ctx context.Context, subscriberID string) bool {
	log := r.logger.WithField("subscriber_id", subscriberID)

	rec, err := r.prefRepo.Get(ctx, subscriberID)
	if err != nil {
		log.WithError(err).Warn("Deactivation reconcile: failed to load preferences")
		return false
	}
	if rec.NextFireAt != nil {
		log.WithFields(logrus.Fields{
			"correlation_id": rec.LastCorrelationID,
			"fire_at":        rec.NextFireAt.Format(time.RFC3339),
		}).Info("Deactivation reconcile: outstanding occurrence will be skipped at delivery time")
	}
	if err := r.prefRepo.ClearSchedule(ctx, subscriberID); err != nil {
		log.WithError(err).Warn("Deactivation reconcile: failed to clear schedule")
		return false
	}
	return true
}

// ScheduleNext dispatches rec's next occurrence relative to ref. A dispatch
// failure is reported in the result and logged, never returned.
func (r *Reconciler) ScheduleNext(ctx context.Context, rec *preference.Record, ref time.Time) *DispatchResult {
	fireAt := preference.NextFireTime(rec.Cadence, ref.In(r.location))
	res, err := r.dispatcher.Dispatch(ctx, rec, fireAt)
	if err != nil {
		r.logger.WithError(err).WithField("subscriber_id", rec.SubscriberID).Warn("Scheduling next delivery failed; preferences are kept")
	}
	return res
}
