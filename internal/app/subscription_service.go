// internal/app/subscription_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snapletter/internal/domain/delivery"
	"snapletter/internal/domain/preference"
	idb "snapletter/internal/infra/database"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// RenewalBatchSize caps how many due subscribers one renewal sweep handles.
const RenewalBatchSize = 500

// SaveResult is the outcome of a preference save. Scheduling is reported
// alongside the stored preferences and never replaces them.
type SaveResult struct {
	Preferences *preference.Record
	Scheduling  *DispatchResult
}

// ActivationResult is the outcome of an activation toggle. Scheduling is
// nil when deactivating.
type ActivationResult struct {
	Preferences *preference.Record
	Scheduling  *DispatchResult
}

// PreflightDecision tells the delivery pipeline whether an occurrence that
// is about to fire should still be delivered.
type PreflightDecision struct {
	Deliver bool   `json:"deliver"`
	Reason  string `json:"reason,omitempty"`
}

// RenewalSummary counts what one renewal sweep did.
type RenewalSummary struct {
	Due       int
	Scheduled int
	Skipped   int
	Failed    int
}

// SubscriptionService is the entry point for every subscriber-facing
// operation: saving preferences, toggling activation and tracking runs.
type SubscriptionService struct {
	prefRepo   preference.Repository
	reconciler *Reconciler
	tracker    *RunTracker
	validate   *validator.Validate
	logger     *logrus.Entry
	now        func() time.Time
}

func NewSubscriptionService(pr preference.Repository, rc *Reconciler, rt *RunTracker, logger *logrus.Entry) *SubscriptionService {
	return &SubscriptionService{
		prefRepo:   pr,
		reconciler: rc,
		tracker:    rt,
		validate:   newValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// SavePreferences validates and stores u, then schedules the next delivery
// from now. The save stands even when scheduling fails.
func (s *SubscriptionService) SavePreferences(ctx context.Context, subscriberID string, u preference.Update) (*SaveResult, error) {
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" {
		return nil, ErrSubscriberIDRequired
	}
	u = u.Normalize()
	if err := s.validate.Struct(u); err != nil {
		return nil, validationError(err)
	}

	rec, err := s.prefRepo.Upsert(ctx, subscriberID, u)
	if err != nil {
		if errors.Is(err, idb.ErrConstraintViolation) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		s.logger.WithError(err).WithField("subscriber_id", subscriberID).Error("Failed to save preferences")
		return nil, fmt.Errorf("failed to save preferences: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"subscriber_id": subscriberID,
		"cadence":       rec.Cadence,
		"topics":        len(rec.Topics),
		"version":       rec.Version,
	}).Info("Preferences saved")

	sched := s.reconciler.ScheduleNext(ctx, rec, s.now())
	return &SaveResult{Preferences: rec, Scheduling: sched}, nil
}

// GetPreferences returns the stored preferences or idb.ErrPreferencesNotFound.
func (s *SubscriptionService) GetPreferences(ctx context.Context, subscriberID string) (*preference.Record, error) {
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" {
		return nil, ErrSubscriberIDRequired
	}
	rec, err := s.prefRepo.Get(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, idb.ErrPreferencesNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return rec, nil
}

// SetActivation flips the activation flag and reconciles pending deliveries.
// Activating dispatches one occurrence; deactivating only does bookkeeping.
func (s *SubscriptionService) SetActivation(ctx context.Context, subscriberID string, active bool) (*ActivationResult, error) {
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" {
		return nil, ErrSubscriberIDRequired
	}

	rec, err := s.prefRepo.SetActive(ctx, subscriberID, active)
	if err != nil {
		switch {
		case errors.Is(err, idb.ErrPreferencesNotFound):
			return nil, err
		case errors.Is(err, idb.ErrConstraintViolation):
			return nil, fmt.Errorf("%w: cannot activate without topics", ErrValidation)
		}
		s.logger.WithError(err).WithField("subscriber_id", subscriberID).Error("Failed to update activation")
		return nil, fmt.Errorf("failed to update activation: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"subscriber_id": subscriberID,
		"active":        active,
		"version":       rec.Version,
	}).Info("Activation updated")

	result := &ActivationResult{Preferences: rec}
	if active {
		result.Scheduling = s.reconciler.Activate(ctx, subscriberID)
		if occ := result.Scheduling.Occurrence; occ != nil && occ.PreferenceVersion == rec.Version {
			fireAt := occ.FireAt
			rec.NextFireAt = &fireAt
			rec.LastCorrelationID = occ.CorrelationID
		}
	} else {
		if s.reconciler.Deactivate(ctx, subscriberID) {
			rec.NextFireAt = nil
		}
	}
	return result, nil
}

// GetRunStatus reports the normalized status of a scheduled delivery.
func (s *SubscriptionService) GetRunStatus(ctx context.Context, correlationID string) (*RunReport, error) {
	return s.tracker.Status(ctx, correlationID)
}

// Preflight decides whether an occurrence created from preference version
// should be delivered now. Unknown subscribers are not an error.
func (s *SubscriptionService) Preflight(ctx context.Context, subscriberID string, version int64) (*PreflightDecision, error) {
	rec, err := s.prefRepo.Get(ctx, strings.TrimSpace(subscriberID))
	if err != nil && !errors.Is(err, idb.ErrPreferencesNotFound) {
		return nil, fmt.Errorf("failed to load preferences for preflight: %w", err)
	}
	if err != nil {
		rec = nil
	}

	reason := delivery.StaleReason(rec, version)
	decision := &PreflightDecision{Deliver: reason == "", Reason: reason}
	if !decision.Deliver {
		s.logger.WithFields(logrus.Fields{
			"subscriber_id": subscriberID,
			"version":       version,
			"reason":        reason,
		}).Info("Preflight: occurrence is stale, skipping delivery")
	}
	return decision, nil
}

// RenewDue arms the next occurrence for every active subscriber whose armed
// fire time has passed. Per-subscriber failures are counted, not returned.
func (s *SubscriptionService) RenewDue(ctx context.Context, now time.Time) (*RenewalSummary, error) {
	due, err := s.prefRepo.ListDue(ctx, now, RenewalBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscribers: %w", err)
	}

	summary := &RenewalSummary{Due: len(due)}
	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res := s.reconciler.ScheduleNext(ctx, rec, now)
		switch res.Outcome {
		case OutcomeScheduled:
			summary.Scheduled++
		case OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}
	if summary.Due > 0 {
		s.logger.WithFields(logrus.Fields{
			"due":       summary.Due,
			"scheduled": summary.Scheduled,
			"skipped":   summary.Skipped,
			"failed":    summary.Failed,
		}).Info("Renewal sweep finished")
	}
	return summary, nil
}
