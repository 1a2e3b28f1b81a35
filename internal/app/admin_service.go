package app

import (
	"context"
	"errors"
	"time"

	"snapletter/internal/domain/preference"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
var ErrAlreadyInactive = errors.New("subscriber is already inactive")
var ErrAlreadyActive = errors.New("subscriber is already active")

// AdminService backs the operator commands of the ops bot. Every call checks
// the performing user against the configured admin id.
type AdminService struct {
	subs            *SubscriptionService
	adminTelegramID int64
	now             func() time.Time
}

func NewAdminService(subs *SubscriptionService, adminID int64) *AdminService {
	return &AdminService{
		subs:            subs,
		adminTelegramID: adminID,
		now:             time.Now,
	}
}

// IsAdmin reports whether userID may run admin commands.
func (s *AdminService) IsAdmin(userID int64) bool {
	return s.adminTelegramID != 0 && userID == s.adminTelegramID
}

// Inspect returns a subscriber's stored preferences.
func (s *AdminService) Inspect(ctx context.Context, performingAdminID int64, subscriberID string) (*preference.Record, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.subs.GetPreferences(ctx, subscriberID)
}

// Pause deactivates a subscriber on their behalf.
func (s *AdminService) Pause(ctx context.Context, performingAdminID int64, subscriberID string) (*ActivationResult, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	current, err := s.subs.GetPreferences(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if !current.IsActive {
		return &ActivationResult{Preferences: current}, ErrAlreadyInactive
	}
	return s.subs.SetActivation(ctx, subscriberID, false)
}

// Resume reactivates a subscriber and schedules their next delivery.
func (s *AdminService) Resume(ctx context.Context, performingAdminID int64, subscriberID string) (*ActivationResult, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}

	current, err := s.subs.GetPreferences(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if current.IsActive {
		return &ActivationResult{Preferences: current}, ErrAlreadyActive
	}
	return s.subs.SetActivation(ctx, subscriberID, true)
}

// RunStatus looks up a scheduled delivery by correlation id.
func (s *AdminService) RunStatus(ctx context.Context, performingAdminID int64, correlationID string) (*RunReport, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.subs.GetRunStatus(ctx, correlationID)
}

// RenewNow runs a renewal sweep immediately.
func (s *AdminService) RenewNow(ctx context.Context, performingAdminID int64) (*RenewalSummary, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.subs.RenewDue(ctx, s.now())
}
