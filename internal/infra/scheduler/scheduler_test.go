package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"snapletter/internal/app"
	"snapletter/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenewer struct {
	summary *app.RenewalSummary
	err     error
	calls   []time.Time
}

func (f *fakeRenewer) RenewDue(_ context.Context, now time.Time) (*app.RenewalSummary, error) {
	f.calls = append(f.calls, now)
	return f.summary, f.err
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []string
	err    error
}

func (f *fakeAlerter) Alert(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, text)
	return f.err
}

func TestRenewalScheduler_RunOnce(t *testing.T) {
	now := time.Date(2024, time.January, 2, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		name       string
		summary    *app.RenewalSummary
		err        error
		wantAlerts []string
	}{
		{
			name:    "clean sweep",
			summary: &app.RenewalSummary{Due: 3, Scheduled: 3},
		},
		{
			name:       "partial failure",
			summary:    &app.RenewalSummary{Due: 3, Scheduled: 1, Failed: 2},
			wantAlerts: []string{"Renewal sweep: 2 of 3 due subscribers could not be scheduled."},
		},
		{
			name:       "store down",
			err:        errors.New("connection refused"),
			wantAlerts: []string{"Renewal sweep failed: connection refused"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			renewer := &fakeRenewer{summary: tc.summary, err: tc.err}
			alerter := &fakeAlerter{}
			s := NewRenewalScheduler(renewer, alerter, logger.Discard(), "*/15 * * * *", time.UTC)
			s.now = func() time.Time { return now }

			got := s.RunOnce(context.Background())
			assert.Equal(t, tc.summary, got)
			require.Len(t, renewer.calls, 1)
			assert.True(t, renewer.calls[0].Equal(now))
			assert.Equal(t, tc.wantAlerts, alerter.alerts)
		})
	}
}

func TestRenewalScheduler_AlertFailureIsLogged(t *testing.T) {
	renewer := &fakeRenewer{err: errors.New("boom")}
	alerter := &fakeAlerter{err: errors.New("telegram down")}
	s := NewRenewalScheduler(renewer, alerter, logger.Discard(), "*/15 * * * *", time.UTC)

	assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Len(t, alerter.alerts, 1)
}

func TestRenewalScheduler_NoAlerter(t *testing.T) {
	renewer := &fakeRenewer{err: errors.New("boom")}
	s := NewRenewalScheduler(renewer, nil, logger.Discard(), "*/15 * * * *", time.UTC)

	assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
}

func TestRenewalScheduler_StartRejectsBadSpec(t *testing.T) {
	s := NewRenewalScheduler(&fakeRenewer{}, nil, logger.Discard(), "every quarter hour", time.UTC)
	assert.Error(t, s.Start())
}

func TestRenewalScheduler_StartStop(t *testing.T) {
	s := NewRenewalScheduler(&fakeRenewer{summary: &app.RenewalSummary{}}, nil, logger.Discard(), "*/15 * * * *", time.UTC)
	require.NoError(t, s.Start())
	s.Stop()
}
