package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"snapletter/internal/domain/delivery"
	"snapletter/internal/domain/preference"
	"snapletter/internal/infra/config"
	"snapletter/internal/infra/database"
	"snapletter/internal/infra/logger"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPreferenceRepository mocks the preference.Repository interface
type MockPreferenceRepository struct {
	mock.Mock
}

func (m *MockPreferenceRepository) Get(ctx context.Context, subscriberID string) (*preference.Record, error) {
	args := m.Called(ctx, subscriberID)
	rec, _ := args.Get(0).(*preference.Record)
	return rec, args.Error(1)
}

func (m *MockPreferenceRepository) Upsert(ctx context.Context, subscriberID string, u preference.Update) (*preference.Record, error) {
	args := m.Called(ctx, subscriberID, u)
	rec, _ := args.Get(0).(*preference.Record)
	return rec, args.Error(1)
}

func (m *MockPreferenceRepository) SetActive(ctx context.Context, subscriberID string, active bool) (*preference.Record, error) {
	args := m.Called(ctx, subscriberID, active)
	rec, _ := args.Get(0).(*preference.Record)
	return rec, args.Error(1)
}

func (m *MockPreferenceRepository) RecordDispatch(ctx context.Context, subscriberID string, version int64, fireAt time.Time, correlationID string) error {
	args := m.Called(ctx, subscriberID, version, fireAt, correlationID)
	return args.Error(0)
}

func (m *MockPreferenceRepository) ClearSchedule(ctx context.Context, subscriberID string) error {
	args := m.Called(ctx, subscriberID)
	return args.Error(0)
}

func (m *MockPreferenceRepository) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*preference.Record, error) {
	args := m.Called(ctx, dueBy, limit)
	recs, _ := args.Get(0).([]*preference.Record)
	return recs, args.Error(1)
}

// fakeEngine is an in-memory execution engine that records submitted events.
// Like the real engine it keeps one copy per event id.
type fakeEngine struct {
	mu        sync.Mutex
	submitted []delivery.Event
	byID      map[string]string
	submitErr error
	runs      map[string][]delivery.Run
	listErr   error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{byID: make(map[string]string), runs: make(map[string][]delivery.Run)}
}

func (f *fakeEngine) Submit(_ context.Context, event delivery.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if correlationID, ok := f.byID[event.ID]; ok {
		return correlationID, nil
	}
	f.submitted = append(f.submitted, event)
	correlationID := fmt.Sprintf("evt-%d", len(f.submitted))
	f.byID[event.ID] = correlationID
	return correlationID, nil
}

func (f *fakeEngine) ListRuns(_ context.Context, correlationID string) ([]delivery.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.runs[correlationID], nil
}

func (f *fakeEngine) events() []delivery.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery.Event(nil), f.submitted...)
}

func (f *fakeEngine) setRuns(correlationID string, runs ...delivery.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[correlationID] = runs
}

// flakyBookkeepingRepo fails the next failRecords RecordDispatch calls.
type flakyBookkeepingRepo struct {
	preference.Repository
	mu          sync.Mutex
	failRecords int
}

func (r *flakyBookkeepingRepo) RecordDispatch(ctx context.Context, subscriberID string, version int64, fireAt time.Time, correlationID string) error {
	r.mu.Lock()
	fail := r.failRecords > 0
	if fail {
		r.failRecords--
	}
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("record dispatch: database is locked")
	}
	return r.Repository.RecordDispatch(ctx, subscriberID, version, fireAt, correlationID)
}

// testHarness wires the real services over an in-memory SQLite store.
type testHarness struct {
	repo   preference.Repository
	engine *fakeEngine
	svc    *SubscriptionService
}

func newTestHarness(t *testing.T, now time.Time) *testHarness {
	t.Helper()
	db, err := database.NewSQLiteConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, config.DriverSQLite, database.MigrateUp, goose.NopLogger()))

	repo := database.NewSQLitePreferenceRepository(db)
	eng := newFakeEngine()
	h := &testHarness{repo: repo, engine: eng}
	h.svc = newServiceWith(repo, eng, now)
	return h
}

func newServiceWith(repo preference.Repository, eng delivery.Engine, now time.Time) *SubscriptionService {
	clock := func() time.Time { return now }
	log := logger.Discard()

	d := NewDispatcher(eng, repo, "digest.schedule", log)
	d.now = clock
	rc := NewReconciler(repo, d, time.UTC, log)
	rc.now = clock
	svc := NewSubscriptionService(repo, rc, NewRunTracker(eng, log), log)
	svc.now = clock
	return svc
}

// runPipeline plays the delivery pipeline for every submitted event: each one
// asks preflight and counts as sent only when told to deliver.
func (h *testHarness) runPipeline(t *testing.T, events []delivery.Event) []delivery.Payload {
	t.Helper()
	var sent []delivery.Payload
	for _, ev := range events {
		payload, ok := ev.Data.(delivery.Payload)
		require.True(t, ok, "event data must be a delivery payload")
		decision, err := h.svc.Preflight(context.Background(), payload.SubscriberID, payload.PreferencesVersion)
		require.NoError(t, err)
		if decision.Deliver {
			sent = append(sent, payload)
		}
	}
	return sent
}
