package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"snapletter/internal/app"
	"snapletter/internal/domain/delivery"
	"snapletter/internal/domain/preference"
	"snapletter/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type recordingSender struct {
	to   telebot.Recipient
	what interface{}
	sent int
	err  error
}

func (s *recordingSender) Send(to telebot.Recipient, what interface{}, _ ...interface{}) (*telebot.Message, error) {
	s.to, s.what = to, what
	s.sent++
	return &telebot.Message{}, s.err
}

func TestAdminAlerter_SendsToAdmin(t *testing.T) {
	sender := &recordingSender{}
	alerter := NewAdminAlerter(sender, 42, logger.Discard())

	require.NoError(t, alerter.Alert(context.Background(), "Renewal sweep failed: boom"))

	assert.Equal(t, 1, sender.sent)
	assert.Equal(t, "42", sender.to.Recipient())
	assert.Equal(t, "⚠️ Renewal sweep failed: boom", sender.what)
}

func TestAdminAlerter_NoAdminOnlyLogs(t *testing.T) {
	sender := &recordingSender{}
	alerter := NewAdminAlerter(sender, 0, logger.Discard())

	require.NoError(t, alerter.Alert(context.Background(), "anything"))
	assert.Zero(t, sender.sent)
}

func TestAdminAlerter_PropagatesSendError(t *testing.T) {
	boom := errors.New("telegram down")
	alerter := NewAdminAlerter(&recordingSender{err: boom}, 42, logger.Discard())

	assert.ErrorIs(t, alerter.Alert(context.Background(), "x"), boom)
}

func TestAdminAlerter_CancelledContext(t *testing.T) {
	sender := &recordingSender{}
	alerter := NewAdminAlerter(sender, 42, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, alerter.Alert(ctx, "x"), context.Canceled)
	assert.Zero(t, sender.sent)
}

func TestFormatRecord(t *testing.T) {
	next := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	rec := &preference.Record{
		SubscriberID:      "sub-1",
		Topics:            []string{"go", "databases"},
		Cadence:           preference.CadenceDaily,
		ContactAddress:    "a@example.com",
		IsActive:          true,
		Version:           3,
		NextFireAt:        &next,
		LastCorrelationID: "evt-1",
		UpdatedAt:         next.Add(-23 * time.Hour),
	}

	text := formatRecord(rec)
	assert.Contains(t, text, "Status: active (version 3)")
	assert.Contains(t, text, "Topics: go, databases")
	assert.Contains(t, text, "Next delivery: 2024-01-02 09:00 UTC")
	assert.Contains(t, text, "Last correlation id: evt-1")

	rec.IsActive, rec.NextFireAt, rec.LastCorrelationID = false, nil, ""
	text = formatRecord(rec)
	assert.Contains(t, text, "Status: paused")
	assert.Contains(t, text, "Next delivery: none armed")
	assert.NotContains(t, text, "Last correlation id")
}

func TestFormatScheduling(t *testing.T) {
	assert.Empty(t, formatScheduling(nil))

	fireAt := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	scheduled := &app.DispatchResult{
		Outcome:    app.OutcomeScheduled,
		Occurrence: &delivery.Occurrence{CorrelationID: "evt-7", FireAt: fireAt},
	}
	assert.Equal(t, "Next delivery scheduled for 2024-03-11 09:00 UTC (correlation id evt-7).", formatScheduling(scheduled))

	failed := &app.DispatchResult{Outcome: app.OutcomeFailed, Warning: "engine rejected the event"}
	assert.Equal(t, "Warning: engine rejected the event", formatScheduling(failed))
}

func TestFormatRenewal(t *testing.T) {
	s := &app.RenewalSummary{Due: 4, Scheduled: 2, Skipped: 1, Failed: 1}
	assert.Equal(t, "Renewal sweep done in 1.5s: 4 due, 2 scheduled, 1 skipped, 1 failed.", formatRenewal(s, 1500*time.Millisecond))
}
