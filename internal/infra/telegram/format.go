package telegram

import (
	"fmt"
	"strings"
	"time"

	"snapletter/internal/app"
	"snapletter/internal/domain/preference"
)

const timeLayout = "2006-01-02 15:04 MST"

func formatRecord(rec *preference.Record) string {
	var b strings.Builder
	status := "paused"
	if rec.IsActive {
		status = "active"
	}
	fmt.Fprintf(&b, "Subscriber: %s\n", rec.SubscriberID)
	fmt.Fprintf(&b, "Status: %s (version %d)\n", status, rec.Version)
	fmt.Fprintf(&b, "Cadence: %s\n", rec.Cadence)
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(rec.Topics, ", "))
	fmt.Fprintf(&b, "Contact: %s\n", rec.ContactAddress)
	if rec.NextFireAt != nil {
		fmt.Fprintf(&b, "Next delivery: %s\n", rec.NextFireAt.Format(timeLayout))
	} else {
		b.WriteString("Next delivery: none armed\n")
	}
	if rec.LastCorrelationID != "" {
		fmt.Fprintf(&b, "Last correlation id: %s\n", rec.LastCorrelationID)
	}
	fmt.Fprintf(&b, "Updated: %s", rec.UpdatedAt.Format(timeLayout))
	return b.String()
}

func formatRunReport(r *app.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Delivery %s: %s", r.CorrelationID, r.Status)
	if r.RunID != "" {
		fmt.Fprintf(&b, "\nRun: %s", r.RunID)
	}
	if r.StartedAt != nil {
		fmt.Fprintf(&b, "\nStarted: %s", r.StartedAt.Format(timeLayout))
	}
	if r.EndedAt != nil {
		fmt.Fprintf(&b, "\nEnded: %s", r.EndedAt.Format(timeLayout))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "\nError: %s", r.Error)
	}
	return b.String()
}

func formatScheduling(res *app.DispatchResult) string {
	if res == nil {
		return ""
	}
	switch res.Outcome {
	case app.OutcomeScheduled:
		return fmt.Sprintf("Next delivery scheduled for %s (correlation id %s).",
			res.Occurrence.FireAt.Format(timeLayout), res.Occurrence.CorrelationID)
	default:
		return "Warning: " + res.Warning
	}
}

func formatRenewal(s *app.RenewalSummary, took time.Duration) string {
	return fmt.Sprintf("Renewal sweep done in %s: %d due, %d scheduled, %d skipped, %d failed.",
		took.Round(time.Millisecond), s.Due, s.Scheduled, s.Skipped, s.Failed)
}
