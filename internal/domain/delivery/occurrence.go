// internal/domain/delivery/occurrence.go
package delivery

import (
	"strconv"
	"time"

	"snapletter/internal/domain/preference"

	"github.com/google/uuid"
)

// Occurrence is one "deliver this subscriber's digest at FireAt" intent.
// It is not stored on its own; the execution engine keeps it, keyed by
// CorrelationID.
type Occurrence struct {
	DispatchKey       uuid.UUID // idempotency key sent with the event
	CorrelationID     string    // assigned by the engine
	SubscriberID      string
	FireAt            time.Time
	Cadence           preference.Cadence
	PreferenceVersion int64
	CreatedAt         time.Time
}

// dispatchKeyNamespace scopes the name-based dispatch keys.
var dispatchKeyNamespace = uuid.MustParse("6f1c2b7e-4d5a-4e8b-9c3f-2a7d8e1b5c40")

// DispatchKeyFor derives the idempotency key of the occurrence for
// subscriberID at version firing at fireAt. Dispatching the same occurrence
// twice yields the same key, so the engine keeps a single copy.
func DispatchKeyFor(subscriberID string, version int64, fireAt time.Time) uuid.UUID {
	name := subscriberID + "|" + strconv.FormatInt(version, 10) + "|" + fireAt.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(dispatchKeyNamespace, []byte(name))
}

// Stale reports whether the occurrence no longer matches the subscriber's
// current preferences and must not be delivered.
func (o Occurrence) Stale(current *preference.Record) bool {
	return StaleReason(current, o.PreferenceVersion) != ""
}

// Reasons an occurrence is treated as soft-cancelled.
const (
	ReasonUnknownSubscriber = "unknown_subscriber"
	ReasonInactive          = "inactive"
	ReasonSuperseded        = "superseded"
)

// StaleReason returns why an occurrence created at version should be skipped,
// or "" when it is still live.
func StaleReason(current *preference.Record, version int64) string {
	switch {
	case current == nil:
		return ReasonUnknownSubscriber
	case !current.IsActive:
		return ReasonInactive
	case current.Version != version:
		return ReasonSuperseded
	default:
		return ""
	}
}

// Payload is the event data handed to the delivery pipeline.
type Payload struct {
	SubscriberID       string    `json:"subscriber_id"`
	ContactAddress     string    `json:"contact_address"`
	Topics             []string  `json:"topics"`
	Cadence            string    `json:"cadence"`
	PreferencesVersion int64     `json:"preferences_version"`
	ScheduledFor       time.Time `json:"scheduled_for"`
	DispatchKey        string    `json:"dispatch_key"`
}

// Event is a unit of work submitted to the execution engine.
type Event struct {
	ID   string // idempotency key
	Name string
	Data any
	// FireAt asks the engine to hold the event until this time.
	// Zero means run immediately.
	FireAt time.Time
}
