// internal/domain/preference/preference.go
package preference

import (
	"strings"
	"time"
)

// Cadence is the named recurrence pattern controlling delivery spacing.
type Cadence string

const (
	CadenceDaily    Cadence = "daily"
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly" // twice a week, see NextFireTime
)

// Cadences lists the accepted cadence values in display order.
var Cadences = []Cadence{CadenceDaily, CadenceWeekly, CadenceBiweekly}

// Valid reports whether c is one of the fixed cadence values.
func (c Cadence) Valid() bool {
	for _, known := range Cadences {
		if c == known {
			return true
		}
	}
	return false
}

// Record is a subscriber's delivery preferences.
// Corresponds to the 'subscriber_preferences' table.
type Record struct {
	SubscriberID   string
	Topics         []string
	Cadence        Cadence
	ContactAddress string
	IsActive       bool

	// Version is bumped by every preference write. Occurrences carry the
	// version they were created from; a mismatch marks them stale.
	Version int64
	// NextFireAt is the fire time of the most recently dispatched occurrence.
	// Nil when nothing is armed (never dispatched, or deactivated).
	NextFireAt        *time.Time
	LastCorrelationID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update carries the caller-supplied fields of a preference save.
type Update struct {
	Topics         []string `json:"topics" validate:"required,min=1,dive,required,max=64"`
	Cadence        Cadence  `json:"cadence" validate:"required,oneof=daily weekly biweekly"`
	ContactAddress string   `json:"contact_address" validate:"required,email,max=320"`
}

// Normalize trims every topic and drops blanks and duplicates, keeping the
// first occurrence order. The contact address is trimmed as well.
func (u Update) Normalize() Update {
	seen := make(map[string]struct{}, len(u.Topics))
	topics := make([]string, 0, len(u.Topics))
	for _, t := range u.Topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		topics = append(topics, t)
	}
	return Update{
		Topics:         topics,
		Cadence:        Cadence(strings.ToLower(strings.TrimSpace(string(u.Cadence)))),
		ContactAddress: strings.TrimSpace(u.ContactAddress),
	}
}
