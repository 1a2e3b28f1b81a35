package preference

import (
	"context"
	"time"
)

// Repository defines the operations for persisting subscriber preferences.
// Every call reads or writes exactly one row and must be atomic on its own.
type Repository interface {
	Get(ctx context.Context, subscriberID string) (*Record, error)
	// Upsert creates or replaces the subscriber's preferences and marks them
	// active. It bumps Version.
	Upsert(ctx context.Context, subscriberID string, u Update) (*Record, error)
	// SetActive flips the activation flag and bumps Version.
	SetActive(ctx context.Context, subscriberID string, active bool) (*Record, error)

	// Bookkeeping, does not bump Version. RecordDispatch only applies while the
	// record is still at version; otherwise the dispatch was superseded.
	RecordDispatch(ctx context.Context, subscriberID string, version int64, fireAt time.Time, correlationID string) error
	ClearSchedule(ctx context.Context, subscriberID string) error

	// ListDue returns active records whose NextFireAt is at or before dueBy.
	ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*Record, error)
}
