package delivery

import (
	"testing"
	"time"

	"snapletter/internal/domain/preference"

	"github.com/stretchr/testify/assert"
)

func TestDispatchKeyFor(t *testing.T) {
	fireAt := time.Date(2024, time.January, 3, 9, 0, 0, 0, time.UTC)
	key := DispatchKeyFor("sub-1", 1, fireAt)

	assert.Equal(t, key, DispatchKeyFor("sub-1", 1, fireAt), "same occurrence, same key")
	assert.Equal(t, key, DispatchKeyFor("sub-1", 1, fireAt.In(time.FixedZone("UTC+3", 3*60*60))), "location does not matter")

	assert.NotEqual(t, key, DispatchKeyFor("sub-2", 1, fireAt))
	assert.NotEqual(t, key, DispatchKeyFor("sub-1", 2, fireAt))
	assert.NotEqual(t, key, DispatchKeyFor("sub-1", 1, fireAt.AddDate(0, 0, 1)))
	assert.Equal(t, 5, int(key.Version()))
}

func TestStaleReason(t *testing.T) {
	active := &preference.Record{SubscriberID: "sub-1", IsActive: true, Version: 4}
	inactive := &preference.Record{SubscriberID: "sub-1", IsActive: false, Version: 5}

	assert.Equal(t, "", StaleReason(active, 4))
	assert.Equal(t, ReasonSuperseded, StaleReason(active, 3))
	assert.Equal(t, ReasonInactive, StaleReason(inactive, 5))
	assert.Equal(t, ReasonUnknownSubscriber, StaleReason(nil, 1))

	assert.False(t, Occurrence{PreferenceVersion: 4}.Stale(active))
	assert.True(t, Occurrence{PreferenceVersion: 3}.Stale(active))
}
