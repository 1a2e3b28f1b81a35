package preference

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFireTime(t *testing.T) {
	ref := time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		cadence Cadence
		want    time.Time
	}{
		{CadenceDaily, time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)},
		{CadenceWeekly, time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)},
		{CadenceBiweekly, time.Date(2024, time.January, 4, 9, 0, 0, 0, time.UTC)},
		{Cadence("monthly"), time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)},
		{Cadence(""), time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(string(tc.cadence), func(t *testing.T) {
			got := NextFireTime(tc.cadence, ref)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
			assert.True(t, got.After(ref))
			assert.Equal(t, DeliveryHour, got.Hour())
			assert.Zero(t, got.Minute())
			assert.Zero(t, got.Second())
			assert.Zero(t, got.Nanosecond())
		})
	}
}

func TestNextFireTime_AlwaysAfterReference(t *testing.T) {
	// Late evening and just past midnight both land on the next interval's day.
	refs := []time.Time{
		time.Date(2024, time.February, 28, 23, 59, 59, 999, time.UTC),
		time.Date(2024, time.February, 29, 0, 0, 1, 0, time.UTC),
		time.Date(2024, time.December, 31, 8, 59, 0, 0, time.UTC),
	}
	for _, ref := range refs {
		for _, c := range Cadences {
			got := NextFireTime(c, ref)
			assert.True(t, got.After(ref), "%s from %s gave %s", c, ref, got)
			assert.Equal(t, DeliveryHour, got.Hour())
		}
	}
}

func TestNextFireTime_UsesReferenceLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	ref := time.Date(2024, time.May, 1, 22, 0, 0, 0, loc)

	got := NextFireTime(CadenceDaily, ref)
	assert.Equal(t, loc, got.Location())
	assert.True(t, got.Equal(time.Date(2024, time.May, 2, 6, 0, 0, 0, time.UTC)))
}

func TestNextFireTime_DaylightSavingTransitions(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name    string
		cadence Cadence
		ref     time.Time
		want    time.Time
	}{
		{
			name:    "daily across spring forward",
			cadence: CadenceDaily,
			ref:     time.Date(2024, time.March, 9, 23, 30, 0, 0, ny),
			want:    time.Date(2024, time.March, 10, 9, 0, 0, 0, ny),
		},
		{
			name:    "daily on the short day",
			cadence: CadenceDaily,
			ref:     time.Date(2024, time.March, 10, 0, 30, 0, 0, ny),
			want:    time.Date(2024, time.March, 11, 9, 0, 0, 0, ny),
		},
		{
			name:    "daily across fall back",
			cadence: CadenceDaily,
			ref:     time.Date(2024, time.November, 2, 23, 30, 0, 0, ny),
			want:    time.Date(2024, time.November, 3, 9, 0, 0, 0, ny),
		},
		{
			name:    "weekly across spring forward",
			cadence: CadenceWeekly,
			ref:     time.Date(2024, time.March, 5, 23, 30, 0, 0, ny),
			want:    time.Date(2024, time.March, 12, 9, 0, 0, 0, ny),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NextFireTime(tc.cadence, tc.ref)
			assert.True(t, got.Equal(tc.want), "got %s, want %s", got, tc.want)
			assert.Equal(t, DeliveryHour, got.Hour())
		})
	}
}

func TestCadence_Days(t *testing.T) {
	assert.Equal(t, 1, CadenceDaily.Days())
	assert.Equal(t, 7, CadenceWeekly.Days())
	assert.Equal(t, 3, CadenceBiweekly.Days())
	assert.Equal(t, 7, Cadence("fortnightly").Days())
}

func TestCadence_Valid(t *testing.T) {
	for _, c := range Cadences {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Cadence("monthly").Valid())
	assert.False(t, Cadence("Daily").Valid())
}

func TestUpdate_Normalize(t *testing.T) {
	u := Update{
		Topics:         []string{" Tech", "", "tech ", "Business", "  "},
		Cadence:        " Biweekly ",
		ContactAddress: "  reader@example.com\n",
	}.Normalize()

	assert.Equal(t, []string{"Tech", "Business"}, u.Topics)
	assert.Equal(t, CadenceBiweekly, u.Cadence)
	assert.Equal(t, "reader@example.com", u.ContactAddress)
}
