package preference

import "time"

// DeliveryHour is the local hour every occurrence is normalized to.
const DeliveryHour = 9

// Days returns the spacing between two deliveries for the cadence, in
// calendar days. Unknown cadences use the weekly spacing.
func (c Cadence) Days() int {
	switch c {
	case CadenceDaily:
		return 1
	case CadenceWeekly:
		return 7
	case CadenceBiweekly:
		// "biweekly" is twice a week here, not once every two weeks.
		return 3
	default:
		return 7
	}
}

// NextFireTime returns when the next delivery for cadence should fire, given
// the reference time ref. The cadence's days are added to ref's calendar date
// and the result is moved to DeliveryHour:00 on that day, in ref's location.
// Calendar days keep a daily subscriber on consecutive dates across DST
// changes, where a 23 or 25 hour day would otherwise skip or repeat a date.
func NextFireTime(cadence Cadence, ref time.Time) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d+cadence.Days(), DeliveryHour, 0, 0, 0, ref.Location())
}
