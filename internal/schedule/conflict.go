package schedule

import (
	"time"
)

// DefaultConflictBuffer is the minimum separation between two booked
// appointments for the same contact on the same date.
const DefaultConflictBuffer = 30 * time.Minute

// WouldConflict reports whether booking candidateDate/candidateTime for this
// contact would land within buffer of an existing booked appointment on the
// same date. excludeID lets a modify ignore the record being moved.
//
// The comparison is time-of-day only: dates are pre-filtered by string
// equality, so 23:50 and 00:05 the next day are never flagged even though
// they are 15 minutes apart on the clock.
func WouldConflict(existing []Appointment, candidateDate, candidateTime, excludeID string, buffer time.Duration) bool {
	for _, appt := range existing {
		if appt.ID == excludeID || appt.Status != StatusBooked {
			continue
		}
		if appt.Date != candidateDate {
			continue
		}
		if WithinBuffer(appt.Time, candidateTime, buffer) {
			return true
		}
	}
	return false
}

// WithinBuffer reports whether two canonical HH:MM times fall strictly
// inside buffer of each other. Unparseable times never conflict.
func WithinBuffer(existingTime, candidateTime string, buffer time.Duration) bool {
	a, err := time.Parse("15:04", existingTime)
	if err != nil {
		return false
	}
	b, err := time.Parse("15:04", candidateTime)
	if err != nil {
		return false
	}

	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta < buffer
}
