package schedule

import (
	"testing"
	"time"
)

func booked(id, date, clock string) Appointment {
	return Appointment{
		ID:            id,
		ContactNumber: "+15550001111",
		Name:          "Jane",
		Date:          date,
		Time:          clock,
		Status:        StatusBooked,
	}
}

func TestWouldConflictWithinBuffer(t *testing.T) {
	existing := []Appointment{booked("a", "2026-02-10", "09:00")}

	cases := []struct {
		clock string
		want  bool
	}{
		{"09:00", true},
		{"09:20", true},
		{"08:45", true},
		{"09:29", true},
		{"09:30", false}, // exactly the buffer is allowed
		{"10:00", false},
		{"08:30", false},
	}
	for _, tc := range cases {
		got := WouldConflict(existing, "2026-02-10", tc.clock, "", DefaultConflictBuffer)
		if got != tc.want {
			t.Errorf("WouldConflict at %s = %v, want %v", tc.clock, got, tc.want)
		}
	}
}

func TestWouldConflictDifferentDate(t *testing.T) {
	existing := []Appointment{booked("a", "2026-02-10", "09:00")}
	if WouldConflict(existing, "2026-02-11", "09:00", "", DefaultConflictBuffer) {
		t.Error("same time on a different date should not conflict")
	}
}

func TestWouldConflictIgnoresNonBooked(t *testing.T) {
	cancelled := booked("a", "2026-02-10", "09:00")
	cancelled.Status = StatusCancelled
	conflicted := booked("b", "2026-02-10", "09:10")
	conflicted.Status = StatusConflict

	existing := []Appointment{cancelled, conflicted}
	if WouldConflict(existing, "2026-02-10", "09:05", "", DefaultConflictBuffer) {
		t.Error("cancelled and conflicted records should not block booking")
	}
}

func TestWouldConflictExcludeID(t *testing.T) {
	existing := []Appointment{booked("a", "2026-02-10", "09:00")}
	if WouldConflict(existing, "2026-02-10", "09:10", "a", DefaultConflictBuffer) {
		t.Error("a modify must be able to ignore the record it is moving")
	}
	if !WouldConflict(existing, "2026-02-10", "09:10", "other", DefaultConflictBuffer) {
		t.Error("excluding an unrelated id must not disable the check")
	}
}

// Conflict comparison is time-of-day within one date: bookings 15 clock
// minutes apart across midnight are deliberately not flagged.
func TestWouldConflictCrossMidnightPolicy(t *testing.T) {
	existing := []Appointment{booked("a", "2026-02-10", "23:50")}
	if WouldConflict(existing, "2026-02-11", "00:05", "", DefaultConflictBuffer) {
		t.Error("cross-midnight proximity must not be flagged")
	}
}

func TestWithinBufferUnparseable(t *testing.T) {
	if WithinBuffer("not-a-time", "09:00", 30*time.Minute) {
		t.Error("unparseable times must never conflict")
	}
}
