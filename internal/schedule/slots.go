package schedule

import (
	"time"
)

// availableSlots is static reference data: suggested openings the agent can
// read out. Booking is never restricted to this list.
var availableSlots = []Slot{
	{Date: "2026-02-10", Time: "09:00"},
	{Date: "2026-02-10", Time: "11:30"},
	{Date: "2026-02-11", Time: "14:00"},
	{Date: "2026-02-12", Time: "10:15"},
	{Date: "2026-02-12", Time: "15:30"},
}

func AvailableSlots() []Slot {
	out := make([]Slot, len(availableSlots))
	copy(out, availableSlots)
	return out
}

// FormatSlot renders a slot the way the agent should speak it, e.g.
// "Tue Feb 10 at 9:00 AM". Falls back to the canonical form if the slot is
// somehow malformed.
func FormatSlot(slot Slot) string {
	dt, err := time.Parse("2006-01-02 15:04", slot.Date+" "+slot.Time)
	if err != nil {
		return slot.Date + " " + slot.Time
	}
	return dt.Format("Mon Jan 2 at 3:04 PM")
}

// FormatDateTime renders a canonical date/time pair for summary clauses,
// e.g. "Tue Feb 10, 2026 at 9:00 AM". Non-canonical parts pass through
// unchanged.
func FormatDateTime(date, clock string) string {
	datePart := date
	if d, err := time.Parse("2006-01-02", date); err == nil {
		datePart = d.Format("Mon Jan 2, 2006")
	}
	timePart := clock
	if t, err := time.Parse("15:04", clock); err == nil {
		timePart = t.Format("3:04 PM")
	}
	return datePart + " at " + timePart
}
