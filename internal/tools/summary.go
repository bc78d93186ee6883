package tools

import (
	"strings"
	"time"

	"github.com/voicedesk/scheduling-backend/internal/schedule"
)

// ComposeSummary derives the end-of-call recap from the session's event
// log. It is deterministic: same inputs, same output. Events are grouped by
// their structured action kind, never by parsing detail strings.
func ComposeSummary(sessionID, contactNumber string, events []schedule.ToolCallEvent, preferences []string, booked []schedule.Appointment, endedAt time.Time) schedule.ConversationSummary {
	var created, modified, cancelled, notes []string

	for _, ev := range events {
		if ev.Status != schedule.EventCompleted {
			continue
		}
		switch ev.Action {
		case schedule.ActionCreated:
			created = append(created, ev.Recap)
		case schedule.ActionModified:
			modified = append(modified, ev.Recap)
		case schedule.ActionCancelled:
			cancelled = append(cancelled, ev.Recap)
		default:
			switch ev.Name {
			case "fetch_slots":
				notes = append(notes, "Reviewed available time slots.")
			case "retrieve_appointments":
				notes = append(notes, "Checked existing appointments.")
			}
		}
	}

	parts := []string{"Here's a quick recap of what we covered."}

	if len(created) > 0 {
		parts = append(parts, "Booked: "+strings.Join(created, "; "))
	}
	if len(modified) > 0 {
		parts = append(parts, "Updated: "+strings.Join(modified, "; "))
	}
	if len(cancelled) > 0 {
		parts = append(parts, "Cancelled: "+strings.Join(cancelled, "; "))
	}

	if len(created) == 0 && len(modified) == 0 && len(cancelled) == 0 {
		parts = append(parts, "No appointments were booked, changed, or cancelled.")
		if len(notes) > 0 {
			parts = append(parts, "We also "+strings.Join(notes, " "))
		}
	}

	if len(preferences) > 0 {
		parts = append(parts, "Preferences noted: "+strings.Join(preferences, ", ")+".")
	} else {
		parts = append(parts, "Preferences noted: none.")
	}

	parts = append(parts, "Call ended at "+endedAt.UTC().Format("Jan 02, 2006 03:04 PM")+" UTC.")

	if booked == nil {
		booked = []schedule.Appointment{}
	}
	if preferences == nil {
		preferences = []string{}
	}

	return schedule.ConversationSummary{
		SessionID:          sessionID,
		ContactNumber:      contactNumber,
		Summary:            strings.Join(parts, " "),
		BookedAppointments: booked,
		Preferences:        preferences,
		CreatedAt:          endedAt,
	}
}
