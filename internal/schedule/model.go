package schedule

import (
	"time"
)

type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusConflict  AppointmentStatus = "conflict"
	StatusNotFound  AppointmentStatus = "not_found"
)

type EventStatus string

const (
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// ActionKind classifies what a tool call did to appointment state. The
// summary composer groups events by this field instead of parsing detail
// strings.
type ActionKind string

const (
	ActionCreated   ActionKind = "created"
	ActionModified  ActionKind = "modified"
	ActionCancelled ActionKind = "cancelled"
)

// Appointment is the persisted booking record. Date and Time are always
// canonical (YYYY-MM-DD and 24-hour HH:MM); the normalizer runs before
// anything reaches a repository. Cancellation flips Status, the record is
// never deleted.
type Appointment struct {
	ID              string            `json:"id"`
	ContactNumber   string            `json:"contact_number"`
	Name            string            `json:"name"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
	Status          AppointmentStatus `json:"status"`
	ConfirmedByUser bool              `json:"confirmed_by_user"`
}

// ToolCallEvent is one immutable entry in a session's audit trail.
type ToolCallEvent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    EventStatus `json:"status"`
	Detail    string      `json:"detail"`
	Action    ActionKind  `json:"action,omitempty"`
	Recap     string      `json:"recap,omitempty"` // humanized clause used by the end-of-call summary
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationSummary is composed exactly once per session at end-of-call
// (re-running end_conversation overwrites it, never duplicates it).
type ConversationSummary struct {
	SessionID          string        `json:"session_id"`
	ContactNumber      string        `json:"contact_number,omitempty"`
	Summary            string        `json:"summary"`
	BookedAppointments []Appointment `json:"booked_appointments"`
	Preferences        []string      `json:"preferences"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Slot is a suggested opening. Pure reference data: booking is not
// restricted to catalog slots.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}
