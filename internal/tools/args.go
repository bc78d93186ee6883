package tools

import (
	"github.com/voicedesk/scheduling-backend/internal/schedule"
)

// One argument record per tool, so required fields are visible at compile
// time instead of hiding in an untyped map.

type IdentifyUserArgs struct {
	ContactNumber string `json:"contact_number"`
}

type BookArgs struct {
	Name          string   `json:"name"`
	ContactNumber string   `json:"contact_number"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	Preferences   []string `json:"preferences,omitempty"`
}

type RetrieveArgs struct {
	ContactNumber string `json:"contact_number"`
}

type CancelArgs struct {
	ContactNumber string `json:"contact_number"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Name          string `json:"name,omitempty"`
}

type ModifyArgs struct {
	ContactNumber string `json:"contact_number"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	NewDate       string `json:"new_date"`
	NewTime       string `json:"new_time"`
}

type EndArgs struct {
	Preferences []string `json:"preferences,omitempty"`
}

// Tool results. Failed preconditions use ErrorResult; the event's detail
// carries the same text.

type ErrorResult struct {
	Error string `json:"error"`
}

type IdentifyUserResult struct {
	ContactNumber string `json:"contact_number"`
}

type SlotsResult struct {
	Slots      []schedule.Slot `json:"slots"`
	SlotsHuman []string        `json:"slots_human"`
}

type BookResult struct {
	Appointment schedule.Appointment `json:"appointment"`
}

type RetrieveResult struct {
	Count        int                    `json:"count"`
	Appointments []schedule.Appointment `json:"appointments"`
}

type CancelResult struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Name string `json:"name,omitempty"`
}

type ModifyResult struct {
	Appointment schedule.Appointment `json:"appointment"`
}

type EndResult struct {
	Summary schedule.ConversationSummary `json:"summary"`
}

// Envelope is the response for every tool call: the audit event plus the
// tool-specific payload.
type Envelope struct {
	Event  schedule.ToolCallEvent `json:"event"`
	Result any                    `json:"result"`
}
