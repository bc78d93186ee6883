package schedule

import (
	"context"
	"errors"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrDuplicateAppointment = errors.New("appointment id already exists")
	ErrSummaryNotFound      = errors.New("summary not found")
)

// Repository contains all appointment storage interactions needed by the
// orchestrator. Backends must make Create and Update atomic; there is no
// delete, cancellation is a status transition.
type Repository interface {
	Create(ctx context.Context, appt Appointment) (Appointment, error)
	ListByContact(ctx context.Context, contactNumber string) ([]Appointment, error)
	// Update replaces the full record keyed by id.
	Update(ctx context.Context, appt Appointment) (Appointment, error)
}

// SummaryRepository persists end-of-call summaries keyed by session id.
// Upsert overwrites, so end_conversation stays idempotent.
type SummaryRepository interface {
	Upsert(ctx context.Context, summary ConversationSummary) (ConversationSummary, error)
	GetBySession(ctx context.Context, sessionID string) (ConversationSummary, error)
}
