// Package scheduletest provides deterministic repository doubles for the
// test suite.
package scheduletest

import (
	"context"

	"github.com/voicedesk/scheduling-backend/internal/schedule"
)

// FaultRepository wraps an in-memory repository and fails selected
// operations with injected errors. Zero-valued fields pass straight
// through.
type FaultRepository struct {
	Inner *schedule.MemoryRepository

	CreateErr error
	ListErr   error
	UpdateErr error
}

func NewFaultRepository() *FaultRepository {
	return &FaultRepository{Inner: schedule.NewMemoryRepository()}
}

func (r *FaultRepository) Create(ctx context.Context, appt schedule.Appointment) (schedule.Appointment, error) {
	if r.CreateErr != nil {
		return schedule.Appointment{}, r.CreateErr
	}
	return r.Inner.Create(ctx, appt)
}

func (r *FaultRepository) ListByContact(ctx context.Context, contactNumber string) ([]schedule.Appointment, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	return r.Inner.ListByContact(ctx, contactNumber)
}

func (r *FaultRepository) Update(ctx context.Context, appt schedule.Appointment) (schedule.Appointment, error) {
	if r.UpdateErr != nil {
		return schedule.Appointment{}, r.UpdateErr
	}
	return r.Inner.Update(ctx, appt)
}
