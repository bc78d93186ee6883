package schedule

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps appointments in a process-local map. It is the
// default backend when no Postgres DSN is configured, and the base the test
// double wraps.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]Appointment
	order        map[string]int // insertion order for stable listings
	next         int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[string]Appointment),
		order:        make(map[string]int),
	}
}

func (r *MemoryRepository) Create(_ context.Context, appt Appointment) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.appointments[appt.ID]; exists {
		return Appointment{}, ErrDuplicateAppointment
	}

	r.appointments[appt.ID] = appt
	r.order[appt.ID] = r.next
	r.next++
	return appt, nil
}

func (r *MemoryRepository) ListByContact(_ context.Context, contactNumber string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, appt := range r.appointments {
		if appt.ContactNumber == contactNumber {
			result = append(result, appt)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return r.order[result[i].ID] < r.order[result[j].ID]
	})

	return result, nil
}

func (r *MemoryRepository) Update(_ context.Context, appt Appointment) (Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.appointments[appt.ID]; !exists {
		return Appointment{}, ErrAppointmentNotFound
	}

	r.appointments[appt.ID] = appt
	return appt, nil
}

// MemorySummaryRepository stores one summary per session id.
type MemorySummaryRepository struct {
	mu        sync.RWMutex
	summaries map[string]ConversationSummary
}

func NewMemorySummaryRepository() *MemorySummaryRepository {
	return &MemorySummaryRepository{summaries: make(map[string]ConversationSummary)}
}

func (r *MemorySummaryRepository) Upsert(_ context.Context, summary ConversationSummary) (ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summaries[summary.SessionID] = summary
	return summary, nil
}

func (r *MemorySummaryRepository) GetBySession(_ context.Context, sessionID string) (ConversationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary, ok := r.summaries[sessionID]
	if !ok {
		return ConversationSummary{}, ErrSummaryNotFound
	}
	return summary, nil
}
