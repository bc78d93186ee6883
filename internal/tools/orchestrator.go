// Package tools is the tool-call orchestrator: it validates preconditions,
// applies the conflict policy, mutates appointment state, and turns every
// call into an audit event plus a push-channel publish.
package tools

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voicedesk/scheduling-backend/internal/broadcast"
	"github.com/voicedesk/scheduling-backend/internal/humantime"
	"github.com/voicedesk/scheduling-backend/internal/lock"
	"github.com/voicedesk/scheduling-backend/internal/schedule"
	"github.com/voicedesk/scheduling-backend/internal/session"
)

const (
	detailInvalidDateTime = "Could not understand the date/time. Ask for a natural phrasing like 'Tue Feb 12 at 2 PM'."
	detailNeedPhone       = "Phone number not confirmed. Ask the user for their phone number first."
	detailStorage         = "Scheduling storage is unavailable right now. Try again shortly."
	detailContention      = "Another change for this phone number is in progress. Try again in a moment."
)

type Orchestrator struct {
	repo      schedule.Repository
	summaries schedule.SummaryRepository
	sessions  *session.Store
	locker    lock.Locker
	caster    *broadcast.Broadcaster
	buffer    time.Duration
	now       func() time.Time
}

func New(repo schedule.Repository, summaries schedule.SummaryRepository, sessions *session.Store, locker lock.Locker, caster *broadcast.Broadcaster, buffer time.Duration) *Orchestrator {
	if buffer <= 0 {
		buffer = schedule.DefaultConflictBuffer
	}
	return &Orchestrator{
		repo:      repo,
		summaries: summaries,
		sessions:  sessions,
		locker:    locker,
		caster:    caster,
		buffer:    buffer,
		now:       time.Now,
	}
}

func (o *Orchestrator) newEvent(name, detail string, status schedule.EventStatus) schedule.ToolCallEvent {
	return schedule.ToolCallEvent{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    status,
		Detail:    detail,
		Timestamp: o.now(),
	}
}

// record appends a completed event to the session log and publishes it.
// Failed events travel only in the response envelope; the audit trail holds
// what actually happened.
func (o *Orchestrator) record(sessionID string, event schedule.ToolCallEvent) {
	if event.Status != schedule.EventCompleted {
		return
	}
	o.sessions.AppendEvent(sessionID, event)
	o.caster.Publish(sessionID, broadcast.NewMessage(broadcast.TypeToolCall, event))
}

func (o *Orchestrator) fail(sessionID, tool, detail string) Envelope {
	event := o.newEvent(tool, detail, schedule.EventFailed)
	o.record(sessionID, event)
	return Envelope{Event: event, Result: ErrorResult{Error: detail}}
}

// lockFail maps errors out of the per-contact critical section: lock
// contention tells the agent to retry the change, anything else is a
// storage outage.
func (o *Orchestrator) lockFail(sessionID, tool string, err error) Envelope {
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return o.fail(sessionID, tool, detailContention)
	}
	log.Error().Err(err).Str("session_id", sessionID).Str("tool", tool).Msg("locked section")
	return o.fail(sessionID, tool, detailStorage)
}

// confirmContact implements the identity gate shared by every mutating
// tool: an explicit contact argument becomes the stored value; otherwise
// the session must already have one.
func (o *Orchestrator) confirmContact(sessionID, contactArg string) (string, bool) {
	if contactArg != "" {
		o.sessions.SetContactNumber(sessionID, contactArg)
	}
	stored := o.sessions.ContactNumber(sessionID)
	return stored, stored != ""
}

func maskContact(contactNumber string) string {
	var digits []rune
	for _, ch := range contactNumber {
		if ch >= '0' && ch <= '9' {
			digits = append(digits, ch)
		}
	}
	if len(digits) < 4 {
		return contactNumber
	}
	return "***" + string(digits[len(digits)-4:])
}

func (o *Orchestrator) IdentifyUser(ctx context.Context, sessionID string, args IdentifyUserArgs) Envelope {
	detail := "Asked for phone number"
	if args.ContactNumber != "" {
		o.sessions.SetContactNumber(sessionID, args.ContactNumber)
		detail = "Received " + args.ContactNumber
	}

	event := o.newEvent("identify_user", detail, schedule.EventCompleted)
	o.record(sessionID, event)
	return Envelope{Event: event, Result: IdentifyUserResult{ContactNumber: args.ContactNumber}}
}

func (o *Orchestrator) FetchSlots(ctx context.Context, sessionID string) Envelope {
	slots := schedule.AvailableSlots()
	human := make([]string, len(slots))
	for i, slot := range slots {
		human[i] = schedule.FormatSlot(slot)
	}

	event := o.newEvent("fetch_slots", "Returned "+strconv.Itoa(len(slots))+" slots", schedule.EventCompleted)
	o.record(sessionID, event)
	return Envelope{Event: event, Result: SlotsResult{Slots: slots, SlotsHuman: human}}
}

func (o *Orchestrator) BookAppointment(ctx context.Context, sessionID string, args BookArgs) Envelope {
	const tool = "book_appointment"

	contact, ok := o.confirmContact(sessionID, args.ContactNumber)
	if !ok {
		return o.fail(sessionID, tool, detailNeedPhone)
	}
	if strings.TrimSpace(args.Name) == "" {
		return o.fail(sessionID, tool, "Name missing. Ask the user for their name before booking.")
	}
	if args.Date == "" || args.Time == "" {
		return o.fail(sessionID, tool, "Date/time missing. Ask the user when to book.")
	}

	date, clock, err := humantime.Normalize(args.Date, args.Time)
	if err != nil {
		return o.fail(sessionID, tool, detailInvalidDateTime)
	}

	o.sessions.AddPreferences(sessionID, args.Preferences)

	appt := schedule.Appointment{
		ID:              uuid.NewString(),
		ContactNumber:   contact,
		Name:            args.Name,
		Date:            date,
		Time:            clock,
		Status:          schedule.StatusBooked,
		ConfirmedByUser: true,
	}

	err = o.locker.WithContactLock(ctx, contact, func(lockCtx context.Context) error {
		existing, err := o.repo.ListByContact(lockCtx, contact)
		if err != nil {
			return err
		}

		if schedule.WouldConflict(existing, date, clock, "", o.buffer) {
			appt.Status = schedule.StatusConflict
		}

		created, err := o.repo.Create(lockCtx, appt)
		if err != nil {
			// A rejected write is reported as a conflict, never silently
			// dropped.
			log.Warn().Err(err).Str("session_id", sessionID).Msg("appointment create rejected")
			appt.Status = schedule.StatusConflict
			return nil
		}
		appt = created
		return nil
	})
	if err != nil {
		return o.lockFail(sessionID, tool, err)
	}

	event := o.newEvent(tool, "Booked "+date+" "+clock+" for "+args.Name, schedule.EventCompleted)
	if appt.Status == schedule.StatusBooked {
		event.Action = schedule.ActionCreated
		event.Recap = "Booked " + schedule.FormatDateTime(date, clock) + " for " + args.Name + "."
	}

	o.record(sessionID, event)
	return Envelope{Event: event, Result: BookResult{Appointment: appt}}
}

func (o *Orchestrator) RetrieveAppointments(ctx context.Context, sessionID string, args RetrieveArgs) Envelope {
	const tool = "retrieve_appointments"

	if args.ContactNumber == "" {
		return o.fail(sessionID, tool, "Phone number missing. Ask the user for their phone number first.")
	}
	o.sessions.SetContactNumber(sessionID, args.ContactNumber)

	appointments, err := o.repo.ListByContact(ctx, args.ContactNumber)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("retrieve appointments")
		return o.fail(sessionID, tool, detailStorage)
	}
	if appointments == nil {
		appointments = []schedule.Appointment{}
	}

	// The audit detail masks the contact number; full records go only in
	// the result payload.
	detail := "Found " + strconv.Itoa(len(appointments)) + " appointments for " + maskContact(args.ContactNumber)
	event := o.newEvent(tool, detail, schedule.EventCompleted)
	o.record(sessionID, event)
	return Envelope{Event: event, Result: RetrieveResult{Count: len(appointments), Appointments: appointments}}
}

func (o *Orchestrator) CancelAppointment(ctx context.Context, sessionID string, args CancelArgs) Envelope {
	const tool = "cancel_appointment"

	contact, ok := o.confirmContact(sessionID, args.ContactNumber)
	if !ok {
		return o.fail(sessionID, tool, detailNeedPhone)
	}
	if args.Date == "" || args.Time == "" {
		return o.fail(sessionID, tool, "Date/time missing. Ask the user which appointment to cancel.")
	}

	date, clock, err := humantime.Normalize(args.Date, args.Time)
	if err != nil {
		return o.fail(sessionID, tool, detailInvalidDateTime)
	}

	var notFound bool
	err = o.locker.WithContactLock(ctx, contact, func(lockCtx context.Context) error {
		appointments, err := o.repo.ListByContact(lockCtx, contact)
		if err != nil {
			return err
		}

		target, ok := findBooked(appointments, date, clock, args.Name)
		if !ok {
			notFound = true
			return nil
		}

		target.Status = schedule.StatusCancelled
		_, err = o.repo.Update(lockCtx, target)
		return err
	})
	if err != nil {
		return o.lockFail(sessionID, tool, err)
	}
	if notFound {
		return o.fail(sessionID, tool, "No matching appointment found for that date/time.")
	}

	detail := "Cancelled appointment"
	recap := "Cancelled " + schedule.FormatDateTime(date, clock)
	if args.Name != "" {
		detail += " for " + args.Name
		recap += " for " + args.Name
	}
	detail += " on " + date + " at " + clock

	event := o.newEvent(tool, detail, schedule.EventCompleted)
	event.Action = schedule.ActionCancelled
	event.Recap = recap + "."

	o.record(sessionID, event)
	return Envelope{Event: event, Result: CancelResult{Date: date, Time: clock, Name: args.Name}}
}

func (o *Orchestrator) ModifyAppointment(ctx context.Context, sessionID string, args ModifyArgs) Envelope {
	const tool = "modify_appointment"

	contact, ok := o.confirmContact(sessionID, args.ContactNumber)
	if !ok {
		return o.fail(sessionID, tool, detailNeedPhone)
	}
	if args.Date == "" || args.Time == "" || args.NewDate == "" || args.NewTime == "" {
		return o.fail(sessionID, tool, "Missing original or new date/time. Ask the user for both.")
	}

	date, clock, err := humantime.Normalize(args.Date, args.Time)
	if err != nil {
		return o.fail(sessionID, tool, detailInvalidDateTime)
	}
	newDate, newClock, err := humantime.Normalize(args.NewDate, args.NewTime)
	if err != nil {
		return o.fail(sessionID, tool, detailInvalidDateTime)
	}

	var (
		notFound bool
		result   schedule.Appointment
		moved    bool
	)
	err = o.locker.WithContactLock(ctx, contact, func(lockCtx context.Context) error {
		appointments, err := o.repo.ListByContact(lockCtx, contact)
		if err != nil {
			return err
		}

		target, ok := findBooked(appointments, date, clock, args.Name)
		if !ok {
			// Deliberate no-op: modify never creates a fresh booking at
			// the new time.
			notFound = true
			return nil
		}

		if schedule.WouldConflict(appointments, newDate, newClock, target.ID, o.buffer) {
			// Conflict is a completed outcome: the target keeps its slot
			// but is flagged, never auto-reverted.
			target.Status = schedule.StatusConflict
			result, err = o.repo.Update(lockCtx, target)
			return err
		}

		target.Date = newDate
		target.Time = newClock
		result, err = o.repo.Update(lockCtx, target)
		moved = err == nil
		return err
	})
	if err != nil {
		return o.lockFail(sessionID, tool, err)
	}
	if notFound {
		return o.fail(sessionID, tool, "No matching appointment found for that date/time.")
	}

	event := o.newEvent(tool, "Modified appointment for "+result.Name+" to "+result.Date+" "+result.Time, schedule.EventCompleted)
	if moved {
		event.Action = schedule.ActionModified
		event.Recap = "Rescheduled " + result.Name + " from " + schedule.FormatDateTime(date, clock) +
			" to " + schedule.FormatDateTime(newDate, newClock) + "."
	}

	o.record(sessionID, event)
	return Envelope{Event: event, Result: ModifyResult{Appointment: result}}
}

func (o *Orchestrator) EndConversation(ctx context.Context, sessionID string, args EndArgs) Envelope {
	const tool = "end_conversation"

	o.sessions.AddPreferences(sessionID, args.Preferences)

	contact := o.sessions.ContactNumber(sessionID)
	events := o.sessions.Events(sessionID)
	preferences := o.sessions.Preferences(sessionID)

	var booked []schedule.Appointment
	if contact != "" {
		appointments, err := o.repo.ListByContact(ctx, contact)
		if err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("snapshot booked appointments")
			return o.fail(sessionID, tool, detailStorage)
		}
		for _, appt := range appointments {
			if appt.Status == schedule.StatusBooked {
				booked = append(booked, appt)
			}
		}
	}

	summary := ComposeSummary(sessionID, contact, events, preferences, booked, o.now())

	// Upsert keeps a repeated end_conversation idempotent: the summary is
	// replaced, never duplicated.
	if _, err := o.summaries.Upsert(ctx, summary); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("persist summary")
		return o.fail(sessionID, tool, detailStorage)
	}
	o.sessions.SetSummary(sessionID, summary)

	o.caster.Publish(sessionID, broadcast.NewMessage(broadcast.TypeSummary, summary))

	event := o.newEvent(tool, "Conversation ended", schedule.EventCompleted)
	o.record(sessionID, event)

	o.caster.Publish(sessionID, broadcast.NewMessage(broadcast.TypeSessionClosed, map[string]string{
		"session_id": sessionID,
	}))

	return Envelope{Event: event, Result: EndResult{Summary: summary}}
}

// findBooked locates the booked appointment matching date + time, and name
// when one was supplied.
func findBooked(appointments []schedule.Appointment, date, clock, name string) (schedule.Appointment, bool) {
	for _, appt := range appointments {
		if appt.Status != schedule.StatusBooked {
			continue
		}
		if appt.Date != date || appt.Time != clock {
			continue
		}
		if name != "" && appt.Name != name {
			continue
		}
		return appt, true
	}
	return schedule.Appointment{}, false
}
