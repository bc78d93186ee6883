package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/voicedesk/scheduling-backend/internal/broadcast"
	"github.com/voicedesk/scheduling-backend/internal/lock"
	"github.com/voicedesk/scheduling-backend/internal/schedule"
	"github.com/voicedesk/scheduling-backend/internal/schedule/scheduletest"
	"github.com/voicedesk/scheduling-backend/internal/session"
)

type fixture struct {
	orch     *Orchestrator
	repo     *scheduletest.FaultRepository
	sessions *session.Store
	caster   *broadcast.Broadcaster
	sid      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := scheduletest.NewFaultRepository()
	sessions := session.NewStore()
	caster := broadcast.New(8)
	orch := New(repo, schedule.NewMemorySummaryRepository(), sessions, lock.NewLocalLocker(), caster, schedule.DefaultConflictBuffer)
	return &fixture{
		orch:     orch,
		repo:     repo,
		sessions: sessions,
		caster:   caster,
		sid:      sessions.Create().SessionID,
	}
}

func (f *fixture) identify(t *testing.T, contact string) {
	t.Helper()
	env := f.orch.IdentifyUser(context.Background(), f.sid, IdentifyUserArgs{ContactNumber: contact})
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("identify_user failed: %s", env.Event.Detail)
	}
}

func (f *fixture) book(t *testing.T, name, date, clock string) schedule.Appointment {
	t.Helper()
	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: name, Date: date, Time: clock,
	})
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("book_appointment failed: %s", env.Event.Detail)
	}
	return env.Result.(BookResult).Appointment
}

const contact = "+15550001111"

func TestIdentifyUserStoresContact(t *testing.T) {
	f := newFixture(t)
	env := f.orch.IdentifyUser(context.Background(), f.sid, IdentifyUserArgs{ContactNumber: contact})

	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("status = %s", env.Event.Status)
	}
	if env.Event.Detail != "Received "+contact {
		t.Errorf("detail = %q", env.Event.Detail)
	}
	if got := f.sessions.ContactNumber(f.sid); got != contact {
		t.Errorf("stored contact = %q", got)
	}
}

func TestIdentifyUserWithoutNumber(t *testing.T) {
	f := newFixture(t)
	env := f.orch.IdentifyUser(context.Background(), f.sid, IdentifyUserArgs{})

	// Still a completed call: the agent is being told to ask.
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("status = %s", env.Event.Status)
	}
	if env.Event.Detail != "Asked for phone number" {
		t.Errorf("detail = %q", env.Event.Detail)
	}
}

func TestFetchSlots(t *testing.T) {
	f := newFixture(t)
	env := f.orch.FetchSlots(context.Background(), f.sid)

	result := env.Result.(SlotsResult)
	if len(result.Slots) != 5 || len(result.SlotsHuman) != 5 {
		t.Fatalf("got %d slots / %d human strings", len(result.Slots), len(result.SlotsHuman))
	}
	if result.SlotsHuman[0] != "Tue Feb 10 at 9:00 AM" {
		t.Errorf("human slot = %q", result.SlotsHuman[0])
	}
	if env.Event.Detail != "Returned 5 slots" {
		t.Errorf("detail = %q", env.Event.Detail)
	}
}

func TestBookRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
	})

	if env.Event.Status != schedule.EventFailed {
		t.Fatalf("status = %s, want failed", env.Event.Status)
	}
	if !strings.Contains(env.Event.Detail, "Phone number not confirmed") {
		t.Errorf("detail = %q", env.Event.Detail)
	}
	// Nothing was persisted.
	list, _ := f.repo.ListByContact(context.Background(), contact)
	if len(list) != 0 {
		t.Error("repository touched before identity was confirmed")
	}
	// Failed events stay out of the audit log.
	if got := len(f.sessions.Events(f.sid)); got != 0 {
		t.Errorf("audit log has %d events, want 0", got)
	}
}

func TestBookExplicitContactBecomesStored(t *testing.T) {
	f := newFixture(t)
	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: "Jane", ContactNumber: contact, Date: "2026-02-10", Time: "09:00",
	})

	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("book failed: %s", env.Event.Detail)
	}
	if got := f.sessions.ContactNumber(f.sid); got != contact {
		t.Errorf("stored contact = %q", got)
	}
}

func TestBookMissingName(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: "   ", Date: "2026-02-10", Time: "09:00",
	})
	if env.Event.Status != schedule.EventFailed || !strings.Contains(env.Event.Detail, "Name missing") {
		t.Errorf("event = %+v", env.Event)
	}
}

func TestBookInvalidDateTime(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: "Jane", Date: "blorf", Time: "whenever-ish",
	})
	if env.Event.Status != schedule.EventFailed {
		t.Fatalf("status = %s, want failed", env.Event.Status)
	}
	if !strings.Contains(env.Event.Detail, "Could not understand the date/time") {
		t.Errorf("detail = %q", env.Event.Detail)
	}
}

func TestBookNormalizesAndPersists(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	appt := f.book(t, "Jane", "Feb 10 2026", "9am")
	if appt.Date != "2026-02-10" || appt.Time != "09:00" {
		t.Errorf("canonical form = %s %s", appt.Date, appt.Time)
	}
	if appt.Status != schedule.StatusBooked {
		t.Errorf("status = %s", appt.Status)
	}
	if !appt.ConfirmedByUser {
		t.Error("booked appointment must be marked confirmed by user")
	}

	env := f.orch.RetrieveAppointments(context.Background(), f.sid, RetrieveArgs{ContactNumber: contact})
	result := env.Result.(RetrieveResult)
	if result.Count != 1 || result.Appointments[0].ID != appt.ID {
		t.Errorf("retrieve result = %+v", result)
	}
}

func TestBookConflictPersistsConflictRecord(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	first := f.book(t, "Jane", "2026-02-10", "09:00")

	second := f.book(t, "Jane", "2026-02-10", "09:20")
	if second.Status != schedule.StatusConflict {
		t.Fatalf("second status = %s, want conflict", second.Status)
	}

	list, _ := f.repo.ListByContact(context.Background(), contact)
	if len(list) != 2 {
		t.Fatalf("got %d records, want conflict persisted alongside the original", len(list))
	}
	for _, appt := range list {
		if appt.ID == first.ID && appt.Status != schedule.StatusBooked {
			t.Error("original booking was disturbed")
		}
	}
}

func TestBookStorageRejectReportsConflict(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.repo.CreateErr = errors.New("unique violation")

	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
	})
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("status = %s", env.Event.Status)
	}
	if env.Result.(BookResult).Appointment.Status != schedule.StatusConflict {
		t.Error("rejected write must surface as conflict")
	}
}

func TestBookStorageListFailure(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.repo.ListErr = errors.New("connection refused")

	env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
	})
	if env.Event.Status != schedule.EventFailed {
		t.Fatalf("status = %s, want failed", env.Event.Status)
	}
	if strings.Contains(env.Event.Detail, "connection refused") {
		t.Error("raw storage errors must not leak to the agent")
	}
}

func TestRetrieveMasksContactInDetail(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.book(t, "Jane", "2026-02-10", "09:00")

	env := f.orch.RetrieveAppointments(context.Background(), f.sid, RetrieveArgs{ContactNumber: contact})
	if !strings.Contains(env.Event.Detail, "***1111") {
		t.Errorf("detail = %q, want masked contact", env.Event.Detail)
	}
	if strings.Contains(env.Event.Detail, contact) {
		t.Error("full contact number leaked into the audit detail")
	}
}

func TestRetrieveRequiresContact(t *testing.T) {
	f := newFixture(t)
	env := f.orch.RetrieveAppointments(context.Background(), f.sid, RetrieveArgs{})
	if env.Event.Status != schedule.EventFailed {
		t.Errorf("status = %s, want failed", env.Event.Status)
	}
}

func TestCancelThenRetrieve(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	appt := f.book(t, "Jane", "2026-02-10", "09:00")

	env := f.orch.CancelAppointment(context.Background(), f.sid, CancelArgs{
		Date: "2026-02-10", Time: "09:00",
	})
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("cancel failed: %s", env.Event.Detail)
	}
	if env.Event.Action != schedule.ActionCancelled {
		t.Errorf("action = %s", env.Event.Action)
	}

	retr := f.orch.RetrieveAppointments(context.Background(), f.sid, RetrieveArgs{ContactNumber: contact})
	result := retr.Result.(RetrieveResult)
	if result.Count != 1 {
		t.Fatalf("cancelled appointment vanished from retrieval")
	}
	if result.Appointments[0].ID != appt.ID || result.Appointments[0].Status != schedule.StatusCancelled {
		t.Errorf("record = %+v", result.Appointments[0])
	}
}

func TestCancelNoMatch(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	env := f.orch.CancelAppointment(context.Background(), f.sid, CancelArgs{
		Date: "2026-02-10", Time: "09:00",
	})
	if env.Event.Status != schedule.EventFailed {
		t.Fatalf("status = %s, want failed", env.Event.Status)
	}
	if !strings.Contains(env.Event.Detail, "No matching appointment") {
		t.Errorf("detail = %q", env.Event.Detail)
	}
}

func TestCancelNameMismatch(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.book(t, "Jane", "2026-02-10", "09:00")

	env := f.orch.CancelAppointment(context.Background(), f.sid, CancelArgs{
		Date: "2026-02-10", Time: "09:00", Name: "Robert",
	})
	if env.Event.Status != schedule.EventFailed {
		t.Error("a supplied name must participate in matching")
	}
}

func TestModifyMovesAppointment(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	appt := f.book(t, "Jane", "2026-02-10", "09:00")

	env := f.orch.ModifyAppointment(context.Background(), f.sid, ModifyArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
		NewDate: "2026-02-11", NewTime: "14:00",
	})
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("modify failed: %s", env.Event.Detail)
	}
	updated := env.Result.(ModifyResult).Appointment
	if updated.ID != appt.ID {
		t.Error("modify must preserve the record id")
	}
	if updated.Date != "2026-02-11" || updated.Time != "14:00" {
		t.Errorf("moved to %s %s", updated.Date, updated.Time)
	}
	if env.Event.Action != schedule.ActionModified {
		t.Errorf("action = %s", env.Event.Action)
	}
}

func TestModifyNoMatchIsNoop(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	env := f.orch.ModifyAppointment(context.Background(), f.sid, ModifyArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
		NewDate: "2026-02-11", NewTime: "14:00",
	})
	if env.Event.Status != schedule.EventFailed {
		t.Fatalf("status = %s, want failed", env.Event.Status)
	}
	// Deliberate no-op: no booking appears at the new time.
	list, _ := f.repo.ListByContact(context.Background(), contact)
	if len(list) != 0 {
		t.Error("modify must not create a fresh booking")
	}
}

func TestModifyIntoConflict(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.book(t, "Jane", "2026-02-10", "09:00")
	other := f.book(t, "Jane", "2026-02-10", "11:30")

	env := f.orch.ModifyAppointment(context.Background(), f.sid, ModifyArgs{
		Name: "Jane", Date: "2026-02-10", Time: "11:30",
		NewDate: "2026-02-10", NewTime: "09:10",
	})
	// Conflict is a completed outcome; the caller inspects the status.
	if env.Event.Status != schedule.EventCompleted {
		t.Fatalf("status = %s", env.Event.Status)
	}
	result := env.Result.(ModifyResult).Appointment
	if result.Status != schedule.StatusConflict {
		t.Errorf("status = %s, want conflict", result.Status)
	}
	// The target keeps its original slot; it is never moved into the
	// conflicting window.
	if result.Date != "2026-02-10" || result.Time != "11:30" {
		t.Errorf("target moved to %s %s", result.Date, result.Time)
	}
	if result.ID != other.ID {
		t.Error("wrong record flagged")
	}
	if env.Event.Action == schedule.ActionModified {
		t.Error("a conflicted modify is not a reschedule for the recap")
	}
}

func TestModifyExcludesOwnRecordFromConflictCheck(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.book(t, "Jane", "2026-02-10", "09:00")

	// Nudging the same appointment by 15 minutes conflicts only with
	// itself, which the check must ignore.
	env := f.orch.ModifyAppointment(context.Background(), f.sid, ModifyArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
		NewDate: "2026-02-10", NewTime: "09:15",
	})
	result := env.Result.(ModifyResult).Appointment
	if result.Status != schedule.StatusBooked || result.Time != "09:15" {
		t.Errorf("result = %+v", result)
	}
}

func TestConcurrentBookingsOneWinner(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	const n = 10
	results := make(chan schedule.AppointmentStatus, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := f.orch.BookAppointment(context.Background(), f.sid, BookArgs{
				Name:          "Jane",
				ContactNumber: contact,
				Date:          "2026-02-10",
				Time:          fmt.Sprintf("09:0%d", i),
			})
			if env.Event.Status != schedule.EventCompleted {
				t.Errorf("book failed: %s", env.Event.Detail)
				return
			}
			results <- env.Result.(BookResult).Appointment.Status
		}(i)
	}
	wg.Wait()
	close(results)

	booked, conflict := 0, 0
	for status := range results {
		switch status {
		case schedule.StatusBooked:
			booked++
		case schedule.StatusConflict:
			conflict++
		}
	}
	if booked != 1 || conflict != n-1 {
		t.Errorf("booked = %d, conflict = %d, want 1 and %d", booked, conflict, n-1)
	}
}

func TestEndConversationComposesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.book(t, "Jane", "2026-02-10", "09:00")

	first := f.orch.EndConversation(context.Background(), f.sid, EndArgs{Preferences: []string{"morning slot"}})
	if first.Event.Status != schedule.EventCompleted {
		t.Fatalf("end failed: %s", first.Event.Detail)
	}
	summary1 := first.Result.(EndResult).Summary

	if !strings.Contains(summary1.Summary, "Booked: Booked Tue Feb 10, 2026 at 9:00 AM for Jane.") {
		t.Errorf("summary = %q", summary1.Summary)
	}
	if !strings.Contains(summary1.Summary, "Preferences noted: morning slot.") {
		t.Errorf("summary = %q", summary1.Summary)
	}
	if len(summary1.BookedAppointments) != 1 {
		t.Fatalf("snapshot has %d appointments", len(summary1.BookedAppointments))
	}

	second := f.orch.EndConversation(context.Background(), f.sid, EndArgs{})
	summary2 := second.Result.(EndResult).Summary
	if len(summary2.BookedAppointments) != 1 {
		t.Error("second end duplicated booked entries")
	}
	if summary1.Summary[:strings.LastIndex(summary1.Summary, "Call ended")] !=
		summary2.Summary[:strings.LastIndex(summary2.Summary, "Call ended")] {
		t.Error("summaries differ beyond the timestamp")
	}

	stored, ok := f.sessions.Summary(f.sid)
	if !ok || stored.Summary != summary2.Summary {
		t.Error("session store must hold the latest summary")
	}
}

func TestEndConversationQuietCall(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)
	f.orch.FetchSlots(context.Background(), f.sid)
	f.orch.RetrieveAppointments(context.Background(), f.sid, RetrieveArgs{ContactNumber: contact})

	env := f.orch.EndConversation(context.Background(), f.sid, EndArgs{})
	summary := env.Result.(EndResult).Summary

	if !strings.Contains(summary.Summary, "No appointments were booked, changed, or cancelled.") {
		t.Errorf("summary = %q", summary.Summary)
	}
	if !strings.Contains(summary.Summary, "Reviewed available time slots.") ||
		!strings.Contains(summary.Summary, "Checked existing appointments.") {
		t.Errorf("summary missing info notes: %q", summary.Summary)
	}
	if !strings.Contains(summary.Summary, "Preferences noted: none.") {
		t.Errorf("summary = %q", summary.Summary)
	}
}

func TestCompletedEventsReachSubscribers(t *testing.T) {
	f := newFixture(t)
	sub := f.caster.Subscribe(f.sid)
	defer sub.Close()
	<-sub.C // connected status

	f.identify(t, contact)

	msg := <-sub.C
	if msg.Type != broadcast.TypeToolCall {
		t.Errorf("type = %s, want tool_call", msg.Type)
	}
}

func TestEndConversationBroadcastOrder(t *testing.T) {
	f := newFixture(t)
	f.identify(t, contact)

	sub := f.caster.Subscribe(f.sid)
	defer sub.Close()
	<-sub.C // connected status

	f.orch.EndConversation(context.Background(), f.sid, EndArgs{})

	var types []string
	for i := 0; i < 3; i++ {
		types = append(types, (<-sub.C).Type)
	}
	want := []string{broadcast.TypeSummary, broadcast.TypeToolCall, broadcast.TypeSessionClosed}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("broadcast order = %v, want %v", types, want)
		}
	}
}

// busyLocker simulates a distributed lock held by another process.
type busyLocker struct{}

func (busyLocker) WithContactLock(context.Context, string, func(context.Context) error) error {
	return lock.ErrLockNotAcquired
}

func TestLockContentionAsksForRetry(t *testing.T) {
	sessions := session.NewStore()
	orch := New(scheduletest.NewFaultRepository(), schedule.NewMemorySummaryRepository(), sessions, busyLocker{}, broadcast.New(8), schedule.DefaultConflictBuffer)
	sid := sessions.Create().SessionID
	orch.IdentifyUser(context.Background(), sid, IdentifyUserArgs{ContactNumber: contact})

	env := orch.BookAppointment(context.Background(), sid, BookArgs{
		Name: "Jane", Date: "2026-02-10", Time: "09:00",
	})
	if env.Event.Status != schedule.EventFailed {
		t.Fatalf("status = %s, want failed", env.Event.Status)
	}
	if !strings.Contains(env.Event.Detail, "in progress") {
		t.Errorf("detail = %q, want a contention hint", env.Event.Detail)
	}
	if strings.Contains(env.Event.Detail, "unavailable") {
		t.Error("contention must not be reported as a storage outage")
	}
}

func TestMaskContact(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 000-1111": "***1111",
		"+15550001111":      "***1111",
		"911":               "911",
	}
	for in, want := range cases {
		if got := maskContact(in); got != want {
			t.Errorf("maskContact(%q) = %q, want %q", in, got, want)
		}
	}
}
