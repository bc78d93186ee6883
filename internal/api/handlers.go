package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voicedesk/scheduling-backend/internal/broadcast"
	"github.com/voicedesk/scheduling-backend/internal/schedule"
	"github.com/voicedesk/scheduling-backend/internal/session"
	"github.com/voicedesk/scheduling-backend/internal/tools"
)

type handlers struct {
	orch      *tools.Orchestrator
	sessions  *session.Store
	repo      schedule.Repository
	caster    *broadcast.Broadcaster
	wsBaseURL string
}

// decode parses the request body. Malformed JSON is a transport-level 400;
// domain failures never are.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// ensureSession returns the request's session id, allocating a fresh
// session when the caller did not send one.
func (h *handlers) ensureSession(sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	return h.sessions.Create().SessionID
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	state := h.sessions.Create()
	writeJSON(w, http.StatusOK, SessionStartResponse{
		SessionID: state.SessionID,
		WSURL:     h.wsBaseURL + "/session/" + state.SessionID + "/events",
	})
}

func (h *handlers) listToolCalls(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	events := h.sessions.Events(sessionID)
	if events == nil {
		events = []schedule.ToolCallEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	summary, ok := h.sessions.Summary(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "summary_not_found", "the conversation has not ended yet")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	contactNumber := chi.URLParam(r, "contactNumber")
	appointments, err := h.repo.ListByContact(r.Context(), contactNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if appointments == nil {
		appointments = []schedule.Appointment{}
	}
	writeJSON(w, http.StatusOK, appointments)
}

func (h *handlers) identifyUser(w http.ResponseWriter, r *http.Request) {
	var req IdentifyUserRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.IdentifyUser(r.Context(), sessionID, req.IdentifyUserArgs))
}

func (h *handlers) fetchSlots(w http.ResponseWriter, r *http.Request) {
	var req FetchSlotsRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.FetchSlots(r.Context(), sessionID))
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.BookAppointment(r.Context(), sessionID, req.BookArgs))
}

func (h *handlers) retrieveAppointments(w http.ResponseWriter, r *http.Request) {
	var req RetrieveAppointmentsRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.RetrieveAppointments(r.Context(), sessionID, req.RetrieveArgs))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req CancelAppointmentRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.CancelAppointment(r.Context(), sessionID, req.CancelArgs))
}

func (h *handlers) modifyAppointment(w http.ResponseWriter, r *http.Request) {
	var req ModifyAppointmentRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.ModifyAppointment(r.Context(), sessionID, req.ModifyArgs))
}

func (h *handlers) endConversation(w http.ResponseWriter, r *http.Request) {
	var req EndConversationRequest
	if !decode(w, r, &req) {
		return
	}
	sessionID := h.ensureSession(req.SessionID)
	writeJSON(w, http.StatusOK, h.orch.EndConversation(r.Context(), sessionID, req.EndArgs))
}
