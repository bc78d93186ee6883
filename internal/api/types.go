package api

import (
	"github.com/voicedesk/scheduling-backend/internal/tools"
)

// Tool requests arrive as JSON bodies pairing a session id with the typed
// tool arguments.

type IdentifyUserRequest struct {
	SessionID string `json:"session_id"`
	tools.IdentifyUserArgs
}

type FetchSlotsRequest struct {
	SessionID string `json:"session_id"`
}

type BookAppointmentRequest struct {
	SessionID string `json:"session_id"`
	tools.BookArgs
}

type RetrieveAppointmentsRequest struct {
	SessionID string `json:"session_id"`
	tools.RetrieveArgs
}

type CancelAppointmentRequest struct {
	SessionID string `json:"session_id"`
	tools.CancelArgs
}

type ModifyAppointmentRequest struct {
	SessionID string `json:"session_id"`
	tools.ModifyArgs
}

type EndConversationRequest struct {
	SessionID string `json:"session_id"`
	tools.EndArgs
}

type SessionStartResponse struct {
	SessionID string `json:"session_id"`
	WSURL     string `json:"ws_url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
