// Package session holds per-conversation mutable state: the confirmed
// contact number, the append-only tool-call log, accumulated preferences,
// and the finalized summary.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voicedesk/scheduling-backend/internal/schedule"
)

type State struct {
	SessionID     string
	StartedAt     time.Time
	ContactNumber string
	Preferences   []string
	ToolCalls     []schedule.ToolCallEvent
	Summary       *schedule.ConversationSummary

	lastTouched time.Time
}

// Store owns all session state. The orchestrator never keeps a private copy
// it could drift from.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*State
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*State),
		now:      time.Now,
	}
}

// Create allocates a fresh session with a new opaque id.
func (s *Store) Create() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &State{
		SessionID:   uuid.NewString(),
		StartedAt:   s.now(),
		lastTouched: s.now(),
	}
	s.sessions[state.SessionID] = state
	return state
}

func (s *Store) getOrCreate(sessionID string) *State {
	if state, ok := s.sessions[sessionID]; ok {
		state.lastTouched = s.now()
		return state
	}
	state := &State{
		SessionID:   sessionID,
		StartedAt:   s.now(),
		lastTouched: s.now(),
	}
	s.sessions[sessionID] = state
	return state
}

func (s *Store) AppendEvent(sessionID string, event schedule.ToolCallEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreate(sessionID)
	state.ToolCalls = append(state.ToolCalls, event)
}

// Events returns a copy of the session's audit trail, oldest first.
func (s *Store) Events(sessionID string) []schedule.ToolCallEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]schedule.ToolCallEvent, len(state.ToolCalls))
	copy(out, state.ToolCalls)
	return out
}

func (s *Store) SetContactNumber(sessionID, contactNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(sessionID).ContactNumber = contactNumber
}

func (s *Store) ContactNumber(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return ""
	}
	return state.ContactNumber
}

// AddPreferences records user-stated preferences, trimmed and deduplicated,
// preserving first-mention order.
func (s *Store) AddPreferences(sessionID string, prefs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreate(sessionID)
	for _, pref := range prefs {
		cleaned := strings.TrimSpace(pref)
		if cleaned == "" {
			continue
		}
		seen := false
		for _, existing := range state.Preferences {
			if existing == cleaned {
				seen = true
				break
			}
		}
		if !seen {
			state.Preferences = append(state.Preferences, cleaned)
		}
	}
}

func (s *Store) Preferences(sessionID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, len(state.Preferences))
	copy(out, state.Preferences)
	return out
}

func (s *Store) SetSummary(sessionID string, summary schedule.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(sessionID).Summary = &summary
}

func (s *Store) Summary(sessionID string) (schedule.ConversationSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok || state.Summary == nil {
		return schedule.ConversationSummary{}, false
	}
	return *state.Summary, true
}

// StartSweeper expires sessions untouched for longer than ttl. This is the
// process-level lifecycle policy; nothing else destroys session state.
func (s *Store) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.sweep(ttl)
				if removed > 0 {
					log.Info().Int("removed", removed).Msg("expired idle sessions")
				}
			}
		}
	}()
}

func (s *Store) sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, state := range s.sessions {
		if state.lastTouched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
