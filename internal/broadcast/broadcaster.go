// Package broadcast fans session events out to live observers. One logical
// channel per session, any number of subscribers, best-effort delivery.
package broadcast

import (
	"encoding/json"
	"sync"
)

// DefaultSubscriberBuffer is the per-subscriber queue depth. When a
// subscriber falls this far behind, the oldest queued message is dropped so
// publishers never block.
const DefaultSubscriberBuffer = 16

const (
	TypeToolCall      = "tool_call"
	TypeSummary       = "summary"
	TypeStatus        = "status"
	TypeSessionClosed = "session_closed"
)

// Message is one push-channel frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into a frame. Marshal failures produce a null
// payload rather than losing the frame.
func NewMessage(msgType string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("null")
	}
	return Message{Type: msgType, Payload: data}
}

// Subscriber is one observer's handle. Receive from C until it is closed;
// call Close to disconnect.
type Subscriber struct {
	C chan Message

	once sync.Once
	b    *Broadcaster
	sid  string
}

func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.b.unsubscribe(s.sid, s)
	})
}

type Broadcaster struct {
	mu       sync.Mutex
	sessions map[string][]*Subscriber
	buffer   int
}

func New(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		sessions: make(map[string][]*Subscriber),
		buffer:   buffer,
	}
}

// Subscribe registers an observer for a session. Only events published
// after this call are delivered; the first frame is a synthetic "connected"
// status.
func (b *Broadcaster) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		C:   make(chan Message, b.buffer),
		b:   b,
		sid: sessionID,
	}

	b.mu.Lock()
	b.sessions[sessionID] = append(b.sessions[sessionID], sub)
	b.mu.Unlock()

	b.deliver(sub, NewMessage(TypeStatus, map[string]string{
		"session_id": sessionID,
		"state":      "connected",
	}))

	return sub
}

func (b *Broadcaster) unsubscribe(sessionID string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.sessions[sessionID]
	for i, s := range subs {
		if s == sub {
			b.sessions[sessionID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.sessions[sessionID]) == 0 {
		delete(b.sessions, sessionID)
	}
	close(sub.C)
}

// Publish delivers to every current subscriber of the session. A session
// with no subscribers is a no-op. Slow subscribers lose their oldest queued
// message instead of blocking the publisher.
func (b *Broadcaster) Publish(sessionID string, msg Message) {
	b.mu.Lock()
	subs := make([]*Subscriber, len(b.sessions[sessionID]))
	copy(subs, b.sessions[sessionID])
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, msg)
	}
}

func (b *Broadcaster) deliver(sub *Subscriber, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-check membership so we never send on a closed channel.
	live := false
	for _, s := range b.sessions[sub.sid] {
		if s == sub {
			live = true
			break
		}
	}
	if !live {
		return
	}

	for {
		select {
		case sub.C <- msg:
			return
		default:
			// Queue full: drop the oldest and retry.
			select {
			case <-sub.C:
			default:
			}
		}
	}
}
