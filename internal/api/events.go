package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type clientMessage struct {
	Type string `json:"type"`
}

type pushFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// sessionEvents upgrades the connection and streams the session's push
// channel. A subscriber only sees events published after it connects; the
// first frame is the broadcaster's synthetic "connected" status.
func (h *handlers) sessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	sub := h.caster.Subscribe(sessionID)
	defer sub.Close()

	// gorilla allows one concurrent writer; the pump and the pong reply
	// share this mutex.
	var writeMu sync.Mutex
	writeFrame := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.C {
			if err := writeFrame(msg); err != nil {
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket read")
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			_ = writeFrame(pushFrame{
				Type:    "pong",
				Payload: map[string]string{"at": time.Now().UTC().Format(time.RFC3339)},
			})
		}
	}

	sub.Close()
	<-done
}
