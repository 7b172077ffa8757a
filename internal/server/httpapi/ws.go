package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// session is one connected websocket. Outbound events go through a buffered
// channel so a slow reader never blocks the hub; a session that falls too
// far behind is dropped and the client reconnects.
type session struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks the live websocket sessions per account and fans item events
// out to them. It implements services.Notifier.
type Hub struct {
	logger logging.Logger

	mu       sync.Mutex
	sessions map[string]map[*session]struct{}
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[string]map[*session]struct{}),
	}
}

// Notify sends an item event to every live session of the account.
func (h *Hub) Notify(userID string, event *services.ItemEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error(context.Background(), "event marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sess := range h.sessions[userID] {
		select {
		case sess.send <- payload:
		default:
			// reader too slow, force a reconnect
			h.removeLocked(userID, sess)
		}
	}
}

func (h *Hub) add(userID string, sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*session]struct{})
	}
	h.sessions[userID][sess] = struct{}{}
}

func (h *Hub) remove(userID string, sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(userID, sess)
}

func (h *Hub) removeLocked(userID string, sess *session) {
	if set, ok := h.sessions[userID]; ok {
		if _, ok := set[sess]; ok {
			delete(set, sess)
			close(sess.send)
			if len(set) == 0 {
				delete(h.sessions, userID)
			}
		}
	}
}

func (h *Hub) sessionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[userID])
}

// CloseAll disconnects every session. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.sessions {
		for sess := range set {
			close(sess.send)
			_ = sess.conn.Close()
		}
		delete(h.sessions, userID)
	}
}

// handleSocket upgrades the connection and pumps events until either side
// disconnects.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	id := userID(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	sess := &session{conn: conn, send: make(chan []byte, 64)}
	s.hub.add(id, sess)

	go func() {
		for payload := range sess.send {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				break
			}
		}
		_ = conn.Close()
	}()

	// inbound reads only detect disconnects; clients never send events
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.remove(id, sess)
}
