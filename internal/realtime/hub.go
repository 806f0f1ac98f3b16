package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster pushes events to connected sessions. Delivery is
// best-effort, at-most-once: sessions that join later or were
// disconnected miss the event, and the persisted notification record
// is the durability fallback.
type Broadcaster interface {
	EmitToTicket(ticketID, event string, payload any)
	EmitToUser(userID, event string, payload any)
}

// Envelope is the wire frame pushed to clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// TicketRoom names the room joined by sessions viewing a ticket.
func TicketRoom(ticketID string) string {
	return "ticket:" + ticketID
}

// UserRoom names the private per-user room.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Hub is the process-wide room registry. It is constructed once at
// startup and handed to every component that emits; nothing reaches it
// through a global.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]map[string]struct{}
	logger   *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]struct{}),
		logger:   logger,
	}
}

// Session is one live client connection. A user with several browser
// tabs holds several sessions, all of which receive user-room events.
type Session struct {
	id   string
	hub  *Hub
	send chan Envelope

	closeOnce sync.Once
}

const sessionBuffer = 32

// NewSession registers a connection with the hub.
func (h *Hub) NewSession() *Session {
	s := &Session{
		id:   uuid.NewString(),
		hub:  h,
		send: make(chan Envelope, sessionBuffer),
	}
	h.mu.Lock()
	h.sessions[s] = make(map[string]struct{})
	h.mu.Unlock()

	h.logger.Debug("session connected", zap.String("session_id", s.id))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Outbox exposes the frames queued for this session.
func (s *Session) Outbox() <-chan Envelope {
	return s.send
}

// Join adds the session to a room.
func (s *Session) Join(room string) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Session]struct{})
	}
	h.rooms[room][s] = struct{}{}
	h.sessions[s][room] = struct{}{}

	h.logger.Debug("session joined room",
		zap.String("session_id", s.id),
		zap.String("room", room))
}

// Close tears down room membership and the outbox. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		h := s.hub
		h.mu.Lock()
		for room := range h.sessions[s] {
			delete(h.rooms[room], s)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
		}
		delete(h.sessions, s)
		// closed under the write lock so emit, which sends under the
		// read lock, can never hit a closed channel
		close(s.send)
		h.mu.Unlock()

		h.logger.Debug("session disconnected", zap.String("session_id", s.id))
	})
}

// EmitToTicket delivers to all sessions viewing the ticket.
func (h *Hub) EmitToTicket(ticketID, event string, payload any) {
	h.emit(TicketRoom(ticketID), Envelope{Event: event, Data: payload})
}

// EmitToUser delivers to every session in the user's private room.
func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.emit(UserRoom(userID), Envelope{Event: event, Data: payload})
}

func (h *Hub) emit(room string, env Envelope) {
	// sends are non-blocking, so doing them under the read lock is
	// cheap and excludes Close
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[room] {
		select {
		case s.send <- env:
		default:
			// slow consumer; drop rather than block the emitter
			h.logger.Debug("frame dropped for slow session",
				zap.String("session_id", s.id),
				zap.String("room", room),
				zap.String("event", env.Event))
		}
	}
}
