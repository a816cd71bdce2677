package push

import (
	"sync"

	"github.com/friendlychat-dev/friendlychat/internal/domain"
)

// Hub fans notification payloads out to the live connections of
// signed-in users. Subscribers hand in a channel rather than the
// connection itself so each websocket keeps a single writer goroutine.
type Hub struct {
	mu    sync.RWMutex
	users map[domain.UserId][]chan<- []byte
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[domain.UserId][]chan<- []byte),
	}
}

func (h *Hub) Add(userID domain.UserId, sink chan<- []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users[userID] = append(h.users[userID], sink)
}

func (h *Hub) Remove(userID domain.UserId, sink chan<- []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sinks := h.users[userID]
	for i, s := range sinks {
		if s == sink {
			h.users[userID] = append(sinks[:i], sinks[i+1:]...)
			break
		}
	}
	if len(h.users[userID]) == 0 {
		delete(h.users, userID)
	}
}

// Send delivers the payload to every live connection of one user.
func (h *Hub) Send(userID domain.UserId, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sink := range h.users[userID] {
		deliver(sink, message)
	}
}

// deliver never blocks; a subscriber that cannot keep up loses
// notifications rather than stalling the fanout.
func deliver(sink chan<- []byte, message []byte) {
	select {
	case sink <- message:
	default:
	}
}

// Users returns the ids with at least one live connection.
func (h *Hub) Users() []domain.UserId {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]domain.UserId, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	return ids
}
