package transport

import (
	"io"
	"log/slog"
	"sync"

	"github.com/alvarojfjunior/planning-room/models"
)

// connBuffer is the per-connection delivery queue depth. A consumer
// that falls further behind than this starts losing events; the next
// full snapshot makes it whole again.
const connBuffer = 16

// Hub is the server-authoritative adapter: one process owns canonical
// state and fans each event out to per-connection channels.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]chan models.Event
	rooms    map[string]map[string]struct{}
	attached map[string]string
	log      *slog.Logger
}

// NewHub creates a Hub. A nil logger discards delivery diagnostics.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		conns:    make(map[string]chan models.Event),
		rooms:    make(map[string]map[string]struct{}),
		attached: make(map[string]string),
		log:      log,
	}
}

func (h *Hub) Connect(connID string) <-chan models.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, exists := h.conns[connID]; exists {
		return ch
	}
	ch := make(chan models.Event, connBuffer)
	h.conns[connID] = ch
	return ch
}

func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detachLocked(connID)
	if ch, exists := h.conns[connID]; exists {
		delete(h.conns, connID)
		close(ch)
	}
}

func (h *Hub) Attach(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.conns[connID]; !exists {
		return
	}
	h.detachLocked(connID)
	members, exists := h.rooms[roomID]
	if !exists {
		members = make(map[string]struct{})
		h.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	h.attached[connID] = roomID
}

func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(connID)
}

func (h *Hub) detachLocked(connID string) {
	roomID, exists := h.attached[connID]
	if !exists {
		return
	}
	delete(h.attached, connID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Broadcast(roomID string, event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.rooms[roomID] {
		h.deliver(connID, event)
	}
}

func (h *Hub) Send(connID string, event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(connID, event)
}

// deliver is non-blocking: a blocked consumer drops the event rather
// than stalling the room. Caller holds at least the read lock.
func (h *Hub) deliver(connID string, event models.Event) {
	ch, exists := h.conns[connID]
	if !exists {
		return
	}
	select {
	case ch <- event:
	default:
		h.log.Warn("dropping event for slow consumer",
			"conn", connID, "event", event.Event)
	}
}
