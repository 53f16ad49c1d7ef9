package transport

import (
	"io"
	"log/slog"
	"sync"

	"github.com/alvarojfjunior/planning-room/models"
)

// retainedEvents caps the per-room log kept for redelivery.
const retainedEvents = 64

// ReplicatedBus is the peer-replicated adapter: each room is an
// ordered event stream and every attached connection observes every
// published event, including effects of its own commands. Replicas
// re-derive state from the stream; delivery is at-least-once, so
// Replay can hand a connection the retained log again and a correct
// consumer must converge to the same state.
type ReplicatedBus struct {
	mu       sync.Mutex
	conns    map[string]chan models.Event
	rooms    map[string]*roomStream
	attached map[string]string
	log      *slog.Logger
}

type roomStream struct {
	members map[string]struct{}
	seq     uint64
	history []models.Event
}

// NewReplicatedBus creates a ReplicatedBus.
func NewReplicatedBus(log *slog.Logger) *ReplicatedBus {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ReplicatedBus{
		conns:    make(map[string]chan models.Event),
		rooms:    make(map[string]*roomStream),
		attached: make(map[string]string),
		log:      log,
	}
}

func (b *ReplicatedBus) Connect(connID string) <-chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.conns[connID]; exists {
		return ch
	}
	ch := make(chan models.Event, connBuffer)
	b.conns[connID] = ch
	return ch
}

func (b *ReplicatedBus) Disconnect(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.detachLocked(connID)
	if ch, exists := b.conns[connID]; exists {
		delete(b.conns, connID)
		close(ch)
	}
}

func (b *ReplicatedBus) Attach(roomID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.conns[connID]; !exists {
		return
	}
	b.detachLocked(connID)
	stream, exists := b.rooms[roomID]
	if !exists {
		stream = &roomStream{members: make(map[string]struct{})}
		b.rooms[roomID] = stream
	}
	stream.members[connID] = struct{}{}
	b.attached[connID] = roomID
}

func (b *ReplicatedBus) Detach(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked(connID)
}

func (b *ReplicatedBus) detachLocked(connID string) {
	roomID, exists := b.attached[connID]
	if !exists {
		return
	}
	delete(b.attached, connID)
	if stream, ok := b.rooms[roomID]; ok {
		delete(stream.members, connID)
		if len(stream.members) == 0 {
			delete(b.rooms, roomID)
		}
	}
}

// Broadcast appends the event to the room's ordered stream and fans it
// out. The stream mutex serializes appends, so all replicas observe
// the same total order.
func (b *ReplicatedBus) Broadcast(roomID string, event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, exists := b.rooms[roomID]
	if !exists {
		return
	}
	stream.seq++
	stream.history = append(stream.history, event)
	if len(stream.history) > retainedEvents {
		stream.history = stream.history[len(stream.history)-retainedEvents:]
	}
	for connID := range stream.members {
		b.deliverLocked(connID, event)
	}
}

func (b *ReplicatedBus) Send(connID string, event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliverLocked(connID, event)
}

// Replay redelivers the room's retained log to one connection. This is
// the at-least-once path: consumers must tolerate the duplicates.
func (b *ReplicatedBus) Replay(roomID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, exists := b.rooms[roomID]
	if !exists {
		return
	}
	for _, event := range stream.history {
		b.deliverLocked(connID, event)
	}
}

func (b *ReplicatedBus) deliverLocked(connID string, event models.Event) {
	ch, exists := b.conns[connID]
	if !exists {
		return
	}
	select {
	case ch <- event:
	default:
		b.log.Warn("dropping event for slow consumer",
			"conn", connID, "event", event.Event)
	}
}
