package engine

import (
	"io"
	"log/slog"

	"github.com/alvarojfjunior/planning-room/db"
	"github.com/alvarojfjunior/planning-room/models"
	"github.com/alvarojfjunior/planning-room/transport"
)

// Engine applies commands to rooms and republishes state. Commands for
// a room are serialized by its write lock: exactly one is in flight at
// a time, so any interleaving of callers is equivalent to some total
// order.
type Engine struct {
	store   *db.Store
	adapter transport.Adapter
	log     *slog.Logger
}

// New wires an engine to its registry and transport. A nil logger
// discards diagnostics.
func New(store *db.Store, adapter transport.Adapter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{store: store, adapter: adapter, log: log}
}

// Dispatch routes one command to its room and delivers whatever the
// reduction produced. Join creates the room lazily; every other
// command against an unknown room is dropped. Delivery is
// fire-and-forget and happens outside the room lock.
func (e *Engine) Dispatch(roomID string, cmd Command) {
	var room *models.Room
	switch c := cmd.(type) {
	case Join:
		room = e.store.GetOrCreate(roomID, c.RoomName)
	default:
		var ok bool
		room, ok = e.store.Get(roomID)
		if !ok {
			e.log.Debug("command for unknown room", "room", roomID)
			return
		}
	}

	room.Mutex.Lock()
	res := reduce(room, cmd)
	var snapshot *models.Room
	if res.changed {
		snapshot = room.Snapshot()
	}
	room.Mutex.Unlock()

	// Attach newly admitted connections before broadcasting so they
	// observe the snapshot produced by their own admission.
	for _, connID := range res.attach {
		e.adapter.Attach(roomID, connID)
	}
	for _, d := range res.direct {
		e.adapter.Send(d.connID, d.event)
	}
	if snapshot != nil {
		e.adapter.Broadcast(roomID, models.Event{
			Event: models.EventRoomUpdated,
			Data:  snapshot,
		})
	}
	for _, connID := range res.detach {
		e.adapter.Detach(connID)
	}

	// Removal events may have emptied the room.
	switch cmd.(type) {
	case Leave, Reject:
		if e.store.EvictIfEmpty(roomID) {
			e.log.Info("room evicted", "room", roomID)
		}
	}
}
