package transport

import (
	"sync"

	"github.com/alvarojfjunior/planning-room/models"
)

// Replica is a passive observer that re-derives room state from the
// event stream: each room-updated snapshot fully overwrites the last
// ("last snapshot wins" — no deltas, no conflict resolution). Applying
// the same snapshot twice is a no-op, which is what makes at-least-once
// delivery safe.
type Replica struct {
	mu    sync.Mutex
	state *models.Room
	seen  int
}

// NewReplica creates a replica with no state.
func NewReplica() *Replica {
	return &Replica{}
}

// Apply folds one observed event into the replica. Events other than
// room-updated carry no state and are ignored.
func (r *Replica) Apply(event models.Event) {
	if event.Event != models.EventRoomUpdated {
		return
	}
	snap, ok := event.Data.(*models.Room)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = snap
	r.seen++
}

// Consume drains a delivery channel into the replica until it closes.
func (r *Replica) Consume(events <-chan models.Event) {
	for event := range events {
		r.Apply(event)
	}
}

// State returns the last snapshot observed, or nil.
func (r *Replica) State() *models.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Observed reports how many snapshots have been applied.
func (r *Replica) Observed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen
}
