// Package transport delivers events between the room engine and its
// observers. Two realizations exist: Hub, the server-authoritative
// broadcast used by the WebSocket surface, and ReplicatedBus, an
// ordered per-room stream in which every replica re-derives state from
// the events it observes. The engine behaves identically over both.
package transport

import "github.com/alvarojfjunior/planning-room/models"

// Adapter is the engine's delivery contract. Delivery is
// fire-and-forget: no call blocks on a slow observer. Within a single
// room's channel events arrive in publish order; there is no ordering
// guarantee across rooms.
type Adapter interface {
	// Connect registers a connection and returns its delivery channel.
	// The channel is closed by Disconnect.
	Connect(connID string) <-chan models.Event

	// Disconnect detaches the connection everywhere and closes its
	// channel. Idempotent.
	Disconnect(connID string)

	// Attach subscribes a connection to a room's broadcasts. A
	// connection observes at most one room.
	Attach(roomID, connID string)

	// Detach unsubscribes the connection from its room without closing
	// the delivery channel.
	Detach(connID string)

	// Broadcast publishes an event to every connection attached to the
	// room.
	Broadcast(roomID string, event models.Event)

	// Send delivers an event to a single connection, attached or not.
	// Admission notifications use this path.
	Send(connID string, event models.Event)
}
