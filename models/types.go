package models

import (
	"maps"
	"sync"
)

// Role determines whether a room member may vote.
type Role string

// Room member roles
const (
	RoleParticipant Role = "participant"
	RoleSpectator   Role = "spectator"
)

// ParseRole maps a wire value to a Role, defaulting to participant.
func ParseRole(s string) Role {
	if s == string(RoleSpectator) {
		return RoleSpectator
	}
	return RoleParticipant
}

// Participant is an admitted room member. ID is stable across
// reconnects; ConnID is the transport connection currently backing it
// and changes whenever the member reconnects.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	IsHost bool   `json:"isHost"`
	ConnID string `json:"-"`
}

// PendingParticipant exists only between a join attempt and the host's
// approve/reject decision.
type PendingParticipant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	ConnID string `json:"-"`
}

// Issue is a unit of work being estimated. Votes is the snapshot
// captured at the moment the round revealed; FinalEstimate is set only
// once the issue is completed.
type Issue struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Votes         map[string]int `json:"votes"`
	IsCompleted   bool           `json:"isCompleted"`
	FinalEstimate *int           `json:"finalEstimate,omitempty"`
}

// Room represents a planning session. All fields are guarded by Mutex;
// every mutation for a room happens under its write lock, so commands
// apply atomically with respect to that room.
type Room struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Participants []*Participant        `json:"participants"`
	Pending      []*PendingParticipant `json:"pendingParticipants"`
	CurrentIssue string                `json:"currentIssueId,omitempty"`
	Issues       []*Issue              `json:"issues"`
	Votes        map[string]int        `json:"votes"`
	Revealed     bool                  `json:"revealed"`

	Mutex sync.RWMutex `json:"-"`
}

// Event is the envelope delivered through the transport, both for
// inbound commands and outbound notifications.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NewRoom creates an empty room: no participants, no issues. The first
// identity admitted into it becomes host.
func NewRoom(id, name string) *Room {
	if name == "" {
		name = "Room " + id
	}
	return &Room{
		ID:           id,
		Name:         name,
		Participants: make([]*Participant, 0),
		Pending:      make([]*PendingParticipant, 0),
		Issues:       make([]*Issue, 0),
		Votes:        make(map[string]int),
	}
}

// ParticipantByConn returns the admitted member backed by the given
// connection, or nil.
func (r *Room) ParticipantByConn(connID string) *Participant {
	for _, p := range r.Participants {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// ParticipantByName returns the admitted member with the given display
// name, or nil. Display names are the reconnect key.
func (r *Room) ParticipantByName(name string) *Participant {
	for _, p := range r.Participants {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Host returns the room's host, or nil for an empty room.
func (r *Room) Host() *Participant {
	for _, p := range r.Participants {
		if p.IsHost {
			return p
		}
	}
	return nil
}

// FindIssue returns the issue with the given id, or nil.
func (r *Room) FindIssue(issueID string) *Issue {
	for _, is := range r.Issues {
		if is.ID == issueID {
			return is
		}
	}
	return nil
}

// VoterCount is the number of members whose role allows voting.
func (r *Room) VoterCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.Role == RoleParticipant {
			n++
		}
	}
	return n
}

// Snapshot deep-copies the room for delivery to observers. The caller
// must hold the room lock; the copy shares nothing with the live room,
// so it can be marshaled after the lock is released.
func (r *Room) Snapshot() *Room {
	s := &Room{
		ID:           r.ID,
		Name:         r.Name,
		CurrentIssue: r.CurrentIssue,
		Revealed:     r.Revealed,
		Votes:        maps.Clone(r.Votes),
	}
	s.Participants = make([]*Participant, len(r.Participants))
	for i, p := range r.Participants {
		cp := *p
		s.Participants[i] = &cp
	}
	s.Pending = make([]*PendingParticipant, len(r.Pending))
	for i, p := range r.Pending {
		cp := *p
		s.Pending[i] = &cp
	}
	s.Issues = make([]*Issue, len(r.Issues))
	for i, is := range r.Issues {
		ci := *is
		ci.Votes = maps.Clone(is.Votes)
		s.Issues[i] = &ci
	}
	return s
}
