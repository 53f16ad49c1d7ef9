// Package engine drives a room's state: identity resolution on join,
// the host-approval admission gate, issue CRUD, vote collection,
// reveal, and round advancement. The whole vocabulary is a tagged
// union reduced by a pure function, so the state machine runs
// unchanged over any transport.
package engine

import "github.com/alvarojfjunior/planning-room/models"

// Command is any inbound room mutation. Every command carries the
// connection id of the caller; the reducer resolves it to a stable
// participant identity.
type Command interface {
	isCommand()
}

// Join admits, defers to the pending queue, or reconnects a caller.
type Join struct {
	ConnID   string
	Name     string
	Role     models.Role
	RoomName string
}

// Approve moves a pending entry into the participant set. Host only.
type Approve struct {
	ConnID    string
	PendingID string
}

// Reject removes a pending entry and turns its caller away. Host only.
type Reject struct {
	ConnID    string
	PendingID string
}

// CreateIssue appends a new issue; it becomes current if no issue is.
type CreateIssue struct {
	ConnID      string
	Title       string
	Description string
}

// EditIssue merges the non-nil fields into the matching issue.
type EditIssue struct {
	ConnID      string
	IssueID     string
	Title       *string
	Description *string
}

// DeleteIssue removes an issue, repointing the current issue if needed.
type DeleteIssue struct {
	ConnID  string
	IssueID string
}

// SelectIssue makes the named issue current and opens a fresh round.
// Host only.
type SelectIssue struct {
	ConnID  string
	IssueID string
}

// Vote records the caller's estimate for the current issue.
type Vote struct {
	ConnID string
	Value  int
}

// NextRound completes the current issue on consensus and advances to
// the next incomplete one. Host only.
type NextRound struct {
	ConnID string
}

// Leave removes the caller: a participant departs (possibly handing
// off the host role), or a pending join is abandoned.
type Leave struct {
	ConnID string
}

func (Join) isCommand()        {}
func (Approve) isCommand()     {}
func (Reject) isCommand()      {}
func (CreateIssue) isCommand() {}
func (EditIssue) isCommand()   {}
func (DeleteIssue) isCommand() {}
func (SelectIssue) isCommand() {}
func (Vote) isCommand()        {}
func (NextRound) isCommand()   {}
func (Leave) isCommand()       {}
