package engine

import (
	"maps"

	"github.com/google/uuid"

	"github.com/alvarojfjunior/planning-room/models"
)

// PendingRequest is the payload of a pending-user-request notification
// sent to the host.
type PendingRequest struct {
	PendingUser *models.PendingParticipant `json:"pendingUser"`
	Room        *models.Room               `json:"roomData"`
}

// Notice is the payload of admission notifications that carry a
// human-readable message.
type Notice struct {
	Message string `json:"message"`
}

// direct is an event addressed to a single connection.
type direct struct {
	connID string
	event  models.Event
}

// result collects the deliveries a command produced. changed means the
// room mutated and a fresh snapshot must be broadcast. A zero result
// is the silent no-op used for every absorbed error: unknown ids,
// non-host callers, votes after reveal.
type result struct {
	changed bool
	attach  []string
	detach  []string
	direct  []direct
}

// reduce applies one command to a room. It is pure with respect to the
// transport: all deliveries come back as the result, so the state
// machine is testable without any adapter. Caller holds the room's
// write lock. Reduction is deterministic, and re-applying a command
// that already took effect leaves the room unchanged, which is what
// peer-replicated delivery requires.
func reduce(room *models.Room, cmd Command) result {
	switch c := cmd.(type) {
	case Join:
		return reduceJoin(room, c)
	case Approve:
		return reduceApprove(room, c)
	case Reject:
		return reduceReject(room, c)
	case CreateIssue:
		return reduceCreateIssue(room, c)
	case EditIssue:
		return reduceEditIssue(room, c)
	case DeleteIssue:
		return reduceDeleteIssue(room, c)
	case SelectIssue:
		return reduceSelectIssue(room, c)
	case Vote:
		return reduceVote(room, c)
	case NextRound:
		return reduceNextRound(room, c)
	case Leave:
		return reduceLeave(room, c)
	default:
		return result{}
	}
}

func reduceJoin(room *models.Room, c Join) result {
	// Reconnect: identity is keyed by display name, so a returning
	// member takes over its existing participant in place. No new
	// admission, no pending entry.
	if p := room.ParticipantByName(c.Name); p != nil {
		p.ConnID = c.ConnID
		return result{changed: true, attach: []string{c.ConnID}}
	}

	// First identity into an untouched room is admitted as host.
	if len(room.Participants) == 0 && len(room.Pending) == 0 {
		room.Participants = append(room.Participants, &models.Participant{
			ID:     uuid.NewString(),
			Name:   c.Name,
			Role:   c.Role,
			IsHost: true,
			ConnID: c.ConnID,
		})
		return result{changed: true, attach: []string{c.ConnID}}
	}

	// Everyone else waits for host approval. A repeated attempt under
	// the same name refreshes the existing entry's connection instead
	// of queueing a duplicate.
	var pending *models.PendingParticipant
	for _, pen := range room.Pending {
		if pen.Name == c.Name {
			pending = pen
			break
		}
	}
	if pending != nil {
		pending.ConnID = c.ConnID
	} else {
		pending = &models.PendingParticipant{
			ID:     uuid.NewString(),
			Name:   c.Name,
			Role:   c.Role,
			ConnID: c.ConnID,
		}
		room.Pending = append(room.Pending, pending)
	}

	res := result{changed: true}
	if host := room.Host(); host != nil {
		res.direct = append(res.direct, direct{host.ConnID, models.Event{
			Event: models.EventPendingUserRequest,
			Data:  PendingRequest{PendingUser: pending, Room: room.Snapshot()},
		}})
	}
	res.direct = append(res.direct, direct{c.ConnID, models.Event{
		Event: models.EventWaitingForApproval,
		Data:  Notice{Message: models.MsgWaitingForApproval},
	}})
	return res
}

func reduceApprove(room *models.Room, c Approve) result {
	caller := room.ParticipantByConn(c.ConnID)
	if caller == nil || !caller.IsHost {
		return result{}
	}
	pending := removePending(room, c.PendingID)
	if pending == nil {
		return result{}
	}

	// The pending id becomes the member's stable participant id.
	room.Participants = append(room.Participants, &models.Participant{
		ID:     pending.ID,
		Name:   pending.Name,
		Role:   pending.Role,
		IsHost: false,
		ConnID: pending.ConnID,
	})
	return result{
		changed: true,
		attach:  []string{pending.ConnID},
		direct: []direct{{pending.ConnID, models.Event{
			Event: models.EventApprovalGranted,
		}}},
	}
}

func reduceReject(room *models.Room, c Reject) result {
	caller := room.ParticipantByConn(c.ConnID)
	if caller == nil || !caller.IsHost {
		return result{}
	}
	pending := removePending(room, c.PendingID)
	if pending == nil {
		return result{}
	}
	return result{
		changed: true,
		direct: []direct{{pending.ConnID, models.Event{
			Event: models.EventApprovalRejected,
			Data:  Notice{Message: models.MsgApprovalRejected},
		}}},
	}
}

func reduceCreateIssue(room *models.Room, c CreateIssue) result {
	if room.ParticipantByConn(c.ConnID) == nil {
		return result{}
	}
	issue := &models.Issue{
		ID:          uuid.NewString(),
		Title:       c.Title,
		Description: c.Description,
		Votes:       make(map[string]int),
	}
	room.Issues = append(room.Issues, issue)
	if room.CurrentIssue == "" {
		room.CurrentIssue = issue.ID
	}
	return result{changed: true}
}

func reduceEditIssue(room *models.Room, c EditIssue) result {
	if room.ParticipantByConn(c.ConnID) == nil {
		return result{}
	}
	issue := room.FindIssue(c.IssueID)
	if issue == nil {
		return result{}
	}
	if c.Title != nil {
		issue.Title = *c.Title
	}
	if c.Description != nil {
		issue.Description = *c.Description
	}
	return result{changed: true}
}

func reduceDeleteIssue(room *models.Room, c DeleteIssue) result {
	if room.ParticipantByConn(c.ConnID) == nil {
		return result{}
	}
	idx := -1
	for i, issue := range room.Issues {
		if issue.ID == c.IssueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return result{}
	}
	room.Issues = append(room.Issues[:idx], room.Issues[idx+1:]...)

	if room.CurrentIssue == c.IssueID {
		room.CurrentIssue = ""
		if len(room.Issues) > 0 {
			room.CurrentIssue = room.Issues[0].ID
		}
		room.Votes = make(map[string]int)
		room.Revealed = false
	}
	return result{changed: true}
}

func reduceSelectIssue(room *models.Room, c SelectIssue) result {
	caller := room.ParticipantByConn(c.ConnID)
	if caller == nil || !caller.IsHost {
		return result{}
	}
	issue := room.FindIssue(c.IssueID)
	if issue == nil {
		return result{}
	}
	room.CurrentIssue = issue.ID
	room.Votes = make(map[string]int)
	room.Revealed = false
	return result{changed: true}
}

func reduceVote(room *models.Room, c Vote) result {
	caller := room.ParticipantByConn(c.ConnID)
	if caller == nil || caller.Role != models.RoleParticipant {
		return result{}
	}
	if room.CurrentIssue == "" || room.Revealed {
		return result{}
	}
	if !models.ValidEstimate(c.Value) {
		return result{}
	}
	room.Votes[caller.ID] = c.Value
	maybeReveal(room)
	return result{changed: true}
}

func reduceNextRound(room *models.Room, c NextRound) result {
	caller := room.ParticipantByConn(c.ConnID)
	if caller == nil || !caller.IsHost {
		return result{}
	}
	if !room.Revealed {
		return result{}
	}
	estimate, unanimous := consensus(room.Votes)
	if !unanimous {
		return result{}
	}

	if issue := room.FindIssue(room.CurrentIssue); issue != nil {
		issue.IsCompleted = true
		issue.FinalEstimate = &estimate
	}
	room.CurrentIssue = ""
	for _, issue := range room.Issues {
		if !issue.IsCompleted {
			room.CurrentIssue = issue.ID
			break
		}
	}
	room.Votes = make(map[string]int)
	room.Revealed = false
	return result{changed: true}
}

func reduceLeave(room *models.Room, c Leave) result {
	// A dropped connection abandons its pending join implicitly.
	for i, pending := range room.Pending {
		if pending.ConnID == c.ConnID {
			room.Pending = append(room.Pending[:i], room.Pending[i+1:]...)
			return result{changed: true}
		}
	}

	idx := -1
	for i, p := range room.Participants {
		if p.ConnID == c.ConnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return result{}
	}
	leaver := room.Participants[idx]
	room.Participants = append(room.Participants[:idx], room.Participants[idx+1:]...)
	delete(room.Votes, leaver.ID)

	// The join order is the admission order, so the earliest remaining
	// member inherits the host role.
	if leaver.IsHost && len(room.Participants) > 0 {
		room.Participants[0].IsHost = true
	}

	// A departure can complete the round: everyone left voting may now
	// have voted.
	maybeReveal(room)

	return result{changed: true, detach: []string{c.ConnID}}
}

// maybeReveal flips the round to revealed once every voting member has
// voted, and captures the vote map on the current issue. Safe to call
// repeatedly; once revealed it stays revealed until an explicit reset.
func maybeReveal(room *models.Room) {
	if room.Revealed || room.CurrentIssue == "" {
		return
	}
	if len(room.Votes) == 0 || len(room.Votes) != room.VoterCount() {
		return
	}
	room.Revealed = true
	if issue := room.FindIssue(room.CurrentIssue); issue != nil {
		issue.Votes = maps.Clone(room.Votes)
	}
}

// consensus reports the common estimate when all recorded votes agree.
// An empty vote map has no consensus.
func consensus(votes map[string]int) (int, bool) {
	if len(votes) == 0 {
		return 0, false
	}
	first := true
	var common int
	for _, v := range votes {
		if first {
			common = v
			first = false
			continue
		}
		if v != common {
			return 0, false
		}
	}
	return common, true
}

func removePending(room *models.Room, pendingID string) *models.PendingParticipant {
	for i, pending := range room.Pending {
		if pending.ID == pendingID {
			room.Pending = append(room.Pending[:i], room.Pending[i+1:]...)
			return pending
		}
	}
	return nil
}
