package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alvarojfjunior/planning-room/models"
)

// join runs a Join command and returns its result.
func join(room *models.Room, connID, name string, role models.Role) result {
	return reduce(room, Join{ConnID: connID, Name: name, Role: role})
}

// setupPair builds a room with Alice as host and Bob approved in, both
// voting participants.
func setupPair(t *testing.T) *models.Room {
	t.Helper()

	room := models.NewRoom("sprint-1", "Sprint 1")
	join(room, "conn-alice", "Alice", models.RoleParticipant)
	join(room, "conn-bob", "Bob", models.RoleParticipant)
	require.Len(t, room.Pending, 1)

	res := reduce(room, Approve{ConnID: "conn-alice", PendingID: room.Pending[0].ID})
	require.True(t, res.changed)
	require.Len(t, room.Participants, 2)
	require.Empty(t, room.Pending)
	return room
}

func participantID(t *testing.T, room *models.Room, name string) string {
	t.Helper()
	p := room.ParticipantByName(name)
	require.NotNil(t, p)
	return p.ID
}

func TestFirstJoinerBecomesHost(t *testing.T) {
	t.Parallel()

	room := models.NewRoom("r1", "")
	res := join(room, "conn-1", "Alice", models.RoleParticipant)

	require.True(t, res.changed)
	require.Equal(t, []string{"conn-1"}, res.attach)
	require.Len(t, room.Participants, 1)
	require.True(t, room.Participants[0].IsHost)
	require.Empty(t, room.Pending)
}

func TestSecondJoinerGoesPending(t *testing.T) {
	t.Parallel()

	room := models.NewRoom("r1", "")
	join(room, "conn-alice", "Alice", models.RoleParticipant)
	res := join(room, "conn-bob", "Bob", models.RoleParticipant)

	require.Len(t, room.Participants, 1)
	require.Len(t, room.Pending, 1)
	require.Equal(t, "Bob", room.Pending[0].Name)
	require.Empty(t, res.attach)

	// Host is told about the request, Bob is told to wait.
	require.Len(t, res.direct, 2)
	require.Equal(t, "conn-alice", res.direct[0].connID)
	require.Equal(t, models.EventPendingUserRequest, res.direct[0].event.Event)
	require.Equal(t, "conn-bob", res.direct[1].connID)
	require.Equal(t, models.EventWaitingForApproval, res.direct[1].event.Event)
}

func TestRepeatedJoinRefreshesPendingEntry(t *testing.T) {
	t.Parallel()

	room := models.NewRoom("r1", "")
	join(room, "conn-alice", "Alice", models.RoleParticipant)
	join(room, "conn-bob-1", "Bob", models.RoleParticipant)
	pendingID := room.Pending[0].ID

	join(room, "conn-bob-2", "Bob", models.RoleParticipant)

	require.Len(t, room.Pending, 1)
	require.Equal(t, pendingID, room.Pending[0].ID)
	require.Equal(t, "conn-bob-2", room.Pending[0].ConnID)
}

func TestReconnectKeepsIdentity(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	bobID := participantID(t, room, "Bob")

	res := join(room, "conn-bob-2", "Bob", models.RoleParticipant)

	require.True(t, res.changed)
	require.Equal(t, []string{"conn-bob-2"}, res.attach)
	require.Len(t, room.Participants, 2)
	require.Empty(t, room.Pending)
	require.Equal(t, bobID, room.ParticipantByName("Bob").ID)
	require.Equal(t, "conn-bob-2", room.ParticipantByName("Bob").ConnID)
}

func TestApproveByNonHostIsSilentlyIgnored(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	join(room, "conn-carol", "Carol", models.RoleParticipant)
	pendingID := room.Pending[0].ID

	res := reduce(room, Approve{ConnID: "conn-bob", PendingID: pendingID})

	require.False(t, res.changed)
	require.Empty(t, res.direct)
	require.Len(t, room.Participants, 2)
	require.Len(t, room.Pending, 1)
}

func TestApproveUnknownPendingIsNoOp(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	res := reduce(room, Approve{ConnID: "conn-alice", PendingID: "nope"})

	require.False(t, res.changed)
	require.Len(t, room.Participants, 2)
}

func TestRejectNotifiesOnlyTheRejected(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	join(room, "conn-carol", "Carol", models.RoleParticipant)
	pendingID := room.Pending[0].ID

	res := reduce(room, Reject{ConnID: "conn-alice", PendingID: pendingID})

	require.True(t, res.changed)
	require.Empty(t, room.Pending)
	require.Len(t, room.Participants, 2)
	require.Len(t, res.direct, 1)
	require.Equal(t, "conn-carol", res.direct[0].connID)
	require.Equal(t, models.EventApprovalRejected, res.direct[0].event.Event)
	require.Equal(t, Notice{Message: models.MsgApprovalRejected}, res.direct[0].event.Data)
}

func TestCreateIssueBecomesCurrentOnlyWhenNoneIs(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "Login bug"})
	require.Len(t, room.Issues, 1)
	require.Equal(t, room.Issues[0].ID, room.CurrentIssue)

	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "Signup flow"})
	require.Len(t, room.Issues, 2)
	require.Equal(t, room.Issues[0].ID, room.CurrentIssue)
}

func TestEditIssueMergesFields(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "Login bug", Description: "older"})
	issueID := room.Issues[0].ID

	title := "Login regression"
	res := reduce(room, EditIssue{ConnID: "conn-bob", IssueID: issueID, Title: &title})

	require.True(t, res.changed)
	require.Equal(t, "Login regression", room.Issues[0].Title)
	require.Equal(t, "older", room.Issues[0].Description)

	res = reduce(room, EditIssue{ConnID: "conn-bob", IssueID: "nope", Title: &title})
	require.False(t, res.changed)
}

func TestDeleteCurrentIssueRepointsAndResets(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "second"})
	first := room.Issues[0].ID
	second := room.Issues[1].ID
	reduce(room, Vote{ConnID: "conn-alice", Value: 2})

	reduce(room, DeleteIssue{ConnID: "conn-alice", IssueID: first})

	require.Equal(t, second, room.CurrentIssue)
	require.Empty(t, room.Votes)
	require.False(t, room.Revealed)

	reduce(room, DeleteIssue{ConnID: "conn-alice", IssueID: second})
	require.Empty(t, room.CurrentIssue)
	require.Empty(t, room.Issues)
}

func TestDeleteNonCurrentIssueKeepsRound(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "second"})
	reduce(room, Vote{ConnID: "conn-alice", Value: 2})

	reduce(room, DeleteIssue{ConnID: "conn-alice", IssueID: room.Issues[1].ID})

	require.Equal(t, room.Issues[0].ID, room.CurrentIssue)
	require.Len(t, room.Votes, 1)
}

func TestSelectIssueIsHostOnly(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "second"})
	second := room.Issues[1].ID

	res := reduce(room, SelectIssue{ConnID: "conn-bob", IssueID: second})
	require.False(t, res.changed)
	require.Equal(t, room.Issues[0].ID, room.CurrentIssue)

	reduce(room, Vote{ConnID: "conn-alice", Value: 4})
	res = reduce(room, SelectIssue{ConnID: "conn-alice", IssueID: second})
	require.True(t, res.changed)
	require.Equal(t, second, room.CurrentIssue)
	require.Empty(t, room.Votes)
	require.False(t, room.Revealed)
}

func TestVoteGates(t *testing.T) {
	t.Parallel()

	room := setupPair(t)

	// No current issue yet.
	res := reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	require.False(t, res.changed)

	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})

	// Off-scale values are absorbed.
	res = reduce(room, Vote{ConnID: "conn-alice", Value: 9})
	require.False(t, res.changed)
	require.Empty(t, room.Votes)

	// Spectators never vote.
	join(room, "conn-carol", "Carol", models.RoleSpectator)
	reduce(room, Approve{ConnID: "conn-alice", PendingID: room.Pending[0].ID})
	res = reduce(room, Vote{ConnID: "conn-carol", Value: 3})
	require.False(t, res.changed)
	require.Empty(t, room.Votes)
}

func TestSpectatorDoesNotCountForReveal(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	join(room, "conn-carol", "Carol", models.RoleSpectator)
	reduce(room, Approve{ConnID: "conn-alice", PendingID: room.Pending[0].ID})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})

	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	require.False(t, room.Revealed)
	reduce(room, Vote{ConnID: "conn-bob", Value: 3})
	require.True(t, room.Revealed)
}

func TestVoteAfterRevealIsIgnored(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	reduce(room, Vote{ConnID: "conn-bob", Value: 5})
	require.True(t, room.Revealed)

	aliceID := participantID(t, room, "Alice")
	res := reduce(room, Vote{ConnID: "conn-alice", Value: 5})
	require.False(t, res.changed)
	require.Equal(t, 3, room.Votes[aliceID])
	require.True(t, room.Revealed)
}

// Scenario: unanimous room completes the issue and advances.
func TestUnanimousRoundCompletes(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	aliceID := participantID(t, room, "Alice")
	bobID := participantID(t, room, "Bob")

	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "Login bug"})
	issueID := room.Issues[0].ID
	require.Equal(t, issueID, room.CurrentIssue)

	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	require.False(t, room.Revealed)
	reduce(room, Vote{ConnID: "conn-bob", Value: 3})
	require.True(t, room.Revealed)
	require.Equal(t, map[string]int{aliceID: 3, bobID: 3}, room.Issues[0].Votes)

	res := reduce(room, NextRound{ConnID: "conn-alice"})
	require.True(t, res.changed)
	require.True(t, room.Issues[0].IsCompleted)
	require.NotNil(t, room.Issues[0].FinalEstimate)
	require.Equal(t, 3, *room.Issues[0].FinalEstimate)
	require.Empty(t, room.CurrentIssue)
	require.Empty(t, room.Votes)
	require.False(t, room.Revealed)

	// The captured votes survive the round reset untouched.
	require.Equal(t, map[string]int{aliceID: 3, bobID: 3}, room.Issues[0].Votes)
}

// Scenario: split vote reveals but refuses to advance.
func TestSplitVoteBlocksNextRound(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	aliceID := participantID(t, room, "Alice")
	bobID := participantID(t, room, "Bob")

	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "Login bug"})
	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	reduce(room, Vote{ConnID: "conn-bob", Value: 5})
	require.True(t, room.Revealed)

	res := reduce(room, NextRound{ConnID: "conn-alice"})
	require.False(t, res.changed)
	require.True(t, room.Revealed)
	require.Equal(t, map[string]int{aliceID: 3, bobID: 5}, room.Votes)
	require.False(t, room.Issues[0].IsCompleted)
	require.Nil(t, room.Issues[0].FinalEstimate)
}

func TestNextRoundIsHostOnly(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	reduce(room, Vote{ConnID: "conn-bob", Value: 3})

	res := reduce(room, NextRound{ConnID: "conn-bob"})
	require.False(t, res.changed)
	require.False(t, room.Issues[0].IsCompleted)
}

func TestNextRoundIsIdempotent(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	reduce(room, Vote{ConnID: "conn-bob", Value: 3})
	reduce(room, NextRound{ConnID: "conn-alice"})

	after := room.Snapshot()
	res := reduce(room, NextRound{ConnID: "conn-alice"})
	require.False(t, res.changed)
	require.Equal(t, after, room.Snapshot())
}

func TestNextRoundAdvancesToFirstIncompleteIssue(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "second"})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "third"})
	second := room.Issues[1].ID

	reduce(room, Vote{ConnID: "conn-alice", Value: 2})
	reduce(room, Vote{ConnID: "conn-bob", Value: 2})
	reduce(room, NextRound{ConnID: "conn-alice"})

	require.Equal(t, second, room.CurrentIssue)
}

// Scenario: Carol asks to join, the host turns her away, nothing else
// in the room moves.
func TestRejectedJoinLeavesRoomUnchanged(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	res := join(room, "conn-carol", "Carol", models.RoleParticipant)
	require.Equal(t, models.EventWaitingForApproval, res.direct[1].event.Event)

	pendingID := room.Pending[0].ID
	res = reduce(room, Reject{ConnID: "conn-alice", PendingID: pendingID})

	require.Equal(t, "conn-carol", res.direct[0].connID)
	require.Equal(t, models.EventApprovalRejected, res.direct[0].event.Event)
	require.Len(t, room.Participants, 2)
	require.Empty(t, room.Pending)
}

func TestLeaveAbandonsPendingJoin(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	join(room, "conn-carol", "Carol", models.RoleParticipant)

	res := reduce(room, Leave{ConnID: "conn-carol"})
	require.True(t, res.changed)
	require.Empty(t, room.Pending)
	require.Len(t, room.Participants, 2)
}

func TestHostLeavePromotesEarliestMember(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	join(room, "conn-carol", "Carol", models.RoleParticipant)
	reduce(room, Approve{ConnID: "conn-alice", PendingID: room.Pending[0].ID})

	reduce(room, Leave{ConnID: "conn-alice"})

	require.Len(t, room.Participants, 2)
	hosts := 0
	for _, p := range room.Participants {
		if p.IsHost {
			hosts++
			require.Equal(t, "Bob", p.Name)
		}
	}
	require.Equal(t, 1, hosts)
}

func TestLeaveCanCompleteTheReveal(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	join(room, "conn-carol", "Carol", models.RoleParticipant)
	reduce(room, Approve{ConnID: "conn-alice", PendingID: room.Pending[0].ID})
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})

	reduce(room, Vote{ConnID: "conn-alice", Value: 2})
	reduce(room, Vote{ConnID: "conn-bob", Value: 2})
	require.False(t, room.Revealed)

	// Carol never voted; her departure makes the round complete.
	reduce(room, Leave{ConnID: "conn-carol"})
	require.True(t, room.Revealed)
}

func TestExactlyOneHostThroughoutChurn(t *testing.T) {
	t.Parallel()

	room := models.NewRoom("r1", "")
	join(room, "c1", "Alice", models.RoleParticipant)
	join(room, "c2", "Bob", models.RoleParticipant)
	reduce(room, Approve{ConnID: "c1", PendingID: room.Pending[0].ID})
	join(room, "c3", "Carol", models.RoleSpectator)
	reduce(room, Approve{ConnID: "c1", PendingID: room.Pending[0].ID})

	countHosts := func() int {
		n := 0
		for _, p := range room.Participants {
			if p.IsHost {
				n++
			}
		}
		return n
	}

	require.Equal(t, 1, countHosts())
	reduce(room, Leave{ConnID: "c1"})
	require.Equal(t, 1, countHosts())
	reduce(room, Leave{ConnID: "c2"})
	require.Equal(t, 1, countHosts())
	reduce(room, Leave{ConnID: "c3"})
	require.Empty(t, room.Participants)
}

func TestRevealIsMonotoneWithinRound(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})
	reduce(room, Vote{ConnID: "conn-alice", Value: 3})
	reduce(room, Vote{ConnID: "conn-bob", Value: 5})
	require.True(t, room.Revealed)

	// Nothing short of select-issue or a successful advance resets it.
	reduce(room, Vote{ConnID: "conn-alice", Value: 5})
	reduce(room, NextRound{ConnID: "conn-bob"})
	reduce(room, CreateIssue{ConnID: "conn-bob", Title: "second"})
	require.True(t, room.Revealed)

	reduce(room, SelectIssue{ConnID: "conn-alice", IssueID: room.Issues[0].ID})
	require.False(t, room.Revealed)
}

func TestUnknownConnectionIsIgnoredEverywhere(t *testing.T) {
	t.Parallel()

	room := setupPair(t)
	reduce(room, CreateIssue{ConnID: "conn-alice", Title: "first"})

	for _, cmd := range []Command{
		Approve{ConnID: "ghost", PendingID: "x"},
		Reject{ConnID: "ghost", PendingID: "x"},
		CreateIssue{ConnID: "ghost", Title: "t"},
		DeleteIssue{ConnID: "ghost", IssueID: room.Issues[0].ID},
		SelectIssue{ConnID: "ghost", IssueID: room.Issues[0].ID},
		Vote{ConnID: "ghost", Value: 3},
		NextRound{ConnID: "ghost"},
		Leave{ConnID: "ghost"},
	} {
		res := reduce(room, cmd)
		require.False(t, res.changed, "command %T should be absorbed", cmd)
	}
	require.Len(t, room.Issues, 1)
}
