package models

// Command event names accepted over a room channel
const (
	EventJoinRoom    = "join-room"
	EventApproveUser = "approve-user"
	EventRejectUser  = "reject-user"
	EventCreateIssue = "create-issue"
	EventEditIssue   = "edit-issue"
	EventDeleteIssue = "delete-issue"
	EventSelectIssue = "select-issue"
	EventVote        = "vote"
	EventNextRound   = "next-round"
)

// Notification event names emitted by the engine
const (
	EventRoomUpdated        = "room-updated"
	EventPendingUserRequest = "pending-user-request"
	EventApprovalGranted    = "approval-granted"
	EventApprovalRejected   = "approval-rejected"
	EventWaitingForApproval = "waiting-for-approval"
)

// Messages delivered alongside admission notifications
const (
	MsgWaitingForApproval = "Waiting for host approval to join the room..."
	MsgApprovalRejected   = "Your request to join the room was rejected by the host."
)

// Estimate scale bounds. Votes are plain integers on a 1-5 scale;
// anything outside it is ignored like any other absorbed error.
const (
	MinEstimate = 1
	MaxEstimate = 5
)

// ValidEstimate reports whether v is on the voting scale.
func ValidEstimate(v int) bool {
	return v >= MinEstimate && v <= MaxEstimate
}
