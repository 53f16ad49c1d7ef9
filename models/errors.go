package models

import "errors"

// Errors surfaced by the HTTP API. In-room command failures are
// absorbed silently and never reach these.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidRoomName = errors.New("invalid room name")
)
