package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alvarojfjunior/planning-room/db"
	"github.com/alvarojfjunior/planning-room/engine"
	"github.com/alvarojfjunior/planning-room/models"
	"github.com/alvarojfjunior/planning-room/transport"
)

// Package-level WebSocket upgrader
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

const pingInterval = 15 * time.Second

// standardResponse sends a consistent JSON response
func standardResponse(c *gin.Context, code int, status string, data interface{}, err string) {
	response := gin.H{"status": status}

	if data != nil {
		response["data"] = data
	}

	if err != "" {
		response["error"] = err
	}

	c.JSON(code, response)
}

// RoomHandler handles all room-related requests
type RoomHandler struct {
	store   *db.Store
	engine  *engine.Engine
	adapter transport.Adapter
	log     *slog.Logger
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(store *db.Store, eng *engine.Engine, adapter transport.Adapter, log *slog.Logger) *RoomHandler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RoomHandler{
		store:   store,
		engine:  eng,
		adapter: adapter,
		log:     log,
	}
}

// CreateRoom handles room creation requests
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, models.ErrInvalidRoomName.Error())
		return
	}

	room := h.store.Create(req.Name)

	standardResponse(c, http.StatusCreated, "created", gin.H{
		"roomId": room.ID,
		"name":   room.Name,
	}, "")
}

// GetRoom handles requests to read a room snapshot
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("id")

	room, exists := h.store.Get(roomID)
	if !exists {
		standardResponse(c, http.StatusNotFound, "error", nil, models.ErrRoomNotFound.Error())
		return
	}

	room.Mutex.RLock()
	snapshot := room.Snapshot()
	room.Mutex.RUnlock()

	c.JSON(http.StatusOK, snapshot)
}

// ServeWS upgrades the connection and runs the room command loop for
// its lifetime. Every frame is a command from the §6 vocabulary; every
// outbound frame is a notification. The connection id assigned here is
// the transient join key the identity resolver sees.
func (h *RoomHandler) ServeWS(c *gin.Context) {
	roomID := c.Param("id")
	connID := uuid.NewString()

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		standardResponse(c, http.StatusInternalServerError, "error", nil, "Could not upgrade to WebSocket")
		return
	}
	defer conn.Close()

	events := h.adapter.Connect(connID)
	defer h.adapter.Disconnect(connID)

	h.log.Info("connection opened", "room", roomID, "conn", connID)

	// Setup ping ticker for keep-alive
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go h.readPump(conn, roomID, connID, done)

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump decodes inbound frames into commands until the connection
// drops, then feeds the implicit leave.
func (h *RoomHandler) readPump(conn *websocket.Conn, roomID, connID string, done chan struct{}) {
	defer close(done)

	for {
		var envelope struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&envelope); err != nil {
			h.log.Info("connection closed", "room", roomID, "conn", connID)
			h.engine.Dispatch(roomID, engine.Leave{ConnID: connID})
			return
		}

		cmd, ok := decodeCommand(connID, envelope.Event, envelope.Data)
		if !ok {
			h.log.Debug("dropping frame", "room", roomID, "conn", connID, "event", envelope.Event)
			continue
		}
		h.engine.Dispatch(roomID, cmd)
	}
}

// decodeCommand maps a wire event to its command. Unknown names and
// malformed payloads are dropped, keeping the protocol's absorb-errors
// posture.
func decodeCommand(connID, event string, data json.RawMessage) (engine.Command, bool) {
	switch event {
	case models.EventJoinRoom:
		var p struct {
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
			RoomName    string `json:"roomName"`
		}
		if json.Unmarshal(data, &p) != nil || p.DisplayName == "" {
			return nil, false
		}
		return engine.Join{
			ConnID:   connID,
			Name:     p.DisplayName,
			Role:     models.ParseRole(p.Role),
			RoomName: p.RoomName,
		}, true

	case models.EventApproveUser:
		var p struct {
			PendingID string `json:"pendingId"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.Approve{ConnID: connID, PendingID: p.PendingID}, true

	case models.EventRejectUser:
		var p struct {
			PendingID string `json:"pendingId"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.Reject{ConnID: connID, PendingID: p.PendingID}, true

	case models.EventCreateIssue:
		var p struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.CreateIssue{ConnID: connID, Title: p.Title, Description: p.Description}, true

	case models.EventEditIssue:
		var p struct {
			IssueID string `json:"issueId"`
			Updates struct {
				Title       *string `json:"title"`
				Description *string `json:"description"`
			} `json:"updates"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.EditIssue{
			ConnID:      connID,
			IssueID:     p.IssueID,
			Title:       p.Updates.Title,
			Description: p.Updates.Description,
		}, true

	case models.EventDeleteIssue:
		var p struct {
			IssueID string `json:"issueId"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.DeleteIssue{ConnID: connID, IssueID: p.IssueID}, true

	case models.EventSelectIssue:
		var p struct {
			IssueID string `json:"issueId"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.SelectIssue{ConnID: connID, IssueID: p.IssueID}, true

	case models.EventVote:
		var p struct {
			Value int `json:"value"`
		}
		if json.Unmarshal(data, &p) != nil {
			return nil, false
		}
		return engine.Vote{ConnID: connID, Value: p.Value}, true

	case models.EventNextRound:
		return engine.NextRound{ConnID: connID}, true
	}
	return nil, false
}
