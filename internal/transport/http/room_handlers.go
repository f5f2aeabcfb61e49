package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	session Session
	log     *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(session Session, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		session: session,
		log:     logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Topic string `json:"topic" binding:"required"`
	Name  string `json:"name" binding:"max=64"`
}

// RoomsResponse lists rooms and the active one.
type RoomsResponse struct {
	Rooms        []core.Room `json:"rooms"`
	ActiveRoomID string      `json:"activeRoomId,omitempty"`
}

// ListRooms handles listing rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	rooms, err := h.session.Rooms(ctx)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	active, err := h.session.Active(ctx)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := RoomsResponse{Rooms: rooms}
	if active != nil {
		resp.ActiveRoomID = active.ID
	}
	c.JSON(http.StatusOK, resp)
}

// CreateRoom joins a topic, or selects the room that already owns it.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		badRequest(c)
		return
	}

	room, err := h.session.CreateRoom(c.Request.Context(), req.Topic, req.Name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// SelectRoom makes a room active.
// POST /api/rooms/:id/select
func (h *RoomHandlers) SelectRoom(c *gin.Context) {
	room, err := h.session.SelectRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// DeleteRoom removes a room and its transcript.
// DELETE /api/rooms/:id
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	if err := h.session.DeleteRoom(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages returns a room transcript.
// GET /api/rooms/:id/messages
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	msgs, err := h.session.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
