package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
)

// MessageHandlers provides HTTP handlers for the active room's messages.
type MessageHandlers struct {
	session Session
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(session Session, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		session: session,
		log:     logger,
	}
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Text          string `json:"text"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// ReactRequest represents the reaction request body.
type ReactRequest struct {
	Emoji string `json:"emoji"`
}

// TypingResponse reports whether a typing signal went out.
type TypingResponse struct {
	Sent bool `json:"sent"`
}

// SendMessage posts a message to the active room.
// POST /api/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		badRequest(c)
		return
	}

	var (
		msg core.Message
		err error
	)
	if req.AttachmentURL != "" {
		msg, err = h.session.SendAttachment(c.Request.Context(), req.Text, req.AttachmentURL)
	} else {
		msg, err = h.session.SendMessage(c.Request.Context(), req.Text)
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

// RetryMessage re-publishes a failed message.
// POST /api/messages/:id/retry
func (h *MessageHandlers) RetryMessage(c *gin.Context) {
	msg, err := h.session.RetryMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, msg)
}

// React adds an emoji reaction.
// POST /api/messages/:id/reactions
func (h *MessageHandlers) React(c *gin.Context) {
	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	msg, err := h.session.React(c.Request.Context(), c.Param("id"), req.Emoji)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes a message from the local transcript.
// DELETE /api/messages/:id
func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	if err := h.session.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Typing broadcasts a throttled typing signal.
// POST /api/typing
func (h *MessageHandlers) Typing(c *gin.Context) {
	sent, err := h.session.SendTyping(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, TypingResponse{Sent: sent})
}
