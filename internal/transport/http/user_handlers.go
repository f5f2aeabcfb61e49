package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UserHandlers provides HTTP handlers for the local profile and preferences.
type UserHandlers struct {
	session Session
	log     *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(session Session, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		session: session,
		log:     logger,
	}
}

// UpdateMeRequest represents the profile update body.
type UpdateMeRequest struct {
	Username string `json:"username" binding:"required,max=32"`
}

// ThemeBody is used for both reading and writing the theme.
type ThemeBody struct {
	Theme string `json:"theme" binding:"required"`
}

// GetMe returns the local profile.
// GET /api/me
func (h *UserHandlers) GetMe(c *gin.Context) {
	user, err := h.session.User(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe changes the display name.
// PATCH /api/me
func (h *UserHandlers) UpdateMe(c *gin.Context) {
	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid profile update")
		badRequest(c)
		return
	}

	user, err := h.session.Rename(c.Request.Context(), req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info().Str("username", user.DisplayName).Msg("display name changed")
	c.JSON(http.StatusOK, user)
}

// GetTheme returns the theme preference.
// GET /api/theme
func (h *UserHandlers) GetTheme(c *gin.Context) {
	theme, err := h.session.Theme(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ThemeBody{Theme: theme})
}

// SetTheme stores the theme preference.
// PUT /api/theme
func (h *UserHandlers) SetTheme(c *gin.Context) {
	var req ThemeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := h.session.SetTheme(c.Request.Context(), req.Theme); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
