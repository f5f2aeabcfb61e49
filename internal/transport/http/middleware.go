package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}

// writeError maps domain errors to status codes.
func writeError(c *gin.Context, logger *zerolog.Logger, err error) {
	var coreErr *core.CoreError
	if !errors.As(err, &coreErr) {
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	status := http.StatusBadRequest
	switch coreErr.Code {
	case core.ErrCodeRoomNotFound, core.ErrCodeMessageNotFound:
		status = http.StatusNotFound
	case core.ErrCodeNoActiveRoom:
		status = http.StatusConflict
	case core.ErrCodeNotStarted:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorResponse{Error: coreErr.Message, Code: coreErr.Code})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
}
