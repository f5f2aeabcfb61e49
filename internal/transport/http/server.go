package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
)

// Session is the controller surface exposed over HTTP.
type Session interface {
	Rooms(ctx context.Context) ([]core.Room, error)
	Active(ctx context.Context) (*core.Room, error)
	CreateRoom(ctx context.Context, topic, name string) (core.Room, error)
	SelectRoom(ctx context.Context, id string) (core.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	Transcript(ctx context.Context, roomID string) ([]core.Message, error)

	SendMessage(ctx context.Context, text string) (core.Message, error)
	SendAttachment(ctx context.Context, text, attachmentURL string) (core.Message, error)
	RetryMessage(ctx context.Context, id string) (core.Message, error)
	React(ctx context.Context, messageID, emoji string) (core.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	SendTyping(ctx context.Context) (bool, error)

	User(ctx context.Context) (core.User, error)
	Rename(ctx context.Context, name string) (core.User, error)
	Theme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, theme string) error

	Events(buffer int) (<-chan core.Event, func())
}

// NewServer builds the local API server.
func NewServer(session Session, cfg config.HTTPConfig, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(session, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires every route onto a gin engine.
func NewRouter(session Session, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(session, logger)))

	rooms := NewRoomHandlers(session, logger)
	messages := NewMessageHandlers(session, logger)
	users := NewUserHandlers(session, logger)

	api := router.Group("/api")
	{
		api.GET("/me", users.GetMe)
		api.PATCH("/me", users.UpdateMe)
		api.GET("/theme", users.GetTheme)
		api.PUT("/theme", users.SetTheme)

		api.GET("/rooms", rooms.ListRooms)
		api.POST("/rooms", rooms.CreateRoom)
		api.POST("/rooms/:id/select", rooms.SelectRoom)
		api.DELETE("/rooms/:id", rooms.DeleteRoom)
		api.GET("/rooms/:id/messages", rooms.ListMessages)

		api.POST("/messages", messages.SendMessage)
		api.POST("/messages/:id/retry", messages.RetryMessage)
		api.POST("/messages/:id/reactions", messages.React)
		api.DELETE("/messages/:id", messages.DeleteMessage)
		api.POST("/typing", messages.Typing)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
