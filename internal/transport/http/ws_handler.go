package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/utils"
)

const wsEventBuffer = 64

// WSHandler upgrades HTTP connections and streams session events to them.
type WSHandler struct {
	session Session
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(session Session, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{session: session, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// Subscribe before the upgrade so nothing published after the
	// handshake is missed.
	events, unsubscribe := h.session.Events(wsEventBuffer)
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	connID := utils.NewID()
	h.log.Debug().Str("conn_id", connID).Msg("ws client connected")

	// The feed is one-way; CloseRead handles control frames and cancels
	// ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())

	err = h.writeLoop(ctx, conn, connID, events)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", connID).Msg("ws connection closed with error")
		}
	}
	h.log.Debug().Str("conn_id", connID).Msg("ws client disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, connID string, events <-chan core.Event) error {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", connID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
