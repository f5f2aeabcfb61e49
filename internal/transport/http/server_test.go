package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/session"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
)

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRoomLifecycle(t *testing.T) {
	ts := startTestServer(t)

	var created core.Room
	if code := doJSON(t, ts, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: "ntfy.sh/t1", Name: "First"}, &created); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if created.Topic != "t1" || created.Name != "First" {
		t.Fatalf("unexpected room %+v", created)
	}

	var again core.Room
	doJSON(t, ts, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: "t1"}, &again)
	if again.ID != created.ID {
		t.Fatal("creating an existing topic should return the same room")
	}

	var list RoomsResponse
	if code := doJSON(t, ts, http.MethodGet, "/api/rooms", nil, &list); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(list.Rooms) != 1 || list.ActiveRoomID != created.ID {
		t.Fatalf("unexpected room list %+v", list)
	}

	var msgs []core.Message
	if code := doJSON(t, ts, http.MethodGet, "/api/rooms/"+created.ID+"/messages", nil, &msgs); code != http.StatusOK || len(msgs) != 0 {
		t.Fatalf("expected empty transcript, got %d %+v", code, msgs)
	}

	if code := doJSON(t, ts, http.MethodDelete, "/api/rooms/"+created.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	var errResp ErrorResponse
	if code := doJSON(t, ts, http.MethodPost, "/api/rooms/"+created.ID+"/select", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if errResp.Code != core.ErrCodeRoomNotFound {
		t.Fatalf("unexpected error code %q", errResp.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	ts := startTestServer(t)

	var errResp ErrorResponse
	if code := doJSON(t, ts, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: "bad topic!"}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if errResp.Code != core.ErrCodeInvalidTopic {
		t.Fatalf("unexpected error code %q", errResp.Code)
	}

	if code := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Text: "hi"}, &errResp); code != http.StatusConflict {
		t.Fatalf("expected 409 without an active room, got %d", code)
	}

	doJSON(t, ts, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: "t1"}, nil)
	if code := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Text: "  "}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", code)
	}
	if code := doJSON(t, ts, http.MethodPost, "/api/messages/ghost/retry", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown message, got %d", code)
	}
	if code := doJSON(t, ts, http.MethodPut, "/api/theme", ThemeBody{Theme: "neon"}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown theme, got %d", code)
	}
}

func TestMessagesAndPreferences(t *testing.T) {
	ts := startTestServer(t)

	doJSON(t, ts, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: "t1"}, nil)

	var msg core.Message
	if code := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Text: "hello"}, &msg); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if msg.Text != "hello" || msg.Status != core.StatusSending {
		t.Fatalf("unexpected message %+v", msg)
	}

	var att core.Message
	if code := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{AttachmentURL: "https://example.com/a/b.png"}, &att); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if att.Attachment == nil || att.Attachment.Name != "b.png" {
		t.Fatalf("unexpected attachment %+v", att.Attachment)
	}
	var errResp ErrorResponse
	if code := doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{AttachmentURL: "javascript:alert(1)"}, &errResp); code != http.StatusBadRequest || errResp.Code != core.ErrCodeInvalidURL {
		t.Fatalf("expected 400 invalid_attachment, got %d %+v", code, errResp)
	}

	var reacted core.Message
	if code := doJSON(t, ts, http.MethodPost, "/api/messages/"+msg.ID+"/reactions", ReactRequest{Emoji: "🎉"}, &reacted); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(reacted.Reactions) != 1 {
		t.Fatalf("expected a reaction, got %+v", reacted.Reactions)
	}

	var typing TypingResponse
	doJSON(t, ts, http.MethodPost, "/api/typing", nil, &typing)
	if !typing.Sent {
		t.Fatal("first typing signal should be sent")
	}

	if code := doJSON(t, ts, http.MethodDelete, "/api/messages/"+msg.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}

	var me core.User
	if code := doJSON(t, ts, http.MethodPatch, "/api/me", UpdateMeRequest{Username: "Alice"}, &me); code != http.StatusOK || me.DisplayName != "Alice" {
		t.Fatalf("rename failed: %d %+v", code, me)
	}

	var theme ThemeBody
	doJSON(t, ts, http.MethodPut, "/api/theme", ThemeBody{Theme: "light"}, nil)
	doJSON(t, ts, http.MethodGet, "/api/theme", nil, &theme)
	if theme.Theme != "light" {
		t.Fatalf("expected light theme, got %q", theme.Theme)
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	ts := startTestServer(t)
	doJSON(t, ts, http.MethodPost, "/api/rooms", CreateRoomRequest{Topic: "t1"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	doJSON(t, ts, http.MethodPost, "/api/messages", SendMessageRequest{Text: "over the wire"}, nil)

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if outbound.Type != proto.OutboundTypeEvent || outbound.Event != "message_added" {
			continue
		}

		var msg core.Message
		if err := json.Unmarshal(outbound.Data, &msg); err != nil {
			t.Fatalf("unmarshal event data: %v", err)
		}
		if msg.Text != "over the wire" {
			t.Fatalf("unexpected event payload: %+v", msg)
		}
		return
	}
}

func TestOutboundFromEvent(t *testing.T) {
	out := outboundFromEvent(core.Event{Kind: core.EventError, Error: core.ErrNoActiveRoom})
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeNoActiveRoom {
		t.Fatalf("unexpected error frame %+v", out)
	}

	out = outboundFromEvent(core.Event{Kind: core.EventTyping, RoomID: "r1", UserID: "u2", Username: "bob"})
	if out.Event != "typing" {
		t.Fatalf("unexpected event name %q", out.Event)
	}
	if data, ok := out.Data.(proto.TypingData); !ok || data.Username != "bob" || data.RoomID != "r1" {
		t.Fatalf("unexpected typing payload %+v", out.Data)
	}

	out = outboundFromEvent(core.Event{Kind: core.EventRoomsChanged})
	if rooms, ok := out.Data.([]core.Room); !ok || rooms == nil {
		t.Fatalf("rooms payload should be an empty list, got %#v", out.Data)
	}
}

func TestSessionNotStartedIsUnavailable(t *testing.T) {
	kv, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer kv.Close()
	logger := zerolog.Nop()
	ctrl := session.New(store.NewLocal(kv), &stubRelay{}, core.NewTopics("https://ntfy.sh"), session.Options{}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	ts := httptest.NewServer(NewRouter(ctrl, &logger))
	defer ts.Close()

	var errResp ErrorResponse
	if code := doJSON(t, ts, http.MethodGet, "/api/rooms", nil, &errResp); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
	if errResp.Code != core.ErrCodeNotStarted {
		t.Fatalf("unexpected error code %q", errResp.Code)
	}
}
