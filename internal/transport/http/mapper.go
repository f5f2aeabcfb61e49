package http

import (
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
)

// ActiveRoomData is the payload of active_room_changed; Room is null when no
// room is active.
type ActiveRoomData struct {
	Room *core.Room `json:"room"`
}

// DeletedData identifies a deleted message.
type DeletedData struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

func outboundFromEvent(event core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}

	switch event.Kind {
	case core.EventMessageAdded, core.EventMessageUpdated:
		out.Data = event.Message
	case core.EventMessageDeleted:
		data := DeletedData{RoomID: event.RoomID}
		if event.Message != nil {
			data.MessageID = event.Message.ID
		}
		out.Data = data
	case core.EventRoomsChanged:
		rooms := event.Rooms
		if rooms == nil {
			rooms = []core.Room{}
		}
		out.Data = rooms
	case core.EventActiveRoomChanged:
		out.Data = ActiveRoomData{Room: event.Room}
	case core.EventTyping, core.EventTypingStopped:
		out.Data = proto.TypingData{RoomID: event.RoomID, UserID: event.UserID, Username: event.Username}
	case core.EventError:
		out.Type = proto.OutboundTypeError
		out.Event = ""
		if event.Error == nil {
			out.Error = &proto.Error{Code: "unknown", Msg: "unknown error"}
		} else {
			out.Error = &proto.Error{Code: event.Error.Code, Msg: event.Error.Message}
		}
	}
	return out
}
