package core

// EventKind is a notification the client emits to the presentation layer.
type EventKind int

const (
	// EventMessageAdded reports a message appended to the active room.
	EventMessageAdded EventKind = iota
	// EventMessageUpdated reports a status, reaction or content change.
	EventMessageUpdated
	// EventMessageDeleted reports a locally deleted message.
	EventMessageDeleted
	// EventRoomsChanged reports a change of the room list, unread counters or previews.
	EventRoomsChanged
	// EventActiveRoomChanged reports a new active room (Room is nil when none is active).
	EventActiveRoomChanged
	// EventTyping reports that another user is typing in a room.
	EventTyping
	// EventTypingStopped reports that a typing indicator expired.
	EventTypingStopped
	// EventError reports a user-visible failure.
	EventError
)

var eventKindNames = map[EventKind]string{
	EventMessageAdded:      "message_added",
	EventMessageUpdated:    "message_updated",
	EventMessageDeleted:    "message_deleted",
	EventRoomsChanged:      "rooms_changed",
	EventActiveRoomChanged: "active_room_changed",
	EventTyping:            "typing",
	EventTypingStopped:     "typing_stopped",
	EventError:             "error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is sent to presentation subscribers. All pointers are copies.
type Event struct {
	Kind     EventKind
	RoomID   string
	Room     *Room
	Rooms    []Room
	Message  *Message
	UserID   string
	Username string
	Error    *CoreError
}
