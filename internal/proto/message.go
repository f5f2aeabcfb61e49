package proto

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Envelope types multiplexed over a relay topic. Chat messages carry no type.
const (
	TypeChat        = ""
	TypeTyping      = "typing"
	TypeReadReceipt = "read_receipt"
	TypeReaction    = "reaction"
)

// ID is an identifier that decodes from either a JSON string or number.
// Older clients publish numeric user ids.
type ID string

// UnmarshalJSON accepts "abc", 1234 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Envelope is the application payload published to and received from a topic.
type Envelope struct {
	Type      string `json:"type,omitempty"`
	UserID    ID     `json:"userId"`
	Username  string `json:"username,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	MessageID ID     `json:"messageId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`

	Attachment *Attachment `json:"attachment,omitempty"`
}

// Attachment is a shared link carried by a chat envelope.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// RelayEvent is one SSE data payload emitted by the relay.
type RelayEvent struct {
	ID      string `json:"id,omitempty"`
	Time    int64  `json:"time,omitempty"`
	Event   string `json:"event,omitempty"`
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// Relay event kinds. Only RelayEventMessage carries an envelope.
const (
	RelayEventOpen      = "open"
	RelayEventKeepalive = "keepalive"
	RelayEventMessage   = "message"
)

// Outbound is the frame sent to local websocket clients.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Error describes a user-visible error.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// TypingData is the payload of typing events.
type TypingData struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
