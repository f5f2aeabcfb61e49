// Package reconcile maps inbound relay events onto local rooms and messages.
package reconcile

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/utils"
)

// implicitRoomAvatar is used for rooms created from inbound traffic.
const implicitRoomAvatar = "https://cdn-icons-png.flaticon.com/512/17734/17734808.png"

// OutcomeKind says what a reconciled event changed.
type OutcomeKind int

const (
	// OutcomeNone: nothing changed (echo, ignored receipt, ...).
	OutcomeNone OutcomeKind = iota
	// OutcomeTyping: a remote user is typing; nothing is persisted.
	OutcomeTyping
	// OutcomeMessageAdded: a new message was appended to Room.
	OutcomeMessageAdded
	// OutcomeMessageUpdated: an existing message in Room changed in place.
	OutcomeMessageUpdated
)

// Outcome describes the state change produced by one event. The caller
// persists and surfaces it.
type Outcome struct {
	Kind    OutcomeKind
	Room    *core.Room
	Message *core.Message

	// RoomCreated is set when the topic had no room yet.
	RoomCreated bool
	// RoomChanged is set when unread count or preview of Room changed.
	RoomChanged bool
	// Visible is set when the message landed in the active room.
	Visible     bool
	// SendReceipt asks the caller to schedule a read receipt for Message.
	SendReceipt bool

	TypingUserID   string
	TypingUsername string
}

// Reconciler applies inbound events to the application state. It is not
// safe for concurrent use; the session loop owns it.
type Reconciler struct {
	state  *core.State
	topics core.Topics
	log    *zerolog.Logger
	now    func() time.Time
}

// New builds a reconciler over state.
func New(state *core.State, topics core.Topics, logger *zerolog.Logger) *Reconciler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{
		state:  state,
		topics: topics,
		log:    logger,
		now:    time.Now,
	}
}

// Reconcile decodes ev and applies it. Errors are recoverable: the event is
// dropped and nothing changes.
func (r *Reconciler) Reconcile(ev proto.RelayEvent) (Outcome, error) {
	in, err := Decode(ev.Message)
	if err != nil {
		r.log.Warn().Err(err).Str("topic", ev.Topic).Str("event_id", ev.ID).Msg("drop inbound event")
		return Outcome{}, err
	}
	topic := r.topics.Canonical(ev.Topic)
	if topic == "" {
		r.log.Warn().Str("event_id", ev.ID).Msg("drop inbound event without topic")
		return Outcome{}, fmt.Errorf("%w: missing topic", ErrMalformed)
	}

	switch v := in.(type) {
	case TypingSignal:
		return r.typing(topic, v), nil
	case ReadReceipt:
		return r.readReceipt(v), nil
	case ReactionSignal:
		return r.reaction(topic, v), nil
	case ChatMessage:
		return r.chat(topic, v), nil
	}
	return Outcome{}, nil
}

func (r *Reconciler) isLocal(userID string) bool {
	return userID != "" && userID == r.state.User.ID
}

func (r *Reconciler) typing(topic string, v TypingSignal) Outcome {
	if r.isLocal(v.UserID) {
		return Outcome{}
	}
	room := r.state.RoomByTopic(topic)
	if room == nil {
		return Outcome{}
	}
	return Outcome{Kind: OutcomeTyping, Room: room, TypingUserID: v.UserID, TypingUsername: v.Username}
}

// readReceipt only ever looks at the active room and only marks messages
// the local user authored.
func (r *Reconciler) readReceipt(v ReadReceipt) Outcome {
	room := r.state.Active
	if room == nil || r.isLocal(v.UserID) {
		return Outcome{}
	}
	msg := r.state.FindMessage(room.ID, v.MessageID)
	if msg == nil || !r.isLocal(msg.SenderID) || msg.Status == core.StatusRead {
		return Outcome{}
	}
	msg.Status = core.StatusRead
	r.log.Debug().Str("message_id", msg.ID).Str("reader", v.Username).Msg("message read")
	return Outcome{Kind: OutcomeMessageUpdated, Room: room, Message: msg, Visible: true}
}

func (r *Reconciler) reaction(topic string, v ReactionSignal) Outcome {
	room := r.state.RoomByTopic(topic)
	if room == nil {
		return Outcome{}
	}
	msg := r.state.FindMessage(room.ID, v.MessageID)
	if msg == nil {
		return Outcome{}
	}
	if !msg.AddReaction(core.Reaction{Emoji: v.Emoji, UserID: v.UserID, Username: v.Username}) {
		return Outcome{}
	}
	return Outcome{Kind: OutcomeMessageUpdated, Room: room, Message: msg, Visible: r.state.IsActive(room)}
}

func (r *Reconciler) chat(topic string, v ChatMessage) Outcome {
	var out Outcome

	room := r.state.RoomByTopic(topic)
	if room == nil {
		room = &core.Room{
			ID:        utils.NewID(),
			Name:      "Chat on " + topic,
			Topic:     topic,
			Avatar:    implicitRoomAvatar,
			CreatedAt: r.now().UnixMilli(),
		}
		r.state.AddRoom(room, false)
		out.RoomCreated = true
		r.log.Info().Str("topic", topic).Str("room_id", room.ID).Msg("room created from inbound message")
	}
	out.Room = room

	fromSelf := r.isLocal(v.UserID)
	if v.MessageID != "" {
		if existing := r.state.FindMessage(room.ID, v.MessageID); existing != nil {
			if fromSelf {
				// Echo of our own optimistic publish.
				r.log.Debug().Str("message_id", v.MessageID).Msg("skip own echo")
				return out
			}
			existing.SenderID = v.UserID
			existing.SenderName = senderName(v.Username)
			existing.Avatar = v.Avatar
			existing.Text = v.Text
			existing.Attachment = v.Attachment
			if v.Timestamp != 0 {
				existing.Timestamp = v.Timestamp
			}
			out.Kind = OutcomeMessageUpdated
			out.Message = existing
			out.Visible = r.state.IsActive(room)
			return out
		}
	}

	msg := &core.Message{
		ID:         v.MessageID,
		RoomID:     room.ID,
		SenderID:   v.UserID,
		SenderName: senderName(v.Username),
		Avatar:     v.Avatar,
		Text:       v.Text,
		Timestamp:  v.Timestamp,
		Status:     core.StatusReceived,
		Attachment: v.Attachment,
	}
	if msg.ID == "" {
		msg.ID = utils.NewID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = r.now().UnixMilli()
	}
	r.state.AppendMessage(room.ID, msg)
	room.Touch(msg)

	out.Kind = OutcomeMessageAdded
	out.Message = msg
	out.RoomChanged = true
	if r.state.IsActive(room) {
		out.Visible = true
		out.SendReceipt = !fromSelf
	} else {
		room.UnreadCount++
	}
	return out
}

func senderName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
