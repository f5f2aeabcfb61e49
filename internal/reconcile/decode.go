package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
)

// ErrMalformed marks inbound payloads that cannot be reconciled. The event
// is dropped and the stream keeps going.
var ErrMalformed = errors.New("malformed payload")

// Inbound is one decoded relay payload: ChatMessage, TypingSignal,
// ReadReceipt or ReactionSignal.
type Inbound interface {
	inbound()
}

// ChatMessage is a regular chat line.
type ChatMessage struct {
	MessageID string
	UserID    string
	Username  string
	Avatar    string
	Text      string
	Timestamp int64
	// Attachment is nil for plain text messages.
	Attachment *core.Attachment
}

// TypingSignal says a user is composing a message.
type TypingSignal struct {
	UserID   string
	Username string
}

// ReadReceipt says UserID has read MessageID.
type ReadReceipt struct {
	MessageID string
	UserID    string
	Username  string
}

// ReactionSignal adds an emoji reaction to MessageID.
type ReactionSignal struct {
	MessageID string
	UserID    string
	Username  string
	Emoji     string
}

func (ChatMessage) inbound()    {}
func (TypingSignal) inbound()   {}
func (ReadReceipt) inbound()    {}
func (ReactionSignal) inbound() {}

// Decode parses the message field of a relay event into its variant.
func Decode(raw string) (Inbound, error) {
	var env proto.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case proto.TypeChat:
		att := decodeAttachment(env.Attachment)
		if env.Text == "" && att == nil {
			return nil, fmt.Errorf("%w: chat message without text or attachment", ErrMalformed)
		}
		return ChatMessage{
			MessageID:  string(env.MessageID),
			UserID:     string(env.UserID),
			Username:   env.Username,
			Avatar:     env.Avatar,
			Text:       env.Text,
			Timestamp:  env.Timestamp,
			Attachment: att,
		}, nil
	case proto.TypeTyping:
		return TypingSignal{UserID: string(env.UserID), Username: env.Username}, nil
	case proto.TypeReadReceipt:
		if env.MessageID == "" {
			return nil, fmt.Errorf("%w: read receipt without messageId", ErrMalformed)
		}
		return ReadReceipt{MessageID: string(env.MessageID), UserID: string(env.UserID), Username: env.Username}, nil
	case proto.TypeReaction:
		if env.MessageID == "" || env.Emoji == "" {
			return nil, fmt.Errorf("%w: reaction without messageId or emoji", ErrMalformed)
		}
		return ReactionSignal{
			MessageID: string(env.MessageID),
			UserID:    string(env.UserID),
			Username:  env.Username,
			Emoji:     env.Emoji,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
}

func decodeAttachment(a *proto.Attachment) *core.Attachment {
	if a == nil || strings.TrimSpace(a.URL) == "" {
		return nil
	}
	name := a.Name
	if name == "" {
		name = "Attachment"
		if u, err := url.Parse(a.URL); err == nil {
			name = core.AttachmentName(u)
		}
	}
	return &core.Attachment{URL: a.URL, Name: name}
}
