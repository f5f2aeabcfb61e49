package core

import (
	"net/url"
	"path"
	"strings"
)

// Status is the delivery state of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	// StatusReceived marks messages that arrived from the relay.
	StatusReceived Status = "received"
)

// Reaction is a single emoji reaction left by a user.
type Reaction struct {
	Emoji    string `json:"emoji"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Attachment is a link shared alongside a message.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// NewAttachment validates raw as an absolute http(s) URL. The display name
// is the last path segment.
func NewAttachment(raw string) (*Attachment, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidURL
	}
	return &Attachment{URL: raw, Name: AttachmentName(u)}, nil
}

// AttachmentName derives a file name from u, "Attachment" when the path is empty.
func AttachmentName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "Attachment"
	}
	return name
}

// Message is the domain model for a chat message.
type Message struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"roomId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Avatar     string     `json:"avatar,omitempty"`
	Text       string     `json:"text"`
	Timestamp  int64      `json:"timestamp"`
	Status     Status     `json:"status"`
	Reactions  []Reaction `json:"reactions,omitempty"`

	Attachment *Attachment `json:"attachment,omitempty"`
}

// AddReaction appends r unless the same user already reacted with the same emoji.
func (m *Message) AddReaction(r Reaction) bool {
	for _, existing := range m.Reactions {
		if existing.Emoji == r.Emoji && existing.UserID == r.UserID {
			return false
		}
	}
	m.Reactions = append(m.Reactions, r)
	return true
}

// Clone returns a deep copy safe to hand to other goroutines.
func (m *Message) Clone() Message {
	out := *m
	if m.Reactions != nil {
		out.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	if m.Attachment != nil {
		a := *m.Attachment
		out.Attachment = &a
	}
	return out
}
