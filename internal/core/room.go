package core

// Preview is the last message shown in the room list.
type Preview struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Room is a local chat bound to exactly one relay topic.
type Room struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Topic       string   `json:"topic"`
	Avatar      string   `json:"avatar,omitempty"`
	LastMessage *Preview `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
	CreatedAt   int64    `json:"createdAt"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *Room) Clone() Room {
	out := *r
	if r.LastMessage != nil {
		p := *r.LastMessage
		out.LastMessage = &p
	}
	return out
}

// Touch records m as the room's latest message.
func (r *Room) Touch(m *Message) {
	text := m.Text
	if text == "" && m.Attachment != nil {
		text = "📎 " + m.Attachment.Name
	}
	r.LastMessage = &Preview{Text: text, Timestamp: m.Timestamp}
}
