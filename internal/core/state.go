package core

// State is the in-memory application state. It is owned by the session
// controller and only touched from its event loop.
type State struct {
	User        User
	Rooms       []*Room
	Active      *Room
	Transcripts map[string][]*Message
}

// NewState builds an empty state for user.
func NewState(user User) *State {
	return &State{
		User:        user,
		Transcripts: make(map[string][]*Message),
	}
}

// RoomByID returns the room with id or nil.
func (s *State) RoomByID(id string) *Room {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// RoomByTopic returns the room owning the canonical topic or nil.
func (s *State) RoomByTopic(topic string) *Room {
	for _, r := range s.Rooms {
		if r.Topic == topic {
			return r
		}
	}
	return nil
}

// AddRoom inserts r at the front of the list (explicitly created rooms) or
// at the back (rooms discovered from inbound traffic).
func (s *State) AddRoom(r *Room, front bool) {
	if front {
		s.Rooms = append([]*Room{r}, s.Rooms...)
	} else {
		s.Rooms = append(s.Rooms, r)
	}
	if _, ok := s.Transcripts[r.ID]; !ok {
		s.Transcripts[r.ID] = nil
	}
}

// RemoveRoom drops the room and its transcript, returning the removed room.
func (s *State) RemoveRoom(id string) *Room {
	for i, r := range s.Rooms {
		if r.ID != id {
			continue
		}
		s.Rooms = append(s.Rooms[:i:i], s.Rooms[i+1:]...)
		delete(s.Transcripts, id)
		if s.Active == r {
			s.Active = nil
		}
		return r
	}
	return nil
}

// IsActive reports whether r is the active room.
func (s *State) IsActive(r *Room) bool {
	return r != nil && s.Active == r
}

// Transcript returns the messages of a room in arrival order.
func (s *State) Transcript(roomID string) []*Message {
	return s.Transcripts[roomID]
}

// FindMessage looks up a message by id inside one room.
func (s *State) FindMessage(roomID, messageID string) *Message {
	for _, m := range s.Transcripts[roomID] {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// AppendMessage adds m to the room transcript.
func (s *State) AppendMessage(roomID string, m *Message) {
	s.Transcripts[roomID] = append(s.Transcripts[roomID], m)
}

// RemoveMessage deletes a message from a room transcript.
func (s *State) RemoveMessage(roomID, messageID string) bool {
	msgs := s.Transcripts[roomID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.Transcripts[roomID] = append(msgs[:i:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

// RoomList returns copies of all rooms.
func (s *State) RoomList() []Room {
	out := make([]Room, 0, len(s.Rooms))
	for _, r := range s.Rooms {
		out = append(out, r.Clone())
	}
	return out
}

// TranscriptCopy returns copies of a room's messages.
func (s *State) TranscriptCopy(roomID string) []Message {
	msgs := s.Transcripts[roomID]
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out
}
