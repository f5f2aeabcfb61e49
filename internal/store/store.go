package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/relaychat/internal/core"
)

// Persistence keys. Values are JSON documents.
const (
	KeyUser           = "relaychat_user"
	KeyRooms          = "relaychat_rooms"
	KeyTheme          = "relaychat_theme"
	keyMessagesPrefix = "relaychat_messages_"
)

// Theme values.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ErrNotFound is returned by KV.Get for absent keys.
var ErrNotFound = errors.New("key not found")

// KV is a string-keyed byte store. Implementations live in sub-packages.
type KV interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying database.
	Close() error
}

// UserStore handles the local profile.
type UserStore interface {
	// LoadUser returns the saved profile or nil on first run.
	LoadUser(ctx context.Context) (*core.User, error)

	// SaveUser persists the profile.
	SaveUser(ctx context.Context, user core.User) error
}

// RoomStore handles the room list.
type RoomStore interface {
	// LoadRooms returns the saved rooms in display order.
	LoadRooms(ctx context.Context) ([]*core.Room, error)

	// SaveRooms replaces the saved room list.
	SaveRooms(ctx context.Context, rooms []*core.Room) error
}

// MessageStore handles per-room transcripts.
type MessageStore interface {
	// LoadMessages returns the transcript of a room.
	LoadMessages(ctx context.Context, roomID string) ([]*core.Message, error)

	// SaveMessages replaces the transcript of a room.
	SaveMessages(ctx context.Context, roomID string, msgs []*core.Message) error

	// DeleteMessages drops a room transcript.
	DeleteMessages(ctx context.Context, roomID string) error
}

// PrefStore handles UI preferences.
type PrefStore interface {
	LoadTheme(ctx context.Context) (string, error)
	SaveTheme(ctx context.Context, theme string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	PrefStore

	// Clear removes every key owned by the client.
	Clear(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}

// Local implements Store on top of a KV backend.
type Local struct {
	kv KV
}

// NewLocal wraps a KV backend.
func NewLocal(kv KV) *Local {
	return &Local{kv: kv}
}

// MessagesKey returns the transcript key of a room.
func MessagesKey(roomID string) string {
	return keyMessagesPrefix + roomID
}

// LoadUser returns the saved profile or nil on first run.
func (l *Local) LoadUser(ctx context.Context) (*core.User, error) {
	var user core.User
	found, err := l.getJSON(ctx, KeyUser, &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// SaveUser persists the profile.
func (l *Local) SaveUser(ctx context.Context, user core.User) error {
	return l.setJSON(ctx, KeyUser, user)
}

// LoadRooms returns the saved rooms, or an empty list on first run.
func (l *Local) LoadRooms(ctx context.Context) ([]*core.Room, error) {
	var rooms []*core.Room
	if _, err := l.getJSON(ctx, KeyRooms, &rooms); err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []*core.Room{}
	}
	return rooms, nil
}

// SaveRooms replaces the saved room list.
func (l *Local) SaveRooms(ctx context.Context, rooms []*core.Room) error {
	if rooms == nil {
		rooms = []*core.Room{}
	}
	return l.setJSON(ctx, KeyRooms, rooms)
}

// LoadMessages returns a room transcript, or an empty list.
func (l *Local) LoadMessages(ctx context.Context, roomID string) ([]*core.Message, error) {
	var msgs []*core.Message
	if _, err := l.getJSON(ctx, MessagesKey(roomID), &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*core.Message{}
	}
	return msgs, nil
}

// SaveMessages replaces a room transcript.
func (l *Local) SaveMessages(ctx context.Context, roomID string, msgs []*core.Message) error {
	if msgs == nil {
		msgs = []*core.Message{}
	}
	return l.setJSON(ctx, MessagesKey(roomID), msgs)
}

// DeleteMessages drops a room transcript.
func (l *Local) DeleteMessages(ctx context.Context, roomID string) error {
	if err := l.kv.Delete(ctx, MessagesKey(roomID)); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

// LoadTheme returns the saved theme, dark by default.
func (l *Local) LoadTheme(ctx context.Context) (string, error) {
	var theme string
	found, err := l.getJSON(ctx, KeyTheme, &theme)
	if err != nil {
		return ThemeDark, err
	}
	if !found || theme == "" {
		return ThemeDark, nil
	}
	return theme, nil
}

// SaveTheme persists the theme preference.
func (l *Local) SaveTheme(ctx context.Context, theme string) error {
	if theme != ThemeDark && theme != ThemeLight {
		return core.ErrInvalidTheme
	}
	return l.setJSON(ctx, KeyTheme, theme)
}

// Clear removes the profile, the room list, the theme and every transcript.
func (l *Local) Clear(ctx context.Context) error {
	keys, err := l.kv.Keys(ctx, keyMessagesPrefix)
	if err != nil {
		return fmt.Errorf("list transcripts: %w", err)
	}
	keys = append(keys, KeyUser, KeyRooms, KeyTheme)
	for _, key := range keys {
		if err := l.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// Close closes the backend.
func (l *Local) Close() error {
	return l.kv.Close()
}

func (l *Local) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := l.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := l.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
