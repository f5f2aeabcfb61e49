// Package session owns the client state and drives rooms, messages and
// relay subscriptions from a single event loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/loop"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/reconcile"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/utils"
)

// Controller is the room/session controller. Every field below the loop is
// only touched from the loop goroutine; public methods hop onto the loop and
// return copies.
type Controller struct {
	loop   *loop.Loop
	store  store.Store
	relay  Relay
	topics core.Topics
	feed   *core.Feed
	log    *zerolog.Logger
	opts   Options
	now    func() time.Time
	newID  func() string

	// ctx bounds persistence and publishing started by the loop itself.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	state      *core.State
	rec        *reconcile.Reconciler
	theme      string
	started    bool
	receipts   map[string]*loop.Task
	typing     map[string]*loop.Task
	lastTyping time.Time
}

// New builds a controller. Call Run to start its loop, then Start.
func New(st store.Store, rl Relay, topics core.Topics, opts Options, logger *zerolog.Logger) *Controller {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		loop:     loop.New(512),
		store:    st,
		relay:    rl,
		topics:   topics,
		feed:     core.NewFeed(),
		log:      logger,
		opts:     opts.withDefaults(),
		now:      time.Now,
		newID:    utils.NewID,
		ctx:      ctx,
		cancel:   cancel,
		theme:    store.ThemeDark,
		receipts: make(map[string]*loop.Task),
		typing:   make(map[string]*loop.Task),
	}
}

// Run executes the event loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.log.Debug().Msg("session loop started")
	c.loop.Run(ctx)
	c.log.Debug().Msg("session loop stopped")
}

// Events subscribes to presentation events.
func (c *Controller) Events(buffer int) (<-chan core.Event, func()) {
	return c.feed.Subscribe(buffer)
}

// do runs fn on the loop and returns its error.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	var err error
	if callErr := c.loop.Call(ctx, func() { err = fn() }); callErr != nil {
		return callErr
	}
	return err
}

// Start loads the profile, rooms, transcripts and theme, then selects the
// configured default topic or the first saved room.
func (c *Controller) Start(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.started {
			return nil
		}

		user, err := c.store.LoadUser(ctx)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user == nil {
			fresh := core.NewUser()
			if err := c.store.SaveUser(ctx, fresh); err != nil {
				return fmt.Errorf("save user: %w", err)
			}
			user = &fresh
			c.log.Info().Str("user_id", fresh.ID).Str("username", fresh.DisplayName).Msg("created local profile")
		}
		c.state = core.NewState(*user)
		c.rec = reconcile.New(c.state, c.topics, c.log)

		rooms, err := c.store.LoadRooms(ctx)
		if err != nil {
			return fmt.Errorf("load rooms: %w", err)
		}
		var dropped []string
		for _, room := range rooms {
			room.Topic = c.topics.Canonical(room.Topic)
			if room.Topic == "" || c.state.RoomByTopic(room.Topic) != nil || c.state.RoomByID(room.ID) != nil {
				c.log.Warn().Str("room_id", room.ID).Msg("drop saved room with empty or duplicate topic")
				dropped = append(dropped, room.ID)
				continue
			}
			msgs, err := c.store.LoadMessages(ctx, room.ID)
			if err != nil {
				return fmt.Errorf("load messages for room %s: %w", room.ID, err)
			}
			for _, m := range msgs {
				// A publish interrupted by shutdown never completes.
				if m.Status == core.StatusSending {
					m.Status = core.StatusFailed
				}
			}
			c.state.AddRoom(room, false)
			c.state.Transcripts[room.ID] = msgs
		}
		if len(dropped) > 0 {
			c.pruneRooms(ctx, dropped)
		}

		theme, err := c.store.LoadTheme(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("load theme")
		}
		c.theme = theme
		c.started = true

		c.log.Info().Int("rooms", len(c.state.Rooms)).Str("theme", c.theme).Msg("session started")

		if c.opts.DefaultTopic != "" {
			if _, err := c.createRoom(ctx, c.opts.DefaultTopic, c.opts.DefaultRoomName); err != nil {
				return fmt.Errorf("join default topic: %w", err)
			}
			return nil
		}
		c.emitRooms()
		if len(c.state.Rooms) > 0 {
			return c.selectRoom(ctx, c.state.Rooms[0])
		}
		return nil
	})
}

// Close stops relay streams and pending timers. The loop keeps running until
// its context is cancelled.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		err = c.loop.Call(ctx, func() {
			c.cancelReceipts()
			c.clearTyping()
		})
		if errors.Is(err, loop.ErrStopped) {
			err = nil
		}
		c.cancel()
		c.relay.Close()
		c.wg.Wait()
		c.feed.Close()
		c.log.Info().Msg("session closed")
	})
	return err
}

// SelectRoom makes the room with id the active one.
func (c *Controller) SelectRoom(ctx context.Context, id string) (core.Room, error) {
	var out core.Room
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.RoomByID(id)
		if room == nil {
			return core.ErrRoomNotFound
		}
		if err := c.selectRoom(ctx, room); err != nil {
			return err
		}
		out = room.Clone()
		return nil
	})
	return out, err
}

// CreateRoom joins topic. An existing room for the same canonical topic is
// selected instead of creating a duplicate.
func (c *Controller) CreateRoom(ctx context.Context, topic, name string) (core.Room, error) {
	var out core.Room
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room, err := c.createRoom(ctx, topic, name)
		if err != nil {
			return err
		}
		out = room.Clone()
		return nil
	})
	return out, err
}

// DeleteRoom removes a room with its transcript.
func (c *Controller) DeleteRoom(ctx context.Context, id string) error {
	return c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		room := c.state.RoomByID(id)
		if room == nil {
			return core.ErrRoomNotFound
		}
		wasActive := c.state.IsActive(room)
		if wasActive {
			c.relay.Unsubscribe(room.Topic)
			c.cancelReceipts()
			c.clearTyping()
		}
		c.state.RemoveRoom(room.ID)

		if err := c.store.DeleteMessages(ctx, room.ID); err != nil {
			return fmt.Errorf("delete transcript: %w", err)
		}
		if err := c.saveRooms(ctx); err != nil {
			return err
		}
		c.log.Info().Str("room_id", room.ID).Str("topic", room.Topic).Msg("room deleted")
		c.emitRooms()

		if !wasActive {
			return nil
		}
		if len(c.state.Rooms) > 0 {
			return c.selectRoom(ctx, c.state.Rooms[0])
		}
		c.feed.Publish(core.Event{Kind: core.EventActiveRoomChanged})
		return nil
	})
}

// Rooms returns the room list in display order.
func (c *Controller) Rooms(ctx context.Context) ([]core.Room, error) {
	var out []core.Room
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		out = c.state.RoomList()
		return nil
	})
	return out, err
}

// Active returns the active room or nil.
func (c *Controller) Active(ctx context.Context) (*core.Room, error) {
	var out *core.Room
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		out = roomCopy(c.state.Active)
		return nil
	})
	return out, err
}

// Transcript returns the messages of a room.
func (c *Controller) Transcript(ctx context.Context, roomID string) ([]core.Message, error) {
	var out []core.Message
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		if c.state.RoomByID(roomID) == nil {
			return core.ErrRoomNotFound
		}
		out = c.state.TranscriptCopy(roomID)
		return nil
	})
	return out, err
}

// User returns the local profile.
func (c *Controller) User(ctx context.Context) (core.User, error) {
	var out core.User
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		out = c.state.User
		return nil
	})
	return out, err
}

// Rename changes the display name used for outgoing messages.
func (c *Controller) Rename(ctx context.Context, name string) (core.User, error) {
	var out core.User
	err := c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return core.Errorf(core.ErrCodeEmptyInput, "display name is empty")
		}
		user := c.state.User
		user.DisplayName = name
		if err := c.store.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		c.state.User = user
		out = user
		return nil
	})
	return out, err
}

// Theme returns the saved theme preference.
func (c *Controller) Theme(ctx context.Context) (string, error) {
	var out string
	err := c.do(ctx, func() error {
		out = c.theme
		return nil
	})
	return out, err
}

// SetTheme persists the theme preference.
func (c *Controller) SetTheme(ctx context.Context, theme string) error {
	return c.do(ctx, func() error {
		theme = strings.ToLower(strings.TrimSpace(theme))
		if err := c.store.SaveTheme(ctx, theme); err != nil {
			return err
		}
		c.theme = theme
		return nil
	})
}

// Reset wipes every stored key and starts over with a fresh profile.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.ready(); err != nil {
			return err
		}
		if c.state.Active != nil {
			c.relay.Unsubscribe(c.state.Active.Topic)
		}
		c.cancelReceipts()
		c.clearTyping()

		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear store: %w", err)
		}
		user := core.NewUser()
		if err := c.store.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		c.state = core.NewState(user)
		c.rec = reconcile.New(c.state, c.topics, c.log)
		c.theme = store.ThemeDark
		c.lastTyping = time.Time{}

		c.log.Info().Str("user_id", user.ID).Msg("local data reset")
		c.emitRooms()
		c.feed.Publish(core.Event{Kind: core.EventActiveRoomChanged})
		return nil
	})
}

func (c *Controller) ready() error {
	if !c.started {
		return core.ErrNotStarted
	}
	return nil
}

// pruneRooms deletes the transcripts of dropped rooms and rewrites the room
// list without them.
func (c *Controller) pruneRooms(ctx context.Context, ids []string) {
	for _, id := range ids {
		if c.state.RoomByID(id) != nil {
			continue
		}
		if err := c.store.DeleteMessages(ctx, id); err != nil {
			c.log.Warn().Err(err).Str("room_id", id).Msg("delete dropped transcript")
		}
	}
	if err := c.saveRooms(ctx); err != nil {
		c.log.Warn().Err(err).Msg("rewrite room list")
	}
}

func (c *Controller) createRoom(ctx context.Context, topic, name string) (*core.Room, error) {
	canonical, err := c.topics.Validate(topic)
	if err != nil {
		return nil, err
	}
	if existing := c.state.RoomByTopic(canonical); existing != nil {
		return existing, c.selectRoom(ctx, existing)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = canonical
	}
	room := &core.Room{
		ID:        c.newID(),
		Name:      name,
		Topic:     canonical,
		Avatar:    core.RandomAvatar(),
		CreatedAt: c.now().UnixMilli(),
	}
	if err := c.store.SaveMessages(ctx, room.ID, nil); err != nil {
		return nil, fmt.Errorf("save transcript: %w", err)
	}
	c.state.AddRoom(room, true)
	if err := c.saveRooms(ctx); err != nil {
		c.state.RemoveRoom(room.ID)
		_ = c.store.DeleteMessages(c.ctx, room.ID)
		return nil, err
	}
	c.log.Info().Str("room_id", room.ID).Str("topic", canonical).Msg("room created")
	return room, c.selectRoom(ctx, room)
}

// selectRoom switches the active room. The previous topic is unsubscribed
// before the new one is subscribed.
func (c *Controller) selectRoom(ctx context.Context, room *core.Room) error {
	if prev := c.state.Active; prev != nil && prev != room {
		c.relay.Unsubscribe(prev.Topic)
	}
	c.cancelReceipts()
	c.clearTyping()

	c.state.Active = room
	room.UnreadCount = 0
	err := c.saveRooms(ctx)

	c.relay.Subscribe(room.Topic, c.onRelayEvent)
	c.log.Debug().Str("room_id", room.ID).Str("topic", room.Topic).Msg("room selected")

	c.feed.Publish(core.Event{Kind: core.EventActiveRoomChanged, RoomID: room.ID, Room: roomCopy(room)})
	c.emitRooms()
	return err
}

func (c *Controller) saveRooms(ctx context.Context) error {
	if err := c.store.SaveRooms(ctx, c.state.Rooms); err != nil {
		return fmt.Errorf("save rooms: %w", err)
	}
	return nil
}

func (c *Controller) saveMessages(ctx context.Context, roomID string) error {
	if err := c.store.SaveMessages(ctx, roomID, c.state.Transcript(roomID)); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	return nil
}

func (c *Controller) emitRooms() {
	c.feed.Publish(core.Event{Kind: core.EventRoomsChanged, Rooms: c.state.RoomList()})
}

func (c *Controller) emitError(err *core.CoreError, roomID string) {
	c.feed.Publish(core.Event{Kind: core.EventError, RoomID: roomID, Error: err})
}

func roomCopy(r *core.Room) *core.Room {
	if r == nil {
		return nil
	}
	cp := r.Clone()
	return &cp
}

func messageCopy(m *core.Message) *core.Message {
	if m == nil {
		return nil
	}
	cp := m.Clone()
	return &cp
}

func (c *Controller) envelope(kind string) proto.Envelope {
	return proto.Envelope{
		Type:     kind,
		UserID:   proto.ID(c.state.User.ID),
		Username: c.state.User.DisplayName,
		Avatar:   c.state.User.Avatar,
	}
}
