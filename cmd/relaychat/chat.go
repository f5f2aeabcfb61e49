package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/session"
)

const chatHelp = `Interactive terminal chat. Lines are sent to the active room; lines starting
with a slash are commands:

  /join <topic> [name]   join or create a room
  /rooms                 list rooms
  /switch <n|id>         make a room active
  /delete [n|id]         delete a room (default: active)
  /history               print the active transcript
  /attach <url> [text]   share a link, optionally with a caption
  /react <id> <emoji>    react to a message (id prefix is enough)
  /retry <id>            re-send a failed message
  /name <display name>   change your display name
  /theme <dark|light>    store the theme preference
  /quit                  leave`

var chatCmd = &cobra.Command{
	Use:   "chat [topic]",
	Short: "Interactive terminal chat",
	Long:  chatHelp,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	application, _, err := startApp(cmd, os.Stderr, func(cfg *config.Config) {
		if len(args) == 1 {
			cfg.DefaultTopic = args[0]
			cfg.DefaultRoomName = ""
		}
	})
	if err != nil {
		return err
	}
	defer application.Close()

	t := &terminal{s: application.Session(), out: cmd.OutOrStdout()}
	events, unsubscribe := t.s.Events(128)
	defer unsubscribe()

	user, err := t.s.User(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.out, "Hi %s. Type messages and press Enter to send, /help for commands.\n", user.DisplayName)
	if active, _ := t.s.Active(ctx); active != nil {
		t.setActive(active.ID)
		fmt.Fprintf(t.out, "Active room: %s (%s)\n", active.Name, active.Topic)
		t.history(ctx)
	} else {
		fmt.Fprintln(t.out, "No room yet. Join one with /join <topic>.")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		t.readLoop(ctx, events)
	}()

	t.writeLoop(ctx, cancel, cmd.InOrStdin())
	return nil
}

// terminal renders session events and turns input lines into commands.
type terminal struct {
	s   *session.Controller
	out io.Writer

	mu     sync.Mutex
	active string
}

func (t *terminal) activeID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *terminal) setActive(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = id
}

func (t *terminal) readLoop(ctx context.Context, events <-chan core.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.render(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (t *terminal) render(ev core.Event) {
	active := t.activeID()
	switch ev.Kind {
	case core.EventActiveRoomChanged:
		if ev.Room == nil {
			t.setActive("")
			fmt.Fprintln(t.out, "* no active room")
			return
		}
		t.setActive(ev.Room.ID)
		fmt.Fprintf(t.out, "* now in %s (%s)\n", ev.Room.Name, ev.Room.Topic)
	case core.EventMessageAdded:
		if ev.RoomID == active && ev.Message.Status == core.StatusReceived {
			fmt.Fprintln(t.out, formatMessage(ev.Message))
		}
	case core.EventMessageUpdated:
		if ev.RoomID != active {
			return
		}
		switch ev.Message.Status {
		case core.StatusFailed:
			fmt.Fprintf(t.out, "! not delivered: %q, /retry %s\n", truncate(ev.Message.Text, 30), shortID(ev.Message.ID))
		case core.StatusRead:
			fmt.Fprintf(t.out, "  (read: %s)\n", truncate(ev.Message.Text, 30))
		}
		if n := len(ev.Message.Reactions); n > 0 {
			last := ev.Message.Reactions[n-1]
			fmt.Fprintf(t.out, "  %s %s on [%s]\n", last.Username, last.Emoji, shortID(ev.Message.ID))
		}
	case core.EventTyping:
		if ev.RoomID == active {
			fmt.Fprintf(t.out, "  %s is typing...\n", ev.Username)
		}
	case core.EventRoomsChanged:
		for _, r := range ev.Rooms {
			if r.ID != active && r.UnreadCount > 0 && r.LastMessage != nil {
				fmt.Fprintf(t.out, "  [%s +%d] %s\n", r.Name, r.UnreadCount, truncate(r.LastMessage.Text, 40))
			}
		}
	case core.EventError:
		if ev.Error != nil {
			fmt.Fprintf(t.out, "! %s\n", ev.Error.Message)
		}
	}
}

func (t *terminal) writeLoop(ctx context.Context, cancel context.CancelFunc, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := t.command(ctx, line); quit {
					cancel()
					return
				}
				continue
			}
			if _, err := t.s.SendMessage(ctx, line); err != nil {
				t.fail(err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// command runs one slash command and reports whether the user asked to quit.
func (t *terminal) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	var err error
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(t.out, chatHelp)
	case "/join":
		if len(args) == 0 {
			err = core.Errorf(core.ErrCodeBadRequest, "usage: /join <topic> [name]")
			break
		}
		_, err = t.s.CreateRoom(ctx, args[0], strings.Join(args[1:], " "))
	case "/rooms":
		err = t.rooms(ctx)
	case "/switch":
		var room core.Room
		if room, err = t.resolveRoom(ctx, args); err == nil {
			if _, err = t.s.SelectRoom(ctx, room.ID); err == nil {
				t.setActive(room.ID)
				t.history(ctx)
			}
		}
	case "/delete":
		var room core.Room
		if room, err = t.resolveRoom(ctx, args); err == nil {
			err = t.s.DeleteRoom(ctx, room.ID)
		}
	case "/history":
		t.history(ctx)
	case "/attach":
		if len(args) == 0 {
			err = core.Errorf(core.ErrCodeBadRequest, "usage: /attach <url> [text]")
			break
		}
		_, err = t.s.SendAttachment(ctx, strings.Join(args[1:], " "), args[0])
	case "/react":
		if len(args) != 2 {
			err = core.Errorf(core.ErrCodeBadRequest, "usage: /react <id> <emoji>")
			break
		}
		var id string
		if id, err = t.resolveMessage(ctx, args[0]); err == nil {
			_, err = t.s.React(ctx, id, args[1])
		}
	case "/retry":
		if len(args) != 1 {
			err = core.Errorf(core.ErrCodeBadRequest, "usage: /retry <id>")
			break
		}
		var id string
		if id, err = t.resolveMessage(ctx, args[0]); err == nil {
			_, err = t.s.RetryMessage(ctx, id)
		}
	case "/name":
		var user core.User
		if user, err = t.s.Rename(ctx, strings.Join(args, " ")); err == nil {
			fmt.Fprintf(t.out, "* you are now %s\n", user.DisplayName)
		}
	case "/theme":
		if len(args) != 1 {
			err = core.Errorf(core.ErrCodeBadRequest, "usage: /theme <dark|light>")
			break
		}
		err = t.s.SetTheme(ctx, args[0])
	default:
		err = core.Errorf(core.ErrCodeBadRequest, "unknown command "+name+", try /help")
	}
	if err != nil {
		t.fail(err)
	}
	return false
}

func (t *terminal) rooms(ctx context.Context) error {
	rooms, err := t.s.Rooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Fprintln(t.out, "* no rooms")
		return nil
	}
	active := t.activeID()
	for i, r := range rooms {
		marker := " "
		if r.ID == active {
			marker = "*"
		}
		unread := ""
		if r.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", r.UnreadCount)
		}
		fmt.Fprintf(t.out, "%s %d. %s [%s]%s\n", marker, i+1, r.Name, r.Topic, unread)
	}
	return nil
}

func (t *terminal) history(ctx context.Context) {
	active := t.activeID()
	if active == "" {
		return
	}
	msgs, err := t.s.Transcript(ctx, active)
	if err != nil {
		t.fail(err)
		return
	}
	for i := range msgs {
		fmt.Fprintln(t.out, formatMessage(&msgs[i]))
	}
}

// resolveRoom accepts a 1-based list index or a room id. No argument means
// the active room.
func (t *terminal) resolveRoom(ctx context.Context, args []string) (core.Room, error) {
	rooms, err := t.s.Rooms(ctx)
	if err != nil {
		return core.Room{}, err
	}
	ref := t.activeID()
	if len(args) > 0 {
		ref = args[0]
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(rooms) {
		return rooms[n-1], nil
	}
	for _, r := range rooms {
		if r.ID == ref || r.Topic == ref {
			return r, nil
		}
	}
	return core.Room{}, core.ErrRoomNotFound
}

// resolveMessage expands an id prefix within the active transcript.
func (t *terminal) resolveMessage(ctx context.Context, prefix string) (string, error) {
	active := t.activeID()
	if active == "" {
		return "", core.ErrNoActiveRoom
	}
	msgs, err := t.s.Transcript(ctx, active)
	if err != nil {
		return "", err
	}
	var match string
	for _, m := range msgs {
		if strings.HasPrefix(m.ID, prefix) {
			if match != "" {
				return "", core.Errorf(core.ErrCodeBadRequest, "ambiguous message id "+prefix)
			}
			match = m.ID
		}
	}
	if match == "" {
		return "", core.ErrMessageNotFound
	}
	return match, nil
}

func (t *terminal) fail(err error) {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		fmt.Fprintf(t.out, "! %s\n", coreErr.Message)
		return
	}
	fmt.Fprintf(t.out, "! %v\n", err)
}

func formatMessage(m *core.Message) string {
	ts := time.UnixMilli(m.Timestamp).Format("15:04")
	line := fmt.Sprintf("[%s %s] %s: %s", ts, shortID(m.ID), m.SenderName, m.Text)
	if a := m.Attachment; a != nil {
		if m.Text != "" {
			line += " "
		}
		line += fmt.Sprintf("📎 %s <%s>", a.Name, a.URL)
	}
	switch m.Status {
	case core.StatusSending:
		line += " …"
	case core.StatusFailed:
		line += " (failed)"
	}
	for _, r := range m.Reactions {
		line += " " + r.Emoji
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
