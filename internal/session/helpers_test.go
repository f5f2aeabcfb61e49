package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/relay"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
)

type published struct {
	topic string
	env   proto.Envelope
}

// fakeRelay records subscriptions and publishes instead of talking HTTP.
type fakeRelay struct {
	mu      sync.Mutex
	handler relay.Handler
	live    map[string]bool
	ops     []string
	err     error
	seq     int

	published chan published
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		live:      make(map[string]bool),
		published: make(chan published, 64),
	}
}

func (f *fakeRelay) Subscribe(topic string, onEvent relay.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = onEvent
	f.live[topic] = true
	f.ops = append(f.ops, "sub "+topic)
}

func (f *fakeRelay) Unsubscribe(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, topic)
	f.ops = append(f.ops, "unsub "+topic)
}

func (f *fakeRelay) Publish(_ context.Context, topic string, payload any) error {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()

	env, _ := payload.(proto.Envelope)
	f.published <- published{topic: topic, env: env}
	return err
}

func (f *fakeRelay) Close() {}

func (f *fakeRelay) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRelay) isLive(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[topic]
}

func (f *fakeRelay) opsLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// deliver simulates an inbound relay event for topic.
func (f *fakeRelay) deliver(t *testing.T, topic string, env proto.Envelope) {
	t.Helper()
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	f.mu.Lock()
	f.seq++
	id := f.seq
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("no subscription to deliver to")
	}
	handler(proto.RelayEvent{ID: "evt-" + strconv.Itoa(id), Event: proto.RelayEventMessage, Topic: topic, Message: string(raw)})
}

// flakyStore fails the next SaveMessages or SaveRooms calls on demand.
type flakyStore struct {
	store.Store

	mu           sync.Mutex
	failMessages int
	failRooms    int
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) failNext(messages, rooms int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMessages, f.failRooms = messages, rooms
}

func (f *flakyStore) SaveMessages(ctx context.Context, roomID string, msgs []*core.Message) error {
	f.mu.Lock()
	fail := f.failMessages > 0
	if fail {
		f.failMessages--
	}
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.Store.SaveMessages(ctx, roomID, msgs)
}

func (f *flakyStore) SaveRooms(ctx context.Context, rooms []*core.Room) error {
	f.mu.Lock()
	fail := f.failRooms > 0
	if fail {
		f.failRooms--
	}
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.Store.SaveRooms(ctx, rooms)
}

type harness struct {
	c      *Controller
	relay  *fakeRelay
	store  store.Store
	events <-chan core.Event
}

func testOptions() Options {
	return Options{
		PublishTimeout:   time.Second,
		TypingTTL:        time.Second,
		TypingThrottle:   3 * time.Second,
		ReadReceiptDelay: 20 * time.Millisecond,
	}
}

func newTestStore(t *testing.T) *store.Local {
	t.Helper()
	kv, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return store.NewLocal(kv)
}

// newHarness builds a running controller. setup may tweak it before Start.
func newHarness(t *testing.T, st store.Store, opts Options, setup func(*Controller)) *harness {
	t.Helper()
	if st == nil {
		st = newTestStore(t)
	}
	fr := newFakeRelay()
	c := New(st, fr, core.NewTopics("https://ntfy.sh"), opts, nil)
	if setup != nil {
		setup(c)
	}
	events, unsubscribe := c.Events(256)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		unsubscribe()
		_ = c.Close(context.Background())
		cancel()
	})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return &harness{c: c, relay: fr, store: st, events: events}
}

func mustEvent(t *testing.T, ch <-chan core.Event, kind core.EventKind, match func(core.Event) bool) core.Event {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event feed closed while waiting for %v", kind)
			}
			if ev.Kind == kind && (match == nil || match(ev)) {
				return ev
			}
		case <-timeout:
			t.Fatalf("expected event kind %v not received", kind)
			return core.Event{}
		}
	}
}

func mustPublish(t *testing.T, fr *fakeRelay, kind string) published {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case p := <-fr.published:
			if p.env.Type == kind {
				return p
			}
		case <-timeout:
			t.Fatalf("expected publish of type %q not seen", kind)
			return published{}
		}
	}
}

func statusIs(status core.Status) func(core.Event) bool {
	return func(ev core.Event) bool {
		return ev.Message != nil && ev.Message.Status == status
	}
}
