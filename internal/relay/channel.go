// Package relay talks to a topic-based pub/sub relay over HTTP: one POST per
// published payload and one long-lived SSE stream per subscribed topic.
package relay

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
)

// DefaultBackoff is the wait before re-opening a failed stream.
const DefaultBackoff = 5 * time.Second

// Handler receives relay events for one topic, in arrival order.
type Handler func(proto.RelayEvent)

// Channel owns the topic -> live stream table. At most one stream is live
// per canonical topic.
type Channel struct {
	baseURL string
	topics  core.Topics
	client  *http.Client
	stream  *http.Client
	backoff time.Duration
	log     *zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	subs   map[string]*handle
	closed bool
	wg     sync.WaitGroup
}

// Option customizes a Channel.
type Option func(*Channel)

// WithHTTPClient sets the client used for publishing and streaming.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Channel) {
		c.client = client
		c.stream = client
	}
}

// WithBackoff sets the reconnect delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.log = logger
		}
	}
}

// New builds a channel for the relay at baseURL, e.g. https://ntfy.sh.
func New(baseURL string, opts ...Option) *Channel {
	nop := zerolog.Nop()
	c := &Channel{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		topics:  core.NewTopics(baseURL),
		client:  &http.Client{Timeout: 30 * time.Second},
		// Streams are long-lived; they end through context cancellation.
		stream:  &http.Client{},
		backoff: DefaultBackoff,
		log:     &nop,
		now:     time.Now,
		subs:    make(map[string]*handle),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Topics returns the normalizer used for table keys.
func (c *Channel) Topics() core.Topics {
	return c.topics
}

// Subscribe opens a stream for topic, tearing down any existing stream for
// the same canonical topic first. onEvent runs on the stream goroutine.
func (c *Channel) Subscribe(topic string, onEvent Handler) {
	key := c.topics.Canonical(topic)
	if key == "" {
		c.log.Warn().Str("topic", topic).Msg("refusing to subscribe to empty topic")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.log.Debug().Str("topic", key).Msg("channel closed, subscribe ignored")
		return
	}
	c.replaceLocked(key, onEvent, nil)
}

// Unsubscribe closes the stream for topic if there is one.
func (c *Channel) Unsubscribe(topic string) {
	key := c.topics.Canonical(topic)

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.subs[key]; ok {
		h.close()
		delete(c.subs, key)
		c.log.Debug().Str("topic", key).Msg("unsubscribed")
	}
}

// Active reports whether a stream handle exists for topic.
func (c *Channel) Active(topic string) bool {
	key := c.topics.Canonical(topic)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[key]
	return ok
}

// Subscriptions lists the canonical topics with a live handle.
func (c *Channel) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for key := range c.subs {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Close tears down every stream and waits for their goroutines to exit.
// Later subscriptions are ignored.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	for key, h := range c.subs {
		h.close()
		delete(c.subs, key)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// replaceLocked swaps in a fresh handle for key. Caller holds c.mu, so no
// other goroutine can observe the table without a handle for key.
func (c *Channel) replaceLocked(key string, onEvent Handler, seen *seenSet) *handle {
	if old, ok := c.subs[key]; ok {
		old.close()
		delete(c.subs, key)
	}
	if seen == nil {
		seen = newSeenSet(seenCapacity)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		topic:   key,
		onEvent: onEvent,
		ctx:     ctx,
		cancel:  cancel,
		seen:    seen,
	}
	c.subs[key] = h

	c.wg.Add(1)
	go c.run(h)
	c.log.Debug().Str("topic", key).Msg("subscribed")
	return h
}

// run streams until the handle is closed. On failure it waits for the
// backoff and re-subscribes, but only while h is still the stored handle.
func (c *Channel) run(h *handle) {
	defer c.wg.Done()

	err := c.consume(h)
	if h.ctx.Err() != nil {
		return
	}
	c.log.Warn().Err(err).Str("topic", h.topic).Dur("backoff", c.backoff).Msg("relay stream dropped")

	timer := time.NewTimer(c.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-h.ctx.Done():
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.subs[h.topic] != h {
		c.log.Debug().Str("topic", h.topic).Msg("skip stale reconnect")
		return
	}
	c.log.Info().Str("topic", h.topic).Msg("reconnecting relay stream")
	c.replaceLocked(h.topic, h.onEvent, h.seen)
}

// handle is one live stream.
type handle struct {
	topic   string
	onEvent Handler
	ctx     context.Context
	cancel  context.CancelFunc
	seen    *seenSet
}

func (h *handle) close() {
	h.cancel()
}

const seenCapacity = 512

// seenSet remembers recent relay event ids so an event replayed by the relay
// after a reconnect is delivered once. It is only used by the current
// stream goroutine of a topic.
type seenSet struct {
	ids   map[string]struct{}
	order []string
	limit int
}

func newSeenSet(limit int) *seenSet {
	return &seenSet{ids: make(map[string]struct{}, limit), limit: limit}
}

// add records id and reports whether it was new.
func (s *seenSet) add(id string) bool {
	if id == "" {
		return true
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	return true
}
