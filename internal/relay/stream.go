package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	sse "github.com/tmaxmax/go-sse"

	"github.com/vovakirdan/relaychat/internal/proto"
)

// ErrStreamClosed is reported when the relay ends a stream without error.
var ErrStreamClosed = errors.New("relay closed the stream")

const maxEventBytes = 1 << 20

// SubscribeURL builds the SSE endpoint for a canonical topic.
func (c *Channel) SubscribeURL(topic string) string {
	return fmt.Sprintf("%s/%s/sse?_=%s", c.baseURL, topic, c.cacheBuster())
}

func (c *Channel) cacheBuster() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// consume opens the SSE stream for h and dispatches events until the
// stream fails or h is closed.
func (c *Channel) consume(h *handle) error {
	req, err := http.NewRequestWithContext(h.ctx, http.MethodGet, c.SubscribeURL(h.topic), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}
	c.log.Info().Str("topic", h.topic).Msg("relay stream opened")

	return readSSE(resp.Body, func(kind, data string) {
		c.dispatch(h, kind, data)
	})
}

func (c *Channel) dispatch(h *handle, kind, data string) {
	if kind != "" && kind != proto.RelayEventMessage {
		return
	}
	var ev proto.RelayEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		c.log.Warn().Err(err).Str("topic", h.topic).Msg("drop malformed relay event")
		return
	}
	if ev.Event != "" && ev.Event != proto.RelayEventMessage {
		return
	}
	if ev.Topic == "" {
		ev.Topic = h.topic
	}
	if h.ctx.Err() != nil || !h.seen.add(ev.ID) {
		return
	}
	h.onEvent(ev)
}

// readSSE parses a text/event-stream body and calls emit for each event
// carrying data. It returns ErrStreamClosed on a clean EOF.
func readSSE(r io.Reader, emit func(kind, data string)) error {
	for ev, err := range sse.Read(r, &sse.ReadConfig{MaxEventSize: maxEventBytes}) {
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if ev.Data == "" {
			continue
		}
		emit(ev.Type, ev.Data)
	}
	return ErrStreamClosed
}
