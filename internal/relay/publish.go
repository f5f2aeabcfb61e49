package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// PublishError reports a non-2xx answer from the relay.
type PublishError struct {
	Status  int
	Message string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed: %d %s", e.Status, e.Message)
}

// PublishURL builds the POST endpoint for a canonical topic.
func (c *Channel) PublishURL(topic string) string {
	return fmt.Sprintf("%s/%s?_=%s", c.baseURL, topic, c.cacheBuster())
}

// Publish JSON-encodes payload and posts it to topic. It succeeds on any 2xx
// status and never touches local state.
func (c *Channel) Publish(ctx context.Context, topic string, payload any) error {
	key := c.topics.Canonical(topic)
	if key == "" {
		return fmt.Errorf("publish: empty topic")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.PublishURL(key), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("topic", key).Msg("publish request failed")
		return fmt.Errorf("publish to %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.log.Debug().Str("topic", key).Int("status", resp.StatusCode).Msg("published")
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(msg))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	c.log.Warn().Str("topic", key).Int("status", resp.StatusCode).Str("body", text).Msg("publish rejected")
	return &PublishError{Status: resp.StatusCode, Message: text}
}
