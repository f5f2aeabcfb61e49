package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/relay"
	"github.com/vovakirdan/relaychat/internal/session"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
)

// stubRelay accepts every publish and never delivers anything.
type stubRelay struct {
	mu     sync.Mutex
	topics []string
}

func (s *stubRelay) Subscribe(topic string, _ relay.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = append(s.topics, topic)
}

func (s *stubRelay) Unsubscribe(string) {}

func (s *stubRelay) Publish(context.Context, string, any) error { return nil }

func (s *stubRelay) Close() {}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	kv, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	logger := zerolog.Nop()
	ctrl := session.New(store.NewLocal(kv), &stubRelay{}, core.NewTopics("https://ntfy.sh"), session.Options{
		PublishTimeout:   time.Second,
		ReadReceiptDelay: 10 * time.Millisecond,
	}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}

	ts := httptest.NewServer(NewRouter(ctrl, &logger))
	t.Cleanup(func() {
		ts.Close()
		_ = ctrl.Close(context.Background())
		cancel()
		_ = kv.Close()
	})
	return ts
}

// doJSON sends body as JSON and decodes the response into out when non-nil.
func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
