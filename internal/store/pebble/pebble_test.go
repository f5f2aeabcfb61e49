package pebble

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/relaychat/internal/store"
)

func TestPebbleKV(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, k := range []string{"relaychat_messages_b", "relaychat_messages_a", "relaychat_rooms"} {
		if err := s.Set(ctx, k, []byte(`[]`)); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	keys, err := s.Keys(ctx, "relaychat_messages_")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "relaychat_messages_a" || keys[1] != "relaychat_messages_b" {
		t.Fatalf("unexpected keys %v", keys)
	}

	if err := s.Delete(ctx, "relaychat_messages_a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Data survives a reopen.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "relaychat_rooms")
	if err != nil || string(got) != "[]" {
		t.Fatalf("get after reopen = %q, %v", got, err)
	}
	if _, err := s.Get(ctx, "relaychat_messages_a"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted key came back: %v", err)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	if got := string(prefixUpperBound([]byte("ab"))); got != "ac" {
		t.Fatalf("upper bound of ab = %q", got)
	}
	if got := prefixUpperBound([]byte{0xff, 0xff}); got != nil {
		t.Fatalf("all-0xff prefix has no upper bound, got %v", got)
	}
}
