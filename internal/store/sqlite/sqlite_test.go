package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/relaychat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetSetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "k", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != `{"a":2}` {
		t.Fatalf("get = %q, %v", got, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete of absent key should succeed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestKeysByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"msg_b", "msg_a", "other", "ms"} {
		if err := s.Set(ctx, k, []byte("1")); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	tests := []struct {
		name     string
		prefix   string
		expected []string
	}{
		{name: "prefix msg_", prefix: "msg_", expected: []string{"msg_a", "msg_b"}},
		{name: "prefix ms", prefix: "ms", expected: []string{"ms", "msg_a", "msg_b"}},
		{name: "no match", prefix: "zzz", expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := s.Keys(ctx, tt.prefix)
			if err != nil {
				t.Fatalf("keys: %v", err)
			}
			if len(keys) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, keys)
			}
			for i := range keys {
				if keys[i] != tt.expected[i] {
					t.Errorf("expected %s at index %d, got %s", tt.expected[i], i, keys[i])
				}
			}
		})
	}
}
