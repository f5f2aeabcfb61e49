package pebble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"

	"github.com/vovakirdan/relaychat/internal/store"
)

// PebbleStore implements store.KV on a PebbleDB directory.
type PebbleStore struct {
	db *pebble.DB
}

// Open opens (or creates) the database directory.
func Open(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("pebble: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pebble dir: %w", err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}

// Get returns a copy of the value stored under key.
func (s *PebbleStore) Get(_ context.Context, key string) ([]byte, error) {
	data, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	// data is only valid until closer is closed.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores value with a synced write.
func (s *PebbleStore) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *PebbleStore) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

// Keys lists keys with the given prefix in ascending order.
func (s *PebbleStore) Keys(_ context.Context, prefix string) ([]string, error) {
	opts := &pebble.IterOptions{LowerBound: []byte(prefix)}
	if upper := prefixUpperBound([]byte(prefix)); upper != nil {
		opts.UpperBound = upper
	}
	it, err := s.db.NewIter(opts)
	if err != nil {
		return nil, fmt.Errorf("pebble iter: %w", err)
	}
	defer func() { _ = it.Close() }()

	var keys []string
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys, nil
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
