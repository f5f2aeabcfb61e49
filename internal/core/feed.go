package core

import "sync"

// Feed fans events out to any number of subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unregisters it and closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes all subscriber channels.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		close(ch)
		delete(f.subs, ch)
	}
}
