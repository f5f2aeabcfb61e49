// Package loop runs all client state mutations on a single goroutine.
// Relay callbacks, timers and publish results are posted as closures and
// executed one at a time in FIFO order.
package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that is not running anymore.
var ErrStopped = errors.New("loop stopped")

// Loop is a serial executor.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

// New creates a loop with the given queue capacity.
func New(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	return &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
}

// Run executes posted work until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn. It blocks while the queue is full and reports false if
// the loop has stopped. Never call Post from inside the loop with a full queue.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. Must not be called
// from the loop goroutine. A non-nil error means fn never ran: once the loop
// picks fn up, Call waits for it even if ctx is cancelled meanwhile.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	var state atomic.Int32 // callQueued, callRunning or callAbandoned
	finished := make(chan struct{})
	wrapped := func() {
		if ctx.Err() != nil {
			state.CompareAndSwap(callQueued, callAbandoned)
		}
		if !state.CompareAndSwap(callQueued, callRunning) {
			return
		}
		defer close(finished)
		fn()
	}
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.queue <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		if state.CompareAndSwap(callQueued, callAbandoned) || state.Load() == callAbandoned {
			return ErrStopped
		}
		// Run returns only after the closure it dequeued.
		<-finished
		return nil
	case <-ctx.Done():
		if state.CompareAndSwap(callQueued, callAbandoned) || state.Load() == callAbandoned {
			return ctx.Err()
		}
		<-finished
		return nil
	}
}

const (
	callQueued int32 = iota
	callRunning
	callAbandoned
)

// Task is a delayed closure scheduled with After. Cancel and the closure
// both run on the loop, so a cancelled task never executes even when its
// timer already fired and the closure is queued.
type Task struct {
	timer     *time.Timer
	cancelled bool
	fired     bool
}

// After schedules fn to run on the loop after d.
func (l *Loop) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled {
				return
			}
			t.fired = true
			fn()
		})
	})
	return t
}

// Cancel prevents the task from running. Loop-confined.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
	t.timer.Stop()
}

// Pending reports whether the task may still run. Loop-confined.
func (t *Task) Pending() bool {
	return t != nil && !t.cancelled && !t.fired
}
