package loop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l := New(16)
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func TestCallRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var order []int
	for i := range 5 {
		l.Post(func() { order = append(order, i) })
	}
	var got []int
	if err := l.Call(context.Background(), func() { got = append(got, order...) }); err != nil {
		t.Fatalf("call: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("posted work ran out of order: %v", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %v", got)
	}
}

func TestAfterFires(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{})
	var task *Task
	_ = l.Call(context.Background(), func() {
		task = l.After(10*time.Millisecond, func() { close(fired) })
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}

	var pending bool
	_ = l.Call(context.Background(), func() { pending = task.Pending() })
	if pending {
		t.Fatal("fired task should not be pending")
	}
}

func TestCancelledTaskNeverRuns(t *testing.T) {
	l := startLoop(t)

	ran := make(chan struct{}, 1)
	block := make(chan struct{})

	// Hold the loop busy until the timer has fired and queued the closure,
	// then cancel from the loop before the closure is dequeued.
	var task *Task
	_ = l.Call(context.Background(), func() {
		task = l.After(time.Millisecond, func() { ran <- struct{}{} })
	})
	l.Post(func() {
		<-block
		task.Cancel()
	})
	time.Sleep(20 * time.Millisecond)
	close(block)

	_ = l.Call(context.Background(), func() {})
	select {
	case <-ran:
		t.Fatal("cancelled task ran")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCallAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(1)
	go l.Run(ctx)
	cancel()
	<-l.Done()

	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if l.Post(func() {}) {
		t.Fatal("post after stop should fail")
	}
}

func TestCancelledCallNeverRuns(t *testing.T) {
	l := startLoop(t)

	block := make(chan struct{})
	l.Post(func() { <-block })

	ctx, cancel := context.WithCancel(context.Background())
	ran := false
	errc := make(chan error, 1)
	go func() { errc <- l.Call(ctx, func() { ran = true }) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(block)

	var after bool
	if err := l.Call(context.Background(), func() { after = ran }); err != nil {
		t.Fatalf("call: %v", err)
	}
	if after {
		t.Fatal("a call reported as cancelled must not run")
	}
}

func TestCallWaitsForRunningClosure(t *testing.T) {
	l := startLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	done := false
	errc := make(chan error, 1)
	go func() {
		errc <- l.Call(ctx, func() {
			close(started)
			<-release
			done = true
		})
	}()

	<-started
	cancel()
	close(release)
	if err := <-errc; err != nil {
		t.Fatalf("a call that ran must report success, got %v", err)
	}
	if !done {
		t.Fatal("closure did not complete")
	}
}
