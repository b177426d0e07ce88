package scheduler

import (
	"context"
	"sync"
	"time"
)

// Loop runs every callback on the goroutine that called Run, one at a time.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

// Post queues f to run on the loop. It is dropped once the loop has exited.
func (l *Loop) Post(f func()) {
	select {
	case <-l.done:
	case l.tasks <- f:
	}
}

type loopTimer struct {
	t       *time.Timer
	mu      sync.Mutex
	stopped bool
}

func (lt *loopTimer) Stop() bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.stopped {
		return false
	}
	lt.stopped = true
	lt.t.Stop()
	return true
}

func (lt *loopTimer) fire(f func()) {
	lt.mu.Lock()
	if lt.stopped {
		lt.mu.Unlock()
		return
	}
	lt.stopped = true
	lt.mu.Unlock()
	f()
}

// AfterFunc schedules f on the loop after d. A Stop that returns true guarantees f never runs,
// even if the underlying timer already expired and the callback is waiting in the queue.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	lt := &loopTimer{}
	lt.mu.Lock()
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() { lt.fire(f) })
	})
	lt.mu.Unlock()
	return lt
}

// Run executes posted callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-l.tasks:
			f()
		}
	}
}

// Do runs f on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		f()
	})
	select {
	case <-finished:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}
