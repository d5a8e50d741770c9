// Package mainloop provides the single scheduling context every piece of
// switcher state is mutated on. Background goroutines only do I/O and hand
// their results back through Post.
package mainloop

import (
	"context"
	"sync"
	"time"
)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler is the main-context contract consumed by the store, the gesture
// machine and the panel controller.
type Scheduler interface {
	Now() time.Time
	// AfterFunc runs fn on the main context after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Post queues fn on the main context.
	Post(fn func())
}

// Loop drains posted funcs on the goroutine that called Run.
// The queue is unbounded so Post never blocks, even from inside the loop.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	stopped bool
	running bool
}

// New creates an idle Loop. Call Run to start draining it.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Run processes posted funcs until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.pending = nil
			l.mu.Unlock()
			return ctx.Err()
		case <-l.wake:
		}

		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn. Funcs posted after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// AfterFunc schedules fn on the loop after d. Stopping the returned timer
// after it fired does not unqueue fn; callers guard with generation tokens.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Call runs fn on the loop and waits for it to finish. It must not be
// called from the loop goroutine. Returns false if the loop stopped first.
func (l *Loop) Call(ctx context.Context, fn func()) bool {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
