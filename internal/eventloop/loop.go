// Package eventloop provides the single execution context that every
// callback in the client runs on: push-channel dispatch, gesture expiry,
// poll completion and settings notifications. Components never mutate shared
// state from their own goroutines; they Post a closure instead.
package eventloop

import (
	"context"
	"sync"

	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// Scheduler is implemented by anything that can run a callback on the
// serialized execution context.
type Scheduler interface {
	Post(fn func())
}

// Loop runs posted callbacks one at a time in FIFO order.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
}

// New creates a Loop. Call Run to start draining it.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post enqueues fn. It never blocks; callbacks posted after Stop are dropped.
func (l *Loop) Post(fn func()) {
	l.enqueue(fn)
}

func (l *Loop) enqueue(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		debug.Debug("Event loop stopped, dropping callback")
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Do runs fn on the loop and waits for it to finish. Returns false if the
// loop was stopped before fn could run.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	queued := l.enqueue(func() {
		defer close(ran)
		fn()
	})
	if !queued {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Run drains the queue until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			l.Stop()
		case <-stopWatch:
		}
	}()

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped {
			l.queue = nil
			l.mu.Unlock()
			debug.Debug("Event loop exiting")
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.invoke(fn)
	}
}

// invoke isolates a panicking callback so one bad message cannot take the
// whole client down.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			debug.Error("Panic recovered in event loop callback: %v", r)
		}
	}()
	fn()
}

// Stop ends Run. Pending callbacks are discarded. Safe to call repeatedly.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.cond.Broadcast()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Inline returns a Scheduler that runs callbacks immediately on the caller's
// goroutine. Unit tests use it with a fake clock.
func Inline() Scheduler {
	return inline{}
}

type inline struct{}

func (inline) Post(fn func()) { fn() }
