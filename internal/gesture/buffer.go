// Package gesture implements the "most recent gesture" display slot. A
// gesture stays visible for a fixed duration after it was shown; a newer
// detection replaces it and restarts the countdown.
package gesture

import (
	"sync"
	"time"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/eventloop"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// DefaultDisplayDuration is how long a gesture stays visible
const DefaultDisplayDuration = 2 * time.Second

// Buffer holds at most one gesture. Update and Reset are called on the event
// loop; Current may be called from any goroutine.
type Buffer struct {
	mu        sync.Mutex
	clock     clock.Clock
	scheduler eventloop.Scheduler
	display   time.Duration

	current    models.Gesture
	shownAt    time.Time
	has        bool
	timer      *clock.Timer
	generation uint64
}

// NewBuffer creates an empty buffer. Expiry callbacks are posted to
// scheduler. A non-positive display falls back to DefaultDisplayDuration.
func NewBuffer(clk clock.Clock, scheduler eventloop.Scheduler, display time.Duration) *Buffer {
	if display <= 0 {
		display = DefaultDisplayDuration
	}
	return &Buffer{
		clock:     clk,
		scheduler: scheduler,
		display:   display,
	}
}

// DisplayDuration returns the configured visibility window
func (b *Buffer) DisplayDuration() time.Duration {
	return b.display
}

// Update shows the first gesture of a detection batch. An empty batch
// changes nothing and leaves any running countdown alone.
func (b *Buffer) Update(gestures []models.Gesture) {
	if len(gestures) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopTimerLocked()
	b.generation++
	generation := b.generation

	b.current = gestures[0]
	b.shownAt = b.clock.Now()
	b.has = true
	b.timer = b.clock.AfterFunc(b.display, func() {
		b.scheduler.Post(func() { b.expire(generation) })
	})

	debug.Debug("Showing gesture %s", b.current)
}

// expire clears the slot unless a newer gesture or a reset superseded the
// timer that fired
func (b *Buffer) expire(generation uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if generation != b.generation {
		return
	}
	b.current = models.Gesture{}
	b.has = false
	b.timer = nil
}

// Current returns the visible gesture and when it was shown
func (b *Buffer) Current() (models.Gesture, time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.shownAt, b.has
}

// Reset stops the countdown and empties the slot. Timers that already fired
// but whose callbacks are still queued become no-ops.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimerLocked()
	b.generation++
	b.current = models.Gesture{}
	b.has = false
}

func (b *Buffer) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
