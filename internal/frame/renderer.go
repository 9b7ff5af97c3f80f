// Package frame holds the most recent push-channel frame.
package frame

import (
	"sync"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/models"
)

// Renderer keeps a single slot. Every Accept overwrites it; nothing is queued.
type Renderer struct {
	mu    sync.RWMutex
	clock clock.Clock
	frame models.Frame
	has   bool
	seq   uint64
}

// NewRenderer creates an empty renderer
func NewRenderer(clk clock.Clock) *Renderer {
	return &Renderer{clock: clk}
}

// Accept replaces the held frame with payload
func (r *Renderer) Accept(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.frame = models.Frame{
		Data:       payload,
		Seq:        r.seq,
		ReceivedAt: r.clock.Now(),
	}
	r.has = true
}

// Latest returns the held frame, if any
func (r *Renderer) Latest() (models.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frame, r.has
}

// Clear drops the held frame. The sequence keeps counting.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame = models.Frame{}
	r.has = false
}

// Accepted returns how many frames have been accepted so far
func (r *Renderer) Accepted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}
