// Package telemetry holds the coarse backend state shared by the status
// poller and the push channel: liveness, the running flag and the metrics.
package telemetry

import (
	"sync"
	"time"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/models"
)

// Snapshot is a point-in-time copy of the state
type Snapshot struct {
	// Connected reflects the last status poll only.
	Connected        bool
	IsRunning        bool
	Camera           string
	FPS              float64
	Volume           float64
	Brightness       float64
	ConnectedClients int

	LastPoll     time.Time // last successful poll
	LastPush     time.Time // last metrics update from the push channel
	PollFailures int       // consecutive failed polls
}

// State is written from the event loop and read from anywhere
type State struct {
	mu    sync.RWMutex
	clock clock.Clock
	snap  Snapshot
}

// New creates an empty state. Nothing is known until the first poll.
func New(clk clock.Clock) *State {
	return &State{clock: clk}
}

// ApplyStatus records a successful poll. FPS is owned by the push channel and
// is left alone.
func (s *State) ApplyStatus(status models.SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Connected = true
	s.snap.IsRunning = status.IsRunning
	s.snap.Camera = status.Camera
	s.snap.Volume = status.Volume
	s.snap.Brightness = status.Brightness
	s.snap.ConnectedClients = status.ConnectedClients
	s.snap.LastPoll = s.clock.Now()
	s.snap.PollFailures = 0
}

// MarkOffline records a failed poll. Every other value is retained.
func (s *State) MarkOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Connected = false
	s.snap.PollFailures++
}

// ApplyPush records a metrics update from the push channel. Volume and
// brightness are only taken when the message carried them.
func (s *State) ApplyPush(update models.MetricsUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.FPS = update.FPS
	if update.Volume != nil {
		s.snap.Volume = *update.Volume
	}
	if update.Brightness != nil {
		s.snap.Brightness = *update.Brightness
	}
	s.snap.LastPush = s.clock.Now()
}

// SetRunning overrides the running flag after a successful start or stop.
func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsRunning = running
}

// Snapshot returns a copy of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
