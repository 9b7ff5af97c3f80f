// Package connection manages the push channel to the EYES backend. At most
// one Session exists at a time; enabling creates one, disabling tears it
// down.
package connection

import (
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/eventloop"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/internal/telemetry"
	"github.com/eyes-gesture/eyes-client/internal/version"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// ErrNotOpen is returned when sending on a session that is not open
var ErrNotOpen = errors.New("push channel is not open")

// Options configures the manager
type Options struct {
	// URL is the full push channel endpoint, e.g. ws://host:8000/ws/gestures
	URL string

	HandshakeTimeout time.Duration
	WriteWait        time.Duration

	// ReconnectAttempts bounds redials after a drop. Zero disables them.
	ReconnectAttempts int

	// DisplayDuration is passed to each session's gesture buffer
	DisplayDuration time.Duration

	Header http.Header

	// TLSConfig is used for wss endpoints. Nil uses the system roots.
	TLSConfig *tls.Config
}

// Snapshot is what the presentation layer reads. Frame and Gesture are only
// set while the session is open.
type Snapshot struct {
	State          models.ConnectionState
	SessionID      string
	Frame          *models.Frame
	Gesture        *models.Gesture
	GestureShownAt time.Time
}

// Manager owns the current session
type Manager struct {
	opts      Options
	dialer    *websocket.Dialer
	clock     clock.Clock
	scheduler eventloop.Scheduler
	telemetry *telemetry.State

	mu       sync.Mutex
	session  *Session
	observer func(models.ConnectionState)
}

// NewManager creates a disabled manager. state may be nil.
func NewManager(opts Options, clk clock.Clock, scheduler eventloop.Scheduler, state *telemetry.State) *Manager {
	if opts.Header == nil {
		opts.Header = http.Header{}
	}
	if opts.Header.Get("User-Agent") == "" {
		opts.Header.Set("User-Agent", version.UserAgent())
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}

	return &Manager{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			TLSClientConfig:  opts.TLSConfig,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  4 * 1024,
		},
		clock:     clk,
		scheduler: scheduler,
		telemetry: state,
	}
}

// OnStateChange registers a callback for state changes of the current
// session. It runs on the scheduler.
func (m *Manager) OnStateChange(fn func(models.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

func (m *Manager) notifyState(s *Session, state models.ConnectionState) {
	m.scheduler.Post(func() {
		m.mu.Lock()
		current := m.session == s
		observer := m.observer
		m.mu.Unlock()
		if current && observer != nil {
			observer(state)
		}
	})
}

// SetEnabled enables or disables the push channel
func (m *Manager) SetEnabled(enabled bool) {
	if enabled {
		m.Enable()
	} else {
		m.Disable()
	}
}

// Enable starts a session unless one already exists
func (m *Manager) Enable() {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return
	}
	session := newSession(m)
	m.session = session
	m.mu.Unlock()

	debug.Info("Push channel enabled, session %s", session.ID())
	session.start()
}

// Disable tears down the current session, if any
func (m *Manager) Disable() {
	m.mu.Lock()
	session := m.session
	m.session = nil
	observer := m.observer
	m.mu.Unlock()

	if session == nil {
		return
	}
	session.Close()
	debug.Info("Push channel disabled")
	if observer != nil {
		m.scheduler.Post(func() { observer(models.Disconnected) })
	}
}

// Reconnect replaces the current session with a fresh one. Does nothing
// while disabled.
func (m *Manager) Reconnect() {
	if !m.Enabled() {
		return
	}
	m.Disable()
	m.Enable()
}

// Enabled reports whether a session exists
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Session returns the current session or nil
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// State returns Disconnected when no session exists
func (m *Manager) State() models.ConnectionState {
	if s := m.Session(); s != nil {
		return s.State()
	}
	return models.Disconnected
}

// Send writes cmd on the current session
func (m *Manager) Send(cmd models.Command) error {
	s := m.Session()
	if s == nil {
		return ErrNotOpen
	}
	return s.Send(cmd)
}

// Snapshot returns the current connection view
func (m *Manager) Snapshot() Snapshot {
	s := m.Session()
	if s == nil {
		return Snapshot{State: models.Disconnected}
	}

	snap := Snapshot{State: s.State(), SessionID: s.ID()}
	if snap.State != models.Open {
		return snap
	}
	if f, ok := s.renderer.Latest(); ok {
		snap.Frame = &f
	}
	if g, shownAt, ok := s.gestures.Current(); ok {
		snap.Gesture = &g
		snap.GestureShownAt = shownAt
	}
	return snap
}
