package connection

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/eventloop"
	"github.com/eyes-gesture/eyes-client/internal/frame"
	"github.com/eyes-gesture/eyes-client/internal/gesture"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/internal/telemetry"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

const (
	// Maximum message size accepted from the backend. Frames are base64
	// JPEGs, so this is generous.
	maxMessageSize = 8 * 1024 * 1024

	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Session is one push-channel lifetime. It owns its socket, its frame slot
// and its gesture slot; nothing is shared with the session before or after
// it. Once torn down a Session is never reused.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	url       string
	header    http.Header
	dialer    *websocket.Dialer
	clock     clock.Clock
	scheduler eventloop.Scheduler
	telemetry *telemetry.State
	writeWait time.Duration
	onState   func(*Session, models.ConnectionState)

	renderer *frame.Renderer
	gestures *gesture.Buffer

	// redial budget per drop; restored after every successful open
	maxRetries int

	mu          sync.Mutex
	state       models.ConnectionState
	conn        *websocket.Conn
	retriesLeft int
	backoff     time.Duration
	retryTimer  *clock.Timer
	// epoch counts connections; dispatches from an older one are dropped
	epoch uint64

	// Mutex for write synchronization
	writeMux sync.Mutex

	// Once for ensuring single teardown
	closeOnce sync.Once
}

func newSession(m *Manager) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:          uuid.New().String(),
		ctx:         ctx,
		cancel:      cancel,
		url:         m.opts.URL,
		header:      m.opts.Header,
		dialer:      m.dialer,
		clock:       m.clock,
		scheduler:   m.scheduler,
		telemetry:   m.telemetry,
		writeWait:   m.opts.WriteWait,
		onState:     m.notifyState,
		renderer:    frame.NewRenderer(m.clock),
		gestures:    gesture.NewBuffer(m.clock, m.scheduler, m.opts.DisplayDuration),
		maxRetries:  m.opts.ReconnectAttempts,
		state:       models.Connecting,
		retriesLeft: m.opts.ReconnectAttempts,
		backoff:     initialBackoff,
	}
}

// ID returns the session's unique identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Renderer returns the session's frame slot
func (s *Session) Renderer() *frame.Renderer {
	return s.renderer
}

// Gestures returns the session's gesture slot
func (s *Session) Gestures() *gesture.Buffer {
	return s.gestures
}

// Done is closed when the session has been torn down
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Session) setState(state models.ConnectionState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	debug.Debug("Session %s is %s", s.id, state)
	if s.onState != nil {
		s.onState(s, state)
	}
}

// start dials in the background
func (s *Session) start() {
	go s.connect()
}

// connect dials the push channel and, on success, runs the read pump until
// the connection drops
func (s *Session) connect() {
	if s.ctx.Err() != nil {
		return
	}
	s.setState(models.Connecting)
	debug.Info("Session %s connecting to %s", s.id, s.url)

	conn, resp, err := s.dialer.DialContext(s.ctx, s.url, s.header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			debug.Error("Push channel handshake failed with status %d: %s", resp.StatusCode, string(body))
		} else if s.ctx.Err() == nil {
			debug.Error("Failed to connect to push channel: %v", err)
		}
		s.handleDrop()
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		// torn down while dialing
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.backoff = initialBackoff
	s.retriesLeft = s.maxRetries
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	debug.Info("Session %s established push channel", s.id)
	s.setState(models.Open)
	s.readPump(conn, epoch)
}

// readPump decodes messages and posts them for dispatch. A malformed
// message is logged and skipped; any read error ends the pump.
func (s *Session) readPump(conn *websocket.Conn, epoch uint64) {
	conn.SetReadLimit(maxMessageSize)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Error("Unexpected push channel close: %v", err)
			} else {
				debug.Info("Push channel closed: %v", err)
			}
			s.handleDrop()
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := models.DecodeMessage(data)
		if err != nil {
			debug.Warning("Dropping push message: %v", err)
			continue
		}

		s.scheduler.Post(func() {
			s.dispatch(epoch, msg)
		})
	}
}

// dispatch routes a decoded message read on connection epoch. Runs on the
// scheduler. Messages queued before a drop or teardown are discarded.
func (s *Session) dispatch(epoch uint64, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil || s.epoch != epoch || s.conn == nil {
		return
	}

	if frameMsg, ok := msg.(models.FrameMessage); ok {
		s.renderer.Accept(frameMsg.Frame)
	}
	if update, ok := models.MetricsOf(msg); ok {
		s.gestures.Update(update.Gestures)
		if s.telemetry != nil {
			s.telemetry.ApplyPush(*update)
		}
	}
}

// handleDrop moves a live session to Closed and schedules a redial when
// retries remain
func (s *Session) handleDrop() {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.epoch++
	retry := s.retriesLeft > 0
	var wait time.Duration
	if retry {
		s.retriesLeft--
		wait = s.backoff
		s.backoff *= 2
		if s.backoff > maxBackoff {
			s.backoff = maxBackoff
		}
		s.retryTimer = s.clock.AfterFunc(wait, func() {
			go s.connect()
		})
	}
	s.mu.Unlock()

	s.gestures.Reset()
	s.renderer.Clear()
	s.setState(models.Closed)

	if retry {
		debug.Info("Session %s will redial in %v", s.id, wait)
	}
}

// Send writes a client command. It fails with ErrNotOpen unless the push
// channel is open.
func (s *Session) Send(cmd models.Command) error {
	s.mu.Lock()
	conn := s.conn
	open := s.state == models.Open && conn != nil
	s.mu.Unlock()
	if !open {
		return ErrNotOpen
	}

	s.writeMux.Lock()
	defer s.writeMux.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Type, err)
	}
	return nil
}

// Close tears the session down: the context is cancelled, any pending
// redial is stopped, the socket is closed and both display slots are
// emptied. Safe to call on a session that never opened or already closed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		debug.Info("Closing session %s", s.id)
		s.cancel()

		s.mu.Lock()
		if s.retryTimer != nil {
			s.retryTimer.Stop()
			s.retryTimer = nil
		}
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn != nil {
			s.writeMux.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			s.writeMux.Unlock()
		}

		s.gestures.Reset()
		s.renderer.Clear()
		s.setState(models.Closed)
	})
}
