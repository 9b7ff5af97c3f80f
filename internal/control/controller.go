// Package control owns the client's control flow. It wires the push channel,
// the status poller and the settings store together and is the only thing
// the presentation layer talks to.
package control

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eyes-gesture/eyes-client/internal/clock"
	"github.com/eyes-gesture/eyes-client/internal/config"
	"github.com/eyes-gesture/eyes-client/internal/connection"
	"github.com/eyes-gesture/eyes-client/internal/eventloop"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/internal/settings"
	"github.com/eyes-gesture/eyes-client/internal/status"
	"github.com/eyes-gesture/eyes-client/internal/telemetry"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// API is the REST surface the controller needs. api.Client implements it.
type API interface {
	status.Source
	settings.Backend
	ListCameras(ctx context.Context) ([]models.CameraInfo, error)
	TestCamera(ctx context.Context, streamURL string) (models.CameraTestResult, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) (models.HealthInfo, error)
	GestureLog(ctx context.Context) ([]models.GestureLogEntry, error)
}

// Deps are the controller's collaborators. Clock defaults to the real clock.
// When Scheduler is nil the controller runs its own event loop. TLSConfig
// applies to the push channel; the API client carries its own transport.
type Deps struct {
	Config    *config.Config
	API       API
	Clock     clock.Clock
	Scheduler eventloop.Scheduler
	TLSConfig *tls.Config
}

// Snapshot is everything the dashboard renders. It is a value; holding on
// to one never blocks the controller.
type Snapshot struct {
	Connection connection.Snapshot
	Telemetry  telemetry.Snapshot
	Settings   models.Settings
	Cameras    []models.CameraInfo
	Streaming  bool
	AutoStream bool
	Backend    string

	// BackendInfo is empty until the health check succeeds
	BackendInfo models.HealthInfo
	Now         time.Time

	LastError   string
	LastErrorAt time.Time
}

// Controller is safe for concurrent use
type Controller struct {
	cfg       *config.Config
	api       API
	clock     clock.Clock
	loop      *eventloop.Loop
	scheduler eventloop.Scheduler
	backend   string

	telemetry *telemetry.State
	manager   *connection.Manager
	poller    *status.Poller
	settings  *settings.Store

	mu          sync.RWMutex
	cameras     []models.CameraInfo
	backendInfo models.HealthInfo
	autoStream  bool
	lastError   string
	lastErrorAt time.Time
	cancel      context.CancelFunc

	closeOnce sync.Once
}

// New builds a stopped controller
func New(deps Deps) (*Controller, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("control: API is required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}

	c := &Controller{
		cfg:        cfg,
		api:        deps.API,
		clock:      clk,
		scheduler:  deps.Scheduler,
		autoStream: cfg.AutoStream,
	}
	if c.scheduler == nil {
		c.loop = eventloop.New()
		c.scheduler = c.loop
	}

	urls := config.NewURLConfig(cfg)
	c.backend = urls.GetAPIBaseURL()
	c.telemetry = telemetry.New(clk)
	c.manager = connection.NewManager(connection.Options{
		URL:               urls.GetWebSocketURL(),
		HandshakeTimeout:  cfg.HandshakeTimeout,
		WriteWait:         cfg.WriteWait,
		ReconnectAttempts: cfg.ReconnectAttempts,
		DisplayDuration:   cfg.GestureDisplay,
		TLSConfig:         deps.TLSConfig,
	}, clk, c.scheduler, c.telemetry)
	c.poller = status.NewPoller(deps.API, c.telemetry, clk, c.scheduler, cfg.PollInterval)
	c.settings = settings.NewStore(deps.API, cfg.RequestTimeout)

	c.poller.OnStatus(c.handleStatus)
	c.settings.OnChange(c.handleSettingsChange)
	c.manager.OnStateChange(func(state models.ConnectionState) {
		debug.Debug("Push channel is now %s", state)
	})

	return c, nil
}

// Start brings the controller up and returns. Settings and cameras are
// loaded once; failures are logged and the defaults are kept.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if c.loop != nil {
		go c.loop.Run(ctx)
	}

	debug.Info("Connecting to EYES backend at %s", c.backend)
	c.checkHealth(ctx)

	loadCtx, cancelLoad := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	if err := c.settings.Load(loadCtx); err != nil {
		debug.Warning("Using default settings: %v", err)
	}
	cancelLoad()

	c.poller.Start(ctx)

	if err := c.RefreshCameras(ctx); err != nil {
		debug.Warning("Camera list unavailable: %v", err)
	}
}

// checkHealth records the backend's name and version. A failure is only
// logged; the poller reports reachability.
func (c *Controller) checkHealth(ctx context.Context) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	info, err := c.api.Health(ctx)
	if err != nil {
		debug.Warning("Backend health check failed: %v", err)
		return
	}
	debug.Info("Backend %s %s is %s", info.Name, info.Version, info.Status)
	c.mu.Lock()
	c.backendInfo = info
	c.mu.Unlock()
}

// Run starts the controller and blocks until ctx is cancelled, then closes it
func (c *Controller) Run(ctx context.Context) {
	c.Start(ctx)
	<-ctx.Done()
	c.Close()
}

// Close tears everything down. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		c.poller.Stop()
		c.manager.Disable()
		c.settings.Close()
		if c.loop != nil {
			c.loop.Stop()
		}
		debug.Info("Controller closed")
	})
}

// handleStatus runs on the scheduler after every successful poll
func (c *Controller) handleStatus(st models.SystemStatus) {
	if !c.AutoStream() {
		return
	}
	if st.IsRunning != c.manager.Enabled() {
		debug.Info("Backend running=%t, following with the push channel", st.IsRunning)
		c.manager.SetEnabled(st.IsRunning)
	}
}

// handleSettingsChange pushes local edits to the running detector and
// re-establishes the session whenever the camera changes so no frame from
// the previous camera can be shown. key is empty for a backend load, which
// is never pushed back.
func (c *Controller) handleSettingsChange(key string, old, next models.Settings) {
	if key != "" {
		before, _ := old.Value(key)
		after, _ := next.Value(key)
		if before == after {
			return
		}
		c.scheduler.Post(func() { c.pushSettings(next) })
	}
	if old.SelectedCamera == next.SelectedCamera {
		return
	}
	debug.Info("Camera changed from %s to %s", old.SelectedCamera, next.SelectedCamera)
	c.scheduler.Post(c.manager.Reconnect)
}

// pushSettings sends the record as a settings command when the push channel
// is open. The REST persist runs regardless.
func (c *Controller) pushSettings(record models.Settings) {
	err := c.manager.Send(models.Command{Type: models.CommandSettings, Settings: &record})
	switch {
	case err == nil:
		debug.Debug("Pushed settings over the push channel")
	case errors.Is(err, connection.ErrNotOpen):
	default:
		debug.Warning("Failed to push settings: %v", err)
	}
}

// SetStreaming is the explicit enable flag for the push channel
func (c *Controller) SetStreaming(enabled bool) {
	c.manager.SetEnabled(enabled)
}

// Streaming reports whether a push session exists
func (c *Controller) Streaming() bool {
	return c.manager.Enabled()
}

// SetAutoStream controls whether polls drive the enable flag
func (c *Controller) SetAutoStream(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoStream = enabled
}

// AutoStream reports whether polls drive the enable flag
func (c *Controller) AutoStream() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autoStream
}

// StartDetection asks the backend to start and, on success, opens the
// stream. Nothing changes locally on failure.
func (c *Controller) StartDetection(ctx context.Context) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	if err := c.api.Start(ctx); err != nil {
		c.recordError("start detection", err)
		return fmt.Errorf("failed to start detection: %w", err)
	}
	debug.Info("Detection started")
	c.telemetry.SetRunning(true)
	c.SetStreaming(true)
	return nil
}

// StopDetection asks the backend to stop and, on success, closes the stream
func (c *Controller) StopDetection(ctx context.Context) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	if err := c.api.Stop(ctx); err != nil {
		c.recordError("stop detection", err)
		return fmt.Errorf("failed to stop detection: %w", err)
	}
	debug.Info("Detection stopped")
	c.telemetry.SetRunning(false)
	c.SetStreaming(false)
	return nil
}

// ToggleDetection starts or stops detection based on the last known state
func (c *Controller) ToggleDetection(ctx context.Context) error {
	if c.telemetry.Snapshot().IsRunning {
		return c.StopDetection(ctx)
	}
	return c.StartDetection(ctx)
}

// RefreshCameras reloads the camera list. The previous list is kept on
// failure.
func (c *Controller) RefreshCameras(ctx context.Context) error {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	cameras, err := c.api.ListCameras(ctx)
	if err != nil {
		c.recordError("list cameras", err)
		return err
	}

	c.mu.Lock()
	c.cameras = cameras
	c.mu.Unlock()
	debug.Debug("Loaded %d cameras", len(cameras))
	return nil
}

// Catalog returns the camera list with the synthetic custom entry appended
// when the selected camera is not listed
func (c *Controller) Catalog() []models.CameraInfo {
	c.mu.RLock()
	cameras := c.cameras
	c.mu.RUnlock()
	return models.CameraCatalog(cameras, c.settings.Current().SelectedCamera)
}

// TestCamera checks whether a stream URL can be opened by the backend
func (c *Controller) TestCamera(ctx context.Context, streamURL string) (models.CameraTestResult, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	result, err := c.api.TestCamera(ctx, streamURL)
	if err != nil {
		c.recordError("test camera", err)
	}
	return result, err
}

// GestureLog returns the backend's recent gesture history, newest first
func (c *Controller) GestureLog(ctx context.Context) ([]models.GestureLogEntry, error) {
	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	entries, err := c.api.GestureLog(ctx)
	if err != nil {
		c.recordError("gesture log", err)
	}
	return entries, err
}

// Settings returns the local settings record
func (c *Controller) Settings() models.Settings {
	return c.settings.Current()
}

// UpdateSetting changes one key locally and queues a save
func (c *Controller) UpdateSetting(key string, value interface{}) error {
	if err := c.settings.Set(key, value); err != nil {
		c.recordError("update setting", err)
		return err
	}
	return nil
}

// SelectCamera switches the active camera by source
func (c *Controller) SelectCamera(source string) error {
	return c.UpdateSetting(models.KeySelectedCamera, source)
}

// Snapshot returns the current view of the whole client
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	lastError, lastErrorAt := c.lastError, c.lastErrorAt
	autoStream := c.autoStream
	backendInfo := c.backendInfo
	c.mu.RUnlock()

	return Snapshot{
		Connection:  c.manager.Snapshot(),
		Telemetry:   c.telemetry.Snapshot(),
		Settings:    c.settings.Current(),
		Cameras:     c.Catalog(),
		Streaming:   c.manager.Enabled(),
		AutoStream:  autoStream,
		Backend:     c.backend,
		BackendInfo: backendInfo,
		Now:         c.clock.Now(),
		LastError:   lastError,
		LastErrorAt: lastErrorAt,
	}
}

func (c *Controller) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RequestTimeout)
}

func (c *Controller) recordError(action string, err error) {
	debug.Error("Failed to %s: %v", action, err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = fmt.Sprintf("%s: %v", action, err)
	c.lastErrorAt = c.clock.Now()
}
