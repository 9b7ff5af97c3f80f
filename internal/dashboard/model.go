// Package dashboard is the terminal presentation layer. It renders
// controller snapshots and turns key presses into controller calls; it keeps
// no client state of its own beyond what it is displaying.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/eyes-gesture/eyes-client/internal/control"
	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

// DefaultRefresh is how often the view re-reads the controller snapshot
const DefaultRefresh = 100 * time.Millisecond

const (
	sensitivityStep = 10.0
	cooldownStep    = 0.25
	actionTimeout   = 10 * time.Second
)

// Controller is the subset of control.Controller the dashboard drives
type Controller interface {
	Snapshot() control.Snapshot
	ToggleDetection(ctx context.Context) error
	SetStreaming(enabled bool)
	SelectCamera(source string) error
	UpdateSetting(name string, value interface{}) error
	RefreshCameras(ctx context.Context) error
	GestureLog(ctx context.Context) ([]models.GestureLogEntry, error)
}

type tickMsg time.Time

type actionDoneMsg struct {
	action string
	err    error
}

type gestureLogMsg struct {
	entries []models.GestureLogEntry
	err     error
}

// Model is the bubbletea model
type Model struct {
	ctrl    Controller
	keys    KeyMap
	help    help.Model
	styles  Styles
	refresh time.Duration

	snap control.Snapshot

	// decoded dimensions of frame frameSeq in session frameSession
	frameSession string
	frameSeq     uint64
	frameWidth   int
	frameHeight  int

	showLog bool
	log     []models.GestureLogEntry
	busy    string
	notice  string

	width  int
	height int
}

// New creates a dashboard for ctrl. refresh <= 0 selects DefaultRefresh.
func New(ctrl Controller, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return Model{
		ctrl:    ctrl,
		keys:    DefaultKeyMap,
		help:    help.New(),
		styles:  DefaultStyles(),
		refresh: refresh,
		snap:    ctrl.Snapshot(),
	}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.resnap()
		return m, m.tick()

	case actionDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.notice = "Failed to " + msg.action + ": " + msg.err.Error()
		} else {
			m.notice = ""
		}
		m.resnap()
		return m, nil

	case gestureLogMsg:
		if msg.err != nil {
			m.notice = "Failed to load gesture log: " + msg.err.Error()
			return m, nil
		}
		m.log = msg.entries
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.ToggleDetection):
		if m.busy != "" {
			return m, nil
		}
		m.busy = "toggling detection"
		return m, m.run("toggle detection", m.ctrl.ToggleDetection)

	case key.Matches(msg, m.keys.ToggleStream):
		m.ctrl.SetStreaming(!m.snap.Streaming)

	case key.Matches(msg, m.keys.NextCamera):
		m.cycleCamera(1)

	case key.Matches(msg, m.keys.PreviousCamera):
		m.cycleCamera(-1)

	case key.Matches(msg, m.keys.RefreshCameras):
		return m, m.run("refresh cameras", m.ctrl.RefreshCameras)

	case key.Matches(msg, m.keys.ToggleDesktop):
		m.setting(models.KeyDesktopControl, !m.snap.Settings.DesktopControl)

	case key.Matches(msg, m.keys.ToggleVolume):
		m.setting(models.KeyVolumeControl, !m.snap.Settings.VolumeControl)

	case key.Matches(msg, m.keys.ToggleBrightness):
		m.setting(models.KeyBrightnessControl, !m.snap.Settings.BrightnessControl)

	case key.Matches(msg, m.keys.SensitivityUp):
		m.setting(models.KeySwipeSensitivity, m.snap.Settings.SwipeSensitivity+sensitivityStep)

	case key.Matches(msg, m.keys.SensitivityDown):
		m.setting(models.KeySwipeSensitivity, clampZero(m.snap.Settings.SwipeSensitivity-sensitivityStep))

	case key.Matches(msg, m.keys.CooldownUp):
		m.setting(models.KeyCooldown, m.snap.Settings.Cooldown+cooldownStep)

	case key.Matches(msg, m.keys.CooldownDown):
		m.setting(models.KeyCooldown, clampZero(m.snap.Settings.Cooldown-cooldownStep))

	case key.Matches(msg, m.keys.ToggleGestureLog):
		m.showLog = !m.showLog
		if m.showLog {
			return m, m.fetchLog()
		}
		m.log = nil
	}

	m.resnap()
	return m, nil
}

// run executes a blocking controller call off the update loop
func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) fetchLog() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		entries, err := ctrl.GestureLog(ctx)
		return gestureLogMsg{entries: entries, err: err}
	}
}

func (m *Model) setting(name string, value interface{}) {
	if err := m.ctrl.UpdateSetting(name, value); err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// cycleCamera selects the camera delta positions away from the current one
func (m *Model) cycleCamera(delta int) {
	cameras := m.snap.Cameras
	if len(cameras) == 0 {
		return
	}
	current := -1
	for i, cam := range cameras {
		if cam.Source == m.snap.Settings.SelectedCamera {
			current = i
			break
		}
	}
	var next int
	switch {
	case current >= 0:
		next = (current + delta + len(cameras)) % len(cameras)
	case delta < 0:
		next = len(cameras) - 1
	}
	if next == current {
		return
	}
	debug.Debug("Selecting camera %s", cameras[next].Source)
	m.setting(models.KeySelectedCamera, cameras[next].Source)
}

// resnap reads a fresh snapshot and decodes the frame header when a new
// frame has arrived
func (m *Model) resnap() {
	m.snap = m.ctrl.Snapshot()

	frame := m.snap.Connection.Frame
	if frame == nil {
		m.frameSession, m.frameSeq, m.frameWidth, m.frameHeight = "", 0, 0, 0
		return
	}
	if frame.Seq == m.frameSeq && m.snap.Connection.SessionID == m.frameSession {
		return
	}
	m.frameSession, m.frameSeq = m.snap.Connection.SessionID, frame.Seq
	w, h, err := frame.Dimensions()
	if err != nil {
		m.frameWidth, m.frameHeight = 0, 0
		return
	}
	m.frameWidth, m.frameHeight = w, h
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
