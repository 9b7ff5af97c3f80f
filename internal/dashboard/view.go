package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/eyes-gesture/eyes-client/internal/version"
	"github.com/eyes-gesture/eyes-client/pkg/console"
)

const (
	gaugeWidth   = 20
	maxLogRows   = 10
	panelMinSize = 50
)

// View renders the dashboard
func (m Model) View() string {
	sections := []string{
		m.viewHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.viewDetection(), m.viewStream()),
		lipgloss.JoinHorizontal(lipgloss.Top, m.viewSettings(), m.viewCameras()),
	}
	if m.showLog {
		sections = append(sections, m.viewLog())
	}
	if notice := m.viewNotice(); notice != "" {
		sections = append(sections, notice)
	}
	sections = append(sections, m.styles.Help.Render(m.help.View(m.keys)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("EYES " + version.GetVersion())

	state := m.snap.Connection.State
	badge := m.styles.connectionStyle(state).Render("● stream " + state.String())

	backend := m.styles.Bad.Render("● backend offline")
	if m.snap.Telemetry.Connected {
		backend = m.styles.Good.Render("● backend online")
	} else if m.snap.Telemetry.LastPoll.IsZero() && m.snap.Telemetry.PollFailures == 0 {
		backend = m.styles.Faint.Render("● backend unknown")
	}

	target := m.snap.Backend
	if info := m.snap.BackendInfo; info.Version != "" {
		target += fmt.Sprintf(" (%s %s)", info.Name, info.Version)
	}

	return lipgloss.JoinHorizontal(lipgloss.Center,
		title, "  ", backend, "  ", badge, "  ", m.styles.Faint.Render(target))
}

func (m Model) row(label, value string) string {
	return m.styles.Label.Render(label) + m.styles.Value.Render(value)
}

func (m Model) panel(title string, rows ...string) string {
	body := append([]string{m.styles.Heading.Render(title)}, rows...)
	width := panelMinSize
	if m.width > 0 && m.width/2-4 > width {
		width = m.width/2 - 4
	}
	return m.styles.Panel.Width(width).Render(strings.Join(body, "\n"))
}

func (m Model) viewDetection() string {
	tel := m.snap.Telemetry

	running := m.styles.Faint.Render("stopped")
	if tel.IsRunning {
		running = m.styles.Good.Render("running")
	}
	if m.busy != "" {
		running += m.styles.Warn.Render(" (" + m.busy + ")")
	}

	camera := tel.Camera
	if camera == "" {
		camera = "-"
	}

	lastPoll := "never"
	if !tel.LastPoll.IsZero() {
		lastPoll = formatAge(m.snap.Now.Sub(tel.LastPoll))
	}
	if tel.PollFailures > 0 {
		lastPoll += m.styles.Bad.Render(fmt.Sprintf(" (%d failed)", tel.PollFailures))
	}

	return m.panel("Detection",
		m.row("Status", running),
		m.row("Camera", camera),
		m.row("FPS", fmt.Sprintf("%.1f", tel.FPS)),
		m.row("Volume", console.Gauge(tel.Volume, gaugeWidth)),
		m.row("Brightness", console.Gauge(tel.Brightness, gaugeWidth)),
		m.row("Clients", fmt.Sprintf("%d", tel.ConnectedClients)),
		m.row("Last poll", lastPoll),
	)
}

func (m Model) viewStream() string {
	conn := m.snap.Connection

	streaming := m.styles.Faint.Render("off")
	if m.snap.Streaming {
		streaming = m.styles.Good.Render("on")
	}
	if m.snap.AutoStream {
		streaming += m.styles.Faint.Render(" (auto)")
	}

	session := "-"
	if conn.SessionID != "" {
		session = conn.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
	}

	frame := m.styles.Faint.Render("no frame")
	if conn.Frame != nil {
		frame = fmt.Sprintf("#%d  %s", conn.Frame.Seq, console.FormatBytes(int64(conn.Frame.Size())))
		if m.frameWidth > 0 {
			frame += fmt.Sprintf("  %dx%d", m.frameWidth, m.frameHeight)
		}
	}

	gesture := m.styles.Faint.Render("none")
	if conn.Gesture != nil {
		gesture = m.styles.Gesture.Render(gestureLabel(conn.Gesture.Gesture)) + " " +
			m.styles.Faint.Render(fmt.Sprintf("%s hand, %s", conn.Gesture.Hand,
				console.FormatConfidence(conn.Gesture.Confidence)))
	}

	return m.panel("Stream",
		m.row("Streaming", streaming),
		m.row("Channel", m.styles.connectionStyle(conn.State).Render(conn.State.String())),
		m.row("Session", session),
		m.row("Frame", frame),
		m.row("Gesture", gesture),
	)
}

func (m Model) viewSettings() string {
	s := m.snap.Settings
	return m.panel("Settings",
		m.row("Desktop", onOff(m.styles, s.DesktopControl)),
		m.row("Volume", onOff(m.styles, s.VolumeControl)),
		m.row("Brightness", onOff(m.styles, s.BrightnessControl)),
		m.row("Sensitivity", fmt.Sprintf("%.0f", s.SwipeSensitivity)),
		m.row("Cooldown", fmt.Sprintf("%.2fs", s.Cooldown)),
	)
}

func (m Model) viewCameras() string {
	if len(m.snap.Cameras) == 0 {
		return m.panel("Cameras", m.styles.Faint.Render("no cameras found"))
	}
	rows := make([]string, 0, len(m.snap.Cameras))
	for _, cam := range m.snap.Cameras {
		line := fmt.Sprintf("%s [%s]", cam.Name, cam.Type)
		if cam.Source == m.snap.Settings.SelectedCamera {
			rows = append(rows, m.styles.Select.Render("▸ "+line))
			continue
		}
		rows = append(rows, "  "+line)
	}
	return m.panel("Cameras", rows...)
}

func (m Model) viewLog() string {
	if len(m.log) == 0 {
		return m.panel("Gesture log", m.styles.Faint.Render("no gestures recorded"))
	}
	rows := make([]string, 0, maxLogRows)
	for i, entry := range m.log {
		if i == maxLogRows {
			break
		}
		rows = append(rows, fmt.Sprintf("%s  %-12s %-5s %s  vol %3.0f  bri %3.0f",
			entry.Time().Format("15:04:05"),
			gestureLabel(entry.Gesture),
			entry.Hand,
			console.FormatConfidence(entry.Confidence),
			entry.VolumeAtTime,
			entry.BrightnessAtTime))
	}
	return m.panel("Gesture log", rows...)
}

func (m Model) viewNotice() string {
	if m.notice != "" {
		return m.styles.Bad.Render(m.notice)
	}
	if m.snap.LastError != "" && m.snap.Now.Sub(m.snap.LastErrorAt) < 10*time.Second {
		return m.styles.Warn.Render(m.snap.LastError)
	}
	return ""
}

func onOff(styles Styles, enabled bool) string {
	if enabled {
		return styles.Good.Render("on")
	}
	return styles.Faint.Render("off")
}

// gestureLabel turns swipe_left into "Swipe left"
func gestureLabel(name string) string {
	if name == "" {
		return name
	}
	label := strings.ReplaceAll(name, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

func formatAge(d time.Duration) string {
	if d < time.Second {
		return "just now"
	}
	return d.Truncate(time.Second).String() + " ago"
}
