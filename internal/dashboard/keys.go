package dashboard

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings.
type KeyMap struct {
	ToggleDetection key.Binding
	ToggleStream    key.Binding

	NextCamera     key.Binding
	PreviousCamera key.Binding
	RefreshCameras key.Binding

	// Settings toggles and steps.
	ToggleDesktop    key.Binding
	ToggleVolume     key.Binding
	ToggleBrightness key.Binding
	SensitivityUp    key.Binding
	SensitivityDown  key.Binding
	CooldownUp       key.Binding
	CooldownDown     key.Binding

	ToggleGestureLog key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap is the built-in binding set.
var DefaultKeyMap = KeyMap{
	ToggleDetection: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start/stop detection"),
	),
	ToggleStream: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "stream on/off"),
	),
	NextCamera: key.NewBinding(
		key.WithKeys("c", "right"),
		key.WithHelp("c/→", "next camera"),
	),
	PreviousCamera: key.NewBinding(
		key.WithKeys("C", "left"),
		key.WithHelp("C/←", "previous camera"),
	),
	RefreshCameras: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh cameras"),
	),
	ToggleDesktop: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "desktop control"),
	),
	ToggleVolume: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "volume control"),
	),
	ToggleBrightness: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "brightness control"),
	),
	SensitivityUp: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+/-", "swipe sensitivity"),
	),
	SensitivityDown: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "less sensitive"),
	),
	CooldownUp: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("[/]", "cooldown"),
	),
	CooldownDown: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "shorter cooldown"),
	),
	ToggleGestureLog: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "gesture log"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleDetection, k.ToggleStream, k.NextCamera, k.ToggleGestureLog, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ToggleDetection, k.ToggleStream, k.ToggleGestureLog},
		{k.NextCamera, k.PreviousCamera, k.RefreshCameras},
		{k.ToggleDesktop, k.ToggleVolume, k.ToggleBrightness},
		{k.SensitivityUp, k.CooldownUp},
		{k.Help, k.Quit},
	}
}
