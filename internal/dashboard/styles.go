package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/eyes-gesture/eyes-client/internal/models"
)

// Styles holds the lipgloss styles used by the view.
type Styles struct {
	Title   lipgloss.Style
	Panel   lipgloss.Style
	Heading lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Faint   lipgloss.Style
	Good    lipgloss.Style
	Warn    lipgloss.Style
	Bad     lipgloss.Style
	Gesture lipgloss.Style
	Help    lipgloss.Style
	Select  lipgloss.Style
}

// DefaultStyles returns the adaptive colour scheme.
func DefaultStyles() Styles {
	accent := lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#9D8CFF"}
	faint := lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}

	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Padding(0, 1),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(faint).
			Padding(0, 1),
		Heading: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Label:   lipgloss.NewStyle().Foreground(faint).Width(14),
		Value:   lipgloss.NewStyle(),
		Faint:   lipgloss.NewStyle().Foreground(faint),
		Good:    lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950")),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("#D29922")),
		Bad:     lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149")),
		Gesture: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#1F6FEB")).
			Padding(0, 2),
		Help:   lipgloss.NewStyle().Foreground(faint).Padding(0, 1),
		Select: lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}

// connectionStyle picks a colour for the push channel badge
func (s Styles) connectionStyle(state models.ConnectionState) lipgloss.Style {
	switch state {
	case models.Open:
		return s.Good
	case models.Connecting:
		return s.Warn
	case models.Closed:
		return s.Bad
	default:
		return s.Faint
	}
}
