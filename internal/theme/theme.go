// Package theme holds the lipgloss styles of the plain-text output.
// Colors are dropped automatically when stdout is not a terminal.
package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section titles such as "Headers" or "Body".
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// RuleStyle draws the separator lines between sections.
var RuleStyle = lipgloss.NewStyle().
	Foreground(ColorBorder)

// UnreadStyle marks unread messages in listings.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true)

// StarStyle renders the star marker.
var StarStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// DimmedStyle is used for secondary text: dates, snippets, ids.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// LabelStyle renders field names in key/value blocks.
var LabelStyle = lipgloss.NewStyle().
	Bold(true)

// ErrorStyle renders error lines on stderr.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// OKStyle renders passed checks.
var OKStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// OutcomeStyle returns a color-coded style for an audit outcome.
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch outcome {
	case "success":
		return base.Foreground(ColorGreen)
	case "error":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// LocationStyle returns a color-coded style for a message location.
func LocationStyle(location string) lipgloss.Style {
	switch location {
	case "inbox":
		return lipgloss.NewStyle().Foreground(ColorBlue)
	case "archived":
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case "trashed":
		return lipgloss.NewStyle().Foreground(ColorRed)
	default:
		return lipgloss.NewStyle().Foreground(ColorGray)
	}
}
