// The palette and container chrome here are kept as-is from a terminal
// file-transfer UI; the matrix/handshake-code styles, meaningful only
// for a PAKE rendezvous-code flow, are dropped since there's no
// pairing code to display.
package ui

import "github.com/charmbracelet/lipgloss"

// Color Palette
var (
	ColorPrimary   = lipgloss.Color("#7D56F4") // Purple
	ColorSecondary = lipgloss.Color("#9F7AEA") // Lighter Purple
	ColorSuccess   = lipgloss.Color("#38A169") // Green
	ColorError     = lipgloss.Color("#E53E3E") // Red
	ColorText      = lipgloss.Color("#FAFAFA") // White
	ColorSubtext   = lipgloss.Color("#A0AEC0") // Gray
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Italic(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	ContainerStyle = lipgloss.NewStyle().
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Width(64)

	// Telemetry Styles
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Width(14)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	FileNameStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Width(28)

	DoneFileStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)
)
