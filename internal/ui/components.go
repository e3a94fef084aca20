// ViewCode (a rendezvous-code display) is gone along with any PAKE
// pairing flow; ViewProgress is kept as-is and grows a row renderer
// for the per-file bars a directory sync needs.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ViewProgress renders a simple progress bar.
func ViewProgress(percent float64, width int) string {
	barWidth := width - 10
	filled := int(float64(barWidth) * percent)
	empty := barWidth - filled

	if filled < 0 {
		filled = 0
	}
	if empty < 0 {
		empty = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", empty)
	return fmt.Sprintf("%s %3.0f%%", bar, percent*100)
}

// ViewFileRow renders one in-flight file's name alongside its bar.
func ViewFileRow(name string, percent float64, done bool) string {
	label := FileNameStyle.Render(truncateName(name, 26))
	bar := ViewProgress(percent, 36)
	if done {
		return lipgloss.JoinHorizontal(lipgloss.Left, DoneFileStyle.Render(label), DoneFileStyle.Render(bar))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, label, bar)
}

func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	return "..." + name[len(name)-max+3:]
}
