// Package theme provides the Lip Gloss palette and shared styles for the
// panel. It imports nothing internal.
package theme

import "github.com/charmbracelet/lipgloss"

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#3b82f6")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Debug log kind colors.
var (
	ColorKindWS    = lipgloss.Color("#2563eb")
	ColorKindEvent = lipgloss.Color("#7c3aed")
	ColorKindCmd   = lipgloss.Color("#06b6d4")
)

var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(ColorAccent)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorDanger)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorHealthy)
)

// Indicator renders a colored dot with a label, filled when on.
func Indicator(on bool, onLabel, offLabel string) string {
	if on {
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("● " + onLabel)
	}
	return lipgloss.NewStyle().Foreground(ColorDanger).Render("○ " + offLabel)
}
