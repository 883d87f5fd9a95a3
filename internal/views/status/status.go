package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mobile-controller/panel/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Running   bool
	Addr      string
	ServerOS  string
	Clients   int
	Paused    bool
	Width     int
}

func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := theme.Indicator(m.Connected, "Bridge", "Connecting...")

	if m.Running {
		server := "Server " + m.Addr
		if m.ServerOS != "" {
			server += " (" + m.ServerOS + ")"
		}
		content += sep + server
		content += sep + fmt.Sprintf("%d client%s", m.Clients, plural(m.Clients))
	} else {
		content += sep + theme.StyleDimmed.Render("Server stopped")
	}
	if m.Paused {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("timers paused")
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
