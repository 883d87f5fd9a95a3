// Package debug provides the panel's in-app event log overlay.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mobile-controller/panel/internal/theme"
)

const maxEntries = 200

// Kind classifies a log entry.
type Kind string

const (
	KindWS    Kind = "ws"
	KindEvent Kind = "evt"
	KindCmd   Kind = "cmd"
	KindError Kind = "err"
)

type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Log is a bounded, scrollable list of entries. Offset counts lines from
// the newest entry.
type Log struct {
	Entries []Entry
	Offset  int
	now     func() time.Time
}

func New() Log {
	return Log{now: time.Now}
}

// Addf appends a formatted entry, drops the oldest beyond the cap and
// snaps the view back to the newest line.
func (l *Log) Addf(kind Kind, format string, args ...any) {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.Entries = append(l.Entries, Entry{Time: now(), Kind: kind, Message: fmt.Sprintf(format, args...)})
	if over := len(l.Entries) - maxEntries; over > 0 {
		l.Entries = append([]Entry(nil), l.Entries[over:]...)
	}
	l.Offset = 0
}

// Scroll moves the view by n lines; positive is towards older entries.
func (l *Log) Scroll(n int) {
	l.Offset += n
	if limit := len(l.Entries) - 1; l.Offset > limit {
		l.Offset = limit
	}
	if l.Offset < 0 {
		l.Offset = 0
	}
}

// View renders the log as an overlay panel.
func (l Log) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visible := height - 6
	if visible < 3 {
		visible = 3
	}

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(l.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(l.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing logged yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(l.Entries) - l.Offset
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range l.Entries[start:end] {
		msg := e.Message
		if limit := innerW - 20; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")),
			lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind)),
			msg))
	}

	parts := []string{title, strings.Join(lines, "\n")}
	if l.Offset > 0 {
		parts = append(parts, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", l.Offset)))
	}
	parts = append(parts, help)
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindWS:
		return theme.ColorKindWS
	case KindEvent:
		return theme.ColorKindEvent
	case KindCmd:
		return theme.ColorKindCmd
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
