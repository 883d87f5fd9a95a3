// Package help renders the key reference overlay from markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/mobile-controller/panel/internal/theme"
)

// Section groups bindings under a heading.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Model caches the rendered overlay per width.
type Model struct {
	sections []Section
	width    int
	rendered string
}

func New(sections ...Section) *Model {
	return &Model{sections: sections}
}

// Markdown returns the overlay's source text.
func (m *Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# Mobile Controller\n\n")
	for _, s := range m.sections {
		fmt.Fprintf(&b, "## %s\n\n| Key | Action |\n| --- | --- |\n", s.Title)
		for _, kb := range s.Bindings {
			h := kb.Help()
			if h.Key == "" {
				continue
			}
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		b.WriteString("\n")
	}
	b.WriteString("Elapsed time counts from when the panel first saw a client, ")
	b.WriteString("not from when the device connected.\n")
	return b.String()
}

// View renders the overlay at the given width. If glamour cannot render,
// the raw markdown is shown.
func (m *Model) View(width int) string {
	if width < 40 {
		width = 40
	}
	if m.rendered == "" || m.width != width {
		m.width = width
		m.rendered = m.render(width - 10)
	}
	return lipgloss.NewStyle().
		Width(width-2).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.rendered + "\n" + theme.StyleDimmed.Render("esc:close"))
}

func (m *Model) render(wrap int) string {
	md := m.Markdown()
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		log.Warn().Str("module", "help").Err(err).Msg("markdown renderer")
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		log.Warn().Str("module", "help").Err(err).Msg("render help")
		return md
	}
	return strings.TrimSpace(out)
}
