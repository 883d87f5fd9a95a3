// Package clients renders the roster as a selectable table.
package clients

import (
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mobile-controller/panel/internal/roster"
	"github.com/mobile-controller/panel/internal/theme"
)

const (
	colID      = 10
	colName    = 24
	colAddr    = 22
	colElapsed = 16
)

// Model wraps a bubbles table whose rows mirror the latest roster snapshot.
type Model struct {
	table   table.Model
	records []roster.ClientRecord
}

// KeyMap is the table's navigation. Half-page moves are bound to ctrl only
// so that "d" stays free for disconnecting a client.
func KeyMap() table.KeyMap {
	km := table.DefaultKeyMap()
	km.HalfPageDown = key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "½ page down"))
	km.HalfPageUp = key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "½ page up"))
	return km
}

func New() Model {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = theme.StyleSelected

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Client ID", Width: colID},
			{Title: "Device Name", Width: colName},
			{Title: "Address", Width: colAddr},
			{Title: "Time Connected", Width: colElapsed},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
		table.WithKeyMap(KeyMap()),
		table.WithStyles(styles),
	)
	return Model{table: t}
}

// SetRecords replaces the rows. The selection follows the previously
// selected client if it is still present.
func (m *Model) SetRecords(records []roster.ClientRecord) {
	prev, hadPrev := m.SelectedID()

	m.records = records
	rows := make([]table.Row, len(records))
	cursor := m.table.Cursor()
	for i, rec := range records {
		rows[i] = table.Row{
			strconv.Itoa(rec.ID),
			rec.Name(),
			rec.Address,
			rec.Elapsed.String(),
		}
		if hadPrev && rec.ID == prev {
			cursor = i
		}
	}
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(cursor)
	}
}

// SelectedID returns the id of the highlighted client.
func (m Model) SelectedID() (int, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.records) {
		return 0, false
	}
	return m.records[i].ID, true
}

func (m *Model) SetSize(width, height int) {
	h := height
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
	m.table.SetWidth(width)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.records) == 0 {
		return m.table.View() + "\n" + theme.StyleDimmed.Render("  No clients connected.")
	}
	return m.table.View()
}
