package app

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/mobile-controller/panel/internal/views/help"
)

// KeyMap defines the panel's keyboard bindings.
type KeyMap struct {
	Start  key.Binding
	Stop   key.Binding
	Remove key.Binding
	Pause  key.Binding
	Retry  key.Binding
	Up     key.Binding
	Down   key.Binding
	Help   key.Binding
	Debug  key.Binding
	Escape key.Binding
	Quit   key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start server"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop server"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d/del", "disconnect selected client"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause/resume timers"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry subscription"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "previous client"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next client"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "key help"),
		),
		Debug: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "event log"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k KeyMap) helpSections() []help.Section {
	return []help.Section{
		{Title: "Home", Bindings: []key.Binding{k.Start, k.Quit}},
		{Title: "Dashboard", Bindings: []key.Binding{k.Up, k.Down, k.Remove, k.Pause, k.Stop, k.Retry}},
		{Title: "Anywhere", Bindings: []key.Binding{k.Help, k.Debug, k.Escape, k.Quit}},
	}
}
