// Package app is the panel's root Bubble Tea model. Bubble Tea's event loop
// is the single queue through which every notification, tick and command
// result passes, so the roster is only ever touched from Update.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/mobile-controller/panel/internal/client"
	"github.com/mobile-controller/panel/internal/ingest"
	"github.com/mobile-controller/panel/internal/roster"
	"github.com/mobile-controller/panel/internal/theme"
	"github.com/mobile-controller/panel/internal/views/clients"
	"github.com/mobile-controller/panel/internal/views/debug"
	"github.com/mobile-controller/panel/internal/views/help"
	"github.com/mobile-controller/panel/internal/views/status"
)

const (
	queueSize      = 256
	tickInterval   = time.Second
	defaultTimeout = 5 * time.Second
)

// Commands is the narrow command boundary to the device server.
type Commands interface {
	StartServer() (client.StartResult, error)
	StopServer() (string, error)
	RemoveClient(id int) error
}

type Options struct {
	// SubscribeTimeout bounds how long establishing the three lifecycle
	// streams may take.
	SubscribeTimeout time.Duration
	// Buffered holds notifications until every stream is live.
	Buffered bool
}

type Page int

const (
	PageHome Page = iota
	PageDashboard
)

type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayDebug
)

// ConnStateMsg reports whether the bridge connection is up.
type ConnStateMsg struct {
	Connected bool
}

type (
	serverStartedMsg struct {
		res client.StartResult
		err error
	}
	serverStoppedMsg struct {
		message string
		err     error
	}
	clientRemovedMsg struct {
		id  int
		err error
	}
	subscribedMsg struct {
		gen int
		sub *ingest.Subscription
	}
	subscribeFailedMsg struct {
		gen int
		err error
	}
	notificationMsg struct {
		gen int
		n   ingest.Notification
	}
	tickMsg struct {
		gen int
	}
)

// clientView is the lifetime of one visit to the dashboard. Messages tagged
// with an older generation are dropped.
type clientView struct {
	gen    int
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan ingest.Notification
	sub    *ingest.Subscription
}

// deliver is the ingest sink. It blocks while the queue is full and gives
// up once the view is gone.
func (v *clientView) deliver(n ingest.Notification) {
	select {
	case v.queue <- n:
	case <-v.ctx.Done():
	}
}

// Model is the root Bubble Tea model.
type Model struct {
	cmds   Commands
	source ingest.Source
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	page      Page
	overlay   Overlay
	notice    string
	noticeErr bool
	starting  bool

	gen    int
	view   *clientView
	roster roster.Roster
	paused bool
	subErr error

	statusBar status.Model
	table     clients.Model
	log       debug.Log
	help      *help.Model
}

func New(cmds Commands, source ingest.Source, opts Options) Model {
	if opts.SubscribeTimeout <= 0 {
		opts.SubscribeTimeout = defaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	keys := DefaultKeyMap()
	return Model{
		cmds:      cmds,
		source:    source,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		keys:      keys,
		statusBar: status.New(),
		table:     clients.New(),
		log:       debug.New(),
		help:      help.New(keys.helpSections()...),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Close releases the dashboard subscription, if any. It is safe to call
// after the program has exited.
func (m *Model) Close() {
	m.unmount()
	m.cancel()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.table.SetSize(msg.Width-2, msg.Height-9)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ConnStateMsg:
		m.statusBar.Connected = msg.Connected
		if msg.Connected {
			m.log.Addf(debug.KindWS, "bridge connected")
		} else {
			m.log.Addf(debug.KindWS, "bridge disconnected")
		}
		return m, nil

	case serverStartedMsg:
		return m.onServerStarted(msg)

	case serverStoppedMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("Stop failed: %v", msg.err), true)
			m.log.Addf(debug.KindError, "stop server: %v", msg.err)
			return m, nil
		}
		m.unmount()
		m.page = PageHome
		m.roster = roster.Roster{}
		m.syncRoster()
		m.statusBar.Running = false
		m.statusBar.Addr = ""
		m.statusBar.ServerOS = ""
		m.setNotice(msg.message, false)
		m.log.Addf(debug.KindCmd, "server stopped: %s", msg.message)
		return m, nil

	case clientRemovedMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("Could not disconnect client %d: %v", msg.id, msg.err), true)
			m.log.Addf(debug.KindError, "remove client %d: %v", msg.id, msg.err)
			return m, nil
		}
		m.log.Addf(debug.KindCmd, "disconnect requested for client %d", msg.id)
		return m, nil

	case subscribedMsg:
		if m.view == nil || msg.gen != m.view.gen {
			if err := msg.sub.Dispose(); err != nil {
				log.Warn().Str("module", "app").Err(err).Msg("dispose stale subscription")
			}
			return m, nil
		}
		m.view.sub = msg.sub
		m.log.Addf(debug.KindWS, "lifecycle streams live")
		return m, nil

	case subscribeFailedMsg:
		if m.view == nil || msg.gen != m.view.gen {
			return m, nil
		}
		log.Error().Str("module", "app").Err(msg.err).Msg("subscribe")
		m.log.Addf(debug.KindError, "subscribe: %v", msg.err)
		m.subErr = msg.err
		m.unmount()
		return m, nil

	case notificationMsg:
		if m.view == nil || msg.gen != m.view.gen {
			return m, nil
		}
		m.roster = roster.Apply(m.roster, msg.n)
		m.syncRoster()
		m.log.Addf(debug.KindEvent, "%s", describe(msg.n))
		return m, waitNotification(m.view)

	case tickMsg:
		if m.view == nil || msg.gen != m.view.gen {
			return m, nil
		}
		if !m.paused {
			m.roster = roster.ApplyTick(m.roster)
			m.syncRoster()
		}
		return m, tick(msg.gen)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) && msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Help) && m.overlay == OverlayHelp:
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Debug) && m.overlay == OverlayDebug:
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.log.Scroll(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.log.Scroll(-1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil
	}

	if m.page == PageHome {
		if key.Matches(msg, m.keys.Start) && !m.starting {
			m.starting = true
			m.setNotice("Starting server...", false)
			m.log.Addf(debug.KindCmd, "start server")
			return m, startServer(m.cmds)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Stop):
		m.log.Addf(debug.KindCmd, "stop server")
		return m, stopServer(m.cmds)
	case key.Matches(msg, m.keys.Remove):
		id, ok := m.table.SelectedID()
		if !ok {
			return m, nil
		}
		return m, removeClient(m.cmds, id)
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		m.statusBar.Paused = m.paused
		return m, nil
	case key.Matches(msg, m.keys.Retry):
		if m.view != nil {
			return m, nil
		}
		m.log.Addf(debug.KindCmd, "retry subscription")
		return m, m.mount()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) onServerStarted(msg serverStartedMsg) (tea.Model, tea.Cmd) {
	m.starting = false
	if msg.err != nil || !msg.res.Succeeded() {
		text := msg.res.Message
		if text == "" && msg.err != nil {
			text = msg.err.Error()
		}
		m.setNotice(text, true)
		m.log.Addf(debug.KindError, "start server: %s", text)
		return m, nil
	}

	m.statusBar.Running = true
	m.statusBar.Addr = msg.res.Addr
	m.statusBar.ServerOS = msg.res.ServerOS
	m.page = PageDashboard
	m.setNotice(msg.res.Message, false)
	m.log.Addf(debug.KindCmd, "server running at %s", msg.res.Addr)
	log.Info().Str("module", "app").Str("addr", msg.res.Addr).Msg("server started")
	return m, m.mount()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.unmount()
	m.cancel()
	return m, tea.Quit
}

// mount opens a fresh dashboard view: empty roster, subscription in flight,
// notification pump and tick armed.
func (m *Model) mount() tea.Cmd {
	m.unmount()
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	v := &clientView{
		gen:    m.gen,
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan ingest.Notification, queueSize),
	}
	m.view = v
	m.subErr = nil
	m.paused = false
	m.statusBar.Paused = false
	m.roster = roster.Roster{}
	m.syncRoster()
	return tea.Batch(subscribe(v, m.source, m.opts), waitNotification(v), tick(v.gen))
}

// unmount ends the current view. Its queued notifications and ticks become
// no-ops and its streams are unlistened.
func (m *Model) unmount() {
	v := m.view
	if v == nil {
		return
	}
	m.view = nil
	v.cancel()
	if v.sub == nil {
		return
	}
	if err := v.sub.Dispose(); err != nil {
		log.Warn().Str("module", "app").Err(err).Msg("dispose subscription")
		m.log.Addf(debug.KindError, "unsubscribe: %v", err)
	}
}

func (m *Model) syncRoster() {
	m.table.SetRecords(m.roster.Records())
	m.statusBar.Clients = m.roster.Len()
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func subscribe(v *clientView, src ingest.Source, opts Options) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(v.ctx, opts.SubscribeTimeout)
		defer cancel()

		var o []ingest.Option
		if !opts.Buffered {
			o = append(o, ingest.WithoutBuffering())
		}
		sub, err := ingest.Subscribe(ctx, src, v.deliver, o...)
		if err != nil {
			return subscribeFailedMsg{gen: v.gen, err: err}
		}
		return subscribedMsg{gen: v.gen, sub: sub}
	}
}

func waitNotification(v *clientView) tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-v.queue:
			return notificationMsg{gen: v.gen, n: n}
		case <-v.ctx.Done():
			return nil
		}
	}
}

func tick(gen int) tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

func startServer(c Commands) tea.Cmd {
	return func() tea.Msg {
		res, err := c.StartServer()
		return serverStartedMsg{res: res, err: err}
	}
}

func stopServer(c Commands) tea.Cmd {
	return func() tea.Msg {
		msg, err := c.StopServer()
		return serverStoppedMsg{message: msg, err: err}
	}
}

func removeClient(c Commands, id int) tea.Cmd {
	return func() tea.Msg {
		return clientRemovedMsg{id: id, err: c.RemoveClient(id)}
	}
}

func describe(n ingest.Notification) string {
	switch n := n.(type) {
	case ingest.Added:
		return fmt.Sprintf("%s id=%d addr=%s name=%s", ingest.EventClientAdded, n.ID, n.Address, nameOrDash(n.DisplayName))
	case ingest.Removed:
		return fmt.Sprintf("%s id=%d", ingest.EventClientRemoved, n.ID)
	case ingest.Updated:
		return fmt.Sprintf("%s id=%d name=%s", ingest.EventClientUpdated, n.ID, nameOrDash(n.DisplayName))
	default:
		return fmt.Sprintf("%T", n)
	}
}

func nameOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// View renders the panel.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayHelp:
		body = m.help.View(m.width)
	case OverlayDebug:
		body = m.log.View(m.width, m.height-4)
	default:
		if m.page == PageHome {
			body = m.homeView()
		} else {
			body = m.dashboardView()
		}
	}

	sections := []string{m.statusBar.View(), body}
	if m.notice != "" {
		style := theme.StyleSuccess
		if m.noticeErr {
			style = theme.StyleError
		}
		sections = append(sections, style.Render("  "+m.notice))
	}
	sections = append(sections, theme.StyleDimmed.Render("  "+m.footer()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) homeView() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		theme.StyleTitle.Render("  Welcome to Mobile Controller"),
		"",
		theme.StyleDimmed.Render("  Press s to start the server."),
		"",
	)
}

func (m Model) dashboardView() string {
	lines := []string{
		theme.StyleHeader.Render("  Server running at " + m.statusBar.Addr),
		m.table.View(),
	}
	if m.subErr != nil {
		lines = append(lines,
			theme.StyleError.Render("  Live updates unavailable: "+m.subErr.Error()),
			theme.StyleDimmed.Render("  Press r to retry."))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) footer() string {
	if m.page == PageHome {
		return "s:start  ?:help  l:log  q:quit"
	}
	return "j/k:select  d:disconnect  p:pause  x:stop  ?:help  l:log  q:quit"
}
