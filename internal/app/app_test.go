package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mobile-controller/panel/internal/client"
	"github.com/mobile-controller/panel/internal/ingest"
	"github.com/mobile-controller/panel/internal/roster"
)

type fakeCommands struct {
	mu      sync.Mutex
	start   client.StartResult
	err     error
	removed []int
}

func (f *fakeCommands) StartServer() (client.StartResult, error) { return f.start, f.err }
func (f *fakeCommands) StopServer() (string, error)              { return "Server terminated successfully.", nil }
func (f *fakeCommands) RemoveClient(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

type fakeSource struct {
	mu         sync.Mutex
	handlers   map[ingest.Event]func(json.RawMessage)
	unlistened int
	fail       ingest.Event
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[ingest.Event]func(json.RawMessage))}
}

func (s *fakeSource) Listen(_ context.Context, ev ingest.Event, h func(json.RawMessage)) (ingest.Unlisten, error) {
	if ev == s.fail {
		return nil, errors.New("stream refused")
	}
	s.mu.Lock()
	s.handlers[ev] = h
	s.mu.Unlock()
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, ev)
		s.unlistened++
		return nil
	}, nil
}

func (s *fakeSource) emit(ev ingest.Event, payload string) {
	s.mu.Lock()
	h := s.handlers[ev]
	s.mu.Unlock()
	if h != nil {
		h(json.RawMessage(payload))
	}
}

func (s *fakeSource) unlistenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlistened
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func press(t *testing.T, m Model, r rune) (Model, tea.Cmd) {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func newModel(src *fakeSource) (Model, *fakeCommands) {
	cmds := &fakeCommands{start: client.StartResult{
		Status:   client.StatusStarted,
		Message:  "Server initialized successfully.",
		Addr:     "10.0.0.2:7878",
		ServerOS: "linux",
	}}
	m := New(cmds, src, Options{SubscribeTimeout: time.Second, Buffered: true})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model), cmds
}

// dashboard starts the server and completes the subscription.
func dashboard(t *testing.T, src *fakeSource) Model {
	t.Helper()
	m, cmds := newModel(src)
	m, _ = update(t, m, serverStartedMsg{res: cmds.start})
	if m.page != PageDashboard || m.view == nil {
		t.Fatalf("page = %v view = %v after successful start", m.page, m.view)
	}
	m, _ = update(t, m, subscribe(m.view, src, m.opts)())
	if m.view.sub == nil {
		t.Fatal("subscription not recorded")
	}
	return m
}

// deliver emits one notification on the source and feeds it through Update.
func deliver(t *testing.T, m Model, src *fakeSource, ev ingest.Event, payload string) Model {
	t.Helper()
	src.emit(ev, payload)
	msg := waitNotification(m.view)()
	m, cmd := update(t, m, msg)
	if cmd == nil {
		t.Fatal("notification pump not re-armed")
	}
	return m
}

func TestViewBeforeSize(t *testing.T) {
	m := New(&fakeCommands{}, newFakeSource(), Options{})
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q", got)
	}
}

func TestHomeStartKey(t *testing.T) {
	m, cmds := newModel(newFakeSource())
	if !strings.Contains(m.View(), "Welcome to Mobile Controller") {
		t.Fatal("home page missing welcome text")
	}

	m, cmd := press(t, m, 's')
	if cmd == nil {
		t.Fatal("start key produced no command")
	}
	msg, ok := cmd().(serverStartedMsg)
	if !ok || msg.res != cmds.start {
		t.Fatalf("start command returned %#v", msg)
	}
	if _, again := press(t, m, 's'); again != nil {
		t.Error("second start while pending should be ignored")
	}
}

func TestStartFailureStaysHome(t *testing.T) {
	m, _ := newModel(newFakeSource())
	m, cmd := update(t, m, serverStartedMsg{
		res: client.StartResult{Status: client.StatusError, Message: "Unexpected response during server initialization."},
		err: errors.New("POST /api/server/start: 500"),
	})
	if cmd != nil || m.page != PageHome || m.view != nil {
		t.Fatalf("failed start changed page: page=%v view=%v", m.page, m.view)
	}
	if !strings.Contains(m.View(), "Unexpected response during server initialization.") {
		t.Error("failure message not shown")
	}
}

func TestDashboardReconcilesNotifications(t *testing.T) {
	src := newFakeSource()
	m := dashboard(t, src)
	if !strings.Contains(m.View(), "Server running at 10.0.0.2:7878") {
		t.Error("dashboard missing server address")
	}

	m = deliver(t, m, src, ingest.EventClientAdded, `{"id":1,"addr":"10.0.0.7:50000"}`)
	m = deliver(t, m, src, ingest.EventClientAdded, `{"id":2,"addr":"10.0.0.8:50000"}`)
	m = deliver(t, m, src, ingest.EventClientUpdated, `{"id":1,"device_name":"Pixel 8"}`)
	m = deliver(t, m, src, ingest.EventClientRemoved, `{"id":2}`)
	m = deliver(t, m, src, ingest.EventClientUpdated, `{"id":99,"device_name":"ghost"}`)

	if got := m.roster.IDs(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("roster ids = %v, want [1]", got)
	}
	v := m.View()
	if !strings.Contains(v, "Pixel 8") || strings.Contains(v, "ghost") {
		t.Errorf("table does not reflect roster:\n%s", v)
	}

	m, cmd := update(t, m, tickMsg{gen: m.view.gen})
	if cmd == nil {
		t.Fatal("tick not re-armed")
	}
	rec, _ := m.roster.Get(1)
	if rec.Elapsed != (roster.Elapsed{Seconds: 1}) {
		t.Errorf("elapsed = %+v, want 1s", rec.Elapsed)
	}
}

func TestPauseDropsTicks(t *testing.T) {
	src := newFakeSource()
	m := dashboard(t, src)
	m = deliver(t, m, src, ingest.EventClientAdded, `{"id":1,"addr":"a"}`)

	m, _ = press(t, m, 'p')
	m, _ = update(t, m, tickMsg{gen: m.view.gen})
	m, _ = update(t, m, tickMsg{gen: m.view.gen})
	if rec, _ := m.roster.Get(1); rec.Elapsed != (roster.Elapsed{}) {
		t.Errorf("elapsed advanced while paused: %+v", rec.Elapsed)
	}
	if !strings.Contains(m.View(), "timers paused") {
		t.Error("status bar should show paused")
	}

	m, _ = press(t, m, 'p')
	m, _ = update(t, m, tickMsg{gen: m.view.gen})
	if rec, _ := m.roster.Get(1); rec.Elapsed != (roster.Elapsed{Seconds: 1}) {
		t.Errorf("elapsed after resume = %+v, want 1s", rec.Elapsed)
	}
}

func TestStaleViewMessagesIgnored(t *testing.T) {
	src := newFakeSource()
	m := dashboard(t, src)
	old := m.view.gen
	m = deliver(t, m, src, ingest.EventClientAdded, `{"id":1,"addr":"a"}`)

	m, _ = update(t, m, serverStoppedMsg{message: "Server terminated successfully."})
	if m.page != PageHome || m.view != nil {
		t.Fatal("stop did not return home")
	}
	if got := src.unlistenCount(); got != 3 {
		t.Errorf("unlistened %d streams on stop, want 3", got)
	}

	m, cmd := update(t, m, tickMsg{gen: old})
	if cmd != nil {
		t.Error("stale tick re-armed")
	}
	m, _ = update(t, m, notificationMsg{gen: old, n: ingest.Added{ID: 5}})
	if m.roster.Len() != 0 {
		t.Errorf("stale notification applied: %v", m.roster.IDs())
	}
}

func TestLateSubscriptionDisposed(t *testing.T) {
	src := newFakeSource()
	m, cmds := newModel(src)
	m, _ = update(t, m, serverStartedMsg{res: cmds.start})
	pending := subscribe(m.view, src, m.opts)

	m, _ = update(t, m, serverStoppedMsg{message: "stopped"})
	msg := pending()
	sm, ok := msg.(subscribedMsg)
	if !ok {
		t.Fatalf("late subscribe returned %#v", msg)
	}
	m, _ = update(t, m, sm)
	if !sm.sub.Disposed() {
		t.Error("subscription completing after the view closed was not disposed")
	}
	if got := src.unlistenCount(); got != 3 {
		t.Errorf("unlistened = %d, want 3", got)
	}
}

func TestSubscribeFailureAndRetry(t *testing.T) {
	src := newFakeSource()
	src.fail = ingest.EventClientUpdated
	m, cmds := newModel(src)
	m, _ = update(t, m, serverStartedMsg{res: cmds.start})

	m, _ = update(t, m, subscribe(m.view, src, m.opts)())
	if m.view != nil {
		t.Fatal("view still mounted after failed subscribe")
	}
	if got := src.unlistenCount(); got != 2 {
		t.Errorf("unlistened = %d, want the 2 streams that succeeded", got)
	}
	if v := m.View(); !strings.Contains(v, "Press r to retry") || !strings.Contains(v, "stream refused") {
		t.Errorf("failure not shown:\n%s", v)
	}

	src.fail = ""
	m, cmd := press(t, m, 'r')
	if cmd == nil || m.view == nil {
		t.Fatal("retry did not remount the view")
	}
	m, _ = update(t, m, subscribe(m.view, src, m.opts)())
	if m.view.sub == nil || m.subErr != nil {
		t.Error("retry did not subscribe")
	}
}

func TestRemoveSelectedClient(t *testing.T) {
	src := newFakeSource()
	m := dashboard(t, src)
	m = deliver(t, m, src, ingest.EventClientAdded, `{"id":7,"addr":"a"}`)

	m, cmd := press(t, m, 'd')
	if cmd == nil {
		t.Fatal("remove key produced no command")
	}
	msg := cmd().(clientRemovedMsg)
	if msg.id != 7 || msg.err != nil {
		t.Errorf("remove result = %+v", msg)
	}
	m, _ = update(t, m, msg)

	// The roster changes only when the removal notification arrives.
	if m.roster.Len() != 1 {
		t.Error("roster changed before client-removed arrived")
	}
	m = deliver(t, m, src, ingest.EventClientRemoved, `{"id":7}`)
	if m.roster.Len() != 0 {
		t.Error("client-removed not applied")
	}
}

func TestQuitDisposesSubscription(t *testing.T) {
	src := newFakeSource()
	m := dashboard(t, src)
	sub := m.view.sub

	m, cmd := press(t, m, 'q')
	if cmd == nil {
		t.Fatal("quit produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit command is not tea.Quit")
	}
	if !sub.Disposed() {
		t.Error("subscription not disposed on quit")
	}
	m.Close()
}

func TestOverlays(t *testing.T) {
	m, _ := newModel(newFakeSource())
	m, _ = update(t, m, ConnStateMsg{Connected: true})

	m, _ = press(t, m, 'l')
	if m.overlay != OverlayDebug || !strings.Contains(m.View(), "bridge connected") {
		t.Errorf("event log overlay not shown:\n%s", m.View())
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("esc did not close overlay")
	}

	m, _ = press(t, m, '?')
	if m.overlay != OverlayHelp {
		t.Error("help overlay not opened")
	}
	m, cmd := press(t, m, 's')
	if cmd != nil {
		t.Error("keys behind an overlay should be ignored")
	}
}
