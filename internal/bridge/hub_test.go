package bridge

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// serverConn returns the server side of a fresh WebSocket connection. The
// client side is returned so tests can keep it open or close it.
func serverConn(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-connCh:
		return server, client
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
		return nil, nil
	}
}

func TestAttachMaxConnections(t *testing.T) {
	hub := NewHub(2)
	for i := 0; i < 2; i++ {
		ws, _ := serverConn(t)
		if _, err := hub.attach(ws); err != nil {
			t.Fatalf("attach %d: %v", i, err)
		}
	}

	ws, _ := serverConn(t)
	if _, err := hub.attach(ws); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("third attach error = %v, want ErrTooManyConnections", err)
	}
	if hub.ConnCount() != 2 {
		t.Errorf("ConnCount = %d, want 2", hub.ConnCount())
	}
}

func TestDetachFreesSlot(t *testing.T) {
	hub := NewHub(1)
	ws, _ := serverConn(t)
	c, err := hub.attach(ws)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	hub.detach(c)
	hub.detach(c)

	ws2, _ := serverConn(t)
	if _, err := hub.attach(ws2); err != nil {
		t.Fatalf("attach after detach: %v", err)
	}
}

func TestSlowConnectionDropped(t *testing.T) {
	hub := NewHub(0)
	ws, _ := serverConn(t)
	c := &conn{
		id:     "slow",
		ws:     ws,
		send:   make(chan []byte),
		events: map[string]bool{EventClientAdded: true},
	}
	hub.conns[c.id] = c

	// No writePump drains send, so the first publish hits backpressure.
	hub.Publish(EventClientAdded, ClientAdded{ID: 1})
	if hub.ConnCount() != 0 {
		t.Fatalf("ConnCount = %d, want slow connection dropped", hub.ConnCount())
	}
	if err := c.trySend([]byte("x")); !errors.Is(err, errClosed) {
		t.Errorf("trySend after drop = %v, want errClosed", err)
	}
}

func TestPublishSkipsNonListeners(t *testing.T) {
	hub := NewHub(0)
	ws, _ := serverConn(t)
	c := &conn{
		id:     "idle",
		ws:     ws,
		send:   make(chan []byte, 1),
		events: map[string]bool{},
	}
	hub.conns[c.id] = c

	hub.Publish(EventClientAdded, ClientAdded{ID: 1})
	select {
	case msg := <-c.send:
		t.Errorf("non-listener received %s", msg)
	default:
	}
}

func TestCloseDisconnectsAll(t *testing.T) {
	hub := NewHub(0)
	for i := 0; i < 3; i++ {
		ws, _ := serverConn(t)
		hub.attach(ws)
	}
	hub.Close()
	if hub.ConnCount() != 0 {
		t.Errorf("ConnCount after Close = %d", hub.ConnCount())
	}
}
