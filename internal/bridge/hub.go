// Package bridge exposes the device server to the panel: commands over HTTP
// and lifecycle notifications over WebSocket.
package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

var (
	// ErrTooManyConnections is returned by Serve when the hub is full.
	ErrTooManyConnections = errors.New("too many websocket connections")
	errBackpressure       = errors.New("backpressure")
	errClosed             = errors.New("connection closed")
)

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
	events map[string]bool
}

func (c *conn) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errBackpressure
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *conn) listens(event string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.events[event]
}

func (c *conn) setListening(event string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.events[event] = true
	} else {
		delete(c.events, event)
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub tracks panel connections and fans lifecycle events out to the
// connections that listen to them.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*conn
	maxConns int
}

// NewHub creates a hub. maxConns <= 0 means unlimited.
func NewHub(maxConns int) *Hub {
	return &Hub{
		conns:    make(map[string]*conn),
		maxConns: maxConns,
	}
}

// Serve attaches ws and reads its frames until the connection closes.
func (h *Hub) Serve(ws *websocket.Conn) error {
	c, err := h.attach(ws)
	if err != nil {
		return err
	}
	defer h.detach(c)
	h.readPump(c)
	return nil
}

func (h *Hub) attach(ws *websocket.Conn) (*conn, error) {
	h.mu.Lock()
	if h.maxConns > 0 && len(h.conns) >= h.maxConns {
		h.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := &conn{
		id:     uuid.NewString(),
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		events: make(map[string]bool),
	}
	h.conns[c.id] = c
	total := len(h.conns)
	h.mu.Unlock()

	go c.writePump()
	log.Info().Str("module", "hub").Str("conn", c.id).Int("total", total).Msg("panel connected")
	return c, nil
}

func (h *Hub) detach(c *conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	delete(h.conns, c.id)
	h.mu.Unlock()
	if ok {
		c.close()
		log.Info().Str("module", "hub").Str("conn", c.id).Msg("panel disconnected")
	}
}

func (h *Hub) readPump(c *conn) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPingHandler(func(data string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return c.ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Str("module", "hub").Str("conn", c.id).Err(err).Msg("bad frame")
			continue
		}
		h.handleFrame(c, f)
	}
}

func (h *Hub) handleFrame(c *conn, f Frame) {
	switch f.Type {
	case FrameListen, FrameUnlisten:
		if !knownEvents[f.Event] {
			h.reply(c, Frame{Type: FrameError, ID: f.ID, Message: "unknown event " + f.Event})
			return
		}
		c.setListening(f.Event, f.Type == FrameListen)
		log.Debug().Str("module", "hub").Str("conn", c.id).Str("type", string(f.Type)).Str("event", f.Event).Msg("stream")
		h.reply(c, Frame{Type: FrameAck, ID: f.ID})
	default:
		h.reply(c, Frame{Type: FrameError, ID: f.ID, Message: "unsupported frame " + string(f.Type)})
	}
}

func (h *Hub) reply(c *conn, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	if err := c.trySend(data); errors.Is(err, errBackpressure) {
		h.drop(c)
	}
}

// Publish sends event to every connection listening to it. Connections that
// cannot keep up are disconnected.
func (h *Hub) Publish(event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Str("module", "hub").Err(err).Msg("marshal payload")
		return
	}
	data, err := json.Marshal(Frame{Type: FrameEvent, Event: event, Payload: body})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c.listens(event) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.trySend(data); errors.Is(err, errBackpressure) {
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *conn) {
	log.Warn().Str("module", "hub").Str("conn", c.id).Msg("panel too slow, disconnecting")
	h.detach(c)
}

// ConnCount reports the number of attached connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every panel.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*conn)
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}
