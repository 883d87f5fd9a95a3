package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mobile-controller/panel/internal/ingest"
	"github.com/rs/zerolog/log"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

var (
	// ErrNotConnected is returned when no bridge connection is available.
	ErrNotConnected = errors.New("not connected")
	// ErrRejected is returned when the bridge refuses a listen request.
	ErrRejected = errors.New("request rejected")
)

type handlerFunc func(json.RawMessage)

// WSClient manages the WebSocket connection to the bridge and implements
// ingest.Source on top of it.
type WSClient struct {
	url     string
	token   string
	onState func(connected bool)

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises all conn writes
	conn     *websocket.Conn
	ready    chan struct{} // closed while a connection is up
	nextID   uint64
	pending  map[uint64]chan error
	handlers map[ingest.Event]map[uint64]handlerFunc
}

var _ ingest.Source = (*WSClient)(nil)

// NewWSClient creates a client for the given WebSocket URL. onState, if not
// nil, is called from the connection goroutine whenever the link goes up or
// down.
func NewWSClient(url, token string, onState func(connected bool)) *WSClient {
	return &WSClient{
		url:      url,
		token:    token,
		onState:  onState,
		ready:    make(chan struct{}),
		pending:  make(map[uint64]chan error),
		handlers: make(map[ingest.Event]map[uint64]handlerFunc),
	}
}

// Run keeps a connection open until ctx is cancelled, reconnecting with
// exponential backoff. Streams with registered handlers are listened to again
// on every new connection.
func (c *WSClient) Run(ctx context.Context) {
	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			log.Warn().Err(err).Str("module", "client.ws").Dur("retry_in", delay).Msg("dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		pingCtx, pingCancel := context.WithCancel(ctx)
		c.attach(conn)
		go c.pingLoop(pingCtx, conn)
		c.relisten()
		c.notify(true)
		log.Info().Str("module", "client.ws").Str("url", c.url).Msg("connected")

		err = c.readLoop(ctx, conn)
		pingCancel()
		c.detach(conn)
		c.notify(false)
		log.Info().Err(err).Str("module", "client.ws").Msg("disconnected")
	}
}

// Connected reports whether a connection is currently up.
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Listen registers handler for event and asks the bridge to start sending
// it. It waits for a connection if none is up yet, and returns once the
// bridge has acknowledged the stream or ctx expires.
func (c *WSClient) Listen(ctx context.Context, event ingest.Event, handler func(json.RawMessage)) (ingest.Unlisten, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]handlerFunc)
	}
	c.handlers[event][id] = handler
	c.mu.Unlock()

	if err := c.request(ctx, Frame{Type: FrameListen, ID: id, Event: string(event)}); err != nil {
		c.removeHandler(event, id)
		return nil, err
	}

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			if !c.removeHandler(event, id) {
				return
			}
			err = c.unlisten(event)
		})
		return err
	}, nil
}

// removeHandler drops one handler and reports whether it was the last one
// for the event.
func (c *WSClient) removeHandler(event ingest.Event, id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := c.handlers[event]
	delete(hs, id)
	if len(hs) == 0 {
		delete(c.handlers, event)
		return true
	}
	return false
}

func (c *WSClient) unlisten(event ingest.Event) error {
	c.mu.Lock()
	conn := c.conn
	c.nextID++
	id := c.nextID
	c.mu.Unlock()
	if conn == nil {
		// The bridge forgets listeners with the connection.
		return nil
	}
	return c.write(conn, Frame{Type: FrameUnlisten, ID: id, Event: string(event)})
}

// request sends a frame and waits for the matching ack or error.
func (c *WSClient) request(ctx context.Context, f Frame) error {
	conn, err := c.awaitConn(ctx)
	if err != nil {
		return err
	}

	reply := make(chan error, 1)
	c.mu.Lock()
	c.pending[f.ID] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	if err := c.write(conn, f); err != nil {
		return fmt.Errorf("%s %s: %w", f.Type, f.Event, err)
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", f.Type, f.Event, ctx.Err())
	}
}

func (c *WSClient) awaitConn(ctx context.Context) (*websocket.Conn, error) {
	for {
		c.mu.Lock()
		conn, ready := c.conn, c.ready
		c.mu.Unlock()
		if conn != nil {
			return conn, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, ctx.Err())
		}
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	return conn, err
}

func (c *WSClient) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	close(c.ready)
	c.mu.Unlock()
}

func (c *WSClient) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.ready = make(chan struct{})
	}
	pending := c.pending
	c.pending = make(map[uint64]chan error)
	c.mu.Unlock()

	conn.Close()
	for _, reply := range pending {
		select {
		case reply <- ErrNotConnected:
		default:
		}
	}
}

// relisten re-issues listen for every stream that still has handlers. Acks
// for these frames have no waiter and are discarded.
func (c *WSClient) relisten() {
	c.mu.Lock()
	conn := c.conn
	var frames []Frame
	for event := range c.handlers {
		c.nextID++
		frames = append(frames, Frame{Type: FrameListen, ID: c.nextID, Event: string(event)})
	}
	c.mu.Unlock()

	for _, f := range frames {
		if err := c.write(conn, f); err != nil {
			log.Warn().Err(err).Str("module", "client.ws").Str("event", f.Event).Msg("relisten failed")
			return
		}
	}
}

func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Debug().Err(err).Str("module", "client.ws").Msg("skipping undecodable frame")
			continue
		}
		c.dispatch(f)
	}
}

func (c *WSClient) dispatch(f Frame) {
	switch f.Type {
	case FrameAck, FrameError:
		c.mu.Lock()
		reply, ok := c.pending[f.ID]
		c.mu.Unlock()
		if !ok {
			return
		}
		var err error
		if f.Type == FrameError {
			err = fmt.Errorf("%w: %s", ErrRejected, f.Message)
		}
		select {
		case reply <- err:
		default:
		}
	case FrameEvent:
		c.mu.Lock()
		hs := make([]handlerFunc, 0, len(c.handlers[ingest.Event(f.Event)]))
		for _, h := range c.handlers[ingest.Event(f.Event)] {
			hs = append(hs, h)
		}
		c.mu.Unlock()
		for _, h := range hs {
			h(f.Payload)
		}
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or a write fails.
func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *WSClient) write(conn *websocket.Conn, f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(f)
}

func (c *WSClient) notify(connected bool) {
	if c.onState != nil {
		c.onState(connected)
	}
}
