package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Unlisten stops delivery on one stream.
type Unlisten func() error

// Source is an asynchronous push channel carrying named streams. Listen
// returns once the remote side has acknowledged the stream; the handler may
// be invoked from any goroutine, including before Listen returns.
type Source interface {
	Listen(ctx context.Context, event Event, handler func(payload json.RawMessage)) (Unlisten, error)
}

// Sink receives decoded notifications. Calls are never concurrent.
type Sink func(Notification)

// Option configures Subscribe.
type Option func(*Subscription)

// WithoutBuffering delivers notifications as soon as their own stream is
// acknowledged instead of holding them until all three streams are live.
func WithoutBuffering() Option {
	return func(s *Subscription) { s.buffered = false }
}

// Subscription is the handle returned by Subscribe. Dispose must run on
// every exit path of the owner.
type Subscription struct {
	sink     Sink
	buffered bool

	deliverMu sync.Mutex // serialises sink calls and the replay of pending

	mu       sync.Mutex
	live     bool
	disposed bool
	pending  []Notification
	unlisten map[Event]Unlisten
}

// Subscribe listens to the added, removed and updated streams concurrently
// and forwards every decoded notification to sink.
//
// Notifications that arrive on an acknowledged stream while the others are
// still pending are queued and replayed in arrival order once all three are
// live. Anything the server published before a stream was acknowledged is
// lost. If any stream cannot be established the others are torn down and
// the error is returned.
func Subscribe(ctx context.Context, src Source, sink Sink, opts ...Option) (*Subscription, error) {
	s := &Subscription{
		sink:     sink,
		buffered: true,
		unlisten: make(map[Event]Unlisten, len(Events)),
	}
	for _, opt := range opts {
		opt(s)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ev := range Events {
		g.Go(func() error {
			u, err := src.Listen(gctx, ev, func(payload json.RawMessage) {
				s.handle(ev, payload)
			})
			if err != nil {
				return fmt.Errorf("listen %s: %w", ev, err)
			}
			s.mu.Lock()
			s.unlisten[ev] = u
			s.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if derr := s.Dispose(); derr != nil {
			log.Warn().Err(derr).Str("module", "ingest").Msg("teardown after failed subscribe")
		}
		return nil, err
	}

	s.goLive()
	log.Debug().Str("module", "ingest").Msg("lifecycle streams live")
	return s, nil
}

// Dispose unlistens every stream. It is safe to call more than once; after
// the first call handlers silently drop whatever is still delivered.
func (s *Subscription) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.pending = nil
	unlisten := s.unlisten
	s.unlisten = nil
	s.mu.Unlock()

	var errs []error
	for _, ev := range Events {
		u, ok := unlisten[ev]
		if !ok || u == nil {
			continue
		}
		if err := u(); err != nil {
			errs = append(errs, fmt.Errorf("unlisten %s: %w", ev, err))
		}
	}
	return errors.Join(errs...)
}

// Disposed reports whether Dispose has been called.
func (s *Subscription) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Subscription) handle(ev Event, payload json.RawMessage) {
	n, err := Decode(ev, payload)
	if err != nil {
		log.Warn().Err(err).Str("module", "ingest").Str("event", string(ev)).Msg("dropping payload")
		return
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if s.buffered && !s.live {
		s.pending = append(s.pending, n)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.sink(n)
}

func (s *Subscription) goLive() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.live = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, n := range pending {
		if s.Disposed() {
			return
		}
		s.sink(n)
	}
}
