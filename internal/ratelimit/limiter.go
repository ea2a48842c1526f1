// Package ratelimit admits or rejects requests per client over a trailing
// time window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the trailing window requests are counted over.
const DefaultWindow = time.Minute

// Limiter decides whether a client may make another request.
type Limiter interface {
	Admit(ctx context.Context, clientID string) (bool, error)
}

// SlidingWindow is an in-process sliding-window limiter. Each client keeps the
// timestamps of its admitted requests that are still inside the window.
type SlidingWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	mu     sync.Mutex
	stamps []time.Time
	dead   bool // set by Sweep once the window is dropped from the map
}

// Option customises a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *SlidingWindow) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWindow overrides DefaultWindow.
func WithWindow(window time.Duration) Option {
	return func(s *SlidingWindow) {
		if window > 0 {
			s.window = window
		}
	}
}

// NewSlidingWindow admits at most limit requests per client per window.
// A limit of zero or less disables limiting.
func NewSlidingWindow(limit int, opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		limit:   limit,
		window:  DefaultWindow,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Admit records the request and returns true, or returns false without
// recording when the client already has limit requests in the window.
func (s *SlidingWindow) Admit(_ context.Context, clientID string) (bool, error) {
	if s.limit <= 0 {
		return true, nil
	}

	for {
		cw := s.client(clientID)
		cw.mu.Lock()
		if cw.dead {
			cw.mu.Unlock()
			continue
		}
		now := s.now()
		cw.prune(now, s.window)
		if len(cw.stamps) >= s.limit {
			cw.mu.Unlock()
			return false, nil
		}
		cw.stamps = append(cw.stamps, now)
		cw.mu.Unlock()
		return true, nil
	}
}

// Sweep drops clients with no requests left in the window and returns how
// many were removed.
func (s *SlidingWindow) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, cw := range s.clients {
		cw.mu.Lock()
		cw.prune(now, s.window)
		if len(cw.stamps) == 0 {
			cw.dead = true
			delete(s.clients, id)
			removed++
		}
		cw.mu.Unlock()
	}
	return removed
}

// Len reports how many clients are currently tracked.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *SlidingWindow) client(id string) *clientWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	cw, ok := s.clients[id]
	if !ok {
		cw = &clientWindow{}
		s.clients[id] = cw
	}
	return cw
}

// prune drops timestamps at or beyond the window edge. Stamps are appended in
// admission order, so the expired ones form a prefix.
func (cw *clientWindow) prune(now time.Time, window time.Duration) {
	cut := 0
	for cut < len(cw.stamps) && now.Sub(cw.stamps[cut]) >= window {
		cut++
	}
	if cut > 0 {
		cw.stamps = append(cw.stamps[:0], cw.stamps[cut:]...)
	}
}
