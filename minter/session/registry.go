package session

import (
	"errors"
	"sync"
	"time"
)

// ErrTooManySessions is returned when the registry is full and every view has a mint in flight
var ErrTooManySessions = errors.New("too many open page views")

// Registry maps page-view IDs to their controllers and sweeps views that went idle
type Registry struct {
	newController func() *Controller
	idleTTL       time.Duration
	maxSessions   int

	mu       sync.Mutex
	sessions map[string]*Controller

	sweeper *sweeper
}

type sweeper struct {
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithMaxSessions caps the number of open page views. Zero means no cap.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

// NewRegistry creates a registry. factory builds the controller of a new page view.
func NewRegistry(factory func() *Controller, idleTTL time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		newController: factory,
		idleTTL:       idleTTL,
		sessions:      make(map[string]*Controller),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the controller for id, creating it on first use, and marks it active.
// When the registry is full the least recently active idle view is closed to make room;
// ErrTooManySessions is returned if every view has a mint in flight.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()

	// touched under r.mu so a concurrent Sweep cannot close a view being handed out
	if c, ok := r.sessions[id]; ok {
		c.touch()
		r.mu.Unlock()
		return c, nil
	}

	var evicted *Controller
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		evictedID, ok := r.oldestIdle()
		if !ok {
			open := len(r.sessions)
			r.mu.Unlock()
			log.Warn().Int("sessions", open).Msg("Session limit reached")
			return nil, ErrTooManySessions
		}
		evicted = r.sessions[evictedID]
		delete(r.sessions, evictedID)
		log.Debug().Str("session", evictedID).Msg("Session evicted")
	}

	c := r.newController()
	r.sessions[id] = c
	open := len(r.sessions)
	r.mu.Unlock()

	if evicted != nil {
		evicted.Close()
	}
	log.Debug().Str("session", id).Int("sessions", open).Msg("Session opened")
	return c, nil
}

// oldestIdle finds the least recently active view without a mint in flight. r.mu must be held.
func (r *Registry) oldestIdle() (string, bool) {
	var (
		oldestID string
		oldestAt time.Time
		found    bool
	)
	for id, c := range r.sessions {
		if c.Loading() {
			continue
		}
		at := c.LastActive()
		if !found || at.Before(oldestAt) {
			oldestID, oldestAt, found = id, at, true
		}
	}
	return oldestID, found
}

// Lookup returns the controller for id without creating one
func (r *Registry) Lookup(id string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	return c, ok
}

// Len returns the number of open page views
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes views idle since before now-idleTTL and returns how many it closed.
// A view with a mint in flight is never swept.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var expired []*Controller
	for id, c := range r.sessions {
		if c.Loading() || c.LastActive().After(cutoff) {
			continue
		}
		expired = append(expired, c)
		delete(r.sessions, id)
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	if len(expired) > 0 {
		log.Info().Int("closed", len(expired)).Int("remaining", remaining).Msg("Swept idle sessions")
	}
	return len(expired)
}

// Start runs Sweep every interval until Stop
func (r *Registry) Start(interval time.Duration) {
	r.mu.Lock()
	if r.sweeper != nil {
		r.mu.Unlock()
		return
	}
	s := &sweeper{
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	r.sweeper = s
	r.mu.Unlock()

	go func() {
		defer close(s.stoppedCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// Stop ends the sweeper and closes every page view
func (r *Registry) Stop() {
	r.mu.Lock()
	s := r.sweeper
	r.sweeper = nil
	sessions := r.sessions
	r.sessions = make(map[string]*Controller)
	r.mu.Unlock()

	if s != nil {
		close(s.stopCh)
		<-s.stoppedCh
	}
	for _, c := range sessions {
		c.Close()
	}
}
