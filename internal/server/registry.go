package server

import (
	"context"
	"sync"
	"time"

	"github.com/guessucla/campusguess/internal/campusguess"
)

// liveSession is a session held in memory. Its mutex serialises every
// action on the session so a guess can't race an advance.
type liveSession struct {
	mu       sync.Mutex
	session  *campusguess.Session
	lastSeen time.Time

	// pending is a finished result the sink has not acknowledged yet.
	pending *campusguess.Result
}

// Registry holds live sessions by ID and evicts the ones nobody touched
// for longer than the idle timeout.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*liveSession
	idle     time.Duration
	now      func() time.Time
	onChange func(n int)
}

func NewRegistry(idle time.Duration, onChange func(n int)) *Registry {
	if onChange == nil {
		onChange = func(int) {}
	}
	return &Registry{
		sessions: make(map[string]*liveSession),
		idle:     idle,
		now:      time.Now,
		onChange: onChange,
	}
}

func (r *Registry) Put(s *campusguess.Session) *liveSession {
	ls := &liveSession{session: s, lastSeen: r.now()}

	r.mu.Lock()
	r.sessions[s.ID] = ls
	n := len(r.sessions)
	r.mu.Unlock()

	r.onChange(n)
	return ls
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*liveSession, bool) {
	r.mu.RLock()
	ls, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	ls.mu.Lock()
	ls.lastSeen = r.now()
	ls.mu.Unlock()
	return ls, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Evict drops sessions idle for longer than the timeout and returns how
// many were dropped. A session holding a result the sink has not accepted
// stays until an advance gets it stored.
func (r *Registry) Evict() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	evicted := 0
	for id, ls := range r.sessions {
		ls.mu.Lock()
		stale := ls.lastSeen.Before(cutoff) && ls.pending == nil
		ls.mu.Unlock()
		if stale {
			delete(r.sessions, id)
			evicted++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if evicted > 0 {
		r.onChange(n)
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Evict()
		}
	}
}
