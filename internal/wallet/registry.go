package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// Registry keeps the in-memory sessions of browser clients
type Registry struct {
	mu              sync.Mutex
	sessions        map[string]*registryEntry
	supportedChains []int64
}

// NewRegistry creates an empty registry
func NewRegistry(supportedChains []int64) *Registry {
	return &Registry{
		sessions:        make(map[string]*registryEntry),
		supportedChains: supportedChains,
	}
}

// Get returns the session for id, creating a fresh one (with a new id) when
// id is empty or unknown.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok && id != "" {
		e.lastSeen = time.Now()
		return e.session
	}

	s := NewSession(uuid.New().String(), r.supportedChains)
	r.sessions[s.ID] = &registryEntry{session: s, lastSeen: time.Now()}
	return s
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps idle sessions every interval until ctx is done
func (r *Registry) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}
