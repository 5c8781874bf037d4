package session

import (
	"context"
	"sync"
	"time"

	"github.com/AdamZagri/aibi-server/logger"
)

// Repository is a concurrent-safe in-memory session store with TTL
// eviction. Locking here covers only map access; callers lock individual
// sessions for request-scoped mutation.
type Repository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewRepository creates an empty store. Sessions idle longer than ttl are
// removed by EvictExpired.
func NewRepository(ttl time.Duration) *Repository {
	return &Repository{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// GetOrCreate returns the session for id, creating it on first use.
// The second result reports whether a new session was created.
func (r *Repository) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Touch()
		return s, false
	}
	s := newSession(id)
	r.sessions[id] = s
	return s, true
}

// Get returns the session for id, or nil when it does not exist.
func (r *Repository) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Len returns the number of live sessions.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Range calls fn for every session. fn must not call back into the
// Repository.
func (r *Repository) Range(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		fn(s)
	}
}

// EvictExpired removes idle sessions and returns how many were dropped.
func (r *Repository) EvictExpired() int {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.ExpiredSince(now, r.ttl) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// StartSweeper evicts expired sessions on a fixed period until ctx is
// cancelled.
func (r *Repository) StartSweeper(ctx context.Context, interval time.Duration, log *logger.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.EvictExpired(); n > 0 {
					log.Info("evicted expired sessions", "count", n, "remaining", r.Len())
				}
			}
		}
	}()
}
