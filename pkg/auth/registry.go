package auth

import (
	"context"
	"sync"
	"time"
)

// Registry is the shared store mapping session handles to their metadata. It
// is the only mutable state the session-cookie mode has, so implementations
// must make Put's check-then-insert and Delete's check-then-delete atomic.
//
// Get returns (nil, nil) on a miss; only infrastructure failures (a lost
// redis connection, a cancelled context) surface as errors.
type Registry interface {
	// Put registers a session, enforcing at most one live session per
	// username. Returns ErrAlreadyLoggedIn when an unexpired session for the
	// same username exists; an expired leftover is replaced.
	Put(ctx context.Context, s Session) error

	// Get looks up a handle. (nil, nil) when absent.
	Get(ctx context.Context, handle string) (*Session, error)

	// Delete removes a handle. Deleting an absent handle is not an error.
	Delete(ctx context.Context, handle string) error

	// DeleteByUsername removes whatever session the username holds, for
	// administrative force-logout. Absent usernames are not an error.
	DeleteByUsername(ctx context.Context, username string) error

	// Sweep drops sessions whose expiry precedes now and returns how many
	// were removed. Expiry is still discovered lazily on validation; Sweep
	// only keeps the registry from accumulating garbage.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len reports how many sessions the registry holds, live or not. Gauges
	// sample it; nothing else depends on it.
	Len(ctx context.Context) (int, error)
}

// MemoryRegistry is the process-local Registry. A single mutex covers both
// indexes so the per-username invariant holds under concurrent logins.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]Session
	byUser   map[string]string // username -> handle
	now      func() time.Time
}

// NewMemoryRegistry builds an empty registry. now may be nil, defaulting to
// time.Now; tests inject a fake clock.
func NewMemoryRegistry(now func() time.Time) *MemoryRegistry {
	if now == nil {
		now = time.Now
	}
	return &MemoryRegistry{
		sessions: make(map[string]Session),
		byUser:   make(map[string]string),
		now:      now,
	}
}

// Put implements Registry.
func (r *MemoryRegistry) Put(ctx context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handle, ok := r.byUser[s.Username]; ok {
		existing := r.sessions[handle]
		if !existing.Expired(r.now()) {
			return ErrAlreadyLoggedIn
		}
		delete(r.sessions, handle)
	}
	r.sessions[s.Handle] = s
	r.byUser[s.Username] = s.Handle
	return nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(ctx context.Context, handle string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

// Delete implements Registry.
func (r *MemoryRegistry) Delete(ctx context.Context, handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[handle]
	if !ok {
		return nil
	}
	delete(r.sessions, handle)
	if r.byUser[s.Username] == handle {
		delete(r.byUser, s.Username)
	}
	return nil
}

// DeleteByUsername implements Registry.
func (r *MemoryRegistry) DeleteByUsername(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.byUser[username]
	if !ok {
		return nil
	}
	delete(r.sessions, handle)
	delete(r.byUser, username)
	return nil
}

// Sweep implements Registry.
func (r *MemoryRegistry) Sweep(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for handle, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, handle)
			if r.byUser[s.Username] == handle {
				delete(r.byUser, s.Username)
			}
			removed++
		}
	}
	return removed, nil
}

// Len implements Registry.
func (r *MemoryRegistry) Len(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), nil
}
