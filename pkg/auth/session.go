package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL matches the demo the contract was lifted from; production
// deployments override it via configuration.
const DefaultSessionTTL = time.Minute

// SessionManager issues and validates opaque session handles backed by a
// Registry. Handles are random UUIDs, never derived from the identity.
type SessionManager struct {
	store    Store
	registry Registry
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager builds a manager. ttl <= 0 falls back to
// DefaultSessionTTL; now may be nil, defaulting to time.Now.
func NewSessionManager(store Store, registry Registry, ttl time.Duration, now func() time.Time) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SessionManager{store: store, registry: registry, ttl: ttl, now: now}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Login verifies the credentials and registers a fresh session. presented is
// the handle the caller already holds (its cookie), or "" if none: a live
// presented handle is rejected before credentials are even checked, and the
// Registry additionally enforces the per-username invariant server-side so a
// second browser cannot slip in a duplicate.
func (m *SessionManager) Login(ctx context.Context, username, secret, presented string) (*Session, error) {
	if presented != "" {
		existing, err := m.registry.Get(ctx, presented)
		if err != nil {
			return nil, fmt.Errorf("session lookup: %w", err)
		}
		if existing != nil && !existing.Expired(m.now()) {
			return nil, ErrAlreadyLoggedIn
		}
	}

	if !m.store.Verify(ctx, username, secret) {
		return nil, ErrInvalidCredentials
	}
	rec, err := m.store.Find(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	s := Session{
		Handle:   uuid.NewString(),
		Username: rec.Username,
		Expiry:   m.now().Add(m.ttl),
	}
	if err := m.registry.Put(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout removes the session for a handle. Returns ErrNotLoggedIn when the
// handle is not registered.
func (m *SessionManager) Logout(ctx context.Context, handle string) error {
	existing, err := m.registry.Get(ctx, handle)
	if err != nil {
		return fmt.Errorf("session lookup: %w", err)
	}
	if existing == nil {
		return ErrNotLoggedIn
	}
	return m.registry.Delete(ctx, handle)
}

// Validate resolves a handle to its identity. A missing handle yields
// ErrNotAuthenticated; an expired one is deleted and yields ErrExpired, so a
// later validation of the same handle reports ErrNotAuthenticated and the
// session can never resurrect.
func (m *SessionManager) Validate(ctx context.Context, handle string) (*Identity, error) {
	s, err := m.registry.Get(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if s == nil {
		return nil, ErrNotAuthenticated
	}
	if s.Expired(m.now()) {
		if err := m.registry.Delete(ctx, handle); err != nil {
			return nil, fmt.Errorf("expired session delete: %w", err)
		}
		return nil, ErrExpired
	}
	rec, err := m.store.Find(ctx, s.Username)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	id := rec.Identity()
	return &id, nil
}
