package auth

import (
	"context"
	"sync"
)

// BasicAuthenticator implements the credential-per-request mode. There is no
// artifact: the "session" is a per-username boolean flag, so there is no
// validator step and credentials are re-checked on every call.
//
// Logout takes a bare username because HTTP Basic gives the server no way to
// end a session from the client side. Unless the route carrying it is itself
// authenticated, anyone can log another user out; callers are expected to
// guard it.
type BasicAuthenticator struct {
	store Store

	mu     sync.Mutex
	active map[string]bool
}

// NewBasicAuthenticator builds an authenticator over the given store.
func NewBasicAuthenticator(store Store) *BasicAuthenticator {
	return &BasicAuthenticator{
		store:  store,
		active: make(map[string]bool),
	}
}

// Login verifies the credential pair and flips the login flag. A mismatched
// secret returns ErrInvalidCredentials and leaves the flag untouched; a second
// login with valid credentials returns ErrAlreadyLoggedIn and keeps the flag
// set.
func (a *BasicAuthenticator) Login(ctx context.Context, username, secret string) (*Identity, error) {
	if !a.store.Verify(ctx, username, secret) {
		return nil, ErrInvalidCredentials
	}
	rec, err := a.store.Find(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[rec.Username] {
		return nil, ErrAlreadyLoggedIn
	}
	a.active[rec.Username] = true
	id := rec.Identity()
	return &id, nil
}

// Logout clears the login flag. Returns ErrNotLoggedIn when the flag is not
// set, and ErrUserNotFound for unknown usernames.
func (a *BasicAuthenticator) Logout(ctx context.Context, username string) (*Identity, error) {
	rec, err := a.store.Find(ctx, username)
	if err != nil {
		return nil, ErrUserNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active[rec.Username] {
		return nil, ErrNotLoggedIn
	}
	delete(a.active, rec.Username)
	id := rec.Identity()
	return &id, nil
}

// LoggedIn reports the flag for a username.
func (a *BasicAuthenticator) LoggedIn(username string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[username]
}
