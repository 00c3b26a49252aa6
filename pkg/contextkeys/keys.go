// Package contextkeys defines the typed context keys shared between the HTTP
// middleware and the handlers, plus small helpers so callers never touch the
// keys directly.
package contextkeys

import (
	"context"

	"github.com/authward/authward/pkg/auth"
)

// Key is the private type for context keys to avoid collisions.
type Key string

const (
	// IdentityKey carries the authenticated auth.Identity.
	IdentityKey Key = "identity"

	// ScopesKey carries the scope list of a validated access token.
	ScopesKey Key = "scopes"

	// RequestIDKey carries the per-request correlation ID.
	RequestIDKey Key = "request_id"
)

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFrom extracts the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(auth.Identity)
	return id, ok
}

// WithScopes returns a context carrying the validated scope list.
func WithScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, ScopesKey, scopes)
}

// ScopesFrom extracts the validated scope list, if any.
func ScopesFrom(ctx context.Context) ([]string, bool) {
	scopes, ok := ctx.Value(ScopesKey).([]string)
	return scopes, ok
}

// WithRequestID returns a context carrying the request correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFrom extracts the request correlation ID, or "" when absent.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
