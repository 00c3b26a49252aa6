package storage

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/authward/authward/pkg/auth"
)

// DefaultCacheSize bounds the record cache when no size is configured.
const DefaultCacheSize = 1024

// CachedStore is a read-through decorator for a credential store. Token
// validation resolves the subject on every request, which on a SQL-backed
// store turns each validation into a query; the expirable LRU keeps hot
// records in memory for a short TTL instead.
//
// Only positive lookups are cached, and secrets are compared against the
// cached record with the same constant-time check the stores use.
type CachedStore struct {
	inner auth.Store
	cache *expirable.LRU[string, auth.UserRecord]
}

// NewCachedStore wraps a store. size <= 0 falls back to DefaultCacheSize;
// ttl must be positive and should be well below any credential-change
// propagation deadline.
func NewCachedStore(inner auth.Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedStore{
		inner: inner,
		cache: expirable.NewLRU[string, auth.UserRecord](size, nil, ttl),
	}
}

// Find implements auth.Store.
func (c *CachedStore) Find(ctx context.Context, identity string) (*auth.UserRecord, error) {
	if rec, ok := c.cache.Get(identity); ok {
		cp := rec
		return &cp, nil
	}
	rec, err := c.inner.Find(ctx, identity)
	if err != nil {
		return nil, err
	}
	c.cache.Add(identity, *rec)
	cp := *rec
	return &cp, nil
}

// Verify implements auth.Store.
func (c *CachedStore) Verify(ctx context.Context, identity, secret string) bool {
	rec, err := c.Find(ctx, identity)
	if err != nil {
		auth.VerifySecret("", secret)
		return false
	}
	return auth.VerifySecret(rec.Secret, secret)
}

// Invalidate drops a cached identity, for callers that mutate the underlying
// store.
func (c *CachedStore) Invalidate(identity string) {
	c.cache.Remove(identity)
}
