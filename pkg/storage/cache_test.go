package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/authward/authward/pkg/auth"
)

// countingStore wraps a MemoryStore and counts Find calls.
type countingStore struct {
	inner *auth.MemoryStore

	mu    sync.Mutex
	finds int
}

func (s *countingStore) Find(ctx context.Context, identity string) (*auth.UserRecord, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.inner.Find(ctx, identity)
}

func (s *countingStore) Verify(ctx context.Context, identity, secret string) bool {
	return s.inner.Verify(ctx, identity, secret)
}

func (s *countingStore) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

func TestCachedStore_ReadThrough(t *testing.T) {
	counting := &countingStore{inner: auth.NewMemoryStore(auth.SeedUsers()...)}
	cached := NewCachedStore(counting, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec, err := cached.Find(ctx, "testuser1")
		if err != nil {
			t.Fatalf("Find() error = %v", err)
		}
		if rec.Username != "testuser1" {
			t.Fatalf("Find() = %+v", rec)
		}
	}
	if got := counting.findCount(); got != 1 {
		t.Errorf("inner Find calls = %d, want 1", got)
	}
}

func TestCachedStore_NegativeLookupsNotCached(t *testing.T) {
	counting := &countingStore{inner: auth.NewMemoryStore(auth.SeedUsers()...)}
	cached := NewCachedStore(counting, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.Find(ctx, "ghost"); err != auth.ErrUserNotFound {
			t.Fatalf("Find(ghost) error = %v, want ErrUserNotFound", err)
		}
	}
	if got := counting.findCount(); got != 3 {
		t.Errorf("inner Find calls = %d, want 3 (misses must not be cached)", got)
	}
}

func TestCachedStore_Verify(t *testing.T) {
	cached := NewCachedStore(auth.NewMemoryStore(auth.SeedUsers()...), 16, time.Minute)
	ctx := context.Background()

	if !cached.Verify(ctx, "testuser1", "abc123") {
		t.Error("Verify(correct) = false")
	}
	if cached.Verify(ctx, "testuser1", "wrong") {
		t.Error("Verify(wrong) = true")
	}
	if cached.Verify(ctx, "ghost", "abc123") {
		t.Error("Verify(unknown) = true")
	}
}

func TestCachedStore_Invalidate(t *testing.T) {
	counting := &countingStore{inner: auth.NewMemoryStore(auth.SeedUsers()...)}
	cached := NewCachedStore(counting, 16, time.Minute)
	ctx := context.Background()

	if _, err := cached.Find(ctx, "testuser1"); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	cached.Invalidate("testuser1")
	if _, err := cached.Find(ctx, "testuser1"); err != nil {
		t.Fatalf("Find() after invalidate error = %v", err)
	}
	if got := counting.findCount(); got != 2 {
		t.Errorf("inner Find calls = %d, want 2", got)
	}
}
