package storage

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/authward/authward/pkg/auth"
)

func newLookupCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_store_lookups_total"},
		[]string{"backend", "outcome"},
	)
}

func TestInstrumentedStore_CountsFinds(t *testing.T) {
	lookups := newLookupCounter()
	s := NewInstrumentedStore(auth.NewMemoryStore(auth.SeedUsers()...), "memory", lookups)
	ctx := context.Background()

	if _, err := s.Find(ctx, "testuser1"); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if _, err := s.Find(ctx, "nobody"); err != auth.ErrUserNotFound {
		t.Fatalf("Find(nobody) error = %v, want ErrUserNotFound", err)
	}

	if got := testutil.ToFloat64(lookups.WithLabelValues("memory", "ok")); got != 1 {
		t.Errorf("ok lookups = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("memory", "user_not_found")); got != 1 {
		t.Errorf("user_not_found lookups = %v, want 1", got)
	}
}

func TestInstrumentedStore_CountsVerifies(t *testing.T) {
	lookups := newLookupCounter()
	s := NewInstrumentedStore(auth.NewMemoryStore(auth.SeedUsers()...), "memory", lookups)
	ctx := context.Background()

	if !s.Verify(ctx, "testuser1", "abc123") {
		t.Fatal("Verify() = false for valid credentials")
	}
	if s.Verify(ctx, "testuser1", "wrong") {
		t.Fatal("Verify() = true for wrong secret")
	}

	if got := testutil.ToFloat64(lookups.WithLabelValues("memory", "ok")); got != 1 {
		t.Errorf("ok lookups = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lookups.WithLabelValues("memory", "denied")); got != 1 {
		t.Errorf("denied lookups = %v, want 1", got)
	}
}
