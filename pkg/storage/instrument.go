package storage

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/authward/authward/pkg/auth"
)

// InstrumentedStore is a decorator counting credential-store lookups on a
// Prometheus counter, labelled by backend and outcome. Verify failures count
// as "denied"; Find failures count under the taxonomy code.
type InstrumentedStore struct {
	inner   auth.Store
	backend string
	lookups *prometheus.CounterVec
}

// NewInstrumentedStore wraps a store. backend names the underlying
// implementation (memory, postgres, sqlite) for the metric label.
func NewInstrumentedStore(inner auth.Store, backend string, lookups *prometheus.CounterVec) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, backend: backend, lookups: lookups}
}

// Find implements auth.Store.
func (s *InstrumentedStore) Find(ctx context.Context, identity string) (*auth.UserRecord, error) {
	rec, err := s.inner.Find(ctx, identity)
	outcome := "ok"
	if err != nil {
		outcome = auth.Code(err)
	}
	s.lookups.WithLabelValues(s.backend, outcome).Inc()
	return rec, err
}

// Verify implements auth.Store.
func (s *InstrumentedStore) Verify(ctx context.Context, identity, secret string) bool {
	ok := s.inner.Verify(ctx, identity, secret)
	outcome := "ok"
	if !ok {
		outcome = "denied"
	}
	s.lookups.WithLabelValues(s.backend, outcome).Inc()
	return ok
}
