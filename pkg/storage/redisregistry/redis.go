// Package redisregistry implements auth.Registry on redis, for deployments
// where session state must survive restarts or be shared between replicas.
package redisregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/authward/authward/pkg/auth"
)

const (
	sessionKeyPrefix = "authward:session:"
	userKeyPrefix    = "authward:user:"
)

// Config holds redis connection settings.
type Config struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// Registry is a redis-backed auth.Registry. Keys carry the session TTL, so
// redis itself garbage-collects expired sessions; the per-username invariant
// is enforced with SETNX on an index key.
type Registry struct {
	client *redis.Client
	now    func() time.Time
}

// New connects to redis and verifies the connection. now may be nil,
// defaulting to time.Now.
func New(cfg Config, now func() time.Time) (*Registry, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if now == nil {
		now = time.Now
	}
	return &Registry{client: client, now: now}, nil
}

// NewFromClient wraps an existing client; tests use this with miniredis.
func NewFromClient(client *redis.Client, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{client: client, now: now}
}

// Put implements auth.Registry. The SETNX on the username index is the atomic
// check-then-insert: the first login claims the slot for the session TTL and
// every competing login sees the claim.
func (r *Registry) Put(ctx context.Context, s auth.Session) error {
	ttl := s.Expiry.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session for %q already expired at put", s.Username)
	}

	claimed, err := r.client.SetNX(ctx, userKeyPrefix+s.Username, s.Handle, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !claimed {
		return auth.ErrAlreadyLoggedIn
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.Handle, data, ttl).Err(); err != nil {
		// Roll back the claim so the failed login is not half applied.
		r.client.Del(ctx, userKeyPrefix+s.Username)
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Get implements auth.Registry. (nil, nil) on a miss, which also covers
// sessions redis already expired.
func (r *Registry) Get(ctx context.Context, handle string) (*auth.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+handle).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var s auth.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		// Corrupt entry; drop it rather than serve it.
		r.client.Del(ctx, sessionKeyPrefix+handle)
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Delete implements auth.Registry, releasing the username claim with the
// handle.
func (r *Registry) Delete(ctx context.Context, handle string) error {
	s, err := r.Get(ctx, handle)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	if err := r.client.Del(ctx, sessionKeyPrefix+handle, userKeyPrefix+s.Username).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// DeleteByUsername implements auth.Registry, resolving the claim to its
// handle first.
func (r *Registry) DeleteByUsername(ctx context.Context, username string) error {
	handle, err := r.client.Get(ctx, userKeyPrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := r.client.Del(ctx, sessionKeyPrefix+handle, userKeyPrefix+username).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Sweep implements auth.Registry. Redis expires keys on its own; the sweep
// only removes username claims whose session key is already gone, which can
// be left behind if a Put was interrupted between the two writes.
func (r *Registry) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		handle, err := r.client.Get(ctx, userKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis get failed: %w", err)
		}
		exists, err := r.client.Exists(ctx, sessionKeyPrefix+handle).Result()
		if err != nil {
			return removed, fmt.Errorf("redis exists failed: %w", err)
		}
		if exists == 0 {
			if err := r.client.Del(ctx, userKey).Err(); err != nil {
				return removed, fmt.Errorf("redis del failed: %w", err)
			}
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan failed: %w", err)
	}
	return removed, nil
}

// Len implements auth.Registry by counting session keys. Redis drops expired
// keys itself, so the count only covers sessions it still holds.
func (r *Registry) Len(ctx context.Context) (int, error) {
	count := 0
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan failed: %w", err)
	}
	return count, nil
}

// Ping checks connectivity, for readiness probes.
func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Registry) Close() error {
	return r.client.Close()
}
