package auth

import (
	"context"
	"crypto/subtle"
	"sort"
	"strings"
	"sync"
)

// Store answers identity lookups and credential checks. Implementations must
// be safe for concurrent readers; writes (if any) are serialized per identity
// by the implementation.
type Store interface {
	// Find resolves an identity string (username or email) to a record.
	// Returns ErrUserNotFound when no record matches.
	Find(ctx context.Context, identity string) (*UserRecord, error)

	// Verify reports whether the presented secret matches the stored one for
	// the identity. Unknown identities verify as false. The comparison is
	// constant-time so a hashed-credential implementation can be substituted
	// without changing the contract.
	Verify(ctx context.Context, identity, secret string) bool
}

// Filter narrows List results. Empty fields match everything; non-empty
// fields compare case-insensitively.
type Filter struct {
	FirstName  string
	LastName   string
	Email      string
	Department string
}

// Match reports whether a record satisfies the filter.
func (f Filter) Match(r *UserRecord) bool {
	if f.FirstName != "" && !strings.EqualFold(f.FirstName, r.FirstName) {
		return false
	}
	if f.LastName != "" && !strings.EqualFold(f.LastName, r.LastName) {
		return false
	}
	if f.Email != "" && !strings.EqualFold(f.Email, r.Email) {
		return false
	}
	if f.Department != "" && !strings.EqualFold(f.Department, r.Department) {
		return false
	}
	return true
}

// WritableStore extends Store with user administration used by the HTTP
// registration and listing endpoints.
type WritableStore interface {
	Store

	// Create inserts a new record. Returns ErrUserExists when the username is
	// taken.
	Create(ctx context.Context, rec UserRecord) (*UserRecord, error)

	// List returns records matching the filter, ordered by username.
	List(ctx context.Context, f Filter) ([]UserRecord, error)
}

// VerifySecret is the shared constant-time credential comparison.
func VerifySecret(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// MemoryStore is the in-process Store used for the demo fixture set and in
// tests. Username is the primary key; email is a secondary unique index.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*UserRecord
	byEmail map[string]string
}

// NewMemoryStore builds a store seeded with the given records. Later records
// with duplicate usernames overwrite earlier ones.
func NewMemoryStore(records ...UserRecord) *MemoryStore {
	s := &MemoryStore{
		users:   make(map[string]*UserRecord, len(records)),
		byEmail: make(map[string]string, len(records)),
	}
	for i := range records {
		rec := records[i]
		s.users[rec.Username] = &rec
		if rec.Email != "" {
			s.byEmail[strings.ToLower(rec.Email)] = rec.Username
		}
	}
	return s
}

// Find implements Store. Usernames are case-sensitive; emails are not.
func (s *MemoryStore) Find(ctx context.Context, identity string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.users[identity]; ok {
		cp := *rec
		return &cp, nil
	}
	if username, ok := s.byEmail[strings.ToLower(identity)]; ok {
		cp := *s.users[username]
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

// Verify implements Store.
func (s *MemoryStore) Verify(ctx context.Context, identity, secret string) bool {
	rec, err := s.Find(ctx, identity)
	if err != nil {
		// Burn a comparison anyway so unknown identities cost the same.
		VerifySecret("", secret)
		return false
	}
	return VerifySecret(rec.Secret, secret)
}

// Create implements WritableStore.
func (s *MemoryStore) Create(ctx context.Context, rec UserRecord) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.Username]; ok {
		return nil, ErrUserExists
	}
	cp := rec
	s.users[rec.Username] = &cp
	if rec.Email != "" {
		s.byEmail[strings.ToLower(rec.Email)] = rec.Username
	}
	out := cp
	return &out, nil
}

// List implements WritableStore.
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		if f.Match(rec) {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
