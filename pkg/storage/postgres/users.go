// Package postgres implements the credential store on PostgreSQL via
// database/sql (lib/pq driver).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/authward/authward/pkg/auth"
)

// Schema for the users table. Ran at startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    username   TEXT PRIMARY KEY,
    secret     TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name  TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (LOWER(email)) WHERE email <> '';
`

// UserStore implements auth.WritableStore backed by PostgreSQL.
type UserStore struct {
	db *sql.DB
}

// NewUserStore wraps an open database handle.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Init creates the schema.
func (s *UserStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create users schema: %w", err)
	}
	return nil
}

// Seed inserts fixture records, skipping usernames that already exist.
func (s *UserStore) Seed(ctx context.Context, records []auth.UserRecord) error {
	for _, rec := range records {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (username, secret, first_name, last_name, email, department)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (username) DO NOTHING
		`, rec.Username, rec.Secret, rec.FirstName, rec.LastName, rec.Email, rec.Department)
		if err != nil {
			return fmt.Errorf("failed to seed user %q: %w", rec.Username, err)
		}
	}
	return nil
}

// Find implements auth.Store. The identity may be a username (exact) or an
// email (case-insensitive).
func (s *UserStore) Find(ctx context.Context, identity string) (*auth.UserRecord, error) {
	rec := &auth.UserRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT username, secret, first_name, last_name, email, department
		FROM users WHERE username = $1 OR LOWER(email) = LOWER($1)
	`, identity).Scan(&rec.Username, &rec.Secret, &rec.FirstName, &rec.LastName, &rec.Email, &rec.Department)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return rec, nil
}

// Verify implements auth.Store. The stored secret never leaves this method.
func (s *UserStore) Verify(ctx context.Context, identity, secret string) bool {
	rec, err := s.Find(ctx, identity)
	if err != nil {
		auth.VerifySecret("", secret)
		return false
	}
	return auth.VerifySecret(rec.Secret, secret)
}

// Create implements auth.WritableStore.
func (s *UserStore) Create(ctx context.Context, rec auth.UserRecord) (*auth.UserRecord, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, secret, first_name, last_name, email, department)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO NOTHING
	`, rec.Username, rec.Secret, rec.FirstName, rec.LastName, rec.Email, rec.Department)
	if err != nil {
		return nil, fmt.Errorf("user insert failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("user insert failed: %w", err)
	}
	if affected == 0 {
		return nil, auth.ErrUserExists
	}
	out := rec
	return &out, nil
}

// List implements auth.WritableStore.
func (s *UserStore) List(ctx context.Context, f auth.Filter) ([]auth.UserRecord, error) {
	query := `SELECT username, secret, first_name, last_name, email, department FROM users`
	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("LOWER(%s) = LOWER($%d)", column, len(args)))
	}
	add("first_name", f.FirstName)
	add("last_name", f.LastName)
	add("email", f.Email)
	add("department", f.Department)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY username"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("user list failed: %w", err)
	}
	defer rows.Close()

	var out []auth.UserRecord
	for rows.Next() {
		var rec auth.UserRecord
		if err := rows.Scan(&rec.Username, &rec.Secret, &rec.FirstName, &rec.LastName, &rec.Email, &rec.Department); err != nil {
			return nil, fmt.Errorf("user scan failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user list failed: %w", err)
	}
	return out, nil
}

// Ping checks connectivity, for readiness probes.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
