// Package sqlite implements the credential store on SQLite for local and
// single-node deployments. The caller imports the mattn/go-sqlite3 driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/authward/authward/pkg/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    username   TEXT PRIMARY KEY,
    secret     TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name  TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL DEFAULT ''
);
`

// UserStore implements auth.WritableStore backed by SQLite.
type UserStore struct {
	db *sql.DB
}

// Open opens (or creates) the database file and ensures the schema.
func Open(ctx context.Context, path string) (*UserStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create users schema: %w", err)
	}
	return &UserStore{db: db}, nil
}

// Find implements auth.Store.
func (s *UserStore) Find(ctx context.Context, identity string) (*auth.UserRecord, error) {
	rec := &auth.UserRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT username, secret, first_name, last_name, email, department
		FROM users WHERE username = ? OR LOWER(email) = LOWER(?)
	`, identity, identity).Scan(&rec.Username, &rec.Secret, &rec.FirstName, &rec.LastName, &rec.Email, &rec.Department)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return rec, nil
}

// Verify implements auth.Store.
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
		INSERT OR IGNORE INTO users (username, secret, first_name, last_name, email, department)
		VALUES (?, ?, ?, ?, ?, ?)
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
		conds = append(conds, fmt.Sprintf("LOWER(%s) = LOWER(?)", column))
		args = append(args, value)
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

// Seed inserts fixture records, skipping existing usernames.
func (s *UserStore) Seed(ctx context.Context, records []auth.UserRecord) error {
	for _, rec := range records {
		if _, err := s.Create(ctx, rec); err != nil && !errors.Is(err, auth.ErrUserExists) {
			return err
		}
	}
	return nil
}

// Ping checks the handle, for readiness probes.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *UserStore) Close() error {
	return s.db.Close()
}
