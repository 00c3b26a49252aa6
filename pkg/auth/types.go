package auth

import "time"

// UserRecord is a stored user. Secret is the opaquely-comparable credential;
// only Store.Verify may inspect it and it is never serialized.
type UserRecord struct {
	Username   string `json:"username"`
	Secret     string `json:"-"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// Identity is a UserRecord minus the secret, as returned to callers after a
// successful login or validation.
type Identity struct {
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// Identity strips the secret from a record.
func (r *UserRecord) Identity() Identity {
	return Identity{
		Username:   r.Username,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		Department: r.Department,
	}
}

// Session is one live session-cookie artifact.
type Session struct {
	Handle   string    `json:"handle"`
	Username string    `json:"username"`
	Expiry   time.Time `json:"expiry"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.Expiry)
}

// SeedUsers returns the fixture accounts the service boots with when no SQL
// store is configured. Runtime registration goes through a WritableStore.
func SeedUsers() []UserRecord {
	return []UserRecord{
		{Username: "testuser1", Secret: "abc123", FirstName: "Alex", LastName: "Cabassar", Email: "testuser1@company.com", Department: "HR"},
		{Username: "testuser2", Secret: "123abc", FirstName: "Bretta", LastName: "Holmes", Email: "testuser2@company.com", Department: "Dev"},
		{Username: "testuser3", Secret: "def456", FirstName: "Charles", LastName: "Leclare", Email: "testuser3@company.com", Department: "Sales"},
		{Username: "testuser4", Secret: "456def", FirstName: "David", LastName: "Vowie", Email: "testuser4@company.com", Department: "HR"},
		{Username: "testuser5", Secret: "abc456", FirstName: "Emil", LastName: "Mueller", Email: "testuser5@company.com", Department: "Engineer"},
		{Username: "testuser6", Secret: "456abc", FirstName: "Pavel", LastName: "Hayashi", Email: "testuser6@company.com", Department: "Dev"},
	}
}
