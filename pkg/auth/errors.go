package auth

import "errors"

// Error taxonomy for the authority. Lower-level decode, signature, SQL and
// redis errors are remapped onto these before they reach a caller.
var (
	// ErrInvalidCredentials means no matching identity+secret pair exists.
	ErrInvalidCredentials = errors.New("mismatch identity and secret")

	// ErrAlreadyLoggedIn means a login flag or session is already active for
	// the username.
	ErrAlreadyLoggedIn = errors.New("already logged in")

	// ErrNotLoggedIn means a logout was requested but no session or flag is
	// active.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNotAuthenticated means no active artifact resolves to an identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrExpired means the artifact was structurally valid but past its expiry.
	ErrExpired = errors.New("session or token expired")

	// ErrInvalidToken covers signature, structure, audience and
	// subject-resolution failures. The cases are deliberately not
	// distinguished so that callers cannot enumerate valid subjects.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUserNotFound is returned by credential stores when no record matches
	// the identity. Issuers and validators translate it; it never reaches an
	// HTTP response for a token path.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned by writable stores on a duplicate username.
	ErrUserExists = errors.New("username already exists")
)

// Code returns the stable wire code for a taxonomy error, or "internal" for
// anything outside the taxonomy.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAlreadyLoggedIn):
		return "already_logged_in"
	case errors.Is(err, ErrNotLoggedIn):
		return "not_logged_in"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserExists):
		return "user_exists"
	default:
		return "internal"
	}
}
