// Package auth implements the credential and session authority: a credential
// store that answers "does this secret match this identity", an issuer that
// mints authentication artifacts (a login flag, an opaque session handle, or a
// signed JWT), and a validator that resolves a presented artifact back to an
// identity or a specific failure.
//
// Three issuance modes are supported:
//
//   - Basic-credential mode (BasicAuthenticator): credentials are re-checked on
//     every call and the only server-side state is a per-username login flag.
//   - Session-cookie mode (SessionManager): an opaque random handle with a TTL,
//     tracked in a Registry. At most one live session per username.
//   - Token mode (TokenService): stateless HS256 JWTs. Identity tokens carry
//     iss/sub/aud/iat/exp plus email and name; access tokens carry sub, exp and
//     a scope list.
//
// All failures map onto a small fixed taxonomy (ErrInvalidCredentials,
// ErrAlreadyLoggedIn, ErrNotLoggedIn, ErrNotAuthenticated, ErrExpired,
// ErrInvalidToken) so callers never depend on lower-level library errors.
package auth
