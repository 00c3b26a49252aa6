package middleware

import (
	"net/http"

	"github.com/authward/authward/pkg/auth"
	"github.com/authward/authward/pkg/contextkeys"
	"github.com/authward/authward/pkg/httputil"
)

// SessionCookieName is the cookie the session flow sets and reads.
const SessionCookieName = "session_id"

// JWTCookieName is the cookie the token-login flow sets and reads.
const JWTCookieName = "jwt"

// SessionAuth resolves the session cookie and attaches the identity to the
// request context. Requests without a resolvable session get a 401 carrying
// the taxonomy code.
func SessionAuth(sessions *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle := httputil.CookieValue(r, SessionCookieName)
			if handle == "" {
				httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
				return
			}
			id, err := sessions.Validate(r.Context(), handle)
			if err != nil {
				httputil.WriteAuthError(w, err, 0)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithIdentity(r.Context(), *id)))
		})
	}
}

// TokenAuth resolves an identity token, either from an Authorization: Bearer
// header or from the jwt cookie, and attaches the identity.
func TokenAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := httputil.BearerToken(r)
			if !ok {
				raw = httputil.CookieValue(r, JWTCookieName)
			}
			if raw == "" {
				httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
				return
			}
			id, _, err := tokens.ValidateIdentity(r.Context(), raw)
			if err != nil {
				httputil.WriteAuthError(w, err, 0)
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithIdentity(r.Context(), *id)))
		})
	}
}

// AccessTokenAuth resolves a bearer access token and attaches both the
// identity and the validated scope list.
func AccessTokenAuth(tokens *auth.TokenService, store auth.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := httputil.BearerToken(r)
			if !ok {
				httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
				return
			}
			claims, err := tokens.ValidateAccess(r.Context(), raw)
			if err != nil {
				httputil.WriteAuthError(w, err, 0)
				return
			}
			rec, err := store.Find(r.Context(), claims.Subject)
			if err != nil {
				httputil.WriteAuthError(w, auth.ErrInvalidToken, 0)
				return
			}
			ctx := contextkeys.WithIdentity(r.Context(), rec.Identity())
			ctx = contextkeys.WithScopes(ctx, claims.Scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope rejects requests whose validated scope list lacks the given
// scope. It must run after AccessTokenAuth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes, ok := contextkeys.ScopesFrom(r.Context())
			if !ok {
				httputil.WriteAuthError(w, auth.ErrNotAuthenticated, 0)
				return
			}
			for _, s := range scopes {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteError(w, http.StatusForbidden, "forbidden", "missing required scope: "+scope)
		})
	}
}
