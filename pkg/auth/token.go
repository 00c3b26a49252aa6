package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Bearer covers the single-token login; the
// identity/access split covers the two-token flow.
const (
	DefaultBearerTTL   = 15 * time.Minute
	DefaultIdentityTTL = 5 * time.Minute
	DefaultAccessTTL   = 60 * time.Minute
)

// signingMethod is fixed; tokens signed with anything else are rejected.
var signingMethod = jwt.SigningMethodHS256

// TokenOptions configures the stateless token mode.
type TokenOptions struct {
	Issuer      string
	Audience    string
	BearerTTL   time.Duration
	IdentityTTL time.Duration
	AccessTTL   time.Duration

	// Scopes embedded into access tokens. Authorization data, not identity.
	Scopes []string
}

func (o TokenOptions) withDefaults() TokenOptions {
	if o.BearerTTL <= 0 {
		o.BearerTTL = DefaultBearerTTL
	}
	if o.IdentityTTL <= 0 {
		o.IdentityTTL = DefaultIdentityTTL
	}
	if o.AccessTTL <= 0 {
		o.AccessTTL = DefaultAccessTTL
	}
	return o
}

// IdentityClaims is the payload of identity (auth) tokens.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AccessClaims is the payload of access tokens. No audience is set at
// issuance, so validation does not require one.
type AccessClaims struct {
	jwt.RegisteredClaims
	Scope []string `json:"scope"`
}

// IssuedToken is a signed artifact plus its timestamps, for callers that
// surface expiry to clients.
type IssuedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is the two-token login result: an identity token for the client
// to prove who it is, and an access token carrying scopes.
type TokenPair struct {
	AuthToken   IssuedToken
	AccessToken IssuedToken
}

// TokenService mints and validates HS256 tokens. It holds no per-token state:
// concurrent calls are independent and no locking is needed. The signing key
// comes from a provider function so it can be rotated without rebuilding the
// service.
type TokenService struct {
	store  Store
	secret func() []byte
	opts   TokenOptions
	now    func() time.Time
}

// NewTokenService builds a service. secret must never be nil; now may be nil,
// defaulting to time.Now.
func NewTokenService(store Store, secret func() []byte, opts TokenOptions, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{store: store, secret: secret, opts: opts.withDefaults(), now: now}
}

// IssueBearer performs the single-token login: verify credentials, return one
// identity-shaped token with the bearer TTL.
func (t *TokenService) IssueBearer(ctx context.Context, identity, secret string) (*IssuedToken, error) {
	rec, err := t.login(ctx, identity, secret)
	if err != nil {
		return nil, err
	}
	return t.signIdentity(rec, t.opts.BearerTTL)
}

// IssuePair performs the two-token login: a short-lived identity token with
// the audience claim, and a longer-lived access token carrying scopes but no
// audience, both signed with the same key.
func (t *TokenService) IssuePair(ctx context.Context, identity, secret string) (*TokenPair, error) {
	rec, err := t.login(ctx, identity, secret)
	if err != nil {
		return nil, err
	}
	authToken, err := t.signIdentity(rec, t.opts.IdentityTTL)
	if err != nil {
		return nil, err
	}
	accessToken, err := t.signAccess(rec, t.opts.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AuthToken: *authToken, AccessToken: *accessToken}, nil
}

// ValidateIdentity checks signature, expiry, issuer and audience, then
// resolves the subject against the store. Every structural failure collapses
// to ErrInvalidToken; only a good signature with a spent exp yields
// ErrExpired. An unresolvable subject is indistinguishable from a bad
// signature by design.
func (t *TokenService) ValidateIdentity(ctx context.Context, token string) (*Identity, *IdentityClaims, error) {
	claims := &IdentityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, t.keyFunc,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(t.opts.Issuer),
		jwt.WithAudience(t.opts.Audience),
		jwt.WithTimeFunc(t.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, nil, mapTokenError(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, nil, ErrInvalidToken
	}
	rec, err := t.store.Find(ctx, claims.Subject)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	id := rec.Identity()
	return &id, claims, nil
}

// ValidateAccess checks an access token and returns its claims, including the
// embedded scope list. Identity tokens are rejected even though they share the
// signing key: they carry an audience and no scope claim.
func (t *TokenService) ValidateAccess(ctx context.Context, token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, t.keyFunc,
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(t.opts.Issuer),
		jwt.WithTimeFunc(t.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, mapTokenError(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	// Identity tokens carry an audience and access tokens never do; a token
	// with one is the wrong artifact here no matter how valid its signature.
	if len(claims.Audience) != 0 || claims.Scope == nil {
		return nil, ErrInvalidToken
	}
	if _, err := t.store.Find(ctx, claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenService) login(ctx context.Context, identity, secret string) (*UserRecord, error) {
	if !t.store.Verify(ctx, identity, secret) {
		return nil, ErrInvalidCredentials
	}
	rec, err := t.store.Find(ctx, identity)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return rec, nil
}

func (t *TokenService) signIdentity(rec *UserRecord, ttl time.Duration) (*IssuedToken, error) {
	issuedAt := t.now()
	expiresAt := issuedAt.Add(ttl)
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.opts.Issuer,
			Subject:   rec.Username,
			Audience:  jwt.ClaimStrings{t.opts.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: rec.Email,
		Name:  rec.FirstName,
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret())
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &IssuedToken{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

func (t *TokenService) signAccess(rec *UserRecord, ttl time.Duration) (*IssuedToken, error) {
	issuedAt := t.now()
	expiresAt := issuedAt.Add(ttl)
	// The scope claim is always present, even when empty: ValidateAccess
	// treats its absence as proof of the wrong artifact kind.
	scopes := make([]string, len(t.opts.Scopes))
	copy(scopes, t.opts.Scopes)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.opts.Issuer,
			Subject:   rec.Username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: scopes,
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret())
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &IssuedToken{Token: signed, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

func (t *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	return t.secret(), nil
}

// mapTokenError collapses library errors onto the taxonomy. Expiry is the
// only failure callers may distinguish.
func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpired
	}
	return ErrInvalidToken
}
