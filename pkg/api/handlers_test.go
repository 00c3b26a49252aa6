package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/authward/authward/pkg/auth"
	"github.com/authward/authward/pkg/observability"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testServer struct {
	router  *mux.Router
	clock   *fakeClock
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := auth.NewMemoryStore(auth.SeedUsers()...)
	sessions := auth.NewSessionManager(store, auth.NewMemoryRegistry(clock.Now), time.Minute, clock.Now)
	tokens := auth.NewTokenService(store, func() []byte { return []byte("test-key") }, auth.TokenOptions{
		Issuer:   "authward",
		Audience: "authward-clients",
		Scopes:   []string{"items", "auth"},
	}, clock.Now)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handlers := NewHandlers(store, store, auth.NewBasicAuthenticator(store), sessions, tokens, logger, metrics)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return &testServer{router: router, clock: clock, metrics: metrics}
}

func (s *testServer) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	return rec
}

func formRequest(path string, values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func loginForm(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not an error envelope: %v (%s)", err, rec.Body.String())
	}
	return body.Code
}

func TestBasicLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	// Wrong secret.
	r := httptest.NewRequest(http.MethodGet, "/user/login/", nil)
	r.SetBasicAuth("testuser1", "wrong")
	rec := srv.do(r)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec) != "invalid_credentials" {
		t.Errorf("wrong secret: %d %s", rec.Code, rec.Body.String())
	}

	// Successful login.
	r = httptest.NewRequest(http.MethodGet, "/user/login/", nil)
	r.SetBasicAuth("testuser1", "abc123")
	rec = srv.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}

	// Second login with valid credentials is rejected.
	r = httptest.NewRequest(http.MethodGet, "/user/login/", nil)
	r.SetBasicAuth("testuser1", "abc123")
	rec = srv.do(r)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "already_logged_in" {
		t.Errorf("double login: %d %s", rec.Code, rec.Body.String())
	}

	// Logout, then logout again.
	rec = srv.do(formRequest("/user/logout/?username=testuser1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("logout: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(formRequest("/user/logout/?username=testuser1", nil))
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "not_logged_in" {
		t.Errorf("second logout: %d %s", rec.Code, rec.Body.String())
	}

	// Missing header challenges.
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/user/login/", nil))
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("missing header: %d", rec.Code)
	}
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session_id" {
			return c
		}
	}
	return nil
}

func TestSessionLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(formRequest("/oauth/login", loginForm("testuser2", "123abc")))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie not HttpOnly")
	}

	// A second login for the same user is rejected server-side even without
	// presenting the cookie.
	rec = srv.do(formRequest("/oauth/login", loginForm("testuser2", "123abc")))
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "already_logged_in" {
		t.Errorf("duplicate login: %d %s", rec.Code, rec.Body.String())
	}

	// Logout clears the cookie and frees the slot.
	r := formRequest("/oauth/logout/", nil)
	r.AddCookie(cookie)
	rec = srv.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body.String())
	}
	if cleared := sessionCookie(rec); cleared == nil || cleared.MaxAge != -1 {
		t.Error("logout did not clear the cookie")
	}

	rec = srv.do(formRequest("/oauth/login", loginForm("testuser2", "123abc")))
	if rec.Code != http.StatusOK {
		t.Errorf("re-login after logout: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSessionGetUser(t *testing.T) {
	srv := newTestServer(t)

	// Without a cookie.
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/oauth/get_user/", nil))
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec) != "not_authenticated" {
		t.Errorf("get_user without cookie: %d %s", rec.Code, rec.Body.String())
	}

	rec = srv.do(formRequest("/oauth/login", loginForm("testuser6", "456abc")))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(rec)

	r := httptest.NewRequest(http.MethodGet, "/oauth/get_user/", nil)
	r.AddCookie(cookie)
	rec = srv.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("get_user: %d %s", rec.Code, rec.Body.String())
	}
	var envelope BasicResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil || envelope.Count != 1 {
		t.Fatalf("get_user envelope: %v (%s)", err, rec.Body.String())
	}

	// An expired session reads as expired, not missing.
	srv.clock.Advance(61 * time.Second)
	r = httptest.NewRequest(http.MethodGet, "/oauth/get_user/", nil)
	r.AddCookie(cookie)
	rec = srv.do(r)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec) != "expired" {
		t.Errorf("get_user after expiry: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSessionLogout_NoCookie(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(formRequest("/oauth/logout/", nil))
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "not_logged_in" {
		t.Errorf("logout without cookie: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSessionGaugeTracksLogins(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(formRequest("/oauth/login", loginForm("testuser2", "123abc")))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	if got := testutil.ToFloat64(srv.metrics.ActiveSessions); got != 1 {
		t.Errorf("active sessions after login = %v, want 1", got)
	}

	r := formRequest("/oauth/logout/", nil)
	r.AddCookie(sessionCookie(rec))
	if rec = srv.do(r); rec.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body.String())
	}
	if got := testutil.ToFloat64(srv.metrics.ActiveSessions); got != 0 {
		t.Errorf("active sessions after logout = %v, want 0", got)
	}
}

func TestSessionExpiryFreesSlot(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(formRequest("/oauth/login", loginForm("testuser3", "def456")))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}

	srv.clock.Advance(61 * time.Second)

	rec = srv.do(formRequest("/oauth/login", loginForm("testuser3", "def456")))
	if rec.Code != http.StatusOK {
		t.Errorf("login after expiry: %d %s", rec.Code, rec.Body.String())
	}
}

func TestJWTLoginAndGetUser(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(formRequest("/oauth/jwt/login/", loginForm("testuser1", "abc123")))
	if rec.Code != http.StatusOK {
		t.Fatalf("jwt login: %d %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil || tok.AccessToken == "" {
		t.Fatalf("token response: %v (%s)", err, rec.Body.String())
	}

	var jwtCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "jwt" {
			jwtCookie = c
		}
	}
	if jwtCookie == nil || !jwtCookie.HttpOnly {
		t.Fatal("jwt cookie missing or not HttpOnly")
	}

	// Resolve via cookie.
	r := httptest.NewRequest(http.MethodGet, "/oauth/jwt/get_user/", nil)
	r.AddCookie(jwtCookie)
	rec = srv.do(r)
	if rec.Code != http.StatusOK {
		t.Errorf("get_user via cookie: %d %s", rec.Code, rec.Body.String())
	}

	// Resolve via bearer header.
	r = httptest.NewRequest(http.MethodGet, "/oauth/jwt/get_user/", nil)
	r.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = srv.do(r)
	if rec.Code != http.StatusOK {
		t.Errorf("get_user via bearer: %d %s", rec.Code, rec.Body.String())
	}

	var envelope BasicResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil || envelope.Count != 1 {
		t.Fatalf("get_user envelope: %v (%s)", err, rec.Body.String())
	}

	// Unauthenticated.
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/oauth/jwt/get_user/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("get_user without artifact: %d", rec.Code)
	}
}

func TestTokenLoginAndUserInfo(t *testing.T) {
	srv := newTestServer(t)

	// The documented request shape posts an email field, not username.
	rec := srv.do(formRequest("/oauth/token/", url.Values{
		"email":    {"testuser4@company.com"},
		"password": {"456def"},
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("token login: %d %s", rec.Code, rec.Body.String())
	}
	var pair TokenPairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("token response: %v", err)
	}
	if pair.TokenType != "bearer" || pair.AuthToken == "" {
		t.Errorf("pair = %+v", pair)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/userinfo/?id_token="+url.QueryEscape(pair.AuthToken), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("userinfo: %d %s", rec.Code, rec.Body.String())
	}
	var info UserInfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("userinfo body: %v", err)
	}
	if info.Sub != "testuser4" || info.Email != "testuser4@company.com" || info.Name != "David" {
		t.Errorf("userinfo = %+v", info)
	}

	// Garbage token is the caller's input error.
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/userinfo/?id_token=garbage", nil))
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "invalid_token" {
		t.Errorf("userinfo garbage: %d %s", rec.Code, rec.Body.String())
	}

	// Expired identity token reports 401.
	srv.clock.Advance(6 * time.Minute)
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/userinfo/?id_token="+url.QueryEscape(pair.AuthToken), nil))
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec) != "expired" {
		t.Errorf("userinfo expired: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOIDCTokenAndAccessScope(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(formRequest("/oauth/oidc/token/", loginForm("testuser5", "abc456")))
	if rec.Code != http.StatusOK {
		t.Fatalf("oidc token: %d %s", rec.Code, rec.Body.String())
	}
	var pair TokenPairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("pair response: %v", err)
	}
	if pair.AuthToken == "" || pair.AccessToken == "" || pair.AuthToken == pair.AccessToken {
		t.Fatalf("pair = %+v", pair)
	}

	r := httptest.NewRequest(http.MethodGet, "/user/access_scope/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = srv.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("access_scope: %d %s", rec.Code, rec.Body.String())
	}
	var scope AccessScopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &scope); err != nil {
		t.Fatalf("scope body: %v", err)
	}
	if scope.Username != "testuser5" || len(scope.Scopes) != 2 {
		t.Errorf("scope = %+v", scope)
	}

	// The identity token carries an audience and fails access validation.
	r = httptest.NewRequest(http.MethodGet, "/user/access_scope/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AuthToken)
	rec = srv.do(r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("access_scope with identity token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUserAdministration(t *testing.T) {
	srv := newTestServer(t)

	// List the fixture set.
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/users/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var envelope BasicResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("list body: %v", err)
	}
	if envelope.Count != 6 {
		t.Errorf("list count = %d, want 6", envelope.Count)
	}

	// Filtered list.
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/users/?department=hr", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("filtered list body: %v", err)
	}
	if envelope.Count != 2 {
		t.Errorf("filtered count = %d, want 2", envelope.Count)
	}

	// Create, then duplicate.
	body := `{"username":"newuser","password":"pw","first_name":"Nina","department":"Dev"}`
	r := httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec = srv.do(r)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	r = httptest.NewRequest(http.MethodPost, "/users/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	rec = srv.do(r)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "user_exists" {
		t.Errorf("duplicate create: %d %s", rec.Code, rec.Body.String())
	}

	// Fetch by path, then by email.
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/users/newuser", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get: %d %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/users/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get unknown: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRootBanner(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("root: %d", rec.Code)
	}
}
