package httputil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/authward/authward/pkg/auth"
)

func TestCredentials_Form(t *testing.T) {
	form := url.Values{"username": {"testuser1"}, "password": {"abc123"}}
	r := httptest.NewRequest(http.MethodPost, "/oauth/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	identity, secret, err := Credentials(r)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if identity != "testuser1" || secret != "abc123" {
		t.Errorf("Credentials() = %q, %q", identity, secret)
	}
}

func TestCredentials_EmailField(t *testing.T) {
	form := url.Values{"email": {"testuser4@company.com"}, "password": {"456def"}}
	r := httptest.NewRequest(http.MethodPost, "/oauth/token/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	identity, secret, err := Credentials(r)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if identity != "testuser4@company.com" || secret != "456def" {
		t.Errorf("Credentials() = %q, %q", identity, secret)
	}

	// username wins when both are posted.
	form = url.Values{"username": {"testuser4"}, "email": {"other@company.com"}, "password": {"456def"}}
	r = httptest.NewRequest(http.MethodPost, "/oauth/token/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if identity, _, _ = Credentials(r); identity != "testuser4" {
		t.Errorf("Credentials() identity = %q, want testuser4", identity)
	}
}

func TestCredentials_JSON(t *testing.T) {
	body := `{"username":"testuser2","password":"123abc"}`
	r := httptest.NewRequest(http.MethodPost, "/oauth/login", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	identity, secret, err := Credentials(r)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if identity != "testuser2" || secret != "123abc" {
		t.Errorf("Credentials() = %q, %q", identity, secret)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := BearerToken(r); ok {
		t.Error("BearerToken() ok on missing header")
	}

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	token, ok := BearerToken(r)
	if !ok || token != "abc.def.ghi" {
		t.Errorf("BearerToken() = %q, %v", token, ok)
	}

	r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	if _, ok := BearerToken(r); ok {
		t.Error("BearerToken() ok on Basic header")
	}
}

func TestStatusForError(t *testing.T) {
	cases := map[error]int{
		auth.ErrInvalidCredentials: http.StatusUnauthorized,
		auth.ErrExpired:            http.StatusUnauthorized,
		auth.ErrInvalidToken:       http.StatusUnauthorized,
		auth.ErrNotAuthenticated:   http.StatusUnauthorized,
		auth.ErrAlreadyLoggedIn:    http.StatusBadRequest,
		auth.ErrNotLoggedIn:        http.StatusBadRequest,
		auth.ErrUserExists:         http.StatusBadRequest,
	}
	for err, want := range cases {
		if got := StatusForError(err); got != want {
			t.Errorf("StatusForError(%v) = %d, want %d", err, got, want)
		}
	}
}
