package auth

import (
	"context"
	"testing"
)

func TestBasicAuthenticator_LoginLogout(t *testing.T) {
	a := NewBasicAuthenticator(NewMemoryStore(SeedUsers()...))
	ctx := context.Background()

	id, err := a.Login(ctx, "testuser1", "abc123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if id.Username != "testuser1" || id.FirstName != "Alex" {
		t.Errorf("Login() identity = %+v", id)
	}
	if !a.LoggedIn("testuser1") {
		t.Error("flag should be set after login")
	}

	if _, err := a.Login(ctx, "testuser1", "abc123"); err != ErrAlreadyLoggedIn {
		t.Errorf("second Login() error = %v, want ErrAlreadyLoggedIn", err)
	}

	if _, err := a.Logout(ctx, "testuser1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if a.LoggedIn("testuser1") {
		t.Error("flag should be cleared after logout")
	}

	if _, err := a.Logout(ctx, "testuser1"); err != ErrNotLoggedIn {
		t.Errorf("second Logout() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestBasicAuthenticator_InvalidCredentials(t *testing.T) {
	a := NewBasicAuthenticator(NewMemoryStore(SeedUsers()...))
	ctx := context.Background()

	if _, err := a.Login(ctx, "testuser1", "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("Login(bad secret) error = %v, want ErrInvalidCredentials", err)
	}
	// A failed login leaves the flag untouched.
	if a.LoggedIn("testuser1") {
		t.Error("failed login must not set the flag")
	}

	if _, err := a.Login(ctx, "ghost", "abc123"); err != ErrInvalidCredentials {
		t.Errorf("Login(unknown user) error = %v, want ErrInvalidCredentials", err)
	}

	if _, err := a.Logout(ctx, "ghost"); err != ErrUserNotFound {
		t.Errorf("Logout(unknown user) error = %v, want ErrUserNotFound", err)
	}
}

func TestBasicAuthenticator_IndependentUsers(t *testing.T) {
	a := NewBasicAuthenticator(NewMemoryStore(SeedUsers()...))
	ctx := context.Background()

	if _, err := a.Login(ctx, "testuser1", "abc123"); err != nil {
		t.Fatalf("Login(testuser1) error = %v", err)
	}
	if _, err := a.Login(ctx, "testuser2", "123abc"); err != nil {
		t.Fatalf("Login(testuser2) error = %v", err)
	}
	if _, err := a.Logout(ctx, "testuser1"); err != nil {
		t.Fatalf("Logout(testuser1) error = %v", err)
	}
	if !a.LoggedIn("testuser2") {
		t.Error("logout of one user must not touch another's flag")
	}
}
