package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ParseJSON decodes the request body into dst, rejecting unknown fields.
func ParseJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes the body into dst and writes a 400 on failure.
// Returns false when the response has already been written.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := ParseJSON(r, dst); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// Credentials reads an identity and secret from a login request. Form fields
// take precedence (the password flow posts username/password as a form); a
// JSON body with the same field names is accepted as a fallback. The identity
// field may be named either username or email, since the two-token flow posts
// email+password.
func Credentials(r *http.Request) (identity, secret string, err error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var body struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ParseJSON(r, &body); err != nil {
			return "", "", err
		}
		if body.Username == "" {
			body.Username = body.Email
		}
		return body.Username, body.Password, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("invalid form body: %w", err)
	}
	identity = r.PostFormValue("username")
	if identity == "" {
		identity = r.PostFormValue("email")
	}
	return identity, r.PostFormValue("password"), nil
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// CookieValue returns the named cookie's value, or "" when absent.
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
