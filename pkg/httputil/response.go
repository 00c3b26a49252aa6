// Package httputil provides shared helpers for writing JSON responses and
// pulling credentials out of requests.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/authward/authward/pkg/auth"
)

// ErrorResponse is the wire shape of every failed request.
type ErrorResponse struct {
	Result bool   `json:"result"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes a failure envelope with the given status, code and message.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Result: false, Code: code, Msg: msg})
}

// WriteAuthError maps a taxonomy error onto its HTTP status and writes it.
// The status override, when non-zero, wins; some endpoints report the same
// failure under a different status.
func WriteAuthError(w http.ResponseWriter, err error, statusOverride int) {
	status := StatusForError(err)
	if statusOverride != 0 {
		status = statusOverride
	}
	WriteError(w, status, auth.Code(err), err.Error())
}

// StatusForError returns the default HTTP status for a taxonomy error.
func StatusForError(err error) int {
	switch auth.Code(err) {
	case "invalid_credentials", "not_authenticated", "expired", "invalid_token":
		return http.StatusUnauthorized
	case "already_logged_in", "not_logged_in", "user_exists":
		return http.StatusBadRequest
	case "user_not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteBadRequest writes a 400 with a generic code.
func WriteBadRequest(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, "bad_request", msg)
}

// WriteInternalError writes a 500 without leaking the underlying error.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "internal", "internal server error")
}
