// Package apierr maps service errors onto HTTP responses.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpattn/travelcms/internal/lock"
	"github.com/rpattn/travelcms/internal/repository"
)

// Error carries the HTTP status and a short machine code for a failure.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// Invalid marks err as a client input problem.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Status: http.StatusBadRequest, Code: "invalid_request", Err: err}
}

// NotFound marks err as a missing resource.
func NotFound(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Status: http.StatusNotFound, Code: "not_found", Err: err}
}

// Unavailable marks err as a missing or disabled dependency.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Status: http.StatusServiceUnavailable, Code: "unavailable", Err: err}
}

// Invalidf builds a client input error from a formatted message.
func Invalidf(format string, args ...any) error {
	return &Error{Status: http.StatusBadRequest, Code: "invalid_request", Message: fmt.Sprintf(format, args...)}
}

// Classify returns the status and code for err.
func Classify(err error) (int, string) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Code
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, lock.ErrLocked):
		return http.StatusConflict, "locked"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

type body struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write renders err as a JSON error body.
func Write(w http.ResponseWriter, err error) {
	status, code := Classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body{Status: "error", Code: code, Message: message})
}
