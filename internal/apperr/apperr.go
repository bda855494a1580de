// Package apperr defines the error kinds shared by the core services and the
// HTTP layer. Specific errors wrap one kind with fmt.Errorf("%w: ...").
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrNotFound          = errors.New("not found")
	ErrSelfAction        = errors.New("action not allowed on own content")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSelfAction):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show to clients. Errors of unknown kind are
// internal and are not echoed back.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Server error"
	}
	return err.Error()
}
