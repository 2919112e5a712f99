// Package apperr defines the error kinds shared by services and handlers.
// Each kind is an oops error code so that the HTTP layer can translate any
// error returned by a service into a status code from one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/oops"
)

// Error codes carried by oops errors.
const (
	CodeValidation = "VALIDATION"
	CodeAuth       = "AUTH"
	CodeConflict   = "CONFLICT"
	CodeNotFound   = "NOT_FOUND"
	CodeStorage    = "STORAGE"
)

// Validation reports input the client must fix.
func Validation(format string, args ...any) error {
	return oops.Code(CodeValidation).Errorf(format, args...)
}

// Auth reports a failed authentication. Messages must stay generic.
func Auth(msg string) error {
	return oops.Code(CodeAuth).Errorf("%s", msg)
}

// Conflict reports a duplicate resource.
func Conflict(format string, args ...any) error {
	return oops.Code(CodeConflict).Errorf(format, args...)
}

// NotFound reports a missing resource.
func NotFound(format string, args ...any) error {
	return oops.Code(CodeNotFound).Errorf(format, args...)
}

// Storage wraps a store failure. The wrapped detail is logged, never shown
// to clients. Returns nil when err is nil.
func Storage(err error, op string) error {
	return oops.Code(CodeStorage).With("operation", op).Wrap(err)
}

// Code returns the oops code of err or "" when err carries none.
func Code(err error) string {
	o, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := o.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAuth:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprint(he.Message)
	}
	if o, ok := oops.AsOops(err); ok {
		return o.Error()
	}
	return err.Error()
}
