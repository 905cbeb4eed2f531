// Package instancerr defines the error taxonomy shared by every subsystem
// of the instance controller and its mapping onto HTTP status codes.
package instancerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the purposes of the httpapi layer and for
// callers that need to branch on error category instead of message text.
type Kind string

const (
	Unauthenticated Kind = "UNAUTHENTICATED"
	Forbidden       Kind = "FORBIDDEN"
	NotFound        Kind = "NOT_FOUND"
	Conflict        Kind = "CONFLICT"
	CaptchaFailed   Kind = "CAPTCHA_FAILED"
	DaemonExhausted Kind = "DAEMON_EXHAUSTED"
	Internal        Kind = "INTERNAL"
)

// Error is a classified error carrying an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFoundf is a convenience constructor for the NOT_FOUND kind.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Conflictf is a convenience constructor for the CONFLICT kind.
func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// KindOf classifies err, defaulting to Internal for anything not produced by
// this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind onto the status code table the HTTP layer must use.
func HTTPStatus(k Kind) int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict, CaptchaFailed:
		return http.StatusBadRequest
	case DaemonExhausted, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AsHTTP maps err directly onto the status code its Kind implies.
func AsHTTP(err error) int {
	return HTTPStatus(KindOf(err))
}
