package types

import "fmt"

// ErrorKind is a stable error classification surfaced at the API boundary.
type ErrorKind string

// Error kinds. Values are stable across transports.
const (
	ErrNotFound      ErrorKind = "NOT_FOUND"
	ErrValidation    ErrorKind = "VALIDATION"
	ErrConflict      ErrorKind = "CONFLICT"
	ErrWaitTimeout   ErrorKind = "WAIT_TIMEOUT"
	ErrWaitCancelled ErrorKind = "WAIT_CANCELLED"
	ErrBackend       ErrorKind = "BACKEND"
	ErrInternal      ErrorKind = "INTERNAL"
)

// Error is the single error shape every operation returns. It carries a kind
// code and one descriptive message; no sensitive internals.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// NewError builds an error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an error of the given kind wrapping a cause.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same kind, so callers can write
// errors.Is(err, types.NewError(types.ErrNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf classifies an arbitrary error. Nil maps to the empty kind; anything
// that is not a *Error maps to INTERNAL.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	for {
		var ok bool
		if e, ok = err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ErrInternal
		}
		err = u.Unwrap()
		if err == nil {
			return ErrInternal
		}
	}
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }
