// Package apperr defines the error taxonomy shared by the services and the HTTP boundary.
package apperr

import "errors"

// Error kinds. Services wrap them in *Error so callers can branch with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation error")
	ErrUnprocessable   = errors.New("unprocessable entity")
	ErrDeadlinePassed  = errors.New("deadline passed")
	ErrExpired         = errors.New("expired")
)

// Error carries a kind and a client-facing message.
type Error struct {
	Kind error
	Msg  string
}

// New returns an *Error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// Message returns the client-facing message for err, or fallback when err is not an *Error.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return fallback
}
