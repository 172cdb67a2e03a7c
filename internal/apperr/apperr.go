// Package apperr defines the typed failures raised by the queue engine, the roster
// and the hadith scheduler. Callers match on kinds with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Kinds of failure. An *Error matches its kind with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrSuspended         = errors.New("account suspended")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("invalid state")
)

// Error carries the failing operation and a human-readable message next to its kind.
type Error struct {
	Op      string // e.g. "session.CheckIn"
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error, or the kind when there is none.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is reports whether target is the error's kind or matches the wrapped error.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// New builds an error of the given kind.
func New(op string, kind error, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Wrap attaches op, kind and message to an underlying error.
func Wrap(op string, kind error, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

func NotFound(op, message string) *Error     { return New(op, ErrNotFound, message) }
func Conflict(op, message string) *Error     { return New(op, ErrConflict, message) }
func InvalidInput(op, message string) *Error { return New(op, ErrInvalidInput, message) }
func InvalidState(op, message string) *Error { return New(op, ErrInvalidState, message) }

// KindOf returns the kind sentinel of err, or nil for untyped errors.
func KindOf(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrInvalidCredential, ErrSuspended, ErrInvalidInput, ErrInvalidState} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the user-facing message of a typed error, or fallback.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
