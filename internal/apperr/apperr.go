// Package apperr defines the closed set of error kinds returned by the core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error. The set is closed; callers switch on it.
type Kind string

const (
	InvalidInput            Kind = "INVALID_INPUT"
	MissingField            Kind = "MISSING_FIELD"
	InvalidPhone            Kind = "INVALID_PHONE"
	InvalidAadhaar          Kind = "INVALID_AADHAAR"
	InvalidEmail            Kind = "INVALID_EMAIL"
	DuplicateUsername       Kind = "DUPLICATE_USERNAME"
	WeakPassword            Kind = "WEAK_PASSWORD"
	InvalidBranchAssignment Kind = "INVALID_BRANCH_ASSIGNMENT"
	PermissionDenied        Kind = "PERMISSION_DENIED"
	UnknownUser             Kind = "UNKNOWN_USER"
	InvalidCredentials      Kind = "INVALID_CREDENTIALS"
	NotFound                Kind = "NOT_FOUND"
	AlreadyFinal            Kind = "ALREADY_FINAL"
	StoreUnavailable        Kind = "STORE_UNAVAILABLE"
	// Internal wraps unexpected I/O failures (document storage, encoding).
	Internal Kind = "INTERNAL"
)

// Error is the typed error every core operation returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: NotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, Internal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Recoverable reports whether the caller can retry with corrected input.
// Validation and permission failures are recoverable; so is StoreUnavailable,
// since reads continue on the default state and a retry can succeed once the
// store is readable again.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case "", Internal:
		return false
	}
	return true
}
