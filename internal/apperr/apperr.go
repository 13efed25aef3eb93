// Package apperr defines the closed set of error kinds surfaced by the
// authorization core. Every failure that crosses a service boundary is an
// *Error carrying exactly one Kind; transports map kinds to status codes in
// one place.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Internal is the zero value so unclassified errors never leak as client errors.
	Internal Kind = iota
	Unauthenticated
	PrincipalNotFound
	Forbidden
	NotFound
	AlreadyProcessed
	Validation
	Conflict
)

// Kinds lists every Kind; used to assert transport mappings are exhaustive.
var Kinds = []Kind{Internal, Unauthenticated, PrincipalNotFound, Forbidden, NotFound, AlreadyProcessed, Validation, Conflict}

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case PrincipalNotFound:
		return "principal_not_found"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case AlreadyProcessed:
		return "already_processed"
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the structured error returned by services.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	// Code is an optional machine-readable reason (e.g. "pending_approval").
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so callers can write errors.Is(err, apperr.ErrForbidden).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated   = &Error{Kind: Unauthenticated}
	ErrPrincipalNotFound = &Error{Kind: PrincipalNotFound}
	ErrForbidden         = &Error{Kind: Forbidden}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrAlreadyProcessed  = &Error{Kind: AlreadyProcessed}
	ErrValidation        = &Error{Kind: Validation}
	ErrConflict          = &Error{Kind: Conflict}
	ErrInternal          = &Error{Kind: Internal}
)

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Unauthenticatedf(format string, args ...any) *Error {
	return New(Unauthenticated, format, args...)
}

func Forbiddenf(format string, args ...any) *Error {
	return New(Forbidden, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

// Invalid returns a Validation error carrying field-level detail.
func Invalid(fields ...FieldError) *Error {
	return &Error{Kind: Validation, Message: "validation failed", Fields: fields}
}

// KindOf returns the Kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
