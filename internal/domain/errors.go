package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrInvoiceRejected marks a payment the gateway will never accept, so
	// retrying it is pointless.
	ErrInvoiceRejected = errors.New("invoice rejected")
)

type ErrorKind string

const (
	KindBadRequest   ErrorKind = "bad_request"
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindConflict     ErrorKind = "conflict"
	KindUnavailable  ErrorKind = "unavailable"
)

// Error is a failure meant to be shown to the caller as-is.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(format string, a ...any) *Error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, a...)}
}

func Validation(format string, a ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, a...)}
}

func NotFound(format string, a ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, a...), Err: ErrNotFound}
}

func Conflict(format string, a ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, a...), Err: ErrConflict}
}

// KindOf classifies err. Bare ErrNotFound / ErrConflict map to their kinds;
// anything else unclassified is "" (an internal error).
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	}
	return ""
}

func Unauthorized(format string, a ...any) *Error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, a...)}
}

func Forbidden(format string, a ...any) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, a...)}
}

// Unavailable marks a dependency outage; err is kept for logs.
func Unavailable(err error, format string, a ...any) *Error {
	return &Error{Kind: KindUnavailable, Msg: fmt.Sprintf(format, a...), Err: err}
}
