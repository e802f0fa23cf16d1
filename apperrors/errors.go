// Package apperrors defines the error taxonomy returned by ledger, commitment and contest
// operations. Storage errors are translated into these kinds before they reach callers.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind discriminates application errors
type Kind string

const (
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindInvalidState       Kind = "invalid_state"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindTransient          Kind = "transient_store_failure"
	KindServiceUnavailable Kind = "service_unavailable"
	KindDuplicateEvent     Kind = "duplicate_event"
	KindValidation         Kind = "validation"
	KindDataIntegrity      Kind = "data_integrity"
)

// Error is a typed application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors of the same kind, so errors.Is(err, ErrNotFound) works
// for any NotFound error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInsufficientFunds  = &Error{Kind: KindInsufficientFunds}
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrTransient          = &Error{Kind: KindTransient}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrDuplicateEvent     = &Error{Kind: KindDuplicateEvent}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrDataIntegrity      = &Error{Kind: KindDataIntegrity}
)

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InsufficientFunds(format string, args ...any) error {
	return newf(KindInsufficientFunds, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newf(KindInvalidState, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newf(KindUnauthorized, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

func DataIntegrity(format string, args ...any) error {
	return newf(KindDataIntegrity, format, args...)
}

func DuplicateEvent(format string, args ...any) error {
	return newf(KindDuplicateEvent, format, args...)
}

// Transient wraps a storage failure that is expected to succeed on retry
func Transient(err error) error {
	return &Error{Kind: KindTransient, Message: "transient store failure", Err: err}
}

// ServiceUnavailable wraps the last transient failure once retries are exhausted
func ServiceUnavailable(op string, err error) error {
	return &Error{Kind: KindServiceUnavailable, Message: fmt.Sprintf("%s unavailable", op), Err: err}
}

// KindOf returns the kind of the first application error in the chain, or "" if there is none
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsTransient reports whether err should be retried. Only the outermost application error
// counts, so a ServiceUnavailable wrapping a transient failure is not retried again.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
