// Package apperr defines the error kinds shared by the store, the services and the
// HTTP handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindIneligible      Kind = "ineligible_purchase"
	KindStorageTimeout  Kind = "storage_timeout"
	KindStorageConflict Kind = "storage_conflict"
	KindRateLimited     Kind = "rate_limited"
	KindCanceled        Kind = "request_canceled"
	KindInternal        Kind = "internal_error"
)

// Error is the single error type returned across package boundaries.
// Fields is only set for validation errors and maps a JSON field name to a message.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a validation error from field-level messages.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

// Field is shorthand for a validation error on one field.
func Field(name, msg string) *Error {
	return Validation(map[string]string{name: msg})
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func Ineligible(msg string) *Error {
	return &Error{Kind: KindIneligible, Message: msg}
}

func StorageTimeout(err error) *Error {
	return &Error{Kind: KindStorageTimeout, Message: "storage operation timed out", Err: err}
}

func StorageConflict(err error) *Error {
	return &Error{Kind: KindStorageConflict, Message: "storage is busy, retry the request", Err: err}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests, try again later"}
}

// Canceled reports that the caller gave up, usually a client that disconnected.
func Canceled(err error) *Error {
	return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf classifies any error. Errors that are not *Error are internal, except an
// exceeded deadline, which is reported as a storage timeout, and a canceled context.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindStorageTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// As returns the *Error in err's chain, or wraps err as an internal error.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StorageTimeout(err)
	}
	if errors.Is(err, context.Canceled) {
		return Canceled(err)
	}
	return Internal(err)
}
