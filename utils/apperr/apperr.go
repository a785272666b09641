package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so the HTTP/event boundary can translate it
// into a status code and error envelope without inspecting messages.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindAuthFailure
	KindTenantViolation
	KindDuplicate
	KindNotFound
	KindRateLimited
	KindTransientStore
	KindUnknownAction
)

// Error is the domain error carried between services and handlers.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RetryAfter int // seconds, only meaningful for rate limits and lockouts
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error with the given kind and code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches an underlying cause to a domain error.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, "INVALID_INPUT", message)
}

func AuthFailure(message string) *Error {
	return New(KindAuthFailure, "AUTH_FAILURE", message)
}

func TenantViolation(message string) *Error {
	return New(KindTenantViolation, "TENANT_VIOLATION", message)
}

func Duplicate(message string) *Error {
	return New(KindDuplicate, "DUPLICATE_RESOURCE", message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, "NOT_FOUND", message)
}

func RateLimited(message string, retryAfter int) *Error {
	e := New(KindRateLimited, "RATE_LIMIT_EXCEEDED", message)
	e.RetryAfter = retryAfter
	return e
}

func TransientStore(message string, err error) *Error {
	return Wrap(KindTransientStore, "TRANSIENT_STORE_ERROR", message, err)
}

func UnknownAction(action string) *Error {
	return New(KindUnknownAction, "UNKNOWN_ACTION", fmt.Sprintf("unknown action tag %q", action))
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, "INTERNAL_ERROR", message, err)
}

// KindOf extracts the kind from any error, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the domain error inside err, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Recoverable reports whether the caller can expect a retry to succeed.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindTransientStore, KindRateLimited:
		return true
	}
	return false
}
