// Package apperr defines the error taxonomy returned by group order operations.
//
// Validation, NotFound, Authorization and State errors are terminal: nothing
// was persisted. Conflict is returned only after optimistic-save retries are
// exhausted. Unavailable wraps storage failures and is never retried by the
// engine.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindNotFound      Kind = "NOT_FOUND"
	KindAuthorization Kind = "FORBIDDEN"
	KindState         Kind = "STATE_CONFLICT"
	KindConflict      Kind = "CONFLICT"
	KindUnavailable   Kind = "SERVICE_UNAVAILABLE"
	KindInternal      Kind = "INTERNAL_ERROR"
)

// Metadata describes how a kind should be surfaced to callers.
type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByKind = map[Kind]Metadata{
	KindValidation:    {Retryable: false, PublicMessage: "validation failed"},
	KindNotFound:      {Retryable: false, PublicMessage: "resource not found"},
	KindAuthorization: {Retryable: false, PublicMessage: "access denied"},
	KindState:         {Retryable: false, PublicMessage: "operation not allowed in current state"},
	KindConflict:      {Retryable: true, PublicMessage: "concurrent update conflict"},
	KindUnavailable:   {Retryable: true, PublicMessage: "storage unavailable"},
	KindInternal:      {Retryable: false, PublicMessage: "internal error"},
}

// MetadataFor returns the metadata for kind, defaulting to KindInternal.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

// Error is a classified error with an optional cause and details.
type Error struct {
	kind    Kind
	message string
	details map[string]string
	cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind caused by err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Details returns field-level details, if any.
func (e *Error) Details() map[string]string {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches field-level details and returns e.
func (e *Error) WithDetails(details map[string]string) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.message == "" && t.kind == e.kind
}

// Kind markers for errors.Is.
var (
	ErrValidation    = &Error{kind: KindValidation}
	ErrNotFound      = &Error{kind: KindNotFound}
	ErrAuthorization = &Error{kind: KindAuthorization}
	ErrState         = &Error{kind: KindState}
	ErrConflict      = &Error{kind: KindConflict}
	ErrUnavailable   = &Error{kind: KindUnavailable}
)

// As returns the *Error in err's chain, or nil.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind()
	}
	return KindInternal
}

func Validation(message string) *Error { return New(KindValidation, message) }

func NotFound(format string, args ...any) *Error { return Newf(KindNotFound, format, args...) }

func Authorization(message string) *Error { return New(KindAuthorization, message) }

func State(format string, args ...any) *Error { return Newf(KindState, format, args...) }

func Conflict(format string, args ...any) *Error { return Newf(KindConflict, format, args...) }

func Unavailable(err error, message string) *Error { return Wrap(KindUnavailable, err, message) }
