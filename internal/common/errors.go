package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures into the stable taxonomy surfaced to clients.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "InvalidInput"
	KindNotFound     ErrorKind = "NotFound"
	KindConflict     ErrorKind = "Conflict"
	KindTransient    ErrorKind = "Transient"
	KindFatal        ErrorKind = "Fatal"
)

// Error is a typed error carrying a taxonomy kind. I/O layers translate
// OS and backend failures into this type at the earliest boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a taxonomy kind.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrInvalidInput builds an InvalidInput error.
func ErrInvalidInput(format string, args ...interface{}) *Error {
	return NewError(KindInvalidInput, format, args...)
}

// ErrNotFound builds a NotFound error.
func ErrNotFound(format string, args ...interface{}) *Error {
	return NewError(KindNotFound, format, args...)
}

// ErrConflict builds a Conflict error.
func ErrConflict(format string, args ...interface{}) *Error {
	return NewError(KindConflict, format, args...)
}

// ErrTransient builds a Transient error.
func ErrTransient(format string, args ...interface{}) *Error {
	return NewError(KindTransient, format, args...)
}

// ErrFatal builds a Fatal error.
func ErrFatal(format string, args ...interface{}) *Error {
	return NewError(KindFatal, format, args...)
}

// KindOf extracts the taxonomy kind from an error chain.
// Untyped errors classify as Fatal: they indicate a boundary that
// failed to translate.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindFatal
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
