package errors

import (
	"errors"
	"fmt"
)

// Kind is the category of a reconciliation error. It decides how the error
// is reported and whether the run's exit code flips to failure.
type Kind string

const (
	KindConfig   Kind = "Config"
	KindFetch    Kind = "Fetch"
	KindField    Kind = "Field"
	KindPatch    Kind = "Patch"
	KindSnapshot Kind = "Snapshot"
)

// Error is a categorized error with an optional source label (vendor name,
// config file, field name) and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Source  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = fmt.Sprintf("%s: %s", e.Source, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a categorized error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a categorized error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause. A nil cause
// yields nil so call sites can wrap unconditionally.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithSource returns a copy of the error labeled with its origin.
func (e *Error) WithSource(source string) *Error {
	dup := *e
	dup.Source = source
	return &dup
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ExitCode maps an error to the process exit code contract: zero for a
// clean run, one for any failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
