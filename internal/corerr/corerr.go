// Package corerr defines the typed error kinds shared across the engine's
// components, following the teacher's fmt.Errorf wrapping convention but
// adding a Kind callers can branch on without string matching.
package corerr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error categories surfaced by the engine.
type Kind string

const (
	NotFound           Kind = "not_found"
	Validation         Kind = "validation"
	Conflict           Kind = "conflict"
	CapabilityNotReady Kind = "capability_not_ready"
	LLMTransient       Kind = "llm_transient"
	LLMFatal           Kind = "llm_fatal"
	MergeConflict      Kind = "merge_conflict"
	Internal           Kind = "internal"
)

// Error is the engine's typed error. It carries a Kind for programmatic
// dispatch and wraps an underlying cause for %w-based chains.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause. If cause is already a *Error and
// kind is empty, its Kind is preserved.
func Wrap(kind Kind, message string, cause error) *Error {
	if kind == "" {
		var ce *Error
		if errors.As(cause, &ce) {
			kind = ce.Kind
		}
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether the first *Error in err's chain carries the given
// Kind; a *Error wrapped inside another *Error is not consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NotFoundf builds a not_found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// Conflictf builds a conflict error with a formatted message.
func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}
