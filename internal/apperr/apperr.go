package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the pipeline must react to it.
type Kind int

const (
	// Validation errors are rejected synchronously before any state mutation.
	Validation Kind = iota
	// Collaborator errors come from a remote generation service: failure,
	// timeout, or malformed output.
	Collaborator
	// Persistence errors are fatal database failures surfaced to the caller.
	Persistence
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Collaborator:
		return "collaborator"
	case Persistence:
		return "persistence"
	}
	return "unknown"
}

type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf creates a Validation error with a formatted reason.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: Validation, Reason: fmt.Sprintf(format, args...)}
}

// Collaboratorf wraps a remote failure with a human-readable reason.
func Collaboratorf(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: Collaborator, Reason: fmt.Sprintf(format, args...), Err: err}
}

// Persistencef wraps a database failure.
func Persistencef(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: Persistence, Reason: fmt.Sprintf(format, args...), Err: err}
}

func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func IsValidation(err error) bool   { return IsKind(err, Validation) }
func IsCollaborator(err error) bool { return IsKind(err, Collaborator) }
func IsPersistence(err error) bool  { return IsKind(err, Persistence) }

// Reason returns the recorded human-readable reason, or the plain error
// string for errors outside the taxonomy.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
