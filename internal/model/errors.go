package model

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input. Always recoverable by the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing conversation, ticket, or message.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ConflictError reports a state precondition failure. The caller must
// re-check state before retrying.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// Escalation conflicts, matched via errors.Is.
var (
	ErrAlreadyEscalated = &ConflictError{Reason: "ticket is already escalated"}
	ErrNotEscalated     = &ConflictError{Reason: "ticket is not escalated"}
)

// DownstreamUnavailableError reports an AI or delivery collaborator failure
// after internal retries were exhausted.
type DownstreamUnavailableError struct {
	Collaborator string
	Err          error
}

func (e *DownstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *DownstreamUnavailableError) Unwrap() error { return e.Err }

// PersistenceError reports a storage layer failure. Fatal to the current
// operation; always logged with full context.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
