package apperrors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNotFound = errors.New("record not found")
)

// ValidationError indicates a caller-fixable problem with the submitted data.
// It is raised before any event is written.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Msg)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Msg)
}

// NewValidation creates a validation error for a field
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// ConflictError indicates a duplicate natural key on insert
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Msg)
}

// NewConflict creates a conflict error
func NewConflict(msg string) *ConflictError {
	return &ConflictError{Msg: msg}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
