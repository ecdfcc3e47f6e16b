package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("document store unavailable")
)

// ValidationError rejects a create/update payload. Field is the dot path of
// the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// MirrorError reports a failed mirror write after a committed mutation.
type MirrorError struct {
	Kind   Kind
	Locale string
	Err    error
}

func (e *MirrorError) Error() string {
	if e.Locale == "" {
		return fmt.Sprintf("mirror %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("mirror %s/%s: %v", e.Kind, e.Locale, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
