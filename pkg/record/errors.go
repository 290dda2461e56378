package record

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested record does not exist or has expired.
var ErrNotFound = errors.New("record: not found")

// ValidationError reports a malformed field on a write or query.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record: invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps an underlying storage I/O failure. Tool-facing
// operations surface it to the caller; pipeline stages catch and log it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("record: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err with the failing operation name.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}
