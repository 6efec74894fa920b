package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrAuthentication covers bad credentials and invalid or expired tokens
	ErrAuthentication = errors.New("authentication failed")
	// ErrAuthorization covers a valid principal lacking the role, ownership or verification required
	ErrAuthorization = errors.New("permission denied")
	ErrNotFound      = errors.New("not found")
	// ErrConflict covers duplicate emails, a second admin and duplicate donor responses
	ErrConflict = errors.New("conflict")
	// ErrInvalidState is returned when the lifecycle state forbids the operation
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError collects every invalid field of one input
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty collector
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a problem for field, keeping the first message per field
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field was recorded
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns e as an error when it holds fields, nil otherwise
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a *ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
