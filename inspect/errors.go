package inspect

import (
	"errors"
	"fmt"
)

// ValidationErrorType categorizes a validation failure.
type ValidationErrorType string

const (
	ErrorTypeSize    ValidationErrorType = "size"
	ErrorTypeMIME    ValidationErrorType = "mime"
	ErrorTypeContent ValidationErrorType = "content"
)

// ValidationError reports why content failed inspection.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation error: %s", e.Type, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(errType ValidationErrorType, message string) *ValidationError {
	return &ValidationError{Type: errType, Message: message}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsErrorOfType checks if an error is a ValidationError of the specified type
func IsErrorOfType(err error, errType ValidationErrorType) bool {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Type == errType
	}
	return false
}
