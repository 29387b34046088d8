package inspect

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONValidator checks that a document is syntactically valid JSON.
type JSONValidator struct {
	MaxSize int64
}

// DefaultJSONValidator creates a JSON validator with sensible defaults
func DefaultJSONValidator() *JSONValidator {
	return &JSONValidator{MaxSize: 10 * MB}
}

// ValidateContent implements ContentValidator.
func (v *JSONValidator) ValidateContent(reader io.Reader, size int64) error {
	if size > v.MaxSize {
		return NewValidationError(ErrorTypeSize,
			fmt.Sprintf("JSON size %d exceeds maximum %d", size, v.MaxSize))
	}

	data, err := io.ReadAll(io.LimitReader(reader, v.MaxSize+1))
	if err != nil {
		return NewValidationError(ErrorTypeContent, "failed to read JSON content")
	}
	if int64(len(data)) > v.MaxSize {
		return NewValidationError(ErrorTypeSize, fmt.Sprintf("JSON exceeds maximum %d bytes", v.MaxSize))
	}
	if !json.Valid(data) {
		return NewValidationError(ErrorTypeContent, "invalid JSON document")
	}
	return nil
}

// SupportedMIMETypes implements ContentValidator.
func (v *JSONValidator) SupportedMIMETypes() []string {
	return []string{"application/json"}
}
