package inspect

import (
	"io"
	"sync"
)

// Size units used by validator limits.
const (
	KB int64 = 1 << 10
	MB int64 = 1 << 20
	GB int64 = 1 << 30
)

// ContentValidator checks file content beyond its MIME type.
type ContentValidator interface {
	// ValidateContent validates r, which holds size bytes. Readers that also
	// implement io.ReaderAt or io.Seeker let validators avoid buffering.
	ValidateContent(r io.Reader, size int64) error

	// SupportedMIMETypes returns the MIME types this validator handles.
	SupportedMIMETypes() []string
}

// Registry maps MIME types to content validators.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]ContentValidator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]ContentValidator)}
}

// DefaultRegistry returns a registry holding the built-in validators for
// images, PDF, ZIP and JSON.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterAll(DefaultImageValidator())
	r.RegisterAll(DefaultPDFValidator())
	r.RegisterAll(DefaultZipValidator())
	r.RegisterAll(DefaultJSONValidator())
	return r
}

// Register binds validator to mimeType, replacing any previous binding.
func (r *Registry) Register(mimeType string, validator ContentValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[baseType(mimeType)] = validator
}

// RegisterAll binds validator to every type it reports as supported.
func (r *Registry) RegisterAll(validator ContentValidator) {
	for _, m := range validator.SupportedMIMETypes() {
		r.Register(m, validator)
	}
}

// Validator returns the validator for mimeType, or nil.
func (r *Registry) Validator(mimeType string) ContentValidator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.validators[baseType(mimeType)]
}

// ValidateContent runs the validator registered for mimeType. Types without
// a validator pass.
func (r *Registry) ValidateContent(mimeType string, reader io.Reader, size int64) error {
	validator := r.Validator(mimeType)
	if validator == nil {
		return nil
	}
	return validator.ValidateContent(reader, size)
}
