package fgen

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gobeaver/fgen/storage"
)

// Inspector re-validates that a file matches the type its driver expects.
// Returning false, or an error, rejects the file.
type Inspector interface {
	Check(ctx context.Context, src storage.FileReader, path, expectedType string) (bool, error)
}

// InspectorFunc adapts a function into an Inspector.
type InspectorFunc func(ctx context.Context, src storage.FileReader, path, expectedType string) (bool, error)

// Check implements Inspector.
func (f InspectorFunc) Check(ctx context.Context, src storage.FileReader, path, expectedType string) (bool, error) {
	return f(ctx, src, path, expectedType)
}

// InspectorFactory constructs an inspector instance.
type InspectorFactory func() (Inspector, error)

// InspectorRegistry maps drivers to inspector implementations, at most one
// per driver.
type InspectorRegistry struct {
	mu         sync.RWMutex
	catalog    *Catalog
	inspectors map[string]string
}

// NewInspectorRegistry creates a registry that validates identifiers
// against catalog.
func NewInspectorRegistry(catalog *Catalog) *InspectorRegistry {
	return &InspectorRegistry{
		catalog:    catalog,
		inspectors: make(map[string]string),
	}
}

// AddInspector assigns inspectorID to driver under the merge policy.
// Identifiers unknown to the catalog are refused.
func (r *InspectorRegistry) AddInspector(driver, inspectorID string, replace bool) error {
	if driver == "" {
		return fmt.Errorf("%w: empty driver", ErrInvalidRegistration)
	}
	if !r.catalog.HasInspector(inspectorID) {
		return fmt.Errorf("%w: unknown inspector %q", ErrInvalidRegistration, inspectorID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.inspectors[driver]; exists && !replace {
		return nil
	}
	r.inspectors[driver] = inspectorID
	return nil
}

// SetInspectors replaces the whole driver to inspector mapping. Nothing
// changes when an identifier is unknown to the catalog.
func (r *InspectorRegistry) SetInspectors(inspectors map[string]string) error {
	fresh := NewInspectorRegistry(r.catalog)
	for _, driver := range slices.Sorted(maps.Keys(inspectors)) {
		if err := fresh.AddInspector(driver, inspectors[driver], true); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inspectors = fresh.inspectors
	return nil
}

// InspectorFor returns the inspector assigned to driver.
func (r *InspectorRegistry) InspectorFor(driver string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.inspectors[driver]
	return id, ok
}

// Inspectors returns a copy of the driver to inspector mapping.
func (r *InspectorRegistry) Inspectors() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.inspectors))
	for k, v := range r.inspectors {
		out[k] = v
	}
	return out
}
