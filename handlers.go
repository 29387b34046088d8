package fgen

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gobeaver/fgen/internal/ordered"
)

// DefaultHandler is the handler name of a driver's default slot. The empty
// name addresses the same slot.
const DefaultHandler = "default"

// HandlerRegistry maps (driver, handler name) to an implementation
// identifier, with one default slot per driver.
type HandlerRegistry struct {
	mu       sync.RWMutex
	catalog  *Catalog
	handlers map[string]*ordered.Map[string, string]
}

// NewHandlerRegistry creates a registry that validates identifiers against
// catalog.
func NewHandlerRegistry(catalog *Catalog) *HandlerRegistry {
	return &HandlerRegistry{
		catalog:  catalog,
		handlers: make(map[string]*ordered.Map[string, string]),
	}
}

func handlerKey(name string) string {
	if name == "" {
		return DefaultHandler
	}
	return name
}

// AddHandler assigns implementationID to (driver, handler) under the merge
// policy. An empty handler name registers the driver default. Identifiers
// unknown to the catalog are refused and nothing is stored.
func (r *HandlerRegistry) AddHandler(driver, handler, implementationID string, replace bool) error {
	if driver == "" {
		return fmt.Errorf("%w: empty driver", ErrInvalidRegistration)
	}
	if !r.catalog.HasHandler(implementationID) {
		return fmt.Errorf("%w: unknown handler implementation %q", ErrInvalidRegistration, implementationID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	slots, ok := r.handlers[driver]
	if !ok {
		slots = ordered.New[string, string]()
		r.handlers[driver] = slots
	}
	key := handlerKey(handler)
	if slots.Has(key) && !replace {
		return nil
	}
	slots.Set(key, implementationID)
	return nil
}

// AddHandlers registers several handlers for driver. Every identifier is
// checked before anything is stored.
func (r *HandlerRegistry) AddHandlers(driver string, handlers map[string]string, replace bool) error {
	for name, id := range handlers {
		if !r.catalog.HasHandler(id) {
			return fmt.Errorf("%w: unknown handler implementation %q for %s/%s", ErrInvalidRegistration, id, driver, handlerKey(name))
		}
	}
	for name, id := range handlers {
		if err := r.AddHandler(driver, name, id, replace); err != nil {
			return err
		}
	}
	return nil
}

// SetHandlers replaces every driver's handler slots. Nothing changes when
// an identifier is unknown to the catalog.
func (r *HandlerRegistry) SetHandlers(handlers map[string]map[string]string) error {
	fresh := NewHandlerRegistry(r.catalog)
	for _, driver := range slices.Sorted(maps.Keys(handlers)) {
		if driver == "" {
			return fmt.Errorf("%w: empty driver", ErrInvalidRegistration)
		}
		if err := fresh.AddHandlers(driver, handlers[driver], true); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = fresh.handlers
	return nil
}

// HandlerFor resolves the implementation for (driver, handler): the exact
// entry, then the driver default, then fallback. It reports false when all
// three are absent.
func (r *HandlerRegistry) HandlerFor(driver, handler, fallback string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if slots, ok := r.handlers[driver]; ok {
		if id, ok := slots.Get(handlerKey(handler)); ok {
			return id, true
		}
		if id, ok := slots.Get(DefaultHandler); ok {
			return id, true
		}
	}
	if fallback != "" {
		return fallback, true
	}
	return "", false
}

// Handlers returns a copy of the handler names and identifiers of driver.
func (r *HandlerRegistry) Handlers(driver string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slots, ok := r.handlers[driver]
	if !ok {
		return nil
	}
	out := make(map[string]string, slots.Len())
	slots.Range(func(name, id string) bool {
		out[name] = id
		return true
	})
	return out
}
