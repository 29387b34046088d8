package fgen

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog holds the implementation factories a dispatcher can instantiate.
// Registries only accept identifiers present here.
type Catalog struct {
	mu         sync.RWMutex
	handlers   map[string]HandlerFactory
	inspectors map[string]InspectorFactory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		handlers:   make(map[string]HandlerFactory),
		inspectors: make(map[string]InspectorFactory),
	}
}

// RegisterHandler makes a handler implementation available under id.
func (c *Catalog) RegisterHandler(id string, factory HandlerFactory) error {
	if id == "" || factory == nil {
		return fmt.Errorf("%w: handler implementation %q", ErrInvalidRegistration, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[id] = factory
	return nil
}

// RegisterHandlerInstance registers a ready-made handler under id.
func (c *Catalog) RegisterHandlerInstance(id string, h Handler) error {
	if h == nil {
		return fmt.Errorf("%w: nil handler %q", ErrInvalidRegistration, id)
	}
	return c.RegisterHandler(id, func() (Handler, error) { return h, nil })
}

// RegisterInspector makes an inspector implementation available under id.
func (c *Catalog) RegisterInspector(id string, factory InspectorFactory) error {
	if id == "" || factory == nil {
		return fmt.Errorf("%w: inspector implementation %q", ErrInvalidRegistration, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inspectors[id] = factory
	return nil
}

// RegisterInspectorInstance registers a ready-made inspector under id.
func (c *Catalog) RegisterInspectorInstance(id string, i Inspector) error {
	if i == nil {
		return fmt.Errorf("%w: nil inspector %q", ErrInvalidRegistration, id)
	}
	return c.RegisterInspector(id, func() (Inspector, error) { return i, nil })
}

// HasHandler reports whether id names a registered handler implementation.
func (c *Catalog) HasHandler(id string) bool {
	_, ok := c.handlerFactory(id)
	return ok
}

// HasInspector reports whether id names a registered inspector.
func (c *Catalog) HasInspector(id string) bool {
	_, ok := c.inspectorFactory(id)
	return ok
}

// HandlerIDs returns the registered handler identifiers, sorted.
func (c *Catalog) HandlerIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.handlers)
}

// InspectorIDs returns the registered inspector identifiers, sorted.
func (c *Catalog) InspectorIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.inspectors)
}

func (c *Catalog) handlerFactory(id string) (HandlerFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.handlers[id]
	return f, ok
}

func (c *Catalog) inspectorFactory(id string) (InspectorFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.inspectors[id]
	return f, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
