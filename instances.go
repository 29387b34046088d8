package fgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// instanceCache lazily builds one value per implementation identifier and
// keeps it for the dispatcher's lifetime. Failed constructions are not
// cached.
type instanceCache[T any] struct {
	mu        sync.Mutex
	instances map[string]T
	order     []string
}

func newInstanceCache[T any]() *instanceCache[T] {
	return &instanceCache[T]{instances: make(map[string]T)}
}

func (c *instanceCache[T]) get(id string, build func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inst, ok := c.instances[id]; ok {
		return inst, nil
	}
	inst, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	c.instances[id] = inst
	c.order = append(c.order, id)
	return inst, nil
}

func (c *instanceCache[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}

// drain empties the cache and returns the instances in construction order.
func (c *instanceCache[T]) drain() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.instances[id])
	}
	c.instances = make(map[string]T)
	c.order = nil
	return out
}

// handlerInstance serializes calls into one shared handler.
type handlerInstance struct {
	mu      sync.Mutex
	handler Handler
}

func (h *handlerInstance) handle(ctx context.Context, call *Call) (Output, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handler.Handle(ctx, call)
}

func (d *Dispatcher) handlerInstance(id string) (*handlerInstance, error) {
	return d.handlerCache.get(id, func() (*handlerInstance, error) {
		factory, ok := d.catalog.handlerFactory(id)
		if !ok {
			return nil, fmt.Errorf("unknown handler implementation %q", id)
		}
		h, err := factory()
		if err != nil {
			return nil, err
		}
		if h == nil {
			return nil, fmt.Errorf("handler implementation %q constructed nil", id)
		}
		return &handlerInstance{handler: h}, nil
	})
}

func (d *Dispatcher) inspectorInstance(id string) (Inspector, error) {
	return d.inspectorCache.get(id, func() (Inspector, error) {
		factory, ok := d.catalog.inspectorFactory(id)
		if !ok {
			return nil, fmt.Errorf("unknown inspector %q", id)
		}
		i, err := factory()
		if err != nil {
			return nil, err
		}
		if i == nil {
			return nil, fmt.Errorf("inspector %q constructed nil", id)
		}
		return i, nil
	})
}

// Close releases cached handler and inspector instances that implement
// io.Closer. The dispatcher can be used again afterwards; instances are
// rebuilt on demand.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, inst := range d.handlerCache.drain() {
		if c, ok := inst.handler.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	for _, inst := range d.inspectorCache.drain() {
		if c, ok := inst.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
