package fgen

import (
	"fmt"
	"sync"

	"github.com/gobeaver/fgen/internal/ordered"
)

// VariantRule is one output variant and its option-set.
type VariantRule struct {
	Variant string  `json:"variant" yaml:"variant" toml:"variant"`
	Options Options `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// HandlerRule lists the variants produced by one handler.
type HandlerRule struct {
	Handler  string        `json:"handler" yaml:"handler" toml:"handler"`
	Variants []VariantRule `json:"variants" yaml:"variants" toml:"variants"`
}

// DriverRule lists the handlers run for one driver.
type DriverRule struct {
	Driver   string        `json:"driver" yaml:"driver" toml:"driver"`
	Handlers []HandlerRule `json:"handlers" yaml:"handlers" toml:"handlers"`
}

// Rules is an ordered driver → handler → variant → options tree in value
// form.
type Rules []DriverRule

type (
	variantMap = ordered.Map[string, Options]
	handlerMap = ordered.Map[string, *variantMap]
	driverMap  = ordered.Map[string, *handlerMap]
)

// RuleTree stores processing rules as ordered maps so iteration follows
// insertion order. Insertion cascades down to the variant level, where the
// merge policy decides collisions:
//
//   - new variant: inserted
//   - existing variant, replace: options shallow-merged, new keys win
//   - existing variant, !replace: left unchanged
type RuleTree struct {
	mu      sync.RWMutex
	drivers *driverMap
}

// NewRuleTree creates an empty tree.
func NewRuleTree() *RuleTree {
	return &RuleTree{drivers: ordered.New[string, *handlerMap]()}
}

// AddRules inserts every driver of rules.
func (t *RuleTree) AddRules(rules Rules, replace bool) error {
	if err := rules.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, dr := range rules {
		t.addDriver(dr.Driver, dr.Handlers, replace)
	}
	return nil
}

// AddDriverRules inserts handlers under driver.
func (t *RuleTree) AddDriverRules(driver string, handlers []HandlerRule, replace bool) error {
	if err := (Rules{{Driver: driver, Handlers: handlers}}).validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addDriver(driver, handlers, replace)
	return nil
}

// AddHandlerRules inserts variants under (driver, handler).
func (t *RuleTree) AddHandlerRules(driver, handler string, variants []VariantRule, replace bool) error {
	return t.AddDriverRules(driver, []HandlerRule{{Handler: handler, Variants: variants}}, replace)
}

// AddOptions inserts a single variant.
func (t *RuleTree) AddOptions(driver, handler, variant string, options Options, replace bool) error {
	return t.AddHandlerRules(driver, handler, []VariantRule{{Variant: variant, Options: options}}, replace)
}

// SetRules discards the tree and loads rules.
func (t *RuleTree) SetRules(rules Rules) error {
	if err := rules.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drivers = ordered.New[string, *handlerMap]()
	for _, dr := range rules {
		t.addDriver(dr.Driver, dr.Handlers, true)
	}
	return nil
}

func (t *RuleTree) addDriver(driver string, handlers []HandlerRule, replace bool) {
	hm, ok := t.drivers.Get(driver)
	if !ok {
		hm = ordered.New[string, *variantMap]()
		t.drivers.Set(driver, hm)
	}
	for _, hr := range handlers {
		name := handlerKey(hr.Handler)
		vm, ok := hm.Get(name)
		if !ok {
			vm = ordered.New[string, Options]()
			hm.Set(name, vm)
		}
		for _, vr := range hr.Variants {
			mergeOptions(vm, vr.Variant, vr.Options, replace)
		}
	}
}

func mergeOptions(vm *variantMap, variant string, options Options, replace bool) {
	existing, ok := vm.Get(variant)
	switch {
	case !ok:
		vm.Set(variant, options.Clone())
	case replace || len(existing) == 0:
		vm.Set(variant, existing.Merge(options))
	}
}

// RulesFor returns the handler rules of driver in insertion order. Unknown
// drivers yield nil.
func (t *RuleTree) RulesFor(driver string) []HandlerRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hm, ok := t.drivers.Get(driver)
	if !ok {
		return nil
	}
	return handlerRules(hm)
}

// HandlerRulesFor returns the variants of (driver, handler) in insertion
// order. Unknown paths yield nil.
func (t *RuleTree) HandlerRulesFor(driver, handler string) []VariantRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hm, ok := t.drivers.Get(driver)
	if !ok {
		return nil
	}
	vm, ok := hm.Get(handlerKey(handler))
	if !ok {
		return nil
	}
	return variantRules(vm)
}

// OptionsFor returns a copy of the options of one variant.
func (t *RuleTree) OptionsFor(driver, handler, variant string) (Options, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hm, ok := t.drivers.Get(driver)
	if !ok {
		return nil, false
	}
	vm, ok := hm.Get(handlerKey(handler))
	if !ok {
		return nil, false
	}
	opts, ok := vm.Get(variant)
	if !ok {
		return nil, false
	}
	return opts.Clone(), true
}

// Drivers returns the drivers that have rules, in insertion order.
func (t *RuleTree) Drivers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.drivers.Keys()
}

// Rules returns a copy of the whole tree.
func (t *RuleTree) Rules() Rules {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(Rules, 0, t.drivers.Len())
	t.drivers.Range(func(driver string, hm *handlerMap) bool {
		out = append(out, DriverRule{Driver: driver, Handlers: handlerRules(hm)})
		return true
	})
	return out
}

func handlerRules(hm *handlerMap) []HandlerRule {
	out := make([]HandlerRule, 0, hm.Len())
	hm.Range(func(handler string, vm *variantMap) bool {
		out = append(out, HandlerRule{Handler: handler, Variants: variantRules(vm)})
		return true
	})
	return out
}

func variantRules(vm *variantMap) []VariantRule {
	out := make([]VariantRule, 0, vm.Len())
	vm.Range(func(variant string, opts Options) bool {
		out = append(out, VariantRule{Variant: variant, Options: opts.Clone()})
		return true
	})
	return out
}

func (r Rules) validate() error {
	for _, dr := range r {
		if dr.Driver == "" {
			return fmt.Errorf("%w: rule without driver", ErrInvalidRegistration)
		}
		for _, hr := range dr.Handlers {
			for _, vr := range hr.Variants {
				if vr.Variant == "" {
					return fmt.Errorf("%w: rule %s/%s without variant", ErrInvalidRegistration, dr.Driver, handlerKey(hr.Handler))
				}
			}
		}
	}
	return nil
}

// Units flattens the tree into dispatch units in tree order.
func (r Rules) Units() []Unit {
	var units []Unit
	for _, dr := range r {
		for _, hr := range dr.Handlers {
			for _, vr := range hr.Variants {
				units = append(units, Unit{
					Driver:  dr.Driver,
					Handler: handlerKey(hr.Handler),
					Variant: vr.Variant,
					Options: vr.Options,
				})
			}
		}
	}
	return units
}

// Unit is one (driver, handler, variant) dispatch.
type Unit struct {
	Driver  string
	Handler string
	Variant string
	Options Options
}
