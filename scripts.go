package fgen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gobeaver/fgen/internal/ordered"
)

// ScriptStep asks for one variant of one handler, with options that are
// laid over the configured ones.
type ScriptStep struct {
	Handler string  `json:"handler,omitempty" yaml:"handler,omitempty" toml:"handler,omitempty"`
	Variant string  `json:"variant" yaml:"variant" toml:"variant"`
	Options Options `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
}

// Script is an explicit, ordered processing request that replaces the
// rule tree for one Process call.
type Script []ScriptStep

// ParseScript builds a Script from shorthand entries of the form
//
//	[handler.]variant[:key=value[,key=value...]]
//
// A missing handler means the driver default. Values that parse as bool,
// int or float keep that type.
func ParseScript(entries ...string) (Script, error) {
	script := make(Script, 0, len(entries))
	for _, entry := range entries {
		step, err := parseStep(entry)
		if err != nil {
			return nil, err
		}
		script = append(script, step)
	}
	return script, nil
}

func parseStep(entry string) (ScriptStep, error) {
	entry = strings.TrimSpace(entry)
	target, rawOpts, hasOpts := strings.Cut(entry, ":")

	var step ScriptStep
	if h, v, ok := strings.Cut(target, "."); ok {
		step.Handler, step.Variant = strings.TrimSpace(h), strings.TrimSpace(v)
	} else {
		step.Variant = strings.TrimSpace(target)
	}
	step.Handler = handlerKey(step.Handler)
	if step.Variant == "" {
		return ScriptStep{}, fmt.Errorf("%w: script entry %q has no variant", ErrInvalidRegistration, entry)
	}

	if !hasOpts {
		return step, nil
	}
	step.Options = Options{}
	for _, pair := range strings.Split(rawOpts, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return ScriptStep{}, fmt.Errorf("%w: script entry %q: bad option %q", ErrInvalidRegistration, entry, pair)
		}
		step.Options[k] = parseValue(strings.TrimSpace(v))
	}
	return step, nil
}

func parseValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// String renders the script back in shorthand form.
func (s Script) String() string {
	parts := make([]string, 0, len(s))
	for _, step := range s {
		var b strings.Builder
		if h := handlerKey(step.Handler); h != DefaultHandler {
			b.WriteString(h)
			b.WriteByte('.')
		}
		b.WriteString(step.Variant)
		if len(step.Options) > 0 {
			keys := make([]string, 0, len(step.Options))
			for k := range step.Options {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteByte(':')
			for i, k := range keys {
				if i > 0 {
					b.WriteByte(',')
				}
				fmt.Fprintf(&b, "%s=%v", k, step.Options[k])
			}
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

// ScriptTranslator turns a script into the rule subtree dispatched for one
// driver.
type ScriptTranslator interface {
	Translate(driver string, script Script, tree *RuleTree) []HandlerRule
}

// DefaultTranslator starts each step from the options configured for
// (driver, handler, variant), lays the step's options over them and
// collects the steps in order. Repeated steps merge into the same variant.
type DefaultTranslator struct{}

// Translate implements ScriptTranslator.
func (DefaultTranslator) Translate(driver string, script Script, tree *RuleTree) []HandlerRule {
	out := NewRuleTree()
	for _, step := range script {
		if step.Variant == "" {
			continue
		}
		handler := handlerKey(step.Handler)
		opts := step.Options
		if _, seen := out.OptionsFor(driver, handler, step.Variant); !seen && tree != nil {
			if configured, ok := tree.OptionsFor(driver, handler, step.Variant); ok {
				opts = configured.Merge(step.Options)
			}
		}
		_ = out.AddOptions(driver, handler, step.Variant, opts, true)
	}
	return out.RulesFor(driver)
}

// ScriptRegistry stores named scripts.
type ScriptRegistry struct {
	mu      sync.RWMutex
	scripts *ordered.Map[string, Script]
}

// NewScriptRegistry creates an empty registry.
func NewScriptRegistry() *ScriptRegistry {
	return &ScriptRegistry{scripts: ordered.New[string, Script]()}
}

// AddScript stores script under name. With replace an existing script is
// swapped whole; without it the existing one is kept.
func (r *ScriptRegistry) AddScript(name string, script Script, replace bool) error {
	if name == "" {
		return fmt.Errorf("%w: empty script name", ErrInvalidRegistration)
	}
	for _, step := range script {
		if step.Variant == "" {
			return fmt.Errorf("%w: script %q has a step without variant", ErrInvalidRegistration, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scripts.Has(name) && !replace {
		return nil
	}
	r.scripts.Set(name, cloneScript(script))
	return nil
}

// SetScripts replaces every stored script.
func (r *ScriptRegistry) SetScripts(scripts map[string]Script) error {
	fresh := NewScriptRegistry()
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := fresh.AddScript(name, scripts[name], true); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = fresh.scripts
	return nil
}

// Script returns a copy of the script stored under name.
func (r *ScriptRegistry) Script(name string) (Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scripts.Get(name)
	if !ok {
		return nil, false
	}
	return cloneScript(s), true
}

// Scripts returns the stored script names in insertion order.
func (r *ScriptRegistry) Scripts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scripts.Keys()
}

func cloneScript(s Script) Script {
	out := make(Script, len(s))
	for i, step := range s {
		out[i] = ScriptStep{Handler: step.Handler, Variant: step.Variant, Options: step.Options.Clone()}
	}
	return out
}
