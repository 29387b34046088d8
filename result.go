package fgen

import (
	"bytes"
	"encoding/json"

	"github.com/gobeaver/fgen/internal/ordered"
)

type (
	variantOutputs = ordered.Map[string, Output]
	handlerOutputs = ordered.Map[string, *variantOutputs]
)

// Result holds what one Process call produced, keyed driver → handler →
// variant in rule tree order. Units that produced nothing are listed in
// Skipped.
type Result struct {
	RunID    string
	Path     string
	FileType FileType
	Driver   string
	Skipped  []UnitError

	outputs *ordered.Map[string, *handlerOutputs]
}

func newResult(runID, p string) *Result {
	return &Result{RunID: runID, Path: p, outputs: ordered.New[string, *handlerOutputs]()}
}

func (r *Result) set(driver, handler, variant string, out Output) {
	hm, ok := r.outputs.Get(driver)
	if !ok {
		hm = ordered.New[string, *variantOutputs]()
		r.outputs.Set(driver, hm)
	}
	vm, ok := hm.Get(handler)
	if !ok {
		vm = ordered.New[string, Output]()
		hm.Set(handler, vm)
	}
	vm.Set(variant, out)
}

// Get returns the output stored for one variant.
func (r *Result) Get(driver, handler, variant string) (Output, bool) {
	hm, ok := r.outputs.Get(driver)
	if !ok {
		return nil, false
	}
	vm, ok := hm.Get(handlerKey(handler))
	if !ok {
		return nil, false
	}
	return vm.Get(variant)
}

// Drivers returns the drivers with output.
func (r *Result) Drivers() []string {
	return r.outputs.Keys()
}

// Handlers returns the handlers with output for driver.
func (r *Result) Handlers(driver string) []string {
	hm, ok := r.outputs.Get(driver)
	if !ok {
		return nil
	}
	return hm.Keys()
}

// Variants returns the variants with output for (driver, handler).
func (r *Result) Variants(driver, handler string) []string {
	hm, ok := r.outputs.Get(driver)
	if !ok {
		return nil
	}
	vm, ok := hm.Get(handlerKey(handler))
	if !ok {
		return nil
	}
	return vm.Keys()
}

// Len returns the number of variant outputs.
func (r *Result) Len() int {
	n := 0
	r.outputs.Range(func(_ string, hm *handlerOutputs) bool {
		hm.Range(func(_ string, vm *variantOutputs) bool {
			n += vm.Len()
			return true
		})
		return true
	})
	return n
}

// IsEmpty reports whether no unit produced output.
func (r *Result) IsEmpty() bool {
	return r.Len() == 0
}

// Map returns the outputs as nested plain maps. Order is lost.
func (r *Result) Map() map[string]map[string]map[string]Output {
	out := make(map[string]map[string]map[string]Output, r.outputs.Len())
	r.outputs.Range(func(driver string, hm *handlerOutputs) bool {
		handlers := make(map[string]map[string]Output, hm.Len())
		hm.Range(func(handler string, vm *variantOutputs) bool {
			variants := make(map[string]Output, vm.Len())
			vm.Range(func(variant string, o Output) bool {
				variants[variant] = o
				return true
			})
			handlers[handler] = variants
			return true
		})
		out[driver] = handlers
		return true
	})
	return out
}

// OutputsJSON encodes the outputs as a JSON object that keeps tree order.
func (r *Result) OutputsJSON() ([]byte, error) {
	var buf bytes.Buffer
	err := writeObject(&buf, r.outputs, func(buf *bytes.Buffer, hm *handlerOutputs) error {
		return writeObject(buf, hm, func(buf *bytes.Buffer, vm *variantOutputs) error {
			return writeObject(buf, vm, func(buf *bytes.Buffer, o Output) error {
				b, err := json.Marshal(o)
				if err != nil {
					return err
				}
				buf.Write(b)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type skipJSON struct {
	Driver  string `json:"driver"`
	Handler string `json:"handler"`
	Variant string `json:"variant"`
	Reason  Reason `json:"reason"`
	Error   string `json:"error"`
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	outputs, err := r.OutputsJSON()
	if err != nil {
		return nil, err
	}
	skipped := make([]skipJSON, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		entry := skipJSON{Driver: s.Driver, Handler: s.Handler, Variant: s.Variant, Reason: s.Reason}
		if s.Err != nil {
			entry.Error = s.Err.Error()
		}
		skipped = append(skipped, entry)
	}
	return json.Marshal(struct {
		RunID    string          `json:"run_id"`
		Path     string          `json:"path"`
		FileType FileType        `json:"file_type"`
		Driver   string          `json:"driver"`
		Outputs  json.RawMessage `json:"outputs"`
		Skipped  []skipJSON      `json:"skipped,omitempty"`
	}{r.RunID, r.Path, r.FileType, r.Driver, outputs, skipped})
}

func writeObject[V any](buf *bytes.Buffer, m *ordered.Map[string, V], value func(*bytes.Buffer, V) error) error {
	buf.WriteByte('{')
	var err error
	first := true
	m.Range(func(k string, v V) bool {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		err = value(buf, v)
		return err == nil
	})
	buf.WriteByte('}')
	return err
}
