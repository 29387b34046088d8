package fgen

import (
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/gobeaver/fgen/storage"
)

// Reserved option keys.
const (
	// OptionHandler names an implementation that supersedes the registry.
	OptionHandler = "handler"

	// OptionMethod names the operation to invoke instead of the variant.
	OptionMethod = "method"
)

// Options is the option-set attached to a rule tree variant.
type Options map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty set.
func (o Options) Clone() Options {
	if o == nil {
		return Options{}
	}
	return maps.Clone(o)
}

// Merge returns a new set holding the keys of o overlaid with the keys of
// next. Neither input is modified.
func (o Options) Merge(next Options) Options {
	merged := o.Clone()
	maps.Copy(merged, next)
	return merged
}

// Handler returns the implementation override, if any.
func (o Options) Handler() string {
	s, _ := o.String(OptionHandler)
	return s
}

// Method returns the operation override, if any.
func (o Options) Method() string {
	s, _ := o.String(OptionMethod)
	return s
}

// String returns the value under key rendered as a string.
func (o Options) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Bool returns the value under key as a bool, or def.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Int returns the value under key as an int, or def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Strings returns the value under key as a list. Strings are split on
// commas and "|" so script shorthand can carry lists.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '|' })
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		return fields
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(v)}
	}
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	logger                  *slog.Logger
	tracer                  trace.Tracer
	determiner              TypeDeterminer
	translator              ScriptTranslator
	destination             storage.FileSystem
	destinationDir          string
	fallbackHandler         string
	zeroConfig              bool
	fileTypeEqualDriverName bool
	parallel                bool
	maxWorkers              int
}

func defaultDispatcherOptions() dispatcherOptions {
	return dispatcherOptions{
		zeroConfig:              true,
		fileTypeEqualDriverName: true,
		maxWorkers:              4,
	}
}

// WithLogger sets the structured logger. slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}

// WithTracer sets the tracer used for pipeline spans. The global otel
// tracer provider is used otherwise.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *dispatcherOptions) {
		o.tracer = tracer
	}
}

// WithDeterminer replaces the default MIMEDeterminer.
func WithDeterminer(determiner TypeDeterminer) Option {
	return func(o *dispatcherOptions) {
		o.determiner = determiner
	}
}

// WithTranslator replaces the DefaultTranslator used for scripts.
func WithTranslator(translator ScriptTranslator) Option {
	return func(o *dispatcherOptions) {
		o.translator = translator
	}
}

// WithDestinationFS sets where handlers write output. Without it the
// source storage is used when it is writable.
func WithDestinationFS(fsys storage.FileSystem) Option {
	return func(o *dispatcherOptions) {
		o.destination = fsys
	}
}

// WithDefaultDestinationDir sets the output directory inside the destination
// storage used when a call does not pass WithDestinationDir.
func WithDefaultDestinationDir(dir string) Option {
	return func(o *dispatcherOptions) {
		o.destinationDir = dir
	}
}

// WithFallbackHandler sets the implementation used when neither a rule nor
// the registry names one.
func WithFallbackHandler(id string) Option {
	return func(o *dispatcherOptions) {
		o.fallbackHandler = id
	}
}

// WithZeroConfig toggles falling back to the rule tree when no script is
// supplied. Enabled by default.
func WithZeroConfig(enabled bool) Option {
	return func(o *dispatcherOptions) {
		o.zeroConfig = enabled
	}
}

// WithFileTypeEqualDriverName toggles treating an unmapped file type as its
// own driver name. Enabled by default.
func WithFileTypeEqualDriverName(enabled bool) Option {
	return func(o *dispatcherOptions) {
		o.fileTypeEqualDriverName = enabled
	}
}

// WithParallel runs the units of one file concurrently on at most
// maxWorkers goroutines. maxWorkers <= 0 keeps the current limit.
func WithParallel(maxWorkers int) Option {
	return func(o *dispatcherOptions) {
		o.parallel = true
		if maxWorkers > 0 {
			o.maxWorkers = maxWorkers
		}
	}
}

// ProcessOption configures a single Process call.
type ProcessOption func(*processOptions)

type processOptions struct {
	script         Script
	scriptName     string
	destination    storage.FileSystem
	destinationDir *string
}

// WithScript processes the file with script instead of the rule tree.
func WithScript(script Script) ProcessOption {
	return func(o *processOptions) {
		o.script = script
	}
}

// WithScriptName processes the file with a script registered by AddScript.
func WithScriptName(name string) ProcessOption {
	return func(o *processOptions) {
		o.scriptName = name
	}
}

// WithDestinationDir overrides the output directory for this call.
func WithDestinationDir(dir string) ProcessOption {
	return func(o *processOptions) {
		o.destinationDir = &dir
	}
}

// WithDestination overrides the destination storage for this call.
func WithDestination(fsys storage.FileSystem) ProcessOption {
	return func(o *processOptions) {
		o.destination = fsys
	}
}
