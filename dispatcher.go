package fgen

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gobeaver/fgen/storage"
)

const tracerName = "github.com/gobeaver/fgen"

// Dispatcher runs files through the processing pipeline:
//
//	detect type → resolve driver → inspect → resolve rules → dispatch
//
// Every Dispatcher owns its registries, rule tree, scripts and handler
// instances. Configure it before processing; concurrent Process calls are
// safe.
type Dispatcher struct {
	source      storage.FileReader
	readOnlySrc *storage.ReadOnlyFS

	logger     *slog.Logger
	tracer     trace.Tracer
	determiner TypeDeterminer
	translator ScriptTranslator

	catalog    *Catalog
	relations  *RelationTable
	handlers   *HandlerRegistry
	inspectors *InspectorRegistry
	rules      *RuleTree
	scripts    *ScriptRegistry

	handlerCache   *instanceCache[*handlerInstance]
	inspectorCache *instanceCache[Inspector]

	mu         sync.RWMutex
	settings   dispatcherOptions
	lastResult *Result
}

// NewDispatcher creates a dispatcher that reads files from source.
func NewDispatcher(source storage.FileReader, opts ...Option) *Dispatcher {
	o := defaultDispatcherOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.determiner == nil {
		o.determiner = MIMEDeterminer{}
	}
	if o.translator == nil {
		o.translator = DefaultTranslator{}
	}

	catalog := NewCatalog()
	d := &Dispatcher{
		source:         source,
		logger:         o.logger,
		tracer:         o.tracer,
		determiner:     o.determiner,
		translator:     o.translator,
		catalog:        catalog,
		relations:      NewRelationTable(o.fileTypeEqualDriverName),
		handlers:       NewHandlerRegistry(catalog),
		inspectors:     NewInspectorRegistry(catalog),
		rules:          NewRuleTree(),
		scripts:        NewScriptRegistry(),
		handlerCache:   newInstanceCache[*handlerInstance](),
		inspectorCache: newInstanceCache[Inspector](),
		settings:       o,
	}
	if source != nil {
		d.readOnlySrc = storage.ReadOnly(source, storage.WithWriteAttemptHook(func(op, p string) {
			d.logger.Warn("handler attempted to write to source", "op", op, "path", p)
		}))
	}
	return d
}

// Catalog returns the implementation catalog handlers and inspectors are
// registered in.
func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

// Relations returns the file type to driver table.
func (d *Dispatcher) Relations() *RelationTable { return d.relations }

// Handlers returns the handler registry.
func (d *Dispatcher) Handlers() *HandlerRegistry { return d.handlers }

// Inspectors returns the inspector registry.
func (d *Dispatcher) Inspectors() *InspectorRegistry { return d.inspectors }

// Rules returns the rule tree.
func (d *Dispatcher) Rules() *RuleTree { return d.rules }

// Scripts returns the named script registry.
func (d *Dispatcher) Scripts() *ScriptRegistry { return d.scripts }

// Determiner returns the type determiner used by Process.
func (d *Dispatcher) Determiner() TypeDeterminer { return d.determiner }

// Source returns the storage files are read from.
func (d *Dispatcher) Source() storage.FileReader { return d.source }

// RegisterHandler adds a handler implementation to the catalog.
func (d *Dispatcher) RegisterHandler(id string, factory HandlerFactory) error {
	return d.catalog.RegisterHandler(id, factory)
}

// RegisterInspector adds an inspector implementation to the catalog.
func (d *Dispatcher) RegisterInspector(id string, factory InspectorFactory) error {
	return d.catalog.RegisterInspector(id, factory)
}

// AddRelation maps fileType to driver.
func (d *Dispatcher) AddRelation(driver, fileType string, replace bool) error {
	return d.relations.AddRelation(driver, fileType, replace)
}

// AddHandler assigns an implementation to (driver, handler).
func (d *Dispatcher) AddHandler(driver, handler, implementationID string, replace bool) error {
	return d.handlers.AddHandler(driver, handler, implementationID, replace)
}

// AddInspector assigns an inspector to driver.
func (d *Dispatcher) AddInspector(driver, inspectorID string, replace bool) error {
	return d.inspectors.AddInspector(driver, inspectorID, replace)
}

// SetRelations replaces every type to driver mapping.
func (d *Dispatcher) SetRelations(relations map[string][]string) error {
	return d.relations.SetRelations(relations)
}

// SetHandlers replaces every handler slot.
func (d *Dispatcher) SetHandlers(handlers map[string]map[string]string) error {
	return d.handlers.SetHandlers(handlers)
}

// SetInspectors replaces the driver to inspector mapping.
func (d *Dispatcher) SetInspectors(inspectors map[string]string) error {
	return d.inspectors.SetInspectors(inspectors)
}

// AddRules merges rules into the rule tree.
func (d *Dispatcher) AddRules(rules Rules, replace bool) error {
	return d.rules.AddRules(rules, replace)
}

// AddOptions merges one variant into the rule tree.
func (d *Dispatcher) AddOptions(driver, handler, variant string, options Options, replace bool) error {
	return d.rules.AddOptions(driver, handler, variant, options, replace)
}

// AddScript stores a named script.
func (d *Dispatcher) AddScript(name string, script Script, replace bool) error {
	return d.scripts.AddScript(name, script, replace)
}

// SetFallbackHandler changes the implementation used when no rule or
// registry entry names one.
func (d *Dispatcher) SetFallbackHandler(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.fallbackHandler = id
}

// SetZeroConfig toggles falling back to the rule tree without a script.
func (d *Dispatcher) SetZeroConfig(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings.zeroConfig = enabled
}

// LastResult returns the result of the most recent successful Process
// call, or nil.
func (d *Dispatcher) LastResult() *Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastResult
}

func (d *Dispatcher) snapshot() dispatcherOptions {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// run carries the state of one Process call.
type run struct {
	id       string
	path     string
	fileType FileType
	driver   string
	settings dispatcherOptions
	opts     processOptions
}

// Process runs filename through the pipeline. Terminal failures are
// returned as *ProcessError; units that fail are listed in
// Result.Skipped and do not fail the call.
func (d *Dispatcher) Process(ctx context.Context, filename string, opts ...ProcessOption) (*Result, error) {
	r := &run{
		id:       uuid.NewString(),
		path:     filename,
		settings: d.snapshot(),
	}
	for _, opt := range opts {
		opt(&r.opts)
	}

	ctx, span := d.tracer.Start(ctx, "fgen.Process", trace.WithAttributes(
		attribute.String("fgen.run_id", r.id),
		attribute.String("fgen.path", filename),
	))
	defer span.End()

	logger := d.logger.With("run_id", r.id, "path", filename)

	res, err := d.process(ctx, logger, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info("processing stopped", "stage", StageOf(err), "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("fgen.outputs", res.Len()),
		attribute.Int("fgen.skipped", len(res.Skipped)),
	)
	logger.Info("processing done", "driver", r.driver, "outputs", res.Len(), "skipped", len(res.Skipped))

	d.mu.Lock()
	d.lastResult = res
	d.mu.Unlock()
	return res, nil
}

func (d *Dispatcher) process(ctx context.Context, logger *slog.Logger, r *run) (*Result, error) {
	fail := func(stage Stage, err error) error {
		return &ProcessError{Stage: stage, Path: r.path, Driver: r.driver, Err: err}
	}

	// Start
	if d.source == nil {
		return nil, fail(StageStart, fmt.Errorf("%w: no source storage", ErrFileNotFound))
	}
	exists, err := d.source.FileExists(ctx, r.path)
	if err != nil {
		return nil, fail(StageStart, fmt.Errorf("%w: %w", ErrFileNotFound, err))
	}
	if !exists {
		return nil, fail(StageStart, ErrFileNotFound)
	}

	// TypeDetected
	r.fileType = d.determiner.Determine(ctx, d.readOnlySrc, r.path)
	logger.Debug("type detected", "type", r.fileType.Type, "extension", r.fileType.Extension)

	// DriverResolved
	driver, ok := "", false
	if !r.fileType.IsZero() {
		driver, ok = d.relations.DriverNameFor(r.fileType.Type)
	}
	if !ok {
		return nil, fail(StageTypeDetected, fmt.Errorf("%w: type %q", ErrDriverUnresolved, r.fileType.Type))
	}
	r.driver = driver
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("fgen.type", r.fileType.Type),
		attribute.String("fgen.driver", driver),
	)
	logger.Debug("driver resolved", "driver", driver)

	// Inspected
	if err := d.inspect(ctx, r); err != nil {
		return nil, fail(StageDriverResolved, err)
	}
	logger.Debug("inspected", "driver", driver)

	// RulesResolved
	handlerRules, err := d.resolveRules(r)
	if err != nil {
		return nil, fail(StageInspected, err)
	}
	units := Rules{{Driver: driver, Handlers: handlerRules}}.Units()
	logger.Debug("rules resolved", "units", len(units))

	// Dispatched
	res := newResult(r.id, r.path)
	res.FileType = r.fileType
	res.Driver = driver
	d.dispatch(ctx, logger, r, units, res)
	return res, nil
}

func (d *Dispatcher) inspect(ctx context.Context, r *run) error {
	id, ok := d.inspectors.InspectorFor(r.driver)
	if !ok {
		return nil
	}
	inspector, err := d.inspectorInstance(id)
	if err != nil {
		return fmt.Errorf("%w: inspector %q: %w", ErrTypeMismatch, id, err)
	}
	passed, err := inspector.Check(ctx, d.readOnlySrc, r.path, r.fileType.Type)
	if err != nil {
		return fmt.Errorf("%w: inspector %q: %w", ErrTypeMismatch, id, err)
	}
	if !passed {
		return fmt.Errorf("%w: inspector %q rejected %q", ErrTypeMismatch, id, r.fileType.Type)
	}
	return nil
}

func (d *Dispatcher) resolveRules(r *run) ([]HandlerRule, error) {
	script := r.opts.script
	if script == nil && r.opts.scriptName != "" {
		named, ok := d.scripts.Script(r.opts.scriptName)
		if !ok {
			return nil, fmt.Errorf("%w: unknown script %q", ErrNoConfiguration, r.opts.scriptName)
		}
		script = named
	}
	switch {
	case script != nil:
		return d.translator.Translate(r.driver, script, d.rules), nil
	case r.settings.zeroConfig:
		return d.rules.RulesFor(r.driver), nil
	default:
		return nil, ErrNoConfiguration
	}
}

type unitOutcome struct {
	output Output
	skip   *UnitError
}

func (d *Dispatcher) dispatch(ctx context.Context, logger *slog.Logger, r *run, units []Unit, res *Result) {
	outcomes := make([]unitOutcome, len(units))

	if r.settings.parallel && len(units) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.settings.maxWorkers)
		for i, u := range units {
			g.Go(func() error {
				outcomes[i] = d.runUnit(gctx, logger, r, u)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, u := range units {
			outcomes[i] = d.runUnit(ctx, logger, r, u)
		}
	}

	for i, u := range units {
		if skip := outcomes[i].skip; skip != nil {
			res.Skipped = append(res.Skipped, *skip)
			continue
		}
		res.set(u.Driver, u.Handler, u.Variant, outcomes[i].output)
	}
}

func (d *Dispatcher) runUnit(ctx context.Context, logger *slog.Logger, r *run, u Unit) unitOutcome {
	ctx, span := d.tracer.Start(ctx, "fgen.Handle", trace.WithAttributes(
		attribute.String("fgen.driver", u.Driver),
		attribute.String("fgen.handler", u.Handler),
		attribute.String("fgen.variant", u.Variant),
	))
	defer span.End()

	skip := func(reason Reason, err error) unitOutcome {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(reason))
		logger.Warn("unit skipped",
			"driver", u.Driver, "handler", u.Handler, "variant", u.Variant,
			"reason", reason, "error", err)
		return unitOutcome{skip: &UnitError{
			Driver: u.Driver, Handler: u.Handler, Variant: u.Variant,
			Reason: reason, Err: err,
		}}
	}

	id := u.Options.Handler()
	if id == "" {
		var ok bool
		id, ok = d.handlers.HandlerFor(u.Driver, u.Handler, r.settings.fallbackHandler)
		if !ok {
			return skip(ReasonHandlerUnresolvable, ErrHandlerUnresolvable)
		}
	}
	if !d.catalog.HasHandler(id) {
		return skip(ReasonHandlerUnresolvable, fmt.Errorf("%w: unknown implementation %q", ErrHandlerUnresolvable, id))
	}

	inst, err := d.handlerInstance(id)
	if err != nil {
		return skip(ReasonConstructFailed, fmt.Errorf("%w: construct %q: %w", ErrHandlerFailed, id, err))
	}

	operation := u.Options.Method()
	if operation == "" {
		operation = u.Variant
	}
	span.SetAttributes(
		attribute.String("fgen.implementation", id),
		attribute.String("fgen.operation", operation),
	)

	out, err := inst.handle(ctx, d.newCall(r, u, operation))
	switch {
	case err != nil:
		return skip(ReasonHandlerFailed, fmt.Errorf("%w: %w", ErrHandlerFailed, err))
	case out == nil:
		return skip(ReasonEmptyOutput, fmt.Errorf("%w: no output", ErrHandlerFailed))
	}
	return unitOutcome{output: out}
}

func (d *Dispatcher) newCall(r *run, u Unit, operation string) *Call {
	sourceDir := path.Dir(r.path)
	if sourceDir == "." {
		sourceDir = ""
	}

	destDir := sourceDir
	if r.settings.destinationDir != "" {
		destDir = r.settings.destinationDir
	}
	if r.opts.destinationDir != nil {
		destDir = *r.opts.destinationDir
	}

	dest := r.opts.destination
	if dest == nil {
		dest = r.settings.destination
	}
	if dest == nil {
		dest = d.defaultDestination()
	}

	return &Call{
		RunID:          r.id,
		Driver:         u.Driver,
		Handler:        u.Handler,
		Variant:        u.Variant,
		Operation:      operation,
		Filename:       r.path,
		FileType:       r.fileType,
		Options:        u.Options.Clone(),
		SourceDir:      sourceDir,
		DestinationDir: destDir,
		Source:         d.readOnlySrc,
		Destination:    dest,
	}
}

// defaultDestination writes next to the source when the source is
// writable and refuses writes otherwise.
func (d *Dispatcher) defaultDestination() storage.FileSystem {
	if fsys, ok := d.source.(storage.FileSystem); ok {
		return fsys
	}
	return d.readOnlySrc
}
