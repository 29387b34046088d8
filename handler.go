package fgen

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/gobeaver/fgen/storage"
)

// Output is whatever a handler produces for one variant.
type Output = any

// Call carries everything a handler needs for one operation on one file.
// Directories travel with the call so cached handler instances hold no
// per-file state.
type Call struct {
	RunID     string
	Driver    string
	Handler   string
	Variant   string
	Operation string

	// Filename is the file path relative to Source.
	Filename string
	FileType FileType
	Options  Options

	// SourceDir and DestinationDir describe where the file came from and
	// where output goes. DestinationDir is a path inside Destination.
	SourceDir      string
	DestinationDir string

	Source      storage.FileReader
	Destination storage.FileSystem
}

// OutputPath joins name onto the call's destination directory.
func (c *Call) OutputPath(name string) string {
	if c.DestinationDir == "" {
		return name
	}
	return path.Join(c.DestinationDir, name)
}

// Handler performs named operations on files. Failures are returned as
// errors, never as panics.
type Handler interface {
	Handle(ctx context.Context, call *Call) (Output, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, call *Call) (Output, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, call *Call) (Output, error) {
	return f(ctx, call)
}

// HandlerFactory constructs a handler instance. The dispatcher calls it at
// most once per implementation until construction succeeds.
type HandlerFactory func() (Handler, error)

// OperationFunc implements a single handler operation.
type OperationFunc func(ctx context.Context, call *Call) (Output, error)

// Operation names that cannot be registered.
const (
	reservedHandle               = "handle"
	reservedSourceDirectory      = "source_directory"
	reservedDestinationDirectory = "destination_directory"
)

// IsReservedOperation reports whether name is reserved by the handler
// contract.
func IsReservedOperation(name string) bool {
	switch name {
	case reservedHandle, reservedSourceDirectory, reservedDestinationDirectory:
		return true
	}
	return false
}

// Operations is a Handler built from a table of named operations. Embed it
// or return it from a HandlerFactory:
//
//	ops := fgen.NewOperations()
//	_ = ops.Register("thumbnail", makeThumbnail)
//	return ops, nil
type Operations struct {
	ops map[string]OperationFunc
}

// NewOperations creates an empty operation table.
func NewOperations() *Operations {
	return &Operations{ops: make(map[string]OperationFunc)}
}

// Register adds an operation. Reserved and empty names are refused.
func (o *Operations) Register(name string, fn OperationFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("%w: operation %q", ErrInvalidRegistration, name)
	}
	if IsReservedOperation(name) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRegistration, ErrReservedOperation, name)
	}
	if o.ops == nil {
		o.ops = make(map[string]OperationFunc)
	}
	o.ops[name] = fn
	return nil
}

// Has reports whether name is registered.
func (o *Operations) Has(name string) bool {
	_, ok := o.ops[name]
	return ok
}

// Names returns the registered operation names, sorted.
func (o *Operations) Names() []string {
	names := make([]string, 0, len(o.ops))
	for name := range o.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle implements Handler. The file must exist in the call's source and
// the operation must be registered.
func (o *Operations) Handle(ctx context.Context, call *Call) (Output, error) {
	if call.Source == nil {
		return nil, fmt.Errorf("%w: no source storage", ErrFileNotFound)
	}
	exists, err := call.Source.FileExists(ctx, call.Filename)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, call.Filename)
	}

	fn, ok := o.ops[call.Operation]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, call.Operation)
	}
	return fn(ctx, call)
}
