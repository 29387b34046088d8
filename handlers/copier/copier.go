// Package copier stores the source file in the destination storage.
//
// Operations copy and original write the file to
// "<destination dir>/<prefix>/<name>", where prefix defaults to the
// variant name. Options:
//
//	prefix     sub-directory below the destination directory
//	unique     name the copy with a random UUID, keeping the extension
//	overwrite  replace an existing copy (default true)
package copier

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/gobeaver/fgen"
	"github.com/gobeaver/fgen/storage"
)

// ID is the catalog identifier used by the CLI preset.
const ID = "copy"

// Output describes a stored copy.
type Output struct {
	Path string `json:"path" yaml:"path" toml:"path"`
	Size int64  `json:"size" yaml:"size" toml:"size"`
}

// Handler copies files between storages.
type Handler struct {
	*fgen.Operations
	newName func() string
}

// New creates a copy handler.
func New() *Handler {
	h := &Handler{Operations: fgen.NewOperations(), newName: uuid.NewString}
	_ = h.Register("copy", h.copy)
	_ = h.Register("original", h.copy)
	return h
}

// Factory returns a catalog factory for the handler.
func Factory() fgen.HandlerFactory {
	return func() (fgen.Handler, error) {
		return New(), nil
	}
}

func (h *Handler) copy(ctx context.Context, call *fgen.Call) (fgen.Output, error) {
	target := h.target(call)

	rc, err := call.Source.Read(ctx, call.Filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	opts := []storage.Option{storage.WithOverwrite(call.Options.Bool("overwrite", true))}
	if ct := call.FileType.MIME; ct != "" {
		opts = append(opts, storage.WithContentType(ct))
	}
	if err := call.Destination.Write(ctx, target, rc, opts...); err != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", call.Filename, target, err)
	}

	info, err := call.Destination.Stat(ctx, target)
	if err != nil {
		return nil, err
	}
	return Output{Path: target, Size: info.Size}, nil
}

func (h *Handler) target(call *fgen.Call) string {
	name := path.Base(call.Filename)
	if call.Options.Bool("unique", false) {
		ext := strings.ToLower(path.Ext(name))
		if ext == "" && call.FileType.Extension != "" {
			ext = "." + call.FileType.Extension
		}
		name = h.newName() + ext
	}

	prefix, ok := call.Options.String("prefix")
	if !ok {
		prefix = call.Variant
	}
	return call.OutputPath(path.Join(prefix, name))
}
