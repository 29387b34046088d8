package fgen

import (
	"context"
	"path"
	"strings"

	"github.com/gobeaver/fgen/inspect"
	"github.com/gobeaver/fgen/storage"
)

// FileType describes what a determiner found out about a file. Type is the
// key used for driver resolution; the zero value means undetermined.
type FileType struct {
	Type      string `json:"type" yaml:"type" toml:"type"`
	MIME      string `json:"mime,omitempty" yaml:"mime,omitempty" toml:"mime,omitempty"`
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty" toml:"extension,omitempty"`
}

// IsZero reports whether nothing was determined.
func (t FileType) IsZero() bool {
	return t.Type == ""
}

// TypeDeterminer reports the type of a stored file. Missing or unreadable
// files yield the zero FileType.
type TypeDeterminer interface {
	Determine(ctx context.Context, src storage.FileReader, path string) FileType
}

// TypeDeterminerFunc adapts a function into a TypeDeterminer.
type TypeDeterminerFunc func(ctx context.Context, src storage.FileReader, path string) FileType

// Determine implements TypeDeterminer.
func (f TypeDeterminerFunc) Determine(ctx context.Context, src storage.FileReader, path string) FileType {
	return f(ctx, src, path)
}

// MIMEDeterminer sniffs the MIME type from the file's leading bytes and
// falls back to the extension table for generic content. Type equals the
// MIME type.
type MIMEDeterminer struct{}

// Determine implements TypeDeterminer.
func (MIMEDeterminer) Determine(ctx context.Context, src storage.FileReader, p string) FileType {
	if exists, err := src.FileExists(ctx, p); err != nil || !exists {
		return FileType{}
	}
	detected, err := inspect.DetectFile(ctx, src, p)
	if err != nil || detected == "" {
		return FileType{}
	}
	return FileType{Type: detected, MIME: detected, Extension: extensionOf(p, detected)}
}

// ExtensionDeterminer derives the type from the file name alone. Files
// without a known extension are typed by their lower-cased extension so an
// extension can still serve as a driver name.
type ExtensionDeterminer struct{}

// Determine implements TypeDeterminer.
func (ExtensionDeterminer) Determine(ctx context.Context, src storage.FileReader, p string) FileType {
	if exists, err := src.FileExists(ctx, p); err != nil || !exists {
		return FileType{}
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" {
		return FileType{}
	}
	if m := inspect.MIMETypeForExtension(ext); m != "" {
		return FileType{Type: m, MIME: m, Extension: ext}
	}
	return FileType{Type: ext, Extension: ext}
}

func extensionOf(p, mimeType string) string {
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return inspect.ExtensionForMIME(mimeType)
}
