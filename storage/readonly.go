package storage

import (
	"context"
	"io"
)

// ReadOnlyFS wraps a FileSystem and refuses every mutation. Handlers receive
// the source directory through it so they cannot alter the files they are
// processing.
//
//	src := storage.ReadOnly(local.New("/data/in"))
//	err := src.Write(ctx, "a.txt", r) // wraps ErrReadOnly
type ReadOnlyFS struct {
	fs      FileReader
	onWrite func(op, path string)
}

// ReadOnlyOption configures a ReadOnlyFS.
type ReadOnlyOption func(*ReadOnlyFS)

// WithWriteAttemptHook registers fn to observe refused writes.
func WithWriteAttemptHook(fn func(op, path string)) ReadOnlyOption {
	return func(r *ReadOnlyFS) {
		r.onWrite = fn
	}
}

// ReadOnly returns a read-only view of fs. Wrapping an existing view returns
// it unchanged.
func ReadOnly(fs FileReader, opts ...ReadOnlyOption) *ReadOnlyFS {
	if ro, ok := fs.(*ReadOnlyFS); ok && len(opts) == 0 {
		return ro
	}
	r := &ReadOnlyFS{fs: fs}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Unwrap returns the wrapped reader.
func (r *ReadOnlyFS) Unwrap() FileReader {
	return r.fs
}

// Root reports the root of the wrapped backend.
func (r *ReadOnlyFS) Root() string {
	return RootOf(r.fs)
}

func (r *ReadOnlyFS) refuse(op, path string) error {
	if r.onWrite != nil {
		r.onWrite(op, path)
	}
	return NewPathError(op, path, ErrReadOnly)
}

func (r *ReadOnlyFS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	return r.fs.Read(ctx, path)
}

func (r *ReadOnlyFS) ReadAll(ctx context.Context, path string) ([]byte, error) {
	return r.fs.ReadAll(ctx, path)
}

func (r *ReadOnlyFS) FileExists(ctx context.Context, path string) (bool, error) {
	return r.fs.FileExists(ctx, path)
}

func (r *ReadOnlyFS) DirExists(ctx context.Context, path string) (bool, error) {
	return r.fs.DirExists(ctx, path)
}

func (r *ReadOnlyFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	return r.fs.Stat(ctx, path)
}

func (r *ReadOnlyFS) ListContents(ctx context.Context, path string, recursive bool) ([]FileInfo, error) {
	return r.fs.ListContents(ctx, path, recursive)
}

// Checksums delegates to the wrapped backend, hashing natively when it can.
func (r *ReadOnlyFS) Checksums(ctx context.Context, path string, algorithms []ChecksumAlgorithm) (map[ChecksumAlgorithm]string, error) {
	return Checksums(ctx, r.fs, path, algorithms)
}

// Write always fails with ErrReadOnly.
func (r *ReadOnlyFS) Write(_ context.Context, path string, _ io.Reader, _ ...Option) error {
	return r.refuse("write", path)
}

// Delete always fails with ErrReadOnly.
func (r *ReadOnlyFS) Delete(_ context.Context, path string) error {
	return r.refuse("delete", path)
}

// CreateDir always fails with ErrReadOnly.
func (r *ReadOnlyFS) CreateDir(_ context.Context, path string) error {
	return r.refuse("createdir", path)
}

var (
	_ FileSystem  = (*ReadOnlyFS)(nil)
	_ CanChecksum = (*ReadOnlyFS)(nil)
)
