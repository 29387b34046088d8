// Package storage is the file access layer used by the dispatcher, its
// inspectors and its handlers.
//
// Source files are read through a [FileReader]; handler output is written
// through a [FileSystem]. Backends live in the local, memory and s3
// subpackages. Optional capabilities are discovered with type assertions:
//
//	if cs, ok := fsys.(storage.CanChecksum); ok {
//	    sums, err := cs.Checksums(ctx, "photo.jpg", []storage.ChecksumAlgorithm{storage.ChecksumSHA256})
//	}
package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents file/directory metadata
type FileInfo struct {
	Name        string
	Path        string
	Size        int64
	ModTime     time.Time
	IsDir       bool
	ContentType string
	Metadata    map[string]string
}

// FileReader provides read-only access to a storage backend.
type FileReader interface {
	// Read returns a stream for reading file content.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// ReadAll reads entire file into memory. Use for small files only.
	ReadAll(ctx context.Context, path string) ([]byte, error)

	// FileExists checks if a file exists at path.
	FileExists(ctx context.Context, path string) (bool, error)

	// DirExists checks if a directory exists at path.
	DirExists(ctx context.Context, path string) (bool, error)

	// Stat returns file/directory metadata.
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// ListContents lists directory contents.
	// If recursive is true, includes all descendants.
	ListContents(ctx context.Context, path string, recursive bool) ([]FileInfo, error)
}

// FileWriter provides write operations.
type FileWriter interface {
	// Write writes content from reader to path.
	Write(ctx context.Context, path string, r io.Reader, opts ...Option) error

	// Delete removes a file.
	Delete(ctx context.Context, path string) error

	// CreateDir creates a directory (and parents if needed).
	CreateDir(ctx context.Context, path string) error
}

// FileSystem provides full read-write access.
type FileSystem interface {
	FileReader
	FileWriter
}

// ChecksumAlgorithm represents a supported checksum algorithm
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
	ChecksumSHA512 ChecksumAlgorithm = "sha512"
	ChecksumCRC32  ChecksumAlgorithm = "crc32"
	ChecksumXXHash ChecksumAlgorithm = "xxhash"
)

// CanChecksum indicates the backend can hash files without handing the
// content to the caller.
type CanChecksum interface {
	// Checksums calculates multiple checksums in a single read pass.
	// Returns a map of algorithm to hex-encoded checksum.
	Checksums(ctx context.Context, path string, algorithms []ChecksumAlgorithm) (map[ChecksumAlgorithm]string, error)
}

// Rooted is implemented by backends that map onto a directory or prefix.
// Root reports that location so it can be shown to handlers and users.
type Rooted interface {
	Root() string
}

// RootOf returns the root of fsys when it is [Rooted], or "".
func RootOf(fsys FileReader) string {
	if r, ok := fsys.(Rooted); ok {
		return r.Root()
	}
	return ""
}
