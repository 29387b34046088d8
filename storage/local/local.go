// Package local provides a storage backend rooted at a directory on the local
// filesystem. Paths given to the adapter are relative to that root and may
// not escape it.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobeaver/fgen/storage"
)

// Adapter is a storage.FileSystem backed by a local directory.
type Adapter struct {
	root string
}

// New creates an adapter rooted at root, creating the directory if needed.
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, err
	}
	return &Adapter{root: absRoot}, nil
}

// Open creates an adapter for an existing directory. It does not create root.
func Open(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, storage.NewPathError("open", root, mapError(err))
	}
	if !info.IsDir() {
		return nil, storage.NewPathError("open", root, storage.ErrNotExist)
	}
	return &Adapter{root: absRoot}, nil
}

// Root returns the absolute root directory.
func (a *Adapter) Root() string {
	return a.root
}

func (a *Adapter) resolve(op, path string) (string, error) {
	fullPath := filepath.Join(a.root, filepath.Clean("/"+filepath.FromSlash(path)))
	if !isPathUnderRoot(a.root, fullPath) {
		return "", storage.NewPathError(op, path, storage.ErrNotAllowed)
	}
	return fullPath, nil
}

// Write implements storage.FileWriter.
func (a *Adapter) Write(ctx context.Context, path string, content io.Reader, options ...storage.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("write", path)
	if err != nil {
		return err
	}
	opts := storage.ApplyOptions(options...)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return storage.NewPathError("write", path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(fullPath, flags, 0o644)
	if err != nil {
		return storage.NewPathError("write", path, mapError(err))
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return storage.NewPathError("write", path, err)
	}
	return nil
}

// Read implements storage.FileReader.
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := a.resolve("read", path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, storage.NewPathError("read", path, mapError(err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storage.NewPathError("read", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, storage.NewPathError("read", path, storage.ErrIsDir)
	}
	return f, nil
}

// ReadAll implements storage.FileReader.
func (a *Adapter) ReadAll(ctx context.Context, path string) ([]byte, error) {
	rc, err := a.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Delete implements storage.FileWriter.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("delete", path)
	if err != nil {
		return err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return storage.NewPathError("delete", path, mapError(err))
	}
	if info.IsDir() {
		return storage.NewPathError("delete", path, storage.ErrIsDir)
	}
	if err := os.Remove(fullPath); err != nil {
		return storage.NewPathError("delete", path, mapError(err))
	}
	return nil
}

// CreateDir implements storage.FileWriter.
func (a *Adapter) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := a.resolve("createdir", path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return storage.NewPathError("createdir", path, mapError(err))
	}
	return nil
}

// FileExists implements storage.FileReader.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	info, err := a.stat(ctx, "fileexists", path)
	if err != nil {
		if storage.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// DirExists implements storage.FileReader.
func (a *Adapter) DirExists(ctx context.Context, path string) (bool, error) {
	info, err := a.stat(ctx, "direxists", path)
	if err != nil {
		if storage.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Stat implements storage.FileReader.
func (a *Adapter) Stat(ctx context.Context, path string) (*storage.FileInfo, error) {
	info, err := a.stat(ctx, "stat", path)
	if err != nil {
		return nil, err
	}
	fi := a.fileInfo(filepath.Join(a.root, filepath.Clean("/"+filepath.FromSlash(path))), info)
	return &fi, nil
}

func (a *Adapter) stat(ctx context.Context, op, path string) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := a.resolve(op, path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, storage.NewPathError(op, path, mapError(err))
	}
	return info, nil
}

// ListContents implements storage.FileReader. Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, path string, recursive bool) ([]storage.FileInfo, error) {
	info, err := a.stat(ctx, "listcontents", path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, storage.NewPathError("listcontents", path, storage.ErrNotExist)
	}
	fullPath, _ := a.resolve("listcontents", path)

	var entries []storage.FileInfo
	if recursive {
		err = filepath.WalkDir(fullPath, func(walkPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if walkPath == fullPath {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			entries = append(entries, a.fileInfo(walkPath, info))
			return nil
		})
	} else {
		var dirEntries []os.DirEntry
		dirEntries, err = os.ReadDir(fullPath)
		for _, d := range dirEntries {
			info, infoErr := d.Info()
			if infoErr != nil {
				continue
			}
			entries = append(entries, a.fileInfo(filepath.Join(fullPath, d.Name()), info))
		}
	}
	if err != nil {
		return nil, storage.NewPathError("listcontents", path, mapError(err))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Checksums implements storage.CanChecksum by streaming the file once.
func (a *Adapter) Checksums(ctx context.Context, path string, algorithms []storage.ChecksumAlgorithm) (map[storage.ChecksumAlgorithm]string, error) {
	rc, err := a.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	sums, err := storage.CalculateChecksums(rc, algorithms)
	if err != nil {
		return nil, storage.NewPathError("checksum", path, err)
	}
	return sums, nil
}

func (a *Adapter) fileInfo(fullPath string, info os.FileInfo) storage.FileInfo {
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil {
		rel = info.Name()
	}
	fi := storage.FileInfo{
		Name:    info.Name(),
		Path:    filepath.ToSlash(rel),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
	if !fi.IsDir {
		fi.ContentType = getContentType(fullPath)
	}
	return fi
}

func isPathUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func getContentType(path string) string {
	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

func mapError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return storage.ErrNotExist
	case errors.Is(err, fs.ErrExist):
		return storage.ErrExist
	case errors.Is(err, fs.ErrPermission):
		return storage.ErrPermission
	default:
		return err
	}
}

var (
	_ storage.FileSystem  = (*Adapter)(nil)
	_ storage.CanChecksum = (*Adapter)(nil)
	_ storage.Rooted      = (*Adapter)(nil)
)
