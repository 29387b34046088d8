// Package memory provides an in-memory storage backend. It is used for tests,
// dry runs and as the destination when output should not touch disk.
package memory

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobeaver/fgen/storage"
)

type memoryFile struct {
	content     []byte
	contentType string
	metadata    map[string]string
	modTime     time.Time
}

// Adapter is an in-memory storage.FileSystem.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*memoryFile
	dirs    map[string]time.Time
	maxSize int64 // 0 = unlimited
	size    int64
}

// Config holds configuration for the memory adapter
type Config struct {
	// MaxSize is the maximum total storage size in bytes (0 = unlimited)
	MaxSize int64
}

// New creates an empty in-memory filesystem.
func New(cfg ...Config) *Adapter {
	var maxSize int64
	if len(cfg) > 0 {
		maxSize = cfg[0].MaxSize
	}
	return &Adapter{
		files:   make(map[string]*memoryFile),
		dirs:    map[string]time.Time{"": time.Now()},
		maxSize: maxSize,
	}
}

// Root reports the pseudo root of the adapter.
func (a *Adapter) Root() string {
	return "memory://"
}

// Write implements storage.FileWriter.
func (a *Adapter) Write(ctx context.Context, p string, content io.Reader, options ...storage.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, ok := normalizePath(p)
	if !ok || p == "" {
		return storage.NewPathError("write", p, storage.ErrNotAllowed)
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return storage.NewPathError("write", p, err)
	}

	opts := storage.ApplyOptions(options...)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isDir := a.dirs[p]; isDir {
		return storage.NewPathError("write", p, storage.ErrIsDir)
	}

	size := a.size
	if existing, exists := a.files[p]; exists {
		if !opts.Overwrite {
			return storage.NewPathError("write", p, storage.ErrExist)
		}
		size -= int64(len(existing.content))
	}
	if a.maxSize > 0 && size+int64(len(data)) > a.maxSize {
		return storage.NewPathError("write", p, storage.ErrNotAllowed)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = detectContentType(p, data)
	}

	a.ensureParentDirs(p)
	a.files[p] = &memoryFile{
		content:     data,
		contentType: contentType,
		metadata:    opts.Metadata,
		modTime:     time.Now(),
	}
	a.size = size + int64(len(data))
	return nil
}

// Read implements storage.FileReader.
func (a *Adapter) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	data, err := a.ReadAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ReadAll implements storage.FileReader. The returned slice is a copy.
func (a *Adapter) ReadAll(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, _ = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	file, ok := a.files[p]
	if !ok {
		if _, isDir := a.dirs[p]; isDir {
			return nil, storage.NewPathError("read", p, storage.ErrIsDir)
		}
		return nil, storage.NewPathError("read", p, storage.ErrNotExist)
	}
	return bytes.Clone(file.content), nil
}

// Delete implements storage.FileWriter.
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, _ = normalizePath(p)

	a.mu.Lock()
	defer a.mu.Unlock()

	file, ok := a.files[p]
	if !ok {
		return storage.NewPathError("delete", p, storage.ErrNotExist)
	}
	a.size -= int64(len(file.content))
	delete(a.files, p)
	return nil
}

// CreateDir implements storage.FileWriter.
func (a *Adapter) CreateDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := normalizePath(p)
	if !ok {
		return storage.NewPathError("createdir", p, storage.ErrNotAllowed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, isFile := a.files[p]; isFile {
		return storage.NewPathError("createdir", p, storage.ErrExist)
	}
	a.dirs[p] = time.Now()
	a.ensureParentDirs(p)
	return nil
}

// FileExists implements storage.FileReader.
func (a *Adapter) FileExists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, _ = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.files[p]
	return ok, nil
}

// DirExists implements storage.FileReader.
func (a *Adapter) DirExists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, _ = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.dirs[p]
	return ok, nil
}

// Stat implements storage.FileReader.
func (a *Adapter) Stat(ctx context.Context, p string) (*storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, _ = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if file, ok := a.files[p]; ok {
		info := fileInfo(p, file)
		return &info, nil
	}
	if modTime, ok := a.dirs[p]; ok {
		return &storage.FileInfo{Name: path.Base(p), Path: p, ModTime: modTime, IsDir: true}, nil
	}
	return nil, storage.NewPathError("stat", p, storage.ErrNotExist)
}

// ListContents implements storage.FileReader. Entries are sorted by path.
func (a *Adapter) ListContents(ctx context.Context, p string, recursive bool) ([]storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, _ = normalizePath(p)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.dirs[p]; !ok {
		return nil, storage.NewPathError("listcontents", p, storage.ErrNotExist)
	}

	var entries []storage.FileInfo
	for filePath, file := range a.files {
		if isChild(p, filePath, recursive) {
			entries = append(entries, fileInfo(filePath, file))
		}
	}
	for dirPath, modTime := range a.dirs {
		if dirPath != p && isChild(p, dirPath, recursive) {
			entries = append(entries, storage.FileInfo{
				Name:    path.Base(dirPath),
				Path:    dirPath,
				ModTime: modTime,
				IsDir:   true,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Checksums implements storage.CanChecksum.
func (a *Adapter) Checksums(ctx context.Context, p string, algorithms []storage.ChecksumAlgorithm) (map[storage.ChecksumAlgorithm]string, error) {
	data, err := a.ReadAll(ctx, p)
	if err != nil {
		return nil, err
	}
	return storage.CalculateChecksums(bytes.NewReader(data), algorithms)
}

// Size returns the total number of stored bytes.
func (a *Adapter) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// FileCount returns the number of stored files.
func (a *Adapter) FileCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.files)
}

// Clear removes every file and directory.
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = make(map[string]*memoryFile)
	a.dirs = map[string]time.Time{"": time.Now()}
	a.size = 0
}

func (a *Adapter) ensureParentDirs(p string) {
	for dir := path.Dir(p); dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		if _, ok := a.dirs[dir]; ok {
			return
		}
		a.dirs[dir] = time.Now()
	}
}

func fileInfo(p string, file *memoryFile) storage.FileInfo {
	return storage.FileInfo{
		Name:        path.Base(p),
		Path:        p,
		Size:        int64(len(file.content)),
		ModTime:     file.modTime,
		ContentType: file.contentType,
		Metadata:    file.metadata,
	}
}

func isChild(dir, p string, recursive bool) bool {
	rel := p
	if dir != "" {
		if !strings.HasPrefix(p, dir+"/") {
			return false
		}
		rel = strings.TrimPrefix(p, dir+"/")
	}
	return recursive || !strings.Contains(rel, "/")
}

// normalizePath returns a slash-separated path relative to the root. It
// reports false for paths that escape the root.
func normalizePath(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return p, false
		}
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return p, true
}

func detectContentType(p string, data []byte) string {
	if ext := path.Ext(p); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}
	if len(data) > 0 {
		return http.DetectContentType(data)
	}
	return "application/octet-stream"
}

var (
	_ storage.FileSystem  = (*Adapter)(nil)
	_ storage.CanChecksum = (*Adapter)(nil)
)
