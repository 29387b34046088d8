package storage

import (
	"context"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// FileSelector decides which files a listing returns and which directories
// it descends into.
//
//	files, err := storage.ListWithSelector(ctx, fsys, "in", storage.And(
//	    storage.Glob("*.jpg"),
//	    storage.Not(storage.Glob(".*")),
//	), true)
type FileSelector interface {
	// Match reports whether a file belongs in the result.
	Match(file *FileInfo) bool

	// TraverseDescendants reports whether a directory should be walked.
	TraverseDescendants(dir *FileInfo) bool
}

// ListWithSelector lists the files under dir accepted by selector. A nil
// selector accepts everything.
func ListWithSelector(ctx context.Context, fsys FileReader, dir string, selector FileSelector, recursive bool) ([]FileInfo, error) {
	if selector == nil {
		selector = All()
	}

	var results []FileInfo
	if err := walk(ctx, fsys, dir, selector, recursive, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func walk(ctx context.Context, fsys FileReader, dir string, selector FileSelector, recursive bool, results *[]FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := fsys.ListContents(ctx, dir, false)
	if err != nil {
		return err
	}

	for i := range entries {
		entry := &entries[i]
		if entry.IsDir {
			if recursive && selector.TraverseDescendants(entry) {
				if err := walk(ctx, fsys, entry.Path, selector, recursive, results); err != nil {
					return err
				}
			}
			continue
		}
		if selector.Match(entry) {
			*results = append(*results, *entry)
		}
	}
	return nil
}

type allSelector struct{}

func (allSelector) Match(*FileInfo) bool               { return true }
func (allSelector) TraverseDescendants(*FileInfo) bool { return true }

// All matches every file and walks every directory.
func All() FileSelector {
	return allSelector{}
}

type globSelector struct {
	g        glob.Glob
	fullPath bool
}

// Glob matches file names against pattern. Patterns containing a slash are
// matched against the full path, where "**" crosses directory boundaries.
// Brace alternation is supported: "*.{jpg,png}". An invalid pattern matches
// nothing.
func Glob(pattern string) FileSelector {
	fullPath := strings.Contains(pattern, "/")
	var (
		g   glob.Glob
		err error
	)
	if fullPath {
		g, err = glob.Compile(pattern, '/')
	} else {
		g, err = glob.Compile(pattern)
	}
	if err != nil {
		return FuncSelector(func(*FileInfo) bool { return false })
	}
	return &globSelector{g: g, fullPath: fullPath}
}

func (s *globSelector) Match(file *FileInfo) bool {
	if s.fullPath {
		return s.g.Match(strings.TrimPrefix(path.Clean("/"+file.Path), "/"))
	}
	return s.g.Match(file.Name)
}

func (s *globSelector) TraverseDescendants(*FileInfo) bool { return true }

type andSelector struct {
	selectors []FileSelector
}

// And matches files accepted by every selector.
func And(selectors ...FileSelector) FileSelector {
	return &andSelector{selectors: selectors}
}

func (s *andSelector) Match(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.Match(file) {
			return false
		}
	}
	return true
}

func (s *andSelector) TraverseDescendants(dir *FileInfo) bool {
	for _, sel := range s.selectors {
		if !sel.TraverseDescendants(dir) {
			return false
		}
	}
	return true
}

type orSelector struct {
	selectors []FileSelector
}

// Or matches files accepted by any selector.
func Or(selectors ...FileSelector) FileSelector {
	return &orSelector{selectors: selectors}
}

func (s *orSelector) Match(file *FileInfo) bool {
	for _, sel := range s.selectors {
		if sel.Match(file) {
			return true
		}
	}
	return false
}

func (s *orSelector) TraverseDescendants(dir *FileInfo) bool {
	for _, sel := range s.selectors {
		if sel.TraverseDescendants(dir) {
			return true
		}
	}
	return false
}

type notSelector struct {
	selector FileSelector
}

// Not inverts Match. Traversal is left untouched.
func Not(selector FileSelector) FileSelector {
	return &notSelector{selector: selector}
}

func (s *notSelector) Match(file *FileInfo) bool          { return !s.selector.Match(file) }
func (s *notSelector) TraverseDescendants(*FileInfo) bool { return true }

type funcSelector func(*FileInfo) bool

// FuncSelector adapts a predicate into a FileSelector that walks every
// directory.
func FuncSelector(fn func(*FileInfo) bool) FileSelector {
	return funcSelector(fn)
}

func (f funcSelector) Match(file *FileInfo) bool          { return f(file) }
func (f funcSelector) TraverseDescendants(*FileInfo) bool { return true }
