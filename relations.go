package fgen

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gobeaver/fgen/internal/ordered"
)

// RelationTable maps file types to driver names. Many types may share a
// driver; a type maps to at most one driver.
type RelationTable struct {
	mu                      sync.RWMutex
	byType                  map[string]string
	byDriver                *ordered.Map[string, []string]
	fileTypeEqualDriverName bool
}

// NewRelationTable creates an empty table. When fileTypeEqualDriverName is
// set, an unmapped type resolves to a driver of the same name.
func NewRelationTable(fileTypeEqualDriverName bool) *RelationTable {
	return &RelationTable{
		byType:                  make(map[string]string),
		byDriver:                ordered.New[string, []string](),
		fileTypeEqualDriverName: fileTypeEqualDriverName,
	}
}

// SetFileTypeEqualDriverName toggles the unmapped type fallback.
func (t *RelationTable) SetFileTypeEqualDriverName(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fileTypeEqualDriverName = enabled
}

// FileTypeEqualDriverName reports whether the unmapped type fallback is on.
func (t *RelationTable) FileTypeEqualDriverName() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fileTypeEqualDriverName
}

// AddRelation maps fileType to driver. An existing mapping is only moved
// when replace is set.
func (t *RelationTable) AddRelation(driver, fileType string, replace bool) error {
	if fileType == "" {
		return fmt.Errorf("%w: empty file type for driver %q", ErrInvalidRegistration, driver)
	}
	if driver == "" {
		return fmt.Errorf("%w: empty driver for file type %q", ErrInvalidRegistration, fileType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, exists := t.byType[fileType]
	if exists {
		if !replace || current == driver {
			return nil
		}
		t.unlink(current, fileType)
	}

	t.byType[fileType] = driver
	types, _ := t.byDriver.Get(driver)
	t.byDriver.Set(driver, append(types, fileType))
	return nil
}

// AddRelations maps every type to driver. Invalid types are rejected before
// anything is stored.
func (t *RelationTable) AddRelations(driver string, fileTypes []string, replace bool) error {
	for _, ft := range fileTypes {
		if ft == "" {
			return fmt.Errorf("%w: empty file type for driver %q", ErrInvalidRegistration, driver)
		}
	}
	for _, ft := range fileTypes {
		if err := t.AddRelation(driver, ft, replace); err != nil {
			return err
		}
	}
	return nil
}

// SetRelations replaces every mapping with relations, a driver to types
// view. Drivers are added in sorted order, so a type listed under several
// drivers ends up with the last one. Nothing changes when a type is invalid.
func (t *RelationTable) SetRelations(relations map[string][]string) error {
	fresh := NewRelationTable(false)
	for _, driver := range slices.Sorted(maps.Keys(relations)) {
		if err := fresh.AddRelations(driver, relations[driver], true); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.byType = fresh.byType
	t.byDriver = fresh.byDriver
	return nil
}

func (t *RelationTable) unlink(driver, fileType string) {
	types, _ := t.byDriver.Get(driver)
	types = slices.DeleteFunc(slices.Clone(types), func(s string) bool { return s == fileType })
	if len(types) == 0 {
		t.byDriver.Delete(driver)
		return
	}
	t.byDriver.Set(driver, types)
}

// DriverNameFor returns the driver mapped to fileType. Unmapped types
// resolve to themselves when the fallback policy is enabled.
func (t *RelationTable) DriverNameFor(fileType string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if driver, ok := t.byType[fileType]; ok {
		return driver, true
	}
	if t.fileTypeEqualDriverName && fileType != "" {
		return fileType, true
	}
	return "", false
}

// RelationFor returns every type mapped to driver in insertion order. With
// no mapping and the fallback policy enabled it returns [driver].
func (t *RelationTable) RelationFor(driver string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if types, ok := t.byDriver.Get(driver); ok {
		return slices.Clone(types)
	}
	if t.fileTypeEqualDriverName && driver != "" {
		return []string{driver}
	}
	return nil
}

// PrimaryType returns the first type mapped to driver.
func (t *RelationTable) PrimaryType(driver string) (string, bool) {
	types := t.RelationFor(driver)
	if len(types) == 0 {
		return "", false
	}
	return types[0], true
}

// Relations returns a copy of the driver to types view.
func (t *RelationTable) Relations() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string][]string, t.byDriver.Len())
	t.byDriver.Range(func(driver string, types []string) bool {
		out[driver] = slices.Clone(types)
		return true
	})
	return out
}

// Drivers returns the drivers with at least one mapping, in insertion order.
func (t *RelationTable) Drivers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byDriver.Keys()
}
