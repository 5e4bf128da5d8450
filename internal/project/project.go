// Package project is the host project model: a set of modules, each with an
// ordered list of dependency entries that is changed through edit views.
package project

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/phobologic/jarlink/internal/model"
)

var (
	// ErrViewClosed is returned when an edit view is used after Commit or Discard.
	ErrViewClosed = errors.New("edit view already committed or discarded")
	// ErrDuplicateEntry is returned by Commit when a created entry shares its
	// name with another entry.
	ErrDuplicateEntry = errors.New("duplicate dependency entry")
	// ErrEntryDisposed is returned when a root is added to a disposed entry.
	ErrEntryDisposed = errors.New("entry disposed")
	// ErrDuplicateModule is returned when a module name is registered twice.
	ErrDuplicateModule = errors.New("duplicate module")
)

// Project groups modules. Mutations of several modules that must not
// interleave with other writers go through Exclusive.
type Project struct {
	Name string

	mu      sync.RWMutex
	modules []*Module
}

// New creates an empty project.
func New(name string) *Project {
	return &Project{Name: name}
}

// Modules returns the project's modules in registration order.
func (p *Project) Modules() []*Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.modules)
}

// Module returns the module with the given name, or nil.
func (p *Project) Module(name string) *Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, m := range p.modules {
		if m.name == name {
			return m
		}
	}
	return nil
}

// AddModule registers a new module with the given entries.
func (p *Project) AddModule(name string, entries ...model.DependencyEntry) (*Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.modules {
		if m.name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, name)
		}
	}
	m := &Module{name: name, entries: cloneEntries(entries)}
	p.modules = append(p.modules, m)
	return m, nil
}

// Exclusive runs fn while holding the project's write lock. No other
// Exclusive call and no AddModule can run until fn returns.
func (p *Project) Exclusive(fn func(modules []*Module)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(slices.Clone(p.modules))
}

// Module is one unit of build configuration.
type Module struct {
	name string

	mu      sync.Mutex
	entries []model.DependencyEntry
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Entries returns a copy of the committed dependency entries.
func (m *Module) Entries() []model.DependencyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneEntries(m.entries)
}

// Modify opens an edit view over a snapshot of the module's entries.
// Changes become visible only after Commit.
func (m *Module) Modify() *ModuleEdit {
	return &ModuleEdit{module: m, entries: m.Entries()}
}

type editState int

const (
	editOpen editState = iota
	editCommitted
	editDiscarded
)

// ModuleEdit is a modifiable view of a module's entries. It ends in exactly
// one terminal state: committed or discarded.
type ModuleEdit struct {
	module  *Module
	entries []model.DependencyEntry
	created []*EntryEdit
	state   editState
}

// Entries returns the entries currently in the view, excluding entries
// created through CreateEntry.
func (e *ModuleEdit) Entries() []model.DependencyEntry {
	return cloneEntries(e.entries)
}

// RemoveEntry drops every entry named name from the view and reports whether
// any was present. On a closed view it does nothing and returns false.
func (e *ModuleEdit) RemoveEntry(name string) bool {
	if e.state != editOpen {
		return false
	}
	n := len(e.entries)
	e.entries = slices.DeleteFunc(e.entries, func(d model.DependencyEntry) bool {
		return d.Name == name
	})
	return len(e.entries) != n
}

// CreateEntry starts a new entry that is appended to the module on Commit
// unless it is disposed first. Entries of a closed view reject AddRoot with
// ErrViewClosed.
func (e *ModuleEdit) CreateEntry(name string) *EntryEdit {
	x := &EntryEdit{view: e, name: name}
	if e.state == editOpen {
		e.created = append(e.created, x)
	}
	return x
}

// Commit applies the view to the module. Whatever the result, the view is
// closed afterwards; on error the module is left untouched.
func (e *ModuleEdit) Commit() error {
	if e.state != editOpen {
		return ErrViewClosed
	}

	// Only created entries are checked; kept duplicates stay as they are.
	seen := make(map[string]struct{}, len(e.entries)+len(e.created))
	for _, d := range e.entries {
		seen[d.Name] = struct{}{}
	}

	final := cloneEntries(e.entries)
	for _, x := range e.created {
		if x.disposed || len(x.roots) == 0 {
			continue
		}
		if _, dup := seen[x.name]; dup {
			e.state = editDiscarded
			return fmt.Errorf("module %s: %w: %s", e.module.name, ErrDuplicateEntry, x.name)
		}
		seen[x.name] = struct{}{}
		final = append(final, model.DependencyEntry{Name: x.name, Roots: slices.Clone(x.roots), Managed: x.managed})
	}

	e.module.mu.Lock()
	e.module.entries = final
	e.module.mu.Unlock()
	e.state = editCommitted
	return nil
}

// Discard closes the view without applying it. Discarding a closed view is a no-op.
func (e *ModuleEdit) Discard() {
	if e.state == editOpen {
		e.state = editDiscarded
	}
}

// EntryEdit is a dependency entry under construction.
type EntryEdit struct {
	view     *ModuleEdit
	name     string
	roots    []string
	managed  bool
	disposed bool
}

// Name returns the entry name.
func (x *EntryEdit) Name() string { return x.name }

// AddRoot attaches a classpath root URL to the entry.
func (x *EntryEdit) AddRoot(url string) error {
	if x.view.state != editOpen {
		return ErrViewClosed
	}
	if x.disposed {
		return ErrEntryDisposed
	}
	if url == "" {
		return fmt.Errorf("entry %s: empty root url", x.name)
	}
	if slices.Contains(x.roots, url) {
		return fmt.Errorf("entry %s: root %s already attached", x.name, url)
	}
	x.roots = append(x.roots, url)
	return nil
}

// SetManaged marks the entry as owned by jarlink.
func (x *EntryEdit) SetManaged(managed bool) { x.managed = managed }

// Dispose drops the entry from its view.
func (x *EntryEdit) Dispose() {
	x.disposed = true
	x.roots = nil
}

func cloneEntries(entries []model.DependencyEntry) []model.DependencyEntry {
	if entries == nil {
		return nil
	}
	out := make([]model.DependencyEntry, len(entries))
	for i, d := range entries {
		out[i] = model.DependencyEntry{Name: d.Name, Roots: slices.Clone(d.Roots), Managed: d.Managed}
	}
	return out
}
