// Package reconcile keeps the jar-derived dependency entries of each module in
// sync with a scan result.
//
// For every module, entries named after a scanned archive and entries
// previously created by jarlink are removed, then one managed entry per
// archive is added, and the result is committed as one unit. Running it
// twice with the same archives gives the same entries.
package reconcile

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/phobologic/jarlink/internal/classpath"
	"github.com/phobologic/jarlink/internal/model"
)

// Module is a host module whose entries can be edited.
type Module interface {
	Name() string
	Modify() Edit
}

// Edit is a modifiable view of one module. Commit and Discard are terminal.
type Edit interface {
	Entries() []model.DependencyEntry
	RemoveEntry(name string) bool
	CreateEntry(name string) EntryEditor
	Commit() error
	Discard()
}

// EntryEditor is a dependency entry under construction.
type EntryEditor interface {
	AddRoot(url string) error
	SetManaged(managed bool)
	Dispose()
}

// RootResolver turns an archive into a classpath root.
type RootResolver interface {
	Resolve(a model.ArchiveFile) (*classpath.Root, error)
}

// Reconciler replaces each module's archive-named entries with fresh ones.
type Reconciler struct {
	resolver RootResolver
	logger   *log.Logger
}

// New creates a Reconciler. logger may be nil.
func New(resolver RootResolver, logger *log.Logger) *Reconciler {
	return &Reconciler{resolver: resolver, logger: logger}
}

// Reconcile processes every module in order. A failure in one module never
// affects the others; the returned outcomes are in module order.
func (r *Reconciler) Reconcile(modules []Module, archives []model.ArchiveFile) []model.ModuleOutcome {
	outcomes := make([]model.ModuleOutcome, 0, len(modules))
	for _, m := range modules {
		out := r.reconcileModule(m, archives)
		r.logOutcome(out)
		outcomes = append(outcomes, out)
	}
	return outcomes
}

type pending struct {
	entry EntryEditor
	root  *classpath.Root
}

func (r *Reconciler) reconcileModule(m Module, archives []model.ArchiveFile) model.ModuleOutcome {
	out := model.ModuleOutcome{Module: m.Name()}

	names := make(map[string]struct{}, len(archives))
	for _, a := range archives {
		names[a.Name] = struct{}{}
	}

	edit := m.Modify()

	for _, d := range edit.Entries() {
		if _, ok := names[d.Name]; !ok && !d.Managed {
			continue
		}
		if edit.RemoveEntry(d.Name) {
			out.Removed = append(out.Removed, d.Name)
		}
	}

	added := make(map[string]pending, len(archives))
	var order []string
	for _, a := range archives {
		root, err := r.resolver.Resolve(a)
		if err != nil {
			out.Messages = append(out.Messages, err.Error())
			continue
		}

		entry := edit.CreateEntry(a.Name)
		entry.SetManaged(true)
		if err := entry.AddRoot(root.URL()); err != nil {
			entry.Dispose()
			root.Dispose()
			out.Messages = append(out.Messages, fmt.Sprintf("%s: attaching root: %v", a.RelPath, err))
			continue
		}

		// The earlier archive of the same name is only released once its
		// replacement is attached.
		if prev, dup := added[a.Name]; dup {
			prev.entry.Dispose()
			prev.root.Dispose()
			out.Messages = append(out.Messages,
				fmt.Sprintf("%s: duplicate archive name, using %s", a.Name, a.RelPath))
		} else {
			order = append(order, a.Name)
		}
		added[a.Name] = pending{entry: entry, root: root}
	}

	if err := edit.Commit(); err != nil {
		edit.Discard()
		for _, p := range added {
			p.root.Dispose()
		}
		out.Status = model.Failure
		out.Removed = nil
		out.Messages = []string{fmt.Errorf("%w: %w", model.ErrCommit, err).Error()}
		return out
	}

	out.Added = order
	out.Removed = slices.DeleteFunc(out.Removed, func(name string) bool {
		_, readded := added[name]
		return readded
	})
	out.Status = model.Success
	if len(out.Messages) > 0 {
		out.Status = model.PartialFailure
	}
	return out
}

func (r *Reconciler) logOutcome(out model.ModuleOutcome) {
	if r.logger == nil {
		return
	}
	switch out.Status {
	case model.Failure:
		r.logger.Error("module not updated", "module", out.Module, "reason", out.Messages[0])
	case model.PartialFailure:
		for _, msg := range out.Messages {
			r.logger.Warn("archive warning", "module", out.Module, "reason", msg)
		}
		fallthrough
	default:
		r.logger.Debug("module updated", "module", out.Module,
			"added", len(out.Added), "removed", len(out.Removed))
	}
}
