package reconcile

import (
	"github.com/phobologic/jarlink/internal/model"
	"github.com/phobologic/jarlink/internal/project"
)

// Project reconciles every module of p while holding its write lock.
func (r *Reconciler) Project(p *project.Project, archives []model.ArchiveFile) []model.ModuleOutcome {
	var outcomes []model.ModuleOutcome
	p.Exclusive(func(modules []*project.Module) {
		outcomes = r.Reconcile(Modules(modules), archives)
	})
	return outcomes
}

// Modules adapts project modules to the Module interface.
func Modules(modules []*project.Module) []Module {
	out := make([]Module, len(modules))
	for i, m := range modules {
		out[i] = hostModule{m}
	}
	return out
}

type hostModule struct {
	m *project.Module
}

func (h hostModule) Name() string { return h.m.Name() }

func (h hostModule) Modify() Edit { return hostEdit{h.m.Modify()} }

type hostEdit struct {
	*project.ModuleEdit
}

func (e hostEdit) CreateEntry(name string) EntryEditor {
	return e.ModuleEdit.CreateEntry(name)
}
