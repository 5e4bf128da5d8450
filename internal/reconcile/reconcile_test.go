package reconcile

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/phobologic/jarlink/internal/classpath"
	"github.com/phobologic/jarlink/internal/model"
	"github.com/phobologic/jarlink/internal/project"
)

func TestReconcileAddsArchiveToEveryModule(t *testing.T) {
	t.Parallel()

	p := newProject(t, "app", "core")
	archives := []model.ArchiveFile{archive("lib/util.jar")}

	outcomes := New(&fakeResolver{}, nil).Project(p, archives)

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, out := range outcomes {
		if out.Status != model.Success {
			t.Errorf("%s: status = %s, messages = %v", out.Module, out.Status, out.Messages)
		}
		if !slices.Equal(out.Added, []string{"util.jar"}) {
			t.Errorf("%s: added = %v", out.Module, out.Added)
		}
	}
	for _, m := range p.Modules() {
		entries := m.Entries()
		if len(entries) != 1 {
			t.Fatalf("%s: entries = %+v", m.Name(), entries)
		}
		e := entries[0]
		if e.Name != "util.jar" || !e.Managed || !slices.Equal(e.Roots, []string{"jar:///proj/lib/util.jar!/"}) {
			t.Errorf("%s: entry = %+v", m.Name(), e)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	t.Parallel()

	p := newProject(t, "app")
	if _, err := p.AddModule("core", model.DependencyEntry{Name: "junit", Roots: []string{"jar:///m2/junit.jar!/"}}); err != nil {
		t.Fatal(err)
	}
	archives := []model.ArchiveFile{archive("lib/a.jar"), archive("lib/b.jar")}
	r := New(&fakeResolver{}, nil)

	r.Project(p, archives)
	first := snapshot(p)
	outcomes := r.Project(p, archives)
	second := snapshot(p)

	if first != second {
		t.Fatalf("second run changed entries:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
	for _, out := range outcomes {
		if out.Status != model.Success {
			t.Errorf("%s: status = %s", out.Module, out.Status)
		}
		if len(out.Removed) != 0 {
			t.Errorf("%s: removed = %v on a re-run", out.Module, out.Removed)
		}
	}
	if entries := p.Module("core").Entries(); entries[0].Name != "junit" || len(entries) != 3 {
		t.Errorf("core entries = %+v", entries)
	}
}

func TestReconcileDisjointSetsReplaceEachOther(t *testing.T) {
	t.Parallel()

	p := newProject(t, "app")
	r := New(&fakeResolver{}, nil)

	r.Project(p, []model.ArchiveFile{archive("lib/a.jar"), archive("lib/b.jar")})
	outcomes := r.Project(p, []model.ArchiveFile{archive("lib/c.jar")})

	if got := names(p.Module("app").Entries()); !slices.Equal(got, []string{"c.jar"}) {
		t.Fatalf("entries = %v, want [c.jar]", got)
	}
	if got := outcomes[0].Removed; !slices.Equal(got, []string{"a.jar", "b.jar"}) {
		t.Errorf("removed = %v", got)
	}
}

func TestReconcileLeavesUnrelatedEntries(t *testing.T) {
	t.Parallel()

	p := project.New("demo")
	if _, err := p.AddModule("app",
		model.DependencyEntry{Name: "junit", Roots: []string{"jar:///m2/junit.jar!/"}},
		model.DependencyEntry{Name: "guava", Roots: []string{"jar:///m2/guava.jar!/"}},
	); err != nil {
		t.Fatal(err)
	}

	New(&fakeResolver{}, nil).Project(p, []model.ArchiveFile{archive("lib/a.jar")})

	if got := names(p.Module("app").Entries()); !slices.Equal(got, []string{"junit", "guava", "a.jar"}) {
		t.Fatalf("entries = %v", got)
	}
}

func TestReconcileReplacesManualEntryWithSameName(t *testing.T) {
	t.Parallel()

	p := project.New("demo")
	if _, err := p.AddModule("app", model.DependencyEntry{Name: "util.jar", Roots: []string{"jar:///elsewhere/util.jar!/"}}); err != nil {
		t.Fatal(err)
	}

	outcomes := New(&fakeResolver{}, nil).Project(p, []model.ArchiveFile{archive("lib/util.jar")})

	entries := p.Module("app").Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Roots[0] != "jar:///proj/lib/util.jar!/" {
		t.Errorf("root = %q, want the scanned archive", entries[0].Roots[0])
	}
	// The entry was replaced, not dropped.
	if len(outcomes[0].Removed) != 0 || !slices.Equal(outcomes[0].Added, []string{"util.jar"}) {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}

func TestReconcileSkipsUnresolvableArchive(t *testing.T) {
	t.Parallel()

	p := newProject(t, "app")
	res := &fakeResolver{fail: map[string]bool{"lib/gone.jar": true}}

	outcomes := New(res, nil).Project(p, []model.ArchiveFile{archive("lib/a.jar"), archive("lib/gone.jar"), archive("lib/b.jar")})

	out := outcomes[0]
	if out.Status != model.PartialFailure {
		t.Fatalf("status = %s, want partial", out.Status)
	}
	if len(out.Messages) != 1 || !strings.Contains(out.Messages[0], "lib/gone.jar") {
		t.Errorf("messages = %v", out.Messages)
	}
	if got := names(p.Module("app").Entries()); !slices.Equal(got, []string{"a.jar", "b.jar"}) {
		t.Fatalf("entries = %v", got)
	}
}

func TestReconcileCommitFailureIsIsolated(t *testing.T) {
	t.Parallel()

	m1 := &fakeModule{name: "m1"}
	m2 := &fakeModule{name: "m2", commitErr: errors.New("disk full"),
		entries: []model.DependencyEntry{{Name: "a.jar", Roots: []string{"jar:///old/a.jar!/"}, Managed: true}}}
	m3 := &fakeModule{name: "m3"}
	res := &fakeResolver{}

	outcomes := New(res, nil).Reconcile([]Module{m1, m2, m3}, []model.ArchiveFile{archive("lib/a.jar")})

	if outcomes[0].Status != model.Success || outcomes[2].Status != model.Success {
		t.Fatalf("sibling outcomes = %+v, %+v", outcomes[0], outcomes[2])
	}
	if outcomes[1].Status != model.Failure {
		t.Fatalf("m2 status = %s, want failure", outcomes[1].Status)
	}
	if !strings.Contains(outcomes[1].Messages[0], "disk full") {
		t.Errorf("m2 messages = %v", outcomes[1].Messages)
	}
	if len(outcomes[1].Removed) != 0 || len(outcomes[1].Added) != 0 {
		t.Errorf("failed module should report no changes: %+v", outcomes[1])
	}

	if got := names(m1.entries); !slices.Equal(got, []string{"a.jar"}) {
		t.Errorf("m1 entries = %v", got)
	}
	if got := names(m3.entries); !slices.Equal(got, []string{"a.jar"}) {
		t.Errorf("m3 entries = %v", got)
	}
	if m2.entries[0].Roots[0] != "jar:///old/a.jar!/" {
		t.Errorf("m2 changed after failed commit: %+v", m2.entries)
	}
	if !m2.discarded {
		t.Error("m2 view should be discarded")
	}

	// m2's root was created for the failed commit and must be released; the
	// others back committed entries.
	disposed := 0
	for _, r := range res.roots {
		if r.Disposed() {
			disposed++
		}
	}
	if disposed != 1 {
		t.Errorf("disposed roots = %d, want 1", disposed)
	}
}

func TestReconcileAttachFailureDisposesEntry(t *testing.T) {
	t.Parallel()

	m := &fakeModule{name: "app", addRootErr: map[string]error{"b.jar": errors.New("locked")}}
	res := &fakeResolver{}

	outcomes := New(res, nil).Reconcile([]Module{m}, []model.ArchiveFile{archive("lib/a.jar"), archive("lib/b.jar")})

	out := outcomes[0]
	if out.Status != model.PartialFailure {
		t.Fatalf("status = %s, want partial", out.Status)
	}
	if !slices.Equal(out.Added, []string{"a.jar"}) {
		t.Errorf("added = %v", out.Added)
	}
	if got := names(m.entries); !slices.Equal(got, []string{"a.jar"}) {
		t.Errorf("entries = %v", got)
	}
	if !slices.Equal(m.disposed, []string{"b.jar"}) {
		t.Errorf("disposed entries = %v", m.disposed)
	}
	if !res.roots[1].Disposed() || res.roots[0].Disposed() {
		t.Error("only the root of the failed entry should be disposed")
	}
}

func TestReconcileDuplicateNamesLastWins(t *testing.T) {
	t.Parallel()

	p := newProject(t, "app")
	res := &fakeResolver{}

	outcomes := New(res, nil).Project(p, []model.ArchiveFile{archive("one/util.jar"), archive("two/util.jar")})

	entries := p.Module("app").Entries()
	if len(entries) != 1 || entries[0].Roots[0] != "jar:///proj/two/util.jar!/" {
		t.Fatalf("entries = %+v", entries)
	}
	out := outcomes[0]
	if out.Status != model.PartialFailure || len(out.Messages) != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if !slices.Equal(out.Added, []string{"util.jar"}) {
		t.Errorf("added = %v", out.Added)
	}
	if !res.roots[0].Disposed() {
		t.Error("root of the replaced archive should be disposed")
	}
}

func TestReconcileDuplicateNameKeepsEarlierOnAttachFailure(t *testing.T) {
	t.Parallel()

	m := &fakeModule{name: "app", addRootErr: map[string]error{
		"jar:///proj/two/util.jar!/": errors.New("locked"),
	}}
	res := &fakeResolver{}

	outcomes := New(res, nil).Reconcile([]Module{m}, []model.ArchiveFile{archive("one/util.jar"), archive("two/util.jar")})

	out := outcomes[0]
	if out.Status != model.PartialFailure || len(out.Messages) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if !strings.Contains(out.Messages[0], "two/util.jar") {
		t.Errorf("messages = %v", out.Messages)
	}
	if !slices.Equal(out.Added, []string{"util.jar"}) {
		t.Errorf("added = %v", out.Added)
	}
	if len(m.entries) != 1 || m.entries[0].Roots[0] != "jar:///proj/one/util.jar!/" {
		t.Fatalf("entries = %+v", m.entries)
	}
	if res.roots[0].Disposed() || !res.roots[1].Disposed() {
		t.Error("only the root that failed to attach should be disposed")
	}
}

func TestReconcileLeavesUnrelatedDuplicates(t *testing.T) {
	t.Parallel()

	p := project.New("demo")
	if _, err := p.AddModule("app",
		model.DependencyEntry{Name: "junit", Roots: []string{"jar:///m2/junit-4.jar!/"}},
		model.DependencyEntry{Name: "junit", Roots: []string{"jar:///m2/junit-5.jar!/"}},
	); err != nil {
		t.Fatal(err)
	}

	outcomes := New(&fakeResolver{}, nil).Project(p, []model.ArchiveFile{archive("lib/a.jar")})

	if outcomes[0].Status != model.Success {
		t.Fatalf("outcome = %+v", outcomes[0])
	}
	if got := names(p.Module("app").Entries()); !slices.Equal(got, []string{"junit", "junit", "a.jar"}) {
		t.Fatalf("entries = %v", got)
	}
}

func TestReconcileLogsWarningsNeutrally(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.New(&buf)
	p := newProject(t, "app")

	New(&fakeResolver{}, logger).Project(p, []model.ArchiveFile{archive("one/util.jar"), archive("two/util.jar")})

	out := buf.String()
	if !strings.Contains(out, "archive warning") || !strings.Contains(out, "duplicate archive name") {
		t.Errorf("log output:\n%s", out)
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("used archive logged as skipped:\n%s", out)
	}
}

func TestReconcileEmptyScanRemovesManagedEntries(t *testing.T) {
	t.Parallel()

	p := project.New("demo")
	if _, err := p.AddModule("app",
		model.DependencyEntry{Name: "a.jar", Roots: []string{"jar:///proj/a.jar!/"}, Managed: true},
		model.DependencyEntry{Name: "junit", Roots: []string{"jar:///m2/junit.jar!/"}},
	); err != nil {
		t.Fatal(err)
	}

	outcomes := New(&fakeResolver{}, nil).Project(p, nil)

	if outcomes[0].Status != model.Success {
		t.Fatalf("status = %s", outcomes[0].Status)
	}
	if got := names(p.Module("app").Entries()); !slices.Equal(got, []string{"junit"}) {
		t.Fatalf("entries = %v", got)
	}
}

func newProject(t *testing.T, modules ...string) *project.Project {
	t.Helper()
	p := project.New("demo")
	for _, name := range modules {
		if _, err := p.AddModule(name); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func archive(rel string) model.ArchiveFile {
	return model.ArchiveFile{Path: "/proj/" + rel, RelPath: rel, Name: path.Base(rel)}
}

func names(entries []model.DependencyEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func snapshot(p *project.Project) string {
	var b strings.Builder
	for _, m := range p.Modules() {
		fmt.Fprintf(&b, "%s:\n", m.Name())
		for _, e := range m.Entries() {
			fmt.Fprintf(&b, "  %s %v %t\n", e.Name, e.Roots, e.Managed)
		}
	}
	return b.String()
}

type fakeResolver struct {
	fail  map[string]bool
	roots []*classpath.Root
}

func (r *fakeResolver) Resolve(a model.ArchiveFile) (*classpath.Root, error) {
	if r.fail[a.RelPath] {
		return nil, fmt.Errorf("%w: %s: file vanished", model.ErrArchiveResolution, a.RelPath)
	}
	root := classpath.NewRoot(classpath.URLFor(a.Path), 1)
	r.roots = append(r.roots, root)
	return root, nil
}

// fakeModule is an in-memory module whose commits and root attachments can
// be made to fail. addRootErr is keyed by entry name or root URL.
type fakeModule struct {
	name       string
	entries    []model.DependencyEntry
	commitErr  error
	addRootErr map[string]error
	disposed   []string
	discarded  bool
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Modify() Edit {
	return &fakeEdit{m: m, entries: slices.Clone(m.entries)}
}

type fakeEdit struct {
	m       *fakeModule
	entries []model.DependencyEntry
	created []*fakeEntry
	closed  bool
}

func (e *fakeEdit) Entries() []model.DependencyEntry { return slices.Clone(e.entries) }

func (e *fakeEdit) RemoveEntry(name string) bool {
	n := len(e.entries)
	e.entries = slices.DeleteFunc(e.entries, func(d model.DependencyEntry) bool { return d.Name == name })
	return n != len(e.entries)
}

func (e *fakeEdit) CreateEntry(name string) EntryEditor {
	x := &fakeEntry{m: e.m, entry: model.DependencyEntry{Name: name}}
	e.created = append(e.created, x)
	return x
}

func (e *fakeEdit) Commit() error {
	if e.closed {
		return errors.New("closed")
	}
	e.closed = true
	if e.m.commitErr != nil {
		return e.m.commitErr
	}
	final := e.entries
	for _, x := range e.created {
		if !x.disposed {
			final = append(final, x.entry)
		}
	}
	e.m.entries = final
	return nil
}

func (e *fakeEdit) Discard() {
	e.closed = true
	e.m.discarded = true
}

type fakeEntry struct {
	m        *fakeModule
	entry    model.DependencyEntry
	disposed bool
}

func (x *fakeEntry) AddRoot(url string) error {
	if err := x.m.addRootErr[x.entry.Name]; err != nil {
		return err
	}
	if err := x.m.addRootErr[url]; err != nil {
		return err
	}
	x.entry.Roots = append(x.entry.Roots, url)
	return nil
}

func (x *fakeEntry) SetManaged(managed bool) { x.entry.Managed = managed }

func (x *fakeEntry) Dispose() {
	x.disposed = true
	x.m.disposed = append(x.m.disposed, x.entry.Name)
}
