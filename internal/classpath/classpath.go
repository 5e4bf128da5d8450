// Package classpath turns archive files into classpath roots that can be
// attached to dependency entries.
package classpath

import (
	"archive/zip"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/go-git/go-billy/v5"

	"github.com/phobologic/jarlink/internal/model"
)

// Root is a resolved, loadable archive. It must be disposed when it is not
// handed to a committed entry.
type Root struct {
	url      string
	entries  int
	disposed atomic.Bool
}

// NewRoot creates a root for url holding the given number of entries.
func NewRoot(url string, entries int) *Root {
	return &Root{url: url, entries: entries}
}

// URL returns the jar URL of the root, e.g. jar:///libs/a.jar!/.
func (r *Root) URL() string { return r.url }

// Entries returns the number of files inside the archive.
func (r *Root) Entries() int { return r.entries }

// Dispose releases the root. It is safe to call more than once.
func (r *Root) Dispose() { r.disposed.Store(true) }

// Disposed reports whether Dispose has been called.
func (r *Root) Disposed() bool { return r.disposed.Load() }

// URLFor builds the jar URL for an absolute archive path.
func URLFor(absPath string) string {
	return "jar://" + filepath.ToSlash(absPath) + "!/"
}

// Resolver opens archives through a billy filesystem rooted at the scan root.
type Resolver struct {
	fs billy.Filesystem
}

// NewResolver creates a Resolver reading from fs.
func NewResolver(fs billy.Filesystem) *Resolver {
	return &Resolver{fs: fs}
}

// Resolve checks that the archive still exists and is a readable zip
// container, and returns its classpath root.
func (r *Resolver) Resolve(a model.ArchiveFile) (*Root, error) {
	name := filepath.FromSlash(a.RelPath)

	info, err := r.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrArchiveResolution, a.RelPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s: not a regular file", model.ErrArchiveResolution, a.RelPath)
	}

	f, err := r.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrArchiveResolution, a.RelPath, err)
	}
	defer f.Close()

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrArchiveResolution, a.RelPath, err)
	}

	return NewRoot(URLFor(a.Path), len(zr.File)), nil
}
