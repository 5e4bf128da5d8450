// Package discover finds jar archives in a project tree.
package discover

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/jarlink/internal/model"
)

const archiveExt = ".jar"

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"target":       {},
	"build":        {},
	".gradle":      {},
	".mvn":         {},
}

// SkipDir reports whether a directory with the given name is pruned from every scan.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, skip := skipDirs[name]
	return skip
}

// IsArchive reports whether a file name looks like a jar.
func IsArchive(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), archiveExt)
}

// Options tune a Scanner beyond the built-in skip rules.
type Options struct {
	// ExtraSkipDirs are additional directory names pruned like node_modules.
	ExtraSkipDirs []string
	// RespectGitignore loads <root>/.gitignore and skips matching paths.
	RespectGitignore bool
	Logger           *log.Logger
}

// Scanner walks a billy filesystem looking for archives.
// The filesystem is expected to be rooted at the project root.
type Scanner struct {
	fs     billy.Filesystem
	root   string
	extra  map[string]struct{}
	gi     *ignore.GitIgnore
	logger *log.Logger
}

// NewScanner creates a scanner over fs. root is the absolute path fs is rooted at;
// it is only used to build ArchiveFile.Path.
func NewScanner(fs billy.Filesystem, root string, opts Options) *Scanner {
	s := &Scanner{
		fs:     fs,
		root:   root,
		extra:  make(map[string]struct{}, len(opts.ExtraSkipDirs)),
		logger: opts.Logger,
	}
	for _, name := range opts.ExtraSkipDirs {
		s.extra[name] = struct{}{}
	}
	if opts.RespectGitignore {
		s.gi = loadGitignore(fs)
	}
	return s
}

// Scan walks the tree depth-first and returns every archive outside skipped
// directories, in traversal order. ctx is polled before each directory entry;
// once it is done the walk stops and the partial result is returned with
// Cancelled set.
func (s *Scanner) Scan(ctx context.Context) model.ScanResult {
	res := model.ScanResult{Root: s.root}
	if !s.walk(ctx, "", &res) {
		res.Cancelled = true
		s.debug("scan cancelled", "found", len(res.Archives))
	}
	return res
}

// walk returns false when the scan was cancelled.
func (s *Scanner) walk(ctx context.Context, dir string, res *model.ScanResult) bool {
	entries, err := s.fs.ReadDir(s.fsPath(dir))
	if err != nil {
		// Unlistable directories count as empty.
		err = fmt.Errorf("%w: %s: %w", model.ErrScanIO, displayPath(dir), err)
		s.debug("skipping unreadable directory", "error", err)
		res.Unreadable = append(res.Unreadable, displayPath(dir))
		return true
	}

	for _, fi := range entries {
		if ctx.Err() != nil {
			return false
		}

		name := fi.Name()
		rel := path.Join(dir, name)

		if s.ignored(rel, fi.IsDir()) {
			continue
		}

		switch {
		case fi.IsDir():
			if s.skip(name) {
				continue
			}
			if !s.walk(ctx, rel, res) {
				return false
			}
		case fi.Mode()&os.ModeSymlink != 0:
			// Symlinked directories are never followed, so the walk cannot loop.
			if !IsArchive(name) {
				continue
			}
			target, err := s.fs.Stat(s.fsPath(rel))
			if err != nil || !target.Mode().IsRegular() {
				continue
			}
			res.Archives = append(res.Archives, s.archive(rel, name))
		case fi.Mode().IsRegular() && IsArchive(name):
			res.Archives = append(res.Archives, s.archive(rel, name))
		}
	}
	return true
}

func (s *Scanner) skip(name string) bool {
	if SkipDir(name) {
		return true
	}
	_, ok := s.extra[name]
	return ok
}

func (s *Scanner) ignored(rel string, isDir bool) bool {
	if s.gi == nil {
		return false
	}
	if isDir {
		return s.gi.MatchesPath(rel + "/")
	}
	return s.gi.MatchesPath(rel)
}

func (s *Scanner) archive(rel, name string) model.ArchiveFile {
	return model.ArchiveFile{
		Path:    filepath.Join(s.root, filepath.FromSlash(rel)),
		RelPath: rel,
		Name:    name,
	}
}

func (s *Scanner) fsPath(rel string) string {
	if rel == "" {
		return "."
	}
	return filepath.FromSlash(rel)
}

func (s *Scanner) debug(msg string, kv ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, kv...)
	}
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

func loadGitignore(fs billy.Filesystem) *ignore.GitIgnore {
	data, err := util.ReadFile(fs, ".gitignore")
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...)
}
