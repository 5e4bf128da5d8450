// Package model defines core data structures for jarlink.
package model

import "errors"

var (
	// ErrScanIO marks a directory that could not be listed during a scan.
	ErrScanIO = errors.New("scan io")
	// ErrArchiveResolution marks an archive that could not be turned into a classpath root.
	ErrArchiveResolution = errors.New("archive resolution")
	// ErrCommit marks a module whose pending changes could not be committed.
	ErrCommit = errors.New("commit")
	// ErrCancelled marks a scan that stopped early on request.
	ErrCancelled = errors.New("cancelled")
)

// ArchiveFile is a jar discovered by a scan.
type ArchiveFile struct {
	Path    string // Absolute path
	RelPath string // Relative to the scan root, slash separated
	Name    string // Base name, used as the dependency entry name
}

// ScanResult holds the archives found under a root in traversal order.
type ScanResult struct {
	Root       string
	Archives   []ArchiveFile
	Cancelled  bool
	Unreadable []string // Directories that could not be listed, relative to Root
}

// Err returns ErrCancelled when the scan stopped early and nil otherwise.
func (r ScanResult) Err() error {
	if r.Cancelled {
		return ErrCancelled
	}
	return nil
}

// DependencyEntry is a named library attached to a module. Managed entries
// were created by jarlink and are removed once their archive disappears.
type DependencyEntry struct {
	Name    string   `yaml:"name"`
	Roots   []string `yaml:"roots"`
	Managed bool     `yaml:"managed,omitempty"`
}

// Status is the result kind of reconciling one module.
type Status string

const (
	Success        Status = "success"
	PartialFailure Status = "partial"
	Failure        Status = "failure"
)

// ModuleOutcome records what happened to a single module during reconciliation.
type ModuleOutcome struct {
	Module   string
	Status   Status
	Added    []string
	Removed  []string // Entries dropped without a replacement of the same name
	Messages []string // Per-archive warnings, or the failure reason
}

// Summary is the user-facing result of one run.
type Summary struct {
	Root      string
	Archives  []ArchiveFile
	Cancelled bool
	DryRun    bool
	Modules   []ModuleOutcome
}

// Failed reports whether any module ended in Failure.
func (s *Summary) Failed() bool {
	for i := range s.Modules {
		if s.Modules[i].Status == Failure {
			return true
		}
	}
	return false
}
