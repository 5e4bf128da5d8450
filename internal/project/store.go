package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/jarlink/internal/model"
)

// DefaultFile is the project file name looked up in the scan root.
const DefaultFile = "jarlink.yaml"

// ErrProjectNotFound is returned by Load when the project file does not exist.
var ErrProjectNotFound = errors.New("project file not found")

type fileFormat struct {
	Name    string         `yaml:"name"`
	Modules []moduleFormat `yaml:"modules"`
}

type moduleFormat struct {
	Name         string                  `yaml:"name"`
	Dependencies []model.DependencyEntry `yaml:"dependencies,omitempty"`
}

// Store persists a Project as YAML.
type Store struct {
	fs   billy.Filesystem
	path string
}

// NewStore creates a store for the project file at path inside fs.
func NewStore(fs billy.Filesystem, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the project file path.
func (s *Store) Path() string { return s.path }

// Load reads the project file.
func (s *Store) Load() (*Project, error) {
	data, err := util.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, s.path)
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}

	p := New(f.Name)
	for _, m := range f.Modules {
		if m.Name == "" {
			return nil, fmt.Errorf("parsing %s: module without a name", s.path)
		}
		if _, err := p.AddModule(m.Name, m.Dependencies...); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", s.path, err)
		}
	}
	return p, nil
}

// Save writes the project file, replacing the previous one only once the
// new content is fully written.
func (s *Store) Save(p *Project) error {
	f := fileFormat{Name: p.Name}
	for _, m := range p.Modules() {
		f.Modules = append(f.Modules, moduleFormat{Name: m.Name(), Dependencies: m.Entries()})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := util.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
