package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/jarlink/internal/project"
)

// newInitCmd implements `jarlink init`, which creates the project file or
// adds modules to an existing one. Running it twice with the same modules
// leaves the file unchanged.
func newInitCmd() *cobra.Command {
	var (
		name    string
		modules []string
	)

	cmd := &cobra.Command{
		Use:   "init [root]",
		Short: "Create or extend the project file",
		Long: `Write a project file listing the modules jarlink keeps in sync.
Existing modules and their entries are preserved; only missing modules are
added. Without --module, a single module named after the root directory is
created.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}

			store := s.store()
			p, err := store.Load()
			switch {
			case errors.Is(err, project.ErrProjectNotFound):
				if name == "" {
					name = filepath.Base(s.root)
				}
				p = project.New(name)
			case err != nil:
				return fmt.Errorf("loading project: %w", err)
			}

			if len(modules) == 0 {
				modules = []string{filepath.Base(s.root)}
			}

			added := applyModules(p, modules)
			if err := store.Save(p); err != nil {
				return fmt.Errorf("writing %s: %w", store.Path(), err)
			}

			s.logger.Info("project file written", "path", store.Path(), "added", added, "modules", len(p.Modules()))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name for a new project file (default is the root directory name)")
	cmd.Flags().StringArrayVarP(&modules, "module", "m", nil, "module to add (repeatable)")
	return cmd
}

// applyModules adds every module in names that p does not have yet and
// returns how many were added.
func applyModules(p *project.Project, names []string) int {
	added := 0
	for _, n := range names {
		if p.Module(n) != nil {
			continue
		}
		if _, err := p.AddModule(n); err == nil {
			added++
		}
	}
	return added
}
