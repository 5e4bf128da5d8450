// jarlink registers every jar found in a project tree as a library on each
// module of the project.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/phobologic/jarlink/internal/config"
	"github.com/phobologic/jarlink/internal/discover"
	"github.com/phobologic/jarlink/internal/project"
)

var version = "dev"

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// run executes the CLI with explicit arguments and writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "jarlink",
		Short:         "Register project jars as module libraries",
		Long:          "jarlink scans a project tree for jar files and adds each one as a named library to every module listed in the project file.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is <root>/"+config.FileName+")")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.StringP("project", "p", "", "project file (default is <root>/"+project.DefaultFile+")")
	pf.StringP("format", "f", config.FormatText, "output format: text or toon")

	root.AddCommand(newScanCmd(), newSyncCmd(), newInitCmd())
	return root
}

// session is the state shared by every subcommand for one invocation.
type session struct {
	root   string
	cfg    *config.Config
	fs     billy.Filesystem
	logger *log.Logger
}

func newSession(cmd *cobra.Command, args []string) (*session, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{
		Root:           root,
		ConfigFilePath: cfgFile,
		Flags:          cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "jarlink"})
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	return &session{
		root:   root,
		cfg:    cfg,
		fs:     osfs.New(root),
		logger: logger,
	}, nil
}

func (s *session) scanner() *discover.Scanner {
	return discover.NewScanner(s.fs, s.root, discover.Options{
		ExtraSkipDirs:    s.cfg.Scan.SkipDirs,
		RespectGitignore: s.cfg.Scan.RespectGitignore,
		Logger:           s.logger,
	})
}

func (s *session) store() *project.Store {
	path := s.cfg.ProjectPath(project.DefaultFile)
	if filepath.IsAbs(path) {
		return project.NewStore(osfs.New(filepath.Dir(path)), filepath.Base(path))
	}
	return project.NewStore(s.fs, path)
}
