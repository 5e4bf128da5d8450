package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/phobologic/jarlink/internal/classpath"
	"github.com/phobologic/jarlink/internal/config"
	"github.com/phobologic/jarlink/internal/model"
	"github.com/phobologic/jarlink/internal/reconcile"
	"github.com/phobologic/jarlink/internal/report"
	"github.com/phobologic/jarlink/internal/toon"
)

var errModulesFailed = errors.New("some modules could not be updated")

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "List the jars that sync would register",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}

			res := s.scanner().Scan(cmd.Context())
			for _, dir := range res.Unreadable {
				s.logger.Warn("directory not readable, skipped", "dir", dir)
			}

			summary := &model.Summary{Root: s.root, Archives: res.Archives, Cancelled: res.Cancelled}
			if s.cfg.Format == config.FormatTOON {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), toon.Encode(summary))
				return nil
			}
			for _, a := range res.Archives {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), a.RelPath)
			}
			if err := res.Err(); err != nil {
				s.logger.Warn("list is incomplete", "err", err)
			}
			return nil
		},
	}
	addScanFlags(cmd)
	return cmd
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [root]",
		Short: "Register every jar under root as a library on each project module",
		Long: `Scan root for jar files and reconcile every module in the project file:
entries named after a found jar are replaced with one fresh entry per jar,
other entries are left alone. Each module is committed on its own, so a
failure in one module does not affect the others.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}
			return runSync(cmd, s)
		},
	}
	addScanFlags(cmd)
	cmd.Flags().Bool("dry-run", false, "reconcile in memory without writing the project file")
	return cmd
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("skip-dir", nil, "additional directory name to skip (repeatable)")
	cmd.Flags().Bool("respect-gitignore", false, "skip paths matched by <root>/.gitignore")
}

func runSync(cmd *cobra.Command, s *session) error {
	store := s.store()
	p, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}
	if len(p.Modules()) == 0 {
		return fmt.Errorf("%s lists no modules; add some with 'jarlink init --module <name>'", store.Path())
	}

	s.logger.Debug("scanning", "root", s.root)
	res := s.scanner().Scan(cmd.Context())
	for _, dir := range res.Unreadable {
		s.logger.Warn("directory not readable, skipped", "dir", dir)
	}

	summary := &model.Summary{
		Root:      s.root,
		Archives:  res.Archives,
		Cancelled: res.Cancelled,
		DryRun:    s.cfg.DryRun,
	}

	if err := res.Err(); err != nil {
		s.logger.Warn("modules left untouched", "err", err)
	} else {
		rec := reconcile.New(classpath.NewResolver(s.fs), s.logger)
		summary.Modules = rec.Project(p, res.Archives)

		if !s.cfg.DryRun {
			if err := store.Save(p); err != nil {
				return fmt.Errorf("saving project: %w", err)
			}
			s.logger.Debug("project saved", "path", store.Path())
		}
	}

	if err := writeSummary(cmd.OutOrStdout(), s.cfg.Format, summary); err != nil {
		return err
	}
	if summary.Failed() {
		return errModulesFailed
	}
	return nil
}

func writeSummary(w io.Writer, format string, summary *model.Summary) error {
	var out string
	if format == config.FormatTOON {
		out = toon.Encode(summary) + "\n"
	} else {
		out = report.Text(summary)
	}
	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
