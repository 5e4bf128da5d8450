// Package report renders a run Summary for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/phobologic/jarlink/internal/model"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// Text renders s as human-readable lines. A summary is always produced, even
// for an empty or cancelled run.
func Text(s *model.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Found %d %s under %s\n", len(s.Archives), plural(len(s.Archives), "archive"), s.Root)

	if s.Cancelled {
		b.WriteString(warnStyle.Render("Scan cancelled; no modules were updated."))
		b.WriteString("\n")
		return b.String()
	}

	var failed []model.ModuleOutcome
	for _, m := range s.Modules {
		switch m.Status {
		case model.Failure:
			failed = append(failed, m)
		case model.PartialFailure:
			for _, msg := range m.Messages {
				fmt.Fprintf(&b, "%s %s: %s\n", warnStyle.Render("warning:"), m.Module, msg)
			}
		}
	}

	if len(failed) > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("Failed to update %d of %d %s:",
			len(failed), len(s.Modules), plural(len(s.Modules), "module"))))
		b.WriteString("\n")
		for _, m := range failed {
			fmt.Fprintf(&b, "  - %s: %s\n", m.Module, strings.Join(m.Messages, "; "))
		}
		return b.String()
	}

	added := addedNames(s.Modules)
	msg := fmt.Sprintf("Added %d %s to %d %s",
		added, plural(added, "library", "libraries"),
		len(s.Modules), plural(len(s.Modules), "module"))
	if s.DryRun {
		msg += dimStyle.Render(" (dry run, project file not written)")
	}
	b.WriteString(okStyle.Render(msg))
	b.WriteString("\n")
	return b.String()
}

// addedNames counts the distinct library names added across all modules.
func addedNames(modules []model.ModuleOutcome) int {
	names := make(map[string]struct{})
	for _, m := range modules {
		for _, n := range m.Added {
			names[n] = struct{}{}
		}
	}
	return len(names)
}

// plural picks the singular or plural form of a noun. The plural defaults to
// the singular with an "s" appended.
func plural(n int, forms ...string) string {
	if n == 1 {
		return forms[0]
	}
	if len(forms) > 1 {
		return forms[1]
	}
	return forms[0] + "s"
}
