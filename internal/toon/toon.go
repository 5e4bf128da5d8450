// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/jarlink/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a run Summary into TOON format.
func Encode(s *model.Summary) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(s.Root)))
	parts = append(parts, fmt.Sprintf("cancelled: %t", s.Cancelled))
	if s.DryRun {
		parts = append(parts, "dry_run: true")
	}

	var archiveRows [][]string
	for i := range s.Archives {
		a := &s.Archives[i]
		archiveRows = append(archiveRows, []string{a.Name, a.RelPath})
	}
	parts = append(parts, formatTabular("archives", []string{"name", "path"}, archiveRows))

	var moduleRows [][]string
	for i := range s.Modules {
		m := &s.Modules[i]
		moduleRows = append(moduleRows, []string{
			m.Module,
			string(m.Status),
			fmt.Sprintf("%d", len(m.Added)),
			fmt.Sprintf("%d", len(m.Removed)),
			strings.Join(m.Messages, "; "),
		})
	}
	parts = append(parts, formatTabular("modules", []string{"module", "status", "added", "removed", "messages"}, moduleRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
