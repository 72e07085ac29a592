// Package errorfile writes the most-recent-diagnostics file the supervisor
// exposes to editor integrations, overwriting it atomically on every
// reload/restart conclusion.
package errorfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/janhuddel/ghciwatch/internal/diagnostics"
)

// Render formats diagnostics into the plain-UTF-8, blank-line-separated
// format: each record starts at column 1 as
// "path:line:col: severity: message", continuation lines indented.
func Render(diags []diagnostics.Diagnostic) string {
	if len(diags) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, d := range diags {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s:%d:%d: %s: ", d.Position.Path, d.Position.Line, d.Position.Col, d.Severity)
		lines := strings.Split(d.Message, "\n")
		sb.WriteString(lines[0])
		for _, cont := range lines[1:] {
			sb.WriteString("\n")
			if cont != "" && !strings.HasPrefix(cont, " ") && !strings.HasPrefix(cont, "\t") {
				sb.WriteString("  ")
			}
			sb.WriteString(cont)
		}
	}
	return sb.String()
}

// Write atomically replaces path's contents with content: write to a temp
// file in the same directory, then rename over the destination. An empty
// content denotes "no errors".
func Write(path string, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".errorfile-*.tmp")
	if err != nil {
		return fmt.Errorf("errorfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("errorfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("errorfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("errorfile: rename into place: %w", err)
	}
	return nil
}

// WriteDiagnostics renders diags and writes them to path atomically.
func WriteDiagnostics(path string, diags []diagnostics.Diagnostic) error {
	return Write(path, Render(diags))
}
