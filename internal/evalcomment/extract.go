// Package evalcomment scans Haskell source for eval-comment markers — the
// "-- $>" single-line form and the "{- $> ... <$ -}" block form — and turns
// each into a REPL command tagged with its source position.
package evalcomment

import (
	"strings"
)

const (
	singleLinePrefix = "-- $>"
	blockStartPrefix = "{- $>"
	blockEndSuffix   = "<$ -}"
)

// Command is one extracted eval expression, ready to be sent to the REPL
// within the context of its owning module.
type Command struct {
	// Line is the 1-based line number the marker (or its opening fence)
	// appeared on, for tagging eval output with a source position.
	Line int
	// Expr is the expression to evaluate, a single line for "-- $>" markers
	// and the joined inner lines for "{- $> ... <$ -}" blocks.
	Expr string
}

// Extract returns every eval command found in src, in source order. Lines
// that don't match either grammar production contribute no commands.
func Extract(src []byte) []Command {
	lines := strings.Split(string(src), "\n")
	var out []Command

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])

		if strings.HasPrefix(trimmed, singleLinePrefix) {
			expr := strings.TrimSpace(strings.TrimPrefix(trimmed, singleLinePrefix))
			out = append(out, Command{Line: i + 1, Expr: expr})
			i++
			continue
		}

		if strings.HasPrefix(trimmed, blockStartPrefix) {
			startLine := i + 1
			var inner []string
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, blockStartPrefix)); rest != "" {
				inner = append(inner, rest)
			}
			i++
			closed := false
			for i < len(lines) {
				t := strings.TrimSpace(lines[i])
				if strings.HasSuffix(t, blockEndSuffix) {
					if lead := strings.TrimSpace(strings.TrimSuffix(t, blockEndSuffix)); lead != "" {
						inner = append(inner, lead)
					}
					i++
					closed = true
					break
				}
				inner = append(inner, lines[i])
				i++
			}
			if closed && len(inner) > 0 {
				out = append(out, Command{Line: startLine, Expr: strings.Join(inner, "\n")})
			}
			continue
		}

		i++
	}

	return out
}
