// Package diagnostics turns the raw stdout block of one REPL command into a
// compile summary, an ordered list of source-positioned diagnostics, and the
// passthrough lines the user should still see verbatim.
package diagnostics

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity classifies a diagnostic message.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Position is a source location as reported by the compiler.
type Position struct {
	Path string
	Line int
	Col  int
}

// Diagnostic is one source-positioned compiler message, header plus its
// indented continuation lines.
type Diagnostic struct {
	Position Position
	Severity Severity
	Module   string // best-effort, filled in from the nearest progress line
	Message  string
}

// ModuleStatus is one "[N of M] Compiling X (path, ...)" progress line.
type ModuleStatus struct {
	Index       int
	Total       int
	ModuleName  string
	Path        string
	Target      string // e.g. "interpreted", "bytecode"
}

// Summary is the terminal "Ok, N modules loaded" / "Failed, N modules
// loaded" line of a reload or load.
type Summary struct {
	Present      bool
	Ok           bool
	ModuleCount  int
	Action       string // "loaded" or "reloaded"
}

// Result is everything Parse extracts from one output block.
type Result struct {
	Modules     []ModuleStatus
	Diagnostics []Diagnostic
	Summary     Summary
	Passthrough []string
}

var (
	progressRe = regexp.MustCompile(`^\[(\d+) of (\d+)\] Compiling (\S+)\s+\(\s*([^,]+?)\s*,\s*(.+?)\s*\)\s*$`)
	headerRe   = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(error|warning|info)(?:\s*\[[^\]]*\])?:\s*(.*)$`)
	summaryRe  = regexp.MustCompile(`^(Ok|Failed),\s*(\d+)\s*modules?\s*(?:(loaded|reloaded))?\.?\s*$`)
)

// Parse runs the single-pass recognizer over lines (the stdout half of one
// sentinel-delimited output block). Malformed lines are never fatal; they
// fall through to Passthrough. A diagnostic header always terminates any
// diagnostic block currently being accumulated.
func Parse(lines []string) Result {
	var res Result
	var current *Diagnostic
	var currentModule string

	flush := func() {
		if current != nil {
			current.Message = strings.TrimRight(current.Message, "\n")
			res.Diagnostics = append(res.Diagnostics, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if m := progressRe.FindStringSubmatch(line); m != nil {
			flush()
			idx, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			currentModule = m[3]
			res.Modules = append(res.Modules, ModuleStatus{
				Index:      idx,
				Total:      total,
				ModuleName: m[3],
				Path:       m[4],
				Target:     m[5],
			})
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			current = &Diagnostic{
				Position: Position{Path: m[1], Line: lineNo, Col: col},
				Severity: Severity(m[4]),
				Module:   currentModule,
				Message:  m[5],
			}
			continue
		}

		if m := summaryRe.FindStringSubmatch(line); m != nil {
			flush()
			count, _ := strconv.Atoi(m[2])
			res.Summary = Summary{
				Present:     true,
				Ok:          m[1] == "Ok",
				ModuleCount: count,
				Action:      m[3],
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current != nil && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			current.Message += "\n" + strings.TrimRight(line, "\r")
			continue
		}

		flush()
		res.Passthrough = append(res.Passthrough, line)
	}
	flush()

	return res
}
