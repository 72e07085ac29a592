// Package sentinel provides the sentinel-framed stdio reader for a REPL
// child process: it establishes an in-band "command complete" marker by
// setting the REPL's prompt to an improbable token, then demultiplexes
// stdout/stderr into output blocks delimited by that token.
package sentinel

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix makes a sentinel line visually identifiable in raw terminal output
// and impossible to confuse with a bare UUID a program might print.
const Prefix = "ghciwatch-prompt-"

// New returns a fresh sentinel token, unique per session, unlikely ever to
// appear in ordinary compiler or program output.
func New() string {
	return Prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SetPromptCommand returns the ghci command that installs token as the
// prompt string, the one command the session sends before anything else.
func SetPromptCommand(token string) string {
	return `:set prompt "` + token + `\n"`
}
