// Package shellsplit expands a user-supplied shell command string into the
// argv ghciwatch should exec, using POSIX single-word splitting rules — the
// same rules sh applies before it looks up the first word as a command.
package shellsplit

import (
	"fmt"
	"os"

	"mvdan.cc/sh/v3/shell"
)

// Split parses s using POSIX word-splitting and parameter expansion against
// the current process environment, returning the resulting argv. An empty
// or whitespace-only s is a configuration error, not a run-time one: callers
// are expected to call Split once at startup and fail fast.
func Split(s string) ([]string, error) {
	fields, err := shell.Fields(s, func(name string) string {
		return os.Getenv(name)
	})
	if err != nil {
		return nil, fmt.Errorf("shellsplit: parse %q: %w", s, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("shellsplit: %q splits to an empty command", s)
	}
	return fields, nil
}
