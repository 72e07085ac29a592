// Command ghciwatch supervises a ghci session: it starts the REPL, watches
// the project's source tree, and reloads or restarts the session as files
// change, running configured hooks and eval comments around each cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "ghciwatch:", err)
	}
	return exitCode(err)
}

// signalContext derives a context from parent that is canceled on the
// first SIGINT or SIGTERM, giving the supervisor's shutdown path (session
// Stop, async hook cleanup) a chance to run before the process exits.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ghcierrAs is errors.As with its two-line call folded to one, used by
// exitCode's switch to keep each case a single expression.
func ghcierrAs(err error, target any) bool {
	return errors.As(err, target)
}
