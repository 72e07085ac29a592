// Package hooks runs the ordered lists of REPL-commands and shell-commands
// configured for each supervisor lifecycle event.
package hooks

// Kind distinguishes a hook that talks to the REPL from one that spawns a
// shell command.
type Kind int

const (
	ReplKind Kind = iota
	ShellKind
)

// Event names a supervisor lifecycle point a hook list is attached to.
type Event string

const (
	BeforeStartup Event = "before-startup"
	AfterStartup  Event = "after-startup"
	BeforeReload  Event = "before-reload"
	AfterReload   Event = "after-reload"
	BeforeRestart Event = "before-restart"
	AfterRestart  Event = "after-restart"
	Test          Event = "test"
)

// Spec is one configured hook: a lifecycle event, its kind, the literal
// command text, and whether a shell hook is fire-and-forget. Immutable once
// built by the CLI layer.
type Spec struct {
	Event   Event
	Kind    Kind
	Command string
	Async   bool
}
