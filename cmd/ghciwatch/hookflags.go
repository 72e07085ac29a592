package main

import (
	"strings"

	"github.com/janhuddel/ghciwatch/internal/hooks"
)

// hookFlagSpec ties one repeatable CLI flag to the lifecycle event and hook
// kind it populates.
type hookFlagSpec struct {
	flag  string
	event hooks.Event
	kind  hooks.Kind
}

// usage returns the --help description for this flag.
func (hf hookFlagSpec) usage() string {
	if hf.kind == hooks.ShellKind {
		return string(hf.event) + ` shell hook, prefix "async:" to not wait for it (repeatable)`
	}
	return string(hf.event) + " ghci hook (repeatable)"
}

// hookFlagSpecs enumerates every `--{before,after}-{startup,reload,restart}-{ghci,shell}`
// and `--test-{ghci,shell}` flags.
var hookFlagSpecs = []hookFlagSpec{
	{"before-startup-ghci", hooks.BeforeStartup, hooks.ReplKind},
	{"before-startup-shell", hooks.BeforeStartup, hooks.ShellKind},
	{"after-startup-ghci", hooks.AfterStartup, hooks.ReplKind},
	{"after-startup-shell", hooks.AfterStartup, hooks.ShellKind},
	{"before-reload-ghci", hooks.BeforeReload, hooks.ReplKind},
	{"before-reload-shell", hooks.BeforeReload, hooks.ShellKind},
	{"after-reload-ghci", hooks.AfterReload, hooks.ReplKind},
	{"after-reload-shell", hooks.AfterReload, hooks.ShellKind},
	{"before-restart-ghci", hooks.BeforeRestart, hooks.ReplKind},
	{"before-restart-shell", hooks.BeforeRestart, hooks.ShellKind},
	{"after-restart-ghci", hooks.AfterRestart, hooks.ReplKind},
	{"after-restart-shell", hooks.AfterRestart, hooks.ShellKind},
	{"test-ghci", hooks.Test, hooks.ReplKind},
	{"test-shell", hooks.Test, hooks.ShellKind},
}

// asyncPrefix marks a shell hook's command text as fire-and-forget.
const asyncPrefix = "async:"

// buildHookSpecs turns the repeatable flag values collected in values
// (keyed by hookFlagSpec.flag) into the ordered hooks.Spec list the
// sequencer consumes. Declaration order within one flag is preserved,
// which pflag already gives us via StringArray. Flags are visited in
// hookFlagSpecs order, so for one lifecycle event every ghci hook comes
// before every shell hook, whatever their order on the command line.
func buildHookSpecs(values map[string][]string) []hooks.Spec {
	var specs []hooks.Spec
	for _, hf := range hookFlagSpecs {
		for _, raw := range values[hf.flag] {
			spec := hooks.Spec{Event: hf.event, Kind: hf.kind, Command: raw}
			if hf.kind == hooks.ShellKind {
				if rest, ok := strings.CutPrefix(raw, asyncPrefix); ok {
					spec.Async = true
					spec.Command = rest
				}
			}
			specs = append(specs, spec)
		}
	}
	return specs
}
