package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/janhuddel/ghciwatch/internal/hooks"
)

func TestBuildHookSpecs_PreservesOrderAndAsyncPrefix(t *testing.T) {
	values := map[string][]string{
		"before-reload-ghci":  {":set +t", ":show modules"},
		"after-restart-shell": {"async:notify-send done", "make test"},
	}

	specs := buildHookSpecs(values)

	a := assert.New(t)
	a.Len(specs, 4)

	a.Equal(hooks.Spec{Event: hooks.BeforeReload, Kind: hooks.ReplKind, Command: ":set +t"}, specs[0])
	a.Equal(hooks.Spec{Event: hooks.BeforeReload, Kind: hooks.ReplKind, Command: ":show modules"}, specs[1])
	a.Equal(hooks.Spec{Event: hooks.AfterRestart, Kind: hooks.ShellKind, Command: "notify-send done", Async: true}, specs[2])
	a.Equal(hooks.Spec{Event: hooks.AfterRestart, Kind: hooks.ShellKind, Command: "make test", Async: false}, specs[3])
}

func TestBuildHookSpecs_Empty(t *testing.T) {
	assert.Empty(t, buildHookSpecs(map[string][]string{}))
}

func TestHookFlagSpec_Usage(t *testing.T) {
	replSpec := hookFlagSpec{"test-ghci", hooks.Test, hooks.ReplKind}
	shellSpec := hookFlagSpec{"test-shell", hooks.Test, hooks.ShellKind}

	assert.Contains(t, replSpec.usage(), "ghci hook")
	assert.Contains(t, shellSpec.usage(), `"async:"`)
}
