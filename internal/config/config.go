// Package config resolves the CLI flag surface into the typed
// options the rest of the program consumes, merging in an optional
// .ghciwatch.yaml project file. Flags always win over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/janhuddel/ghciwatch/internal/ghcierr"
	"github.com/janhuddel/ghciwatch/internal/hooks"
	"github.com/janhuddel/ghciwatch/internal/pathset"
	"github.com/janhuddel/ghciwatch/internal/shellsplit"
)

// ProjectFileName is the optional per-repository defaults file.
const ProjectFileName = ".ghciwatch.yaml"

// DefaultDebounce is the default debounce window.
const DefaultDebounce = 500 * time.Millisecond

// ProjectFile is the subset of flags a repository can commit
// defaults for; every field is optional and overridden by an explicit flag.
type ProjectFile struct {
	Command            string        `koanf:"command"`
	ErrorFile          string        `koanf:"error-file"`
	EnableEval         bool          `koanf:"enable-eval"`
	Clear              bool          `koanf:"clear"`
	NoInterruptReloads bool          `koanf:"no-interrupt-reloads"`
	Watch              []string      `koanf:"watch"`
	ReloadGlobs        []string      `koanf:"reload-glob"`
	RestartGlobs       []string      `koanf:"restart-glob"`
	Poll               time.Duration `koanf:"poll"`
	Debounce           time.Duration `koanf:"debounce"`
	LogFilter          string        `koanf:"log-filter"`
}

// LoadProjectFile reads dir/.ghciwatch.yaml if present. A missing file is
// not an error; a malformed one is.
func LoadProjectFile(dir string) (ProjectFile, error) {
	var pf ProjectFile
	path := filepath.Join(dir, ProjectFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return pf, nil
		}
		return pf, fmt.Errorf("config: stat %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return pf, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := k.Unmarshal("", &pf); err != nil {
		return pf, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return pf, nil
}

// Options is the fully-resolved configuration: CLI flags merged over a
// ProjectFile, ready for Validate and ReplArgv.
type Options struct {
	Command        string
	PositionalFile string

	ErrorFile          string
	EnableEval         bool
	Clear              bool
	NoInterruptReloads bool
	Completions        string

	Hooks []hooks.Spec

	Poll         time.Duration
	Debounce     time.Duration
	Watch        []string
	ReloadGlobs  []string
	RestartGlobs []string

	LogFilter  string
	Backtrace  string
	TraceSpans []string
	LogJSON    string
}

// Validate checks the mutually-exclusive and well-formedness rules this
// §7 requires to be caught before any child process is spawned.
func (o Options) Validate() error {
	if o.Command != "" && o.PositionalFile != "" {
		return &ghcierr.ConfigError{Reason: "--command and a positional file are mutually exclusive"}
	}
	if o.Command == "" && o.PositionalFile == "" {
		return &ghcierr.ConfigError{Reason: "one of --command or a positional Haskell file is required"}
	}
	if len(o.Watch) == 0 {
		return &ghcierr.ConfigError{Reason: "at least one --watch path is required"}
	}
	for _, w := range o.Watch {
		info, err := os.Stat(w)
		if err != nil || !info.IsDir() {
			return &ghcierr.ConfigError{Reason: fmt.Sprintf("--watch path %q is not a directory", w)}
		}
	}
	if _, err := buildGlobsets(o); err != nil {
		return err
	}
	return nil
}

// buildGlobsets validates the reload/restart glob patterns eagerly, same as
// pathset.NewGlobset does, so a bad pattern is a configuration error rather
// than a classification-time surprise.
func buildGlobsets(o Options) (struct{}, error) {
	for _, patterns := range [][]string{o.ReloadGlobs, o.RestartGlobs} {
		if _, err := pathset.NewGlobset(patterns); err != nil {
			return struct{}{}, &ghcierr.ConfigError{Reason: err.Error()}
		}
	}
	return struct{}{}, nil
}

// ReplArgv resolves the effective REPL launch command (--command, or the
// "ghci <file>" shorthand for a positional file) into a parsed argv.
func (o Options) ReplArgv() ([]string, error) {
	command := o.Command
	if command == "" {
		command = "ghci " + o.PositionalFile
	}
	argv, err := shellsplit.Split(command)
	if err != nil {
		return nil, &ghcierr.ConfigError{Reason: fmt.Sprintf("unparseable command %q: %v", command, err)}
	}
	if len(argv) == 0 {
		return nil, &ghcierr.ConfigError{Reason: "empty REPL command"}
	}
	return argv, nil
}

// ApplyProjectFile fills in any Options field still at its zero value from
// pf, leaving explicitly-set CLI flags untouched.
func (o Options) ApplyProjectFile(pf ProjectFile) Options {
	if o.Command == "" && o.PositionalFile == "" {
		o.Command = pf.Command
	}
	if o.ErrorFile == "" {
		o.ErrorFile = pf.ErrorFile
	}
	if !o.EnableEval {
		o.EnableEval = pf.EnableEval
	}
	if !o.Clear {
		o.Clear = pf.Clear
	}
	if !o.NoInterruptReloads {
		o.NoInterruptReloads = pf.NoInterruptReloads
	}
	if len(o.Watch) == 0 {
		o.Watch = pf.Watch
	}
	if len(o.ReloadGlobs) == 0 {
		o.ReloadGlobs = pf.ReloadGlobs
	}
	if len(o.RestartGlobs) == 0 {
		o.RestartGlobs = pf.RestartGlobs
	}
	if o.Poll == 0 {
		o.Poll = pf.Poll
	}
	if o.Debounce == 0 {
		o.Debounce = pf.Debounce
	}
	if o.Debounce == 0 {
		o.Debounce = DefaultDebounce
	}
	if o.LogFilter == "" {
		o.LogFilter = pf.LogFilter
	}
	return o
}
