package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/janhuddel/ghciwatch/internal/config"
	"github.com/janhuddel/ghciwatch/internal/ghcierr"
	"github.com/janhuddel/ghciwatch/internal/logging"
	"github.com/janhuddel/ghciwatch/internal/pathset"
	"github.com/janhuddel/ghciwatch/internal/session"
	"github.com/janhuddel/ghciwatch/internal/supervisor"
	"github.com/janhuddel/ghciwatch/internal/watch"
)

// version is overridden at build time with -ldflags.
var version = "0.1.0"

// cliFlags collects every raw flag value before it's resolved into a
// config.Options; hook flag values are read separately in runGhciwatch
// since cobra only exposes StringArray flags through the FlagSet.
type cliFlags struct {
	command     string
	errorFile   string
	enableEval  bool
	clear       bool
	noInterrupt bool
	completions string

	poll         string
	debounce     string
	watch        []string
	reloadGlobs  []string
	restartGlobs []string

	logFilter  string
	backtrace  string
	traceSpans []string
	logJSON    string
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:           "ghciwatch [FILE]",
		Short:         "Supervise a ghci session, reloading or restarting it as files change",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var positional string
			if len(args) == 1 {
				positional = args[0]
			}
			return runGhciwatch(cmd, flags, positional)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.command, "command", "", `REPL launch command (e.g. "cabal repl"); mutually exclusive with a positional file`)
	f.StringVar(&flags.errorFile, "error-file", "", "write the most recent diagnostics to this path")
	f.BoolVar(&flags.enableEval, "enable-eval", false, "evaluate -- $> eval comments after successful reload/restart")
	f.BoolVar(&flags.clear, "clear", false, "clear the screen before each reload/restart")
	f.BoolVar(&flags.noInterrupt, "no-interrupt-reloads", false, "let an in-flight reload finish instead of interrupting it for a newer batch")
	f.StringVar(&flags.completions, "completions", "", "print a completion script for the given shell and exit (bash|zsh|fish|powershell)")

	f.StringVar(&flags.poll, "poll", "", `accepted as a DURATION (e.g. "1s") but not used: changes are always detected through filesystem events`)
	f.StringVar(&flags.debounce, "debounce", "", "collapse filesystem events within this window into one batch (default 500ms)")
	f.StringArrayVar(&flags.watch, "watch", nil, "directory to watch recursively (repeatable)")
	f.StringArrayVar(&flags.reloadGlobs, "reload-glob", nil, "glob that forces a reload classification (repeatable)")
	f.StringArrayVar(&flags.restartGlobs, "restart-glob", nil, "glob that forces a restart classification (repeatable)")

	f.StringVar(&flags.logFilter, "log-filter", "info", `log level, optionally per-logger ("info,session=debug")`)
	f.StringVar(&flags.backtrace, "backtrace", "1", "attach stack traces: 0, 1 (warn/error), or full")
	f.StringArrayVar(&flags.traceSpans, "trace-spans", nil, "span lifecycle events: new, enter, exit, close, none, active, full (accepted; no span log lines are emitted)")
	f.StringVar(&flags.logJSON, "log-json", "", "additionally write JSON log entries to this path")

	for _, hf := range hookFlagSpecs {
		f.StringArray(hf.flag, nil, hf.usage())
	}

	return cmd
}

func runGhciwatch(cmd *cobra.Command, flags cliFlags, positional string) error {
	stderr := cmd.ErrOrStderr()

	if flags.completions != "" {
		return emitCompletions(cmd, flags.completions)
	}

	hookValues := make(map[string][]string, len(hookFlagSpecs))
	for _, hf := range hookFlagSpecs {
		vals, err := cmd.Flags().GetStringArray(hf.flag)
		if err != nil {
			return err
		}
		hookValues[hf.flag] = vals
	}

	opts := config.Options{
		Command:            flags.command,
		PositionalFile:     positional,
		ErrorFile:          flags.errorFile,
		EnableEval:         flags.enableEval,
		Clear:              flags.clear,
		NoInterruptReloads: flags.noInterrupt,
		Completions:        flags.completions,
		Hooks:              buildHookSpecs(hookValues),
		Watch:              flags.watch,
		ReloadGlobs:        flags.reloadGlobs,
		RestartGlobs:       flags.restartGlobs,
		LogFilter:          flags.logFilter,
		Backtrace:          flags.backtrace,
		TraceSpans:         flags.traceSpans,
		LogJSON:            flags.logJSON,
	}

	var err error
	if opts.Poll, err = parseOptionalDuration(flags.poll); err != nil {
		return &ghcierr.ConfigError{Reason: fmt.Sprintf("--poll: %v", err)}
	}
	if opts.Debounce, err = parseOptionalDuration(flags.debounce); err != nil {
		return &ghcierr.ConfigError{Reason: fmt.Sprintf("--debounce: %v", err)}
	}

	if pf, err := config.LoadProjectFile("."); err != nil {
		fmt.Fprintf(stderr, "ghciwatch: warning: %v\n", err)
	} else {
		opts = opts.ApplyProjectFile(pf)
	}

	if err := opts.Validate(); err != nil {
		return err
	}

	logger, cleanup, err := logging.New(logging.Options{
		Filter:     opts.LogFilter,
		Backtrace:  opts.Backtrace,
		TraceSpans: opts.TraceSpans,
		JSONPath:   opts.LogJSON,
	})
	if err != nil {
		return &ghcierr.ConfigError{Reason: err.Error()}
	}
	defer cleanup()

	argv, err := opts.ReplArgv()
	if err != nil {
		return err
	}

	reloadGlobs, err := pathset.NewGlobset(opts.ReloadGlobs)
	if err != nil {
		return &ghcierr.ConfigError{Reason: fmt.Sprintf("--reload-glob: %v", err)}
	}
	restartGlobs, err := pathset.NewGlobset(opts.RestartGlobs)
	if err != nil {
		return &ghcierr.ConfigError{Reason: fmt.Sprintf("--restart-glob: %v", err)}
	}
	tracker := pathset.NewTracker(reloadGlobs, restartGlobs, opts.Watch)

	debounce := opts.Debounce
	if debounce == 0 {
		debounce = config.DefaultDebounce
	}
	watcher, err := watch.NewFSNotifyWatcher(opts.Watch, debounce)
	if err != nil {
		return &ghcierr.ConfigError{Reason: err.Error()}
	}

	sess := session.New(session.Config{
		Argv: argv,
		Log:  logger.Named("session"),
	})

	sv := supervisor.New(supervisor.Config{
		ErrorFilePath:      opts.ErrorFile,
		EnableEval:         opts.EnableEval,
		Clear:              opts.Clear,
		NoInterruptReloads: opts.NoInterruptReloads,
		Hooks:              opts.Hooks,
		Log:                logger.Named("supervisor"),
	}, sess, watcher, tracker)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	return sv.Run(ctx)
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func emitCompletions(cmd *cobra.Command, shell string) error {
	root := cmd.Root()
	switch shell {
	case "bash":
		return root.GenBashCompletion(os.Stdout)
	case "zsh":
		return root.GenZshCompletion(os.Stdout)
	case "fish":
		return root.GenFishCompletion(os.Stdout, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(os.Stdout)
	default:
		return &ghcierr.ConfigError{Reason: fmt.Sprintf("unknown --completions shell %q", shell)}
	}
}

// exitCode maps a Run error to the process exit code, stable across a
// release.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *ghcierr.ConfigError
	var startupErr *ghcierr.StartupError
	var deathErr *ghcierr.SessionDeathError
	switch {
	case ghcierrAs(err, &cfgErr):
		return 2
	case ghcierrAs(err, &startupErr):
		return 3
	case ghcierrAs(err, &deathErr):
		return 4
	default:
		return 1
	}
}
