// Package supervisor drives the top-level state machine: it starts the
// REPL session, classifies watcher batches into reload/restart cycles,
// sequences lifecycle hooks and eval runs around each cycle, and keeps the
// error file in sync with the session's diagnostics.
package supervisor

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/janhuddel/ghciwatch/internal/diagnostics"
	"github.com/janhuddel/ghciwatch/internal/errorfile"
	"github.com/janhuddel/ghciwatch/internal/evalcomment"
	"github.com/janhuddel/ghciwatch/internal/ghcierr"
	"github.com/janhuddel/ghciwatch/internal/hooks"
	"github.com/janhuddel/ghciwatch/internal/pathset"
	"github.com/janhuddel/ghciwatch/internal/session"
	"github.com/janhuddel/ghciwatch/internal/watch"
)

// Config parameterizes a Supervisor. Built once by the CLI layer.
type Config struct {
	ErrorFilePath      string
	EnableEval         bool
	Clear              bool
	NoInterruptReloads bool
	Hooks              []hooks.Spec
	Log                *zap.Logger
}

// Supervisor owns one REPL session, one watcher, and the path-set tracker
// that classifies the watcher's batches against it.
type Supervisor struct {
	cfg     Config
	session *session.Session
	watcher watch.Watcher
	tracker *pathset.Tracker
	seq     *hooks.Sequencer
	log     *zap.Logger
}

// New builds a Supervisor. sess must not yet be started; watcher must
// already be watching its configured roots.
func New(cfg Config, sess *session.Session, watcher watch.Watcher, tracker *pathset.Tracker) *Supervisor {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		cfg:     cfg,
		session: sess,
		watcher: watcher,
		tracker: tracker,
		seq:     hooks.NewSequencer(sess, log),
		log:     log,
	}
}

// Run executes the full lifecycle: before-startup hooks, session start,
// after-startup hooks, then the Idle loop classifying watcher batches until
// ctx is canceled (clean shutdown) or the session dies unexpectedly.
func (sv *Supervisor) Run(ctx context.Context) error {
	if err := sv.seq.Run(ctx, hooks.BeforeStartup, sv.cfg.Hooks); err != nil {
		return &ghcierr.StartupError{Reason: "before-startup hooks", Cause: err}
	}

	if err := sv.session.Start(ctx); err != nil {
		return err
	}

	if err := sv.seq.Run(ctx, hooks.AfterStartup, sv.cfg.Hooks); err != nil {
		sv.log.Warn("after-startup hooks reported an error", zap.Error(err))
	}
	if err := sv.writeErrorFile(nil); err != nil {
		sv.log.Warn("write error file", zap.Error(err))
	}
	if err := sv.seq.Run(ctx, hooks.Test, sv.cfg.Hooks); err != nil {
		sv.log.Warn("test hooks reported an error", zap.Error(err))
	}
	sv.runEval(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			return sv.shutdown()
		case <-sv.session.Exited():
			return &ghcierr.SessionDeathError{Reason: "child exited unexpectedly"}
		case err, ok := <-sv.watcher.Errors():
			if ok && err != nil {
				sv.log.Error("watcher error", zap.Error(err))
			}
		case batch, ok := <-sv.watcher.Batches():
			if !ok {
				return &ghcierr.SessionDeathError{Reason: "watcher stopped"}
			}
			// Events that arrived during a reload are classified right away,
			// without waiting for another batch.
			events := batch.Events
			for len(events) > 0 && ctx.Err() == nil {
				result := sv.tracker.ClassifyBatch(events)
				events = nil
				switch result.Classification {
				case pathset.RestartTarget:
					if err := sv.handleRestart(ctx); err != nil {
						return err
					}
				case pathset.ReloadTarget:
					merged, err := sv.handleReload(ctx, result)
					if err != nil {
						return err
					}
					events = merged
				}
			}
		}
	}
}

// reloadOutcome carries a completed session.Reload/Add result back to the
// select loop in handleReload.
type reloadOutcome struct {
	diag diagnostics.Result
	err  error
}

// handleReload runs one before-reload -> reload/add -> after-reload ->
// eval -> test cycle, honoring cancellation: a new batch arriving while the
// operation is in flight interrupts the child (unless
// --no-interrupt-reloads is set) and its partial output is discarded; any
// events observed during the wait are returned for the caller to
// re-classify on the next loop iteration.
func (sv *Supervisor) handleReload(ctx context.Context, result pathset.BatchResult) ([]pathset.Event, error) {
	if err := sv.seq.Run(ctx, hooks.BeforeReload, sv.cfg.Hooks); err != nil {
		sv.log.Warn("before-reload hooks reported an error", zap.Error(err))
	}
	sv.maybeClear()

	done := make(chan reloadOutcome, 1)
	go func() {
		var outcome reloadOutcome
		if len(result.NeedsAdd) > 0 {
			outcome.diag, outcome.err = sv.session.Add(ctx, result.NeedsAdd)
		} else {
			outcome.diag, outcome.err = sv.session.Reload(ctx)
		}
		done <- outcome
	}()

	canceled := false
	var extra []pathset.Event
	for {
		select {
		case outcome := <-done:
			if canceled {
				return extra, nil
			}
			if outcome.err != nil {
				return extra, outcome.err
			}
			sv.applyReloadResult(outcome.diag, result.ReloadPaths)
			if err := sv.seq.Run(ctx, hooks.AfterReload, sv.cfg.Hooks); err != nil {
				sv.log.Warn("after-reload hooks reported an error", zap.Error(err))
			}
			sv.runEval(ctx, result.ReloadPaths)
			if err := sv.seq.Run(ctx, hooks.Test, sv.cfg.Hooks); err != nil {
				sv.log.Warn("test hooks reported an error", zap.Error(err))
			}
			return extra, nil

		case batch, ok := <-sv.watcher.Batches():
			if !ok {
				return extra, &ghcierr.SessionDeathError{Reason: "watcher stopped"}
			}
			extra = append(extra, batch.Events...)
			if sv.cfg.NoInterruptReloads {
				continue
			}
			if !canceled {
				canceled = true
				if err := sv.session.Interrupt(); err != nil {
					sv.log.Warn("interrupt in-flight reload", zap.Error(err))
				}
			}

		case <-ctx.Done():
			return extra, nil
		}
	}
}

// handleRestart runs one before-restart -> restart -> after-startup ->
// after-restart -> eval -> test cycle. Restart is non-cancelable once
// begun: a batch arriving during it is picked up by the main loop on its
// next iteration.
func (sv *Supervisor) handleRestart(ctx context.Context) error {
	if err := sv.seq.Run(ctx, hooks.BeforeRestart, sv.cfg.Hooks); err != nil {
		sv.log.Warn("before-restart hooks reported an error", zap.Error(err))
	}
	sv.maybeClear()

	if err := sv.session.Restart(ctx); err != nil {
		return err
	}

	if err := sv.seq.Run(ctx, hooks.AfterStartup, sv.cfg.Hooks); err != nil {
		sv.log.Warn("after-startup hooks reported an error", zap.Error(err))
	}
	if err := sv.seq.Run(ctx, hooks.AfterRestart, sv.cfg.Hooks); err != nil {
		sv.log.Warn("after-restart hooks reported an error", zap.Error(err))
	}
	if err := sv.writeErrorFile(nil); err != nil {
		sv.log.Warn("write error file", zap.Error(err))
	}
	sv.runEval(ctx, nil)
	if err := sv.seq.Run(ctx, hooks.Test, sv.cfg.Hooks); err != nil {
		sv.log.Warn("test hooks reported an error", zap.Error(err))
	}
	return nil
}

// applyReloadResult updates the live module set from the reload's reported
// modules, marks any newly-added paths known, and overwrites the error
// file with the reload's diagnostics.
func (sv *Supervisor) applyReloadResult(d diagnostics.Result, reloadPaths []string) {
	if len(d.Modules) > 0 {
		live := make([]pathset.LiveModule, 0, len(d.Modules))
		for _, m := range d.Modules {
			if m.Path != "" {
				live = append(live, pathset.LiveModule{Path: m.Path, ModuleName: m.ModuleName})
			}
		}
		if len(live) > 0 {
			sv.tracker.SetLive(live)
		}
	}
	for _, p := range reloadPaths {
		sv.tracker.Add(p)
	}
	if err := sv.writeErrorFile(d.Diagnostics); err != nil {
		sv.log.Warn("write error file", zap.Error(err))
	}
}

func (sv *Supervisor) writeErrorFile(diags []diagnostics.Diagnostic) error {
	if sv.cfg.ErrorFilePath == "" {
		return nil
	}
	return errorfile.WriteDiagnostics(sv.cfg.ErrorFilePath, diags)
}

// runEval evaluates every eval-comment marker found in paths (or, if paths
// is nil, every currently live module) when --enable-eval is set.
func (sv *Supervisor) runEval(ctx context.Context, paths []string) {
	if !sv.cfg.EnableEval {
		return
	}
	if paths == nil {
		for _, rec := range sv.tracker.LiveModules() {
			paths = append(paths, rec.Path)
		}
	}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cmds := evalcomment.Extract(src)
		if len(cmds) == 0 {
			continue
		}
		moduleName := sv.tracker.ModuleName(path)
		for _, cmd := range cmds {
			out, err := sv.session.EvalInModule(ctx, moduleName, cmd.Expr)
			if err != nil {
				sv.log.Warn("eval failed", zap.String("path", path), zap.Int("line", cmd.Line), zap.Error(err))
				continue
			}
			sv.log.Info("eval result", zap.String("path", path), zap.Int("line", cmd.Line), zap.String("output", out))
		}
	}
}

func (sv *Supervisor) maybeClear() {
	if sv.cfg.Clear {
		fmt.Fprint(os.Stdout, "\033[H\033[2J")
	}
}

// shutdown is the "any -> SIGINT/SIGTERM" transition: graceful session
// stop, then join every outstanding async hook handle.
func (sv *Supervisor) shutdown() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), session.DefaultGracefulTimeout+session.DefaultInterruptTimeout)
	defer cancel()
	if err := sv.session.Stop(stopCtx, true); err != nil {
		sv.log.Warn("session stop reported an error", zap.Error(err))
	}
	sv.seq.Shutdown()
	if err := sv.watcher.Close(); err != nil {
		sv.log.Warn("watcher close reported an error", zap.Error(err))
	}
	return nil
}
