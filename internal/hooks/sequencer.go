package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/janhuddel/ghciwatch/internal/procutil"
)

// ReplSender is the subset of the session the sequencer needs to run a REPL
// hook: send one command and wait for the result. Defined here, not in
// package session, so hooks has no import-cycle on the session it serves.
type ReplSender interface {
	SendCommand(ctx context.Context, command string) (string, error)
}

// asyncCleanupTimeout bounds how long Shutdown waits for an async hook's
// process group to exit after SIGTERM before escalating to SIGKILL.
const asyncCleanupTimeout = 2 * time.Second

// Sequencer runs ordered hook lists for lifecycle events, honoring
// "async:" shell hooks as fire-and-forget background processes tracked in a
// bounded-lifetime registry.
type Sequencer struct {
	sender ReplSender
	log    *zap.Logger

	mu     sync.Mutex
	async  []*exec.Cmd
	closed bool
}

// NewSequencer builds a Sequencer that delegates REPL hooks to sender.
func NewSequencer(sender ReplSender, log *zap.Logger) *Sequencer {
	return &Sequencer{sender: sender, log: log}
}

// Run executes every spec in specs whose Event matches event, strictly in
// declaration order, except "async:" shell hooks which are started and not
// waited on. A synchronous hook's non-zero exit (or REPL error) is reported
// but does not abort the remaining hooks, unless event is BeforeStartup, in
// which case the first failure aborts and Run returns an error.
func (s *Sequencer) Run(ctx context.Context, event Event, specs []Spec) error {
	for _, spec := range specs {
		if spec.Event != event {
			continue
		}

		if err := s.runOne(ctx, spec); err != nil {
			if event == BeforeStartup {
				return fmt.Errorf("hooks: before-startup hook %q failed: %w", spec.Command, err)
			}
			s.log.Warn("hook failed, continuing", zap.String("event", string(event)), zap.String("command", spec.Command), zap.Error(err))
		}
	}
	return nil
}

// runOne recovers a panic from a single hook's execution into an error, so
// one misbehaving hook can't take the whole supervisor down with it.
func (s *Sequencer) runOne(ctx context.Context, spec Spec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hooks: panic running %q hook %q: %v", spec.Event, spec.Command, r)
		}
	}()
	return s.runOneUnrecovered(ctx, spec)
}

func (s *Sequencer) runOneUnrecovered(ctx context.Context, spec Spec) error {
	switch spec.Kind {
	case ReplKind:
		out, err := s.sender.SendCommand(ctx, spec.Command)
		if err != nil {
			return fmt.Errorf("repl hook %q: %w", spec.Command, err)
		}
		if out != "" {
			s.log.Debug("repl hook output", zap.String("command", spec.Command), zap.String("output", out))
		}
		return nil
	case ShellKind:
		if spec.Async {
			return s.startAsync(spec)
		}
		return s.runSync(ctx, spec)
	default:
		return fmt.Errorf("hooks: unknown hook kind %v", spec.Kind)
	}
}

func (s *Sequencer) runSync(ctx context.Context, spec Spec) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if buf.Len() > 0 {
		s.log.Info("shell hook output", zap.String("command", spec.Command), zap.String("output", buf.String()))
	}
	if err != nil {
		return fmt.Errorf("shell hook %q: %w", spec.Command, err)
	}
	return nil
}

func (s *Sequencer) startAsync(spec Spec) error {
	cmd := exec.Command("sh", "-c", spec.Command)
	procutil.Detach(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("async shell hook %q: %w", spec.Command, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = cmd.Process.Kill()
		return nil
	}
	s.async = append(s.async, cmd)
	s.mu.Unlock()

	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

// Shutdown terminates every still-registered async hook process group,
// SIGTERM first and SIGKILL after asyncCleanupTimeout, and reaps them.
func (s *Sequencer) Shutdown() {
	s.mu.Lock()
	s.closed = true
	procs := s.async
	s.async = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, cmd := range procs {
		wg.Add(1)
		go func(cmd *exec.Cmd) {
			defer wg.Done()
			if cmd.Process == nil {
				return
			}
			_ = procutil.SignalGroup(cmd.Process.Pid, syscall.SIGTERM)
			done := make(chan struct{})
			go func() {
				_ = cmd.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(asyncCleanupTimeout):
				_ = procutil.Kill(cmd.Process.Pid)
				<-done
			}
		}(cmd)
	}
	wg.Wait()
}
