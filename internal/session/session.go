// Package session owns the REPL child process and exposes the
// request/response operations (start, send, reload, add, stop, restart) the
// supervisor drives. It is built on the sentinel-framed stdio reader (A)
// and the diagnostic parser (B).
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/janhuddel/ghciwatch/internal/diagnostics"
	"github.com/janhuddel/ghciwatch/internal/ghcierr"
	"github.com/janhuddel/ghciwatch/internal/procutil"
	"github.com/janhuddel/ghciwatch/internal/sentinel"
)

// Default timeouts, all reconfigurable via Config.
const (
	DefaultStartupTimeout  = 60 * time.Second
	DefaultGracefulTimeout = 10 * time.Second // T1
	DefaultInterruptTimeout = 3 * time.Second // T2
)

// Config parameterizes a Session. Built once by the CLI layer and treated
// as immutable afterward.
type Config struct {
	// Argv is the already word-split REPL launch command.
	Argv []string
	// Dir is the working directory the child is started in; empty uses the
	// supervisor's own.
	Dir string

	StartupTimeout   time.Duration
	GracefulTimeout  time.Duration
	InterruptTimeout time.Duration
	MaxLineBytes     int

	// Stdout/Stderr, if non-nil, receive the output Start observes before
	// the first sentinel prompt (startup banner and initial build output),
	// written once that prompt is seen. Output of later commands is not
	// forwarded to them.
	Stdout io.Writer
	Stderr io.Writer

	Log *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.StartupTimeout == 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.GracefulTimeout == 0 {
		c.GracefulTimeout = DefaultGracefulTimeout
	}
	if c.InterruptTimeout == 0 {
		c.InterruptTimeout = DefaultInterruptTimeout
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
	return c
}

// Session owns exactly one REPL child process. Every method that writes to
// the child's stdin serializes through sendMu: at most one send is ever in
// flight. Interrupt and AwaitPrompt do not take sendMu.
type Session struct {
	cfg Config

	sendMu sync.Mutex

	mu       sync.Mutex // protects the fields below
	cmd      *exec.Cmd
	reader   *sentinel.Reader
	stdin    io.WriteCloser
	token    string
	exitedCh chan struct{}
}

// New builds a Session that has not yet been started.
func New(cfg Config) *Session {
	return &Session{cfg: cfg.withDefaults()}
}

// Start spawns the child, writes the sentinel prompt-setup command, and
// waits for the first sentinel prompt (which may be preceded by build
// output) before returning.
// Running after-startup hooks is the supervisor's job (it holds the hook
// sequencer); Start only brings the REPL itself to a ready state.
func (s *Session) Start(ctx context.Context) error {
	if len(s.cfg.Argv) == 0 {
		return &ghcierr.ConfigError{Reason: "empty REPL command"}
	}

	cmd := exec.Command(s.cfg.Argv[0], s.cfg.Argv[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), "IN_GHCIWATCH=1")
	procutil.Detach(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ghcierr.StartupError{Reason: "stdout pipe", Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ghcierr.StartupError{Reason: "stderr pipe", Cause: err}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &ghcierr.StartupError{Reason: "stdin pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return &ghcierr.StartupError{Reason: "spawn", Cause: err}
	}

	token := sentinel.New()
	reader := sentinel.NewReader(stdout, stderr, token, s.cfg.MaxLineBytes)

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.reader = reader
	s.stdin = stdin
	s.token = token
	s.exitedCh = exited
	s.mu.Unlock()

	startCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	// ghci buffers stdin until it's ready to read, so the prompt-setup
	// command can be written immediately after spawn; AwaitPrompt then
	// absorbs the whole startup banner and any initial build output as the
	// block preceding our own sentinel prompt, with no separate wait step.
	if _, err := io.WriteString(stdin, sentinel.SetPromptCommand(token)+"\n"); err != nil {
		return &ghcierr.StartupError{Reason: "write prompt-setup command", Cause: err}
	}
	block, err := reader.AwaitPrompt(startCtx)
	s.emitPassthrough(block)
	if err != nil {
		return &ghcierr.StartupError{Reason: "first prompt not observed", Cause: err}
	}

	return nil
}

// emitPassthrough forwards a block's lines to the configured passthrough
// writers, e.g. build output observed before the sentinel prompt is active.
func (s *Session) emitPassthrough(block sentinel.Block) {
	for _, l := range block.Lines {
		switch l.Stream {
		case sentinel.Stdout:
			if s.cfg.Stdout != nil {
				fmt.Fprintln(s.cfg.Stdout, l.Text)
			}
		case sentinel.Stderr:
			if s.cfg.Stderr != nil {
				fmt.Fprintln(s.cfg.Stderr, l.Text)
			}
		}
	}
}

// SendCommand writes command to the child's stdin and returns the stdout
// text of the resulting block, implementing hooks.ReplSender. Exactly one
// SendCommand/Reload/Add is ever in flight.
func (s *Session) SendCommand(ctx context.Context, command string) (string, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.sendLocked(ctx, command)
}

// sendLocked performs the write-then-await-prompt without acquiring sendMu;
// callers that already hold it call this directly.
func (s *Session) sendLocked(ctx context.Context, command string) (string, error) {
	block, err := s.sendBlock(ctx, command)
	return strings.Join(block.Stdout(), "\n"), err
}

// sendBlock is the one place that writes a command and waits for the next
// prompt; every other send helper is built on it.
func (s *Session) sendBlock(ctx context.Context, command string) (sentinel.Block, error) {
	s.mu.Lock()
	stdin := s.stdin
	reader := s.reader
	s.mu.Unlock()

	if stdin == nil || reader == nil {
		return sentinel.Block{}, &ghcierr.SessionDeathError{Reason: "send before start"}
	}

	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		return sentinel.Block{}, &ghcierr.SessionDeathError{Reason: "stdin write failed", Cause: err}
	}

	block, err := reader.AwaitPrompt(ctx)
	if err != nil {
		return block, &ghcierr.SessionDeathError{Reason: "awaiting prompt", Cause: err}
	}
	return block, nil
}

// Reload sends :reload and parses the resulting block.
func (s *Session) Reload(ctx context.Context) (diagnostics.Result, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.sendAndParse(ctx, ":reload")
}

// Add sends :add for paths (POSIX-quoted) followed by :reload, returning the
// diagnostics of the final reload.
func (s *Session) Add(ctx context.Context, paths []string) (diagnostics.Result, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = quotePath(p)
	}
	if _, err := s.sendLocked(ctx, ":add "+strings.Join(quoted, " ")); err != nil {
		return diagnostics.Result{}, err
	}
	return s.sendAndParse(ctx, ":reload")
}

func (s *Session) sendAndParse(ctx context.Context, command string) (diagnostics.Result, error) {
	block, err := s.sendBlock(ctx, command)
	return diagnostics.Parse(block.Stdout()), err
}

// EvalInModule evaluates expr within the context of moduleName, the
// mechanism the eval-comment engine (E) uses.
func (s *Session) EvalInModule(ctx context.Context, moduleName, expr string) (string, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if _, err := s.sendLocked(ctx, ":module + *"+moduleName); err != nil {
		return "", err
	}
	return s.sendLocked(ctx, expr)
}

// Interrupt sends SIGINT to the child's process group, used both for
// cancellation and as the escalation step of Stop.
func (s *Session) Interrupt() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return procutil.Interrupt(cmd.Process.Pid)
}

// AwaitPrompt lets the supervisor drain a canceled operation's output after
// sending Interrupt, discarding the partial parse itself.
func (s *Session) AwaitPrompt(ctx context.Context) error {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return &ghcierr.SessionDeathError{Reason: "await before start"}
	}
	_, err := reader.AwaitPrompt(ctx)
	return err
}

// Stop tears the child down: if graceful, :quit is written first; then the
// session waits GracefulTimeout for a clean exit, escalates to SIGINT and
// waits InterruptTimeout, and finally SIGKILLs. The child is always reaped.
func (s *Session) Stop(ctx context.Context, graceful bool) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	cmd := s.cmd
	stdin := s.stdin
	exited := s.exitedCh
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if graceful && stdin != nil {
		io.WriteString(stdin, ":quit\n")
	}

	if exited == nil {
		return nil
	}

	select {
	case <-exited:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
	}

	if cmd.Process != nil {
		_ = procutil.Interrupt(cmd.Process.Pid)
	}
	select {
	case <-exited:
		return nil
	case <-time.After(s.cfg.InterruptTimeout):
	}

	if cmd.Process != nil {
		_ = procutil.Kill(cmd.Process.Pid)
	}
	<-exited
	return nil
}

// Restart tears the child down (non-graceful) and starts a fresh one. The
// supervisor is responsible for not calling this concurrently with any other
// Session method; Stop and Start each serialize against sendMu individually,
// but not across the pair.
func (s *Session) Restart(ctx context.Context) error {
	if err := s.Stop(ctx, false); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Pid returns the child's process id, or 0 if not running.
func (s *Session) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Exited returns a channel closed when the child process has been reaped,
// for the supervisor to select on alongside watcher batches.
func (s *Session) Exited() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitedCh
}

func quotePath(p string) string {
	if !strings.ContainsAny(p, " \t\"'") {
		return p
	}
	return "\"" + strings.ReplaceAll(p, "\"", "\\\"") + "\""
}
