package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/session"
)

// fakeReplScript is a tiny POSIX shell "REPL": it extracts the sentinel
// token out of the `:set prompt "<token>\n"` command (the only command whose
// text we can't predict in advance) and echoes it back as the prompt after
// every line it reads, so session.Start/Send/Stop can be exercised against a
// real child process without ghci installed.
const fakeReplScript = `
prompt=""
while IFS= read -r line; do
  tok=$(printf '%s\n' "$line" | sed -n 's/.*\(ghciwatch-prompt-[a-f0-9]*\).*/\1/p')
  if [ -n "$tok" ]; then
    prompt="$tok"
    echo "$prompt"
    continue
  fi
  case "$line" in
    :quit)
      exit 0
      ;;
    *)
      echo "echo: $line"
      echo "$prompt"
      ;;
  esac
done
`

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Config{
		Argv:             []string{"sh", "-c", fakeReplScript},
		StartupTimeout:   5 * time.Second,
		GracefulTimeout:  300 * time.Millisecond,
		InterruptTimeout: 300 * time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = s.Stop(stopCtx, true)
	})
	return s
}

func TestSession_StartAndSendCommand(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	out, err := s.SendCommand(ctx, "1 + 1")
	require.NoError(t, err)
	assert.Contains(t, out, "echo: 1 + 1")
}

func TestSession_Reload(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := s.Reload(ctx)
	require.NoError(t, err)
	assert.NotNil(t, result.Passthrough)
}

func TestSession_StopIsIdempotentAndReaps(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx, true))

	select {
	case <-s.Exited():
	default:
		t.Fatal("expected child to be reaped after Stop")
	}

	require.NoError(t, s.Stop(ctx, true))
}

func TestSession_Restart(t *testing.T) {
	s := newTestSession(t)

	firstPid := s.Pid()
	require.NotZero(t, firstPid)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Restart(ctx))

	assert.NotEqual(t, firstPid, s.Pid())

	out, err := s.SendCommand(ctx, "2 + 2")
	require.NoError(t, err)
	assert.Contains(t, out, "echo: 2 + 2")
}
