package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/pathset"
	"github.com/janhuddel/ghciwatch/internal/session"
	"github.com/janhuddel/ghciwatch/internal/supervisor"
	"github.com/janhuddel/ghciwatch/internal/watch"
)

// fakeWatcher is a Watcher whose batches are driven by the test, used in
// place of a real fsnotify.FSNotifyWatcher.
type fakeWatcher struct {
	batches chan watch.Batch
	errs    chan error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{batches: make(chan watch.Batch, 4), errs: make(chan error, 1)}
}

func (f *fakeWatcher) Batches() <-chan watch.Batch { return f.batches }
func (f *fakeWatcher) Errors() <-chan error        { return f.errs }
func (f *fakeWatcher) Close() error                { close(f.batches); return nil }

// fakeReplScript is the same sentinel-aware shell stand-in session_test.go
// uses, extended to emit a diagnostic on :reload.
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
    :reload)
      echo "Foo.hs:3:5: error: parse error"
      echo ""
      echo "Failed, 0 modules loaded."
      echo "$prompt"
      ;;
    *)
      echo "$prompt"
      ;;
  esac
done
`

func newTestSupervisor(t *testing.T, errorFile string, fw *fakeWatcher) (*supervisor.Supervisor, *session.Session) {
	t.Helper()
	sess := session.New(session.Config{
		Argv:             []string{"sh", "-c", fakeReplScript},
		StartupTimeout:   5 * time.Second,
		GracefulTimeout:  300 * time.Millisecond,
		InterruptTimeout: 300 * time.Millisecond,
	})

	reloadGlobs, err := pathset.NewGlobset([]string{"*.hs"})
	require.NoError(t, err)
	tracker := pathset.NewTracker(reloadGlobs, nil, nil)

	sv := supervisor.New(supervisor.Config{
		ErrorFilePath: errorFile,
	}, sess, fw, tracker)

	return sv, sess
}

func TestSupervisor_StartupWritesEmptyErrorFile(t *testing.T) {
	dir := t.TempDir()
	errorFile := filepath.Join(dir, "errors.err")
	fw := newFakeWatcher()

	sv, _ := newTestSupervisor(t, errorFile, fw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	contents, err := os.ReadFile(errorFile)
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func TestSupervisor_ReloadCycleWritesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	errorFile := filepath.Join(dir, "errors.err")
	fooPath := filepath.Join(dir, "Foo.hs")
	require.NoError(t, os.WriteFile(fooPath, []byte("module Foo where\n"), 0o644))

	fw := newFakeWatcher()
	sv, _ := newTestSupervisor(t, errorFile, fw)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	fw.batches <- watch.Batch{Events: []pathset.Event{{Path: fooPath, Op: pathset.OpModify}}}

	require.Eventually(t, func() bool {
		contents, err := os.ReadFile(errorFile)
		return err == nil && len(contents) > 0
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}

	contents, err := os.ReadFile(errorFile)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "Foo.hs:3:5: error: parse error")
}
