package watch_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/watch"
)

func TestFSNotifyWatcher_DebouncesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Foo.hs")
	require.NoError(t, os.WriteFile(file, []byte("module Foo where\n"), 0o644))

	w, err := watch.NewFSNotifyWatcher([]string{dir}, 100*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	go func() {
		for i := 0; i < 3; i++ {
			_ = os.WriteFile(file, []byte("module Foo where\nx = 1\n"), 0o644)
			time.Sleep(10 * time.Millisecond)
		}
	}()

	select {
	case batch := <-w.Batches():
		assert.NotEmpty(t, batch.Events)
	case <-time.After(3 * time.Second):
		t.Fatal("no batch observed within 3s")
	}
}
