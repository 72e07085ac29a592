package pathset_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/pathset"
)

func newTestTracker(t *testing.T) *pathset.Tracker {
	t.Helper()
	reload, err := pathset.NewGlobset([]string{})
	require.NoError(t, err)
	restart, err := pathset.NewGlobset([]string{})
	require.NoError(t, err)
	return pathset.NewTracker(reload, restart, []string{"src"})
}

func TestTracker_ModifyOfLiveModuleIsReload(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetLive([]pathset.LiveModule{{Path: "src/Foo.hs"}})

	cls, needsAdd := tr.ClassifyEvent(pathset.Event{Path: "src/Foo.hs", Op: pathset.OpModify})
	assert.Equal(t, pathset.ReloadTarget, cls)
	assert.False(t, needsAdd)
}

func TestTracker_NewHaskellFileDefaultsToReloadAndNeedsAdd(t *testing.T) {
	tr := newTestTracker(t)
	cls, needsAdd := tr.ClassifyEvent(pathset.Event{Path: "src/New.hs", Op: pathset.OpCreate})
	assert.Equal(t, pathset.ReloadTarget, cls)
	assert.True(t, needsAdd)
}

func TestTracker_DeleteOfKnownModuleIsRestart(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetLive([]pathset.LiveModule{{Path: "src/Foo.hs"}})
	cls, _ := tr.ClassifyEvent(pathset.Event{Path: "src/Foo.hs", Op: pathset.OpDelete})
	assert.Equal(t, pathset.RestartTarget, cls)
}

func TestTracker_CabalFileIsAlwaysRestart(t *testing.T) {
	tr := newTestTracker(t)
	cls, _ := tr.ClassifyEvent(pathset.Event{Path: "project.cabal", Op: pathset.OpModify})
	assert.Equal(t, pathset.RestartTarget, cls)
}

func TestTracker_GhciFileIsAlwaysRestart(t *testing.T) {
	tr := newTestTracker(t)
	cls, _ := tr.ClassifyEvent(pathset.Event{Path: ".ghci", Op: pathset.OpModify})
	assert.Equal(t, pathset.RestartTarget, cls)
}

func TestTracker_NonHaskellUnmatchedIsIgnored(t *testing.T) {
	tr := newTestTracker(t)
	cls, _ := tr.ClassifyEvent(pathset.Event{Path: "README.md", Op: pathset.OpModify})
	assert.Equal(t, pathset.Ignore, cls)
}

func TestTracker_BatchAggregation(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetLive([]pathset.LiveModule{{Path: "src/Foo.hs"}})

	events := []pathset.Event{
		{Path: "src/Foo.hs", Op: pathset.OpModify},
		{Path: "README.md", Op: pathset.OpModify},
	}
	res := tr.ClassifyBatch(events)
	assert.Equal(t, pathset.ReloadTarget, res.Classification)

	events = append(events, pathset.Event{Path: "project.cabal", Op: pathset.OpModify})
	res = tr.ClassifyBatch(events)
	assert.Equal(t, pathset.RestartTarget, res.Classification)
}

func TestTracker_ModuleNameHeuristic(t *testing.T) {
	tr := newTestTracker(t)
	assert.Equal(t, "Foo.Bar", tr.ModuleName("src/Foo/Bar.hs"))
}

func TestTracker_ModuleNameFromREPLOverridesHeuristic(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetLive([]pathset.LiveModule{{Path: "src/Foo/Bar.hs", ModuleName: "Foo.Bar"}})
	assert.Equal(t, "Foo.Bar", tr.ModuleName("src/Foo/Bar.hs"))
}

func TestTracker_CanonicalizesAbsoluteAndRelativeFormsOfSamePath(t *testing.T) {
	tr := newTestTracker(t)
	tr.SetLive([]pathset.LiveModule{{Path: "src/Foo.hs"}})

	abs, err := filepath.Abs("src/Foo.hs")
	require.NoError(t, err)

	assert.True(t, tr.IsLive(abs))
	assert.True(t, tr.IsKnown(abs))

	cls, needsAdd := tr.ClassifyEvent(pathset.Event{Path: abs, Op: pathset.OpModify})
	assert.Equal(t, pathset.ReloadTarget, cls)
	assert.False(t, needsAdd)

	cls, _ = tr.ClassifyEvent(pathset.Event{Path: abs, Op: pathset.OpDelete})
	assert.Equal(t, pathset.RestartTarget, cls)
}
