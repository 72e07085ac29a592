package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/logging"
)

func TestNew_BuildsLoggerForValidFilter(t *testing.T) {
	log, cleanup, err := logging.New(logging.Options{Filter: "info,session=debug"})
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, log)
}

func TestNew_RejectsBadFilter(t *testing.T) {
	_, _, err := logging.New(logging.Options{Filter: "not-a-level"})
	assert.Error(t, err)
}

func TestSpanFilter_NoneDisablesAll(t *testing.T) {
	f := logging.NewSpanFilter([]string{"full", "none"})
	assert.False(t, f.Enabled(logging.SpanEnter))
}

func TestSpanFilter_IndividualEvents(t *testing.T) {
	f := logging.NewSpanFilter([]string{"enter", "exit"})
	assert.True(t, f.Enabled(logging.SpanEnter))
	assert.True(t, f.Enabled(logging.SpanExit))
	assert.False(t, f.Enabled(logging.SpanNew))
}
