package errorfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhuddel/ghciwatch/internal/diagnostics"
	"github.com/janhuddel/ghciwatch/internal/errorfile"
)

func TestWriteDiagnostics_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "errors.err")

	diags := []diagnostics.Diagnostic{
		{Position: diagnostics.Position{Path: "Foo.hs", Line: 3, Col: 5}, Severity: diagnostics.Error, Message: "parse error"},
	}

	require.NoError(t, errorfile.WriteDiagnostics(path, diags))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, errorfile.WriteDiagnostics(path, diags))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "Foo.hs:3:5: error: parse error")
}

func TestWriteDiagnostics_EmptyTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "errors.err")

	diags := []diagnostics.Diagnostic{
		{Position: diagnostics.Position{Path: "Foo.hs", Line: 1, Col: 1}, Severity: diagnostics.Error, Message: "boom"},
	}
	require.NoError(t, errorfile.WriteDiagnostics(path, diags))

	require.NoError(t, errorfile.WriteDiagnostics(path, nil))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, content)
}
