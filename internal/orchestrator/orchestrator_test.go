package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taut/internal/reporter"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestRunExecutesDiscoveredTests(t *testing.T) {
	requirePython(t)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "test_sample.py", `
def test_one():
    assert True

def test_two():
    assert True
`)

	summary, err := Run(context.Background(), Options{
		ProjectRoot: dir,
		Paths:       []string{dir},
		Isolation:   IsolationPerTest,
		Jobs:        2,
	})
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, reporter.ExitOK, reporter.ExitCode(summary))
}

func TestRunReportsFailure(t *testing.T) {
	requirePython(t)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "test_sample.py", `
def test_fails():
    assert 1 == 2
`)

	summary, err := Run(context.Background(), Options{
		ProjectRoot: dir,
		Paths:       []string{dir},
		Isolation:   IsolationPerTest,
	})
	require.NoError(t, err)
	assert.Equal(t, reporter.ExitTestFailure, reporter.ExitCode(summary))
}

func TestRunSkipsExplicitlyMarkedTests(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	dir := t.TempDir()
	writeFile(t, dir, "test_sample.py", `
@skip("not ready")
def test_skipped():
    assert False
`)

	summary, err := Run(context.Background(), Options{
		ProjectRoot: dir,
		Paths:       []string{dir},
		Isolation:   IsolationPerTest,
	})
	require.NoError(t, err)
	require.Len(t, summary.SkippedExplicit, 1)
	assert.Equal(t, "not ready", summary.SkippedExplicit[0].Reason)
	assert.Equal(t, reporter.ExitOK, reporter.ExitCode(summary))
}

func TestRunRejectsMalformedMarkerExpr(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), Options{
		ProjectRoot: dir,
		Paths:       []string{dir},
		MarkerExpr:  "and and",
	})
	require.Error(t, err)
}

func TestRunRejectsUnknownIsolation(t *testing.T) {
	dir := t.TempDir()
	_, err := Run(context.Background(), Options{
		ProjectRoot: dir,
		Paths:       []string{dir},
		Isolation:   "bogus",
	})
	require.Error(t, err)
}
