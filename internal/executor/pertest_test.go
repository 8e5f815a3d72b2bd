package executor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taut/internal/model"
)

// requirePython skips the test when no python3 interpreter is on PATH,
// mirroring the teacher's detectDocker/IsAvailable pattern of gracefully
// skipping tests that depend on an external tool.
func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func writeTestModule(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPerTestPassingAndFailing(t *testing.T) {
	requirePython(t)
	dir := t.TempDir()
	path := writeTestModule(t, dir, "test_mod.py", `
def test_pass():
    assert 1 + 1 == 2

def test_fail():
    assert 1 == 2
`)

	items := []model.TestItem{
		{ID: "test_mod.py::test_pass", Path: path, RelPath: "test_mod.py", Callable: "test_pass"},
		{ID: "test_mod.py::test_fail", Path: path, RelPath: "test_mod.py", Callable: "test_fail"},
	}

	results := PerTest(context.Background(), items, PerTestConfig{Jobs: 2})
	require.Len(t, results, 2)

	byID := map[string]model.TestResult{}
	for _, r := range results {
		byID[r.Result.ID] = r.Result
	}
	assert.Equal(t, model.OutcomePassed, byID["test_mod.py::test_pass"].Outcome)
	assert.Equal(t, model.OutcomeFailed, byID["test_mod.py::test_fail"].Outcome)
	require.NotNil(t, byID["test_mod.py::test_fail"].Error)
}

func TestPerTestCrashSynthesizesErrored(t *testing.T) {
	requirePython(t)
	dir := t.TempDir()
	path := writeTestModule(t, dir, "test_crash.py", `
import os

def test_crashes():
    os._exit(1)
`)

	items := []model.TestItem{
		{ID: "test_crash.py::test_crashes", Path: path, RelPath: "test_crash.py", Callable: "test_crashes"},
	}

	results := PerTest(context.Background(), items, PerTestConfig{Jobs: 1})
	require.Len(t, results, 1)
	assert.Equal(t, model.OutcomeErrored, results[0].Result.Outcome)
}
