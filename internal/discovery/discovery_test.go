package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taut/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestIsCandidateFile(t *testing.T) {
	cases := map[string]bool{
		"test_math.py":    true,
		"math_test.py":    true,
		"_test_helper.py": true,
		"helper.py":       false,
		"test_math.txt":   false,
		"conftest.py":     false,
	}
	for name, want := range cases {
		assert.Equal(t, want, isCandidateFile(name), name)
	}
}

func TestIsTestName(t *testing.T) {
	assert.True(t, isTestName("test_addition"))
	assert.True(t, isTestName("_test_internal"))
	assert.False(t, isTestName("addition"))
	assert.False(t, isTestName("setup"))
}

func TestDiscoverFreeFunctions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_math.py", `
def helper():
    return 1

def test_addition():
    assert 1 + 1 == 2

def test_subtraction():
    assert 2 - 1 == 1

def not_a_test():
    pass
`)

	d := New(dir)
	result, err := d.Discover([]string{dir})
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	require.Len(t, result.Items, 2)
	assert.Equal(t, "test_math.py::test_addition", result.Items[0].ID)
	assert.Equal(t, "test_math.py::test_subtraction", result.Items[1].ID)

	// helper() and not_a_test() are still top-level blocks, just not TestItems.
	names := map[string]bool{}
	for _, b := range result.Blocks {
		names[b.QualifiedName] = true
	}
	assert.True(t, names["helper"])
	assert.True(t, names["not_a_test"])
	assert.True(t, names["test_addition"])
}

func TestDiscoverClassMethods(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_suite.py", `
class TestSuite:
    def test_one(self):
        pass

    def test_two(self):
        pass

    def helper(self):
        pass

class NotATestClass:
    def test_ignored(self):
        pass
`)

	d := New(dir)
	result, err := d.Discover([]string{dir})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "test_suite.py::TestSuite::test_one", result.Items[0].ID)
	assert.Equal(t, "test_suite.py::TestSuite::test_two", result.Items[1].ID)

	require.Len(t, result.Blocks, 2)
}

func TestDiscoverMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_markers.py", `
@skip("not ready")
def test_skipped():
    pass

@parallel()
@mark(priority=1)
def test_parallel():
    pass

@mark(group={"api", "db"})
def test_grouped():
    pass
`)

	d := New(dir)
	result, err := d.Discover([]string{dir})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	skipped := result.Items[0]
	reason, ok := skipped.SkipReason()
	assert.True(t, ok)
	assert.Equal(t, "not ready", reason)

	parallel := result.Items[1]
	assert.True(t, parallel.HasParallel())
	m, ok := parallel.Marker("priority")
	require.True(t, ok)
	assert.Equal(t, "1", m.Scalar)

	grouped := result.Items[2]
	g, ok := grouped.Marker("group")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"api", "db"}, g.Set)
}

func TestDiscoverMarkerOrderIsDeterministicForMultipleKwargs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_multi_kwarg.py", `
@mark(zeta=1, alpha=2, mid=3)
def test_one():
    pass
`)

	d := New(dir)
	var orders [][]string
	for i := 0; i < 5; i++ {
		result, err := d.Discover([]string{dir})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		var keys []string
		for _, m := range result.Items[0].Markers {
			keys = append(keys, m.Key)
		}
		orders = append(orders, keys)
	}
	for i := 1; i < len(orders); i++ {
		assert.Equal(t, orders[0], orders[i], "marker key order must be deterministic across runs")
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, orders[0])
}

func TestDiscoverSkipsHiddenAndCacheDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_visible.py", "def test_a():\n    pass\n")
	writeFile(t, dir, ".hidden/test_hidden.py", "def test_b():\n    pass\n")
	writeFile(t, dir, "__pycache__/test_cached.py", "def test_c():\n    pass\n")

	d := New(dir)
	result, err := d.Discover([]string{dir})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "test_visible.py::test_a", result.Items[0].ID)
}

func TestDiscoverIsDeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_det.py", `
def helper():
    return 1

def test_one():
    assert helper() == 1

def test_two():
    assert True
`)

	d := New(dir)
	first, err := d.Discover([]string{dir})
	require.NoError(t, err)
	second, err := d.Discover([]string{dir})
	require.NoError(t, err)

	// Blocks carry a content hash that is itself order- and run-independent;
	// comparing with it included would just restate equality of the hashing
	// function, so it's excluded to isolate the ordering/identity guarantee
	// spec §8's determinism property actually cares about. testify's
	// reflect-based Equal has no field-exclusion mode for this.
	if diff := cmp.Diff(first.Blocks, second.Blocks, cmpopts.IgnoreFields(model.Block{}, "ContentHash")); diff != "" {
		t.Errorf("discovery not deterministic across runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Items, second.Items)
}

func TestDiscoverCollectsParseErrorsWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_bad.py", "def test_broken(:\n")
	writeFile(t, dir, "test_good.py", "def test_ok():\n    pass\n")

	d := New(dir)
	result, err := d.Discover([]string{dir})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "test_good.py::test_ok", result.Items[0].ID)
}
