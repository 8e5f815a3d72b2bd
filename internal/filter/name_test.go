package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taut/internal/model"
)

func testItem(id, relPath, class, callable string) model.TestItem {
	return model.TestItem{ID: id, RelPath: relPath, Class: class, Callable: callable}
}

func TestNameFilterEmptyMatchesAll(t *testing.T) {
	f := ParseNameFilter("")
	assert.True(t, f.Match(testItem("test_a.py::test_foo", "test_a.py", "", "test_foo")))
}

func TestNameFilterSubstring(t *testing.T) {
	f := ParseNameFilter("addition")
	assert.True(t, f.Match(testItem("test_math.py::test_addition", "test_math.py", "", "test_addition")))
	assert.False(t, f.Match(testItem("test_math.py::test_subtraction", "test_math.py", "", "test_subtraction")))
}

func TestNameFilterFileAndName(t *testing.T) {
	f := ParseNameFilter("test_math.py::test_addition")
	assert.True(t, f.Match(testItem("test_math.py::test_addition", "test_math.py", "", "test_addition")))
	assert.False(t, f.Match(testItem("test_other.py::test_addition", "test_other.py", "", "test_addition")))
}

func TestNameFilterClassAndMethod(t *testing.T) {
	f := ParseNameFilter("TestSuite/test_one")
	assert.True(t, f.Match(testItem("test_s.py::TestSuite::test_one", "test_s.py", "TestSuite", "test_one")))
	assert.False(t, f.Match(testItem("test_s.py::TestSuite::test_two", "test_s.py", "TestSuite", "test_two")))
}

func TestNameFilterGlob(t *testing.T) {
	f := ParseNameFilter("test_*.py::test_add*")
	assert.True(t, f.Match(testItem("test_math.py::test_addition", "test_math.py", "", "test_addition")))
	assert.False(t, f.Match(testItem("test_math.py::test_subtraction", "test_math.py", "", "test_subtraction")))
}

func TestNameFilterUnionAcrossRules(t *testing.T) {
	f := ParseNameFilter("addition TestSuite/test_one")
	assert.True(t, f.Match(testItem("test_math.py::test_addition", "test_math.py", "", "test_addition")))
	assert.True(t, f.Match(testItem("test_s.py::TestSuite::test_one", "test_s.py", "TestSuite", "test_one")))
	assert.False(t, f.Match(testItem("test_s.py::TestSuite::test_two", "test_s.py", "TestSuite", "test_two")))
}
