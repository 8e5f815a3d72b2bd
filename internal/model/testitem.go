// Package model holds the data types shared across discovery, the dependency
// tracker, filtering, and execution: TestItem, Marker, Block, and the
// persisted TestRecord/TestResult shapes (spec §3).
package model

import "fmt"

// MarkerKind tags the shape of a Marker's value.
type MarkerKind int

const (
	MarkerPresence MarkerKind = iota // bare flag, e.g. slow
	MarkerScalar                    // single value, e.g. priority=1
	MarkerSet                       // multi-value, e.g. group in {"api","db"}
)

// Marker is a single piece of test metadata attached via a decorator.
type Marker struct {
	Key    string
	Kind   MarkerKind
	Scalar string
	Set    []string
}

// Matches reports whether this marker satisfies an equality atom "key=value"
// from the marker filter DSL: scalar equality or set membership.
func (m Marker) Matches(value string) bool {
	switch m.Kind {
	case MarkerScalar:
		return m.Scalar == value
	case MarkerSet:
		for _, v := range m.Set {
			if v == value {
				return true
			}
		}
		return false
	case MarkerPresence:
		return false
	}
	return false
}

// Truthy reports whether a presence marker (or any marker referenced bare,
// e.g. "slow") should count as present.
func (m Marker) Truthy() bool {
	switch m.Kind {
	case MarkerPresence:
		return true
	case MarkerScalar:
		return m.Scalar != "" && m.Scalar != "false" && m.Scalar != "0"
	case MarkerSet:
		return len(m.Set) > 0
	}
	return false
}

// Reserved marker keys with dedicated semantics.
const (
	MarkerKeySkip     = "skip"
	MarkerKeyParallel = "parallel"
)

// TestItem is a single discovered, runnable unit (spec §3 "TestItem").
// Immutable after discovery.
type TestItem struct {
	ID       string // canonical identifier, see BuildID
	Path     string // absolute path to the source file
	RelPath  string // path relative to the project root
	Class    string // empty for free functions
	Callable string
	Async    bool
	StartLine int
	EndLine   int
	Markers   []Marker
	Opaque    []string // unrecognized decorator names, preserved but inert
}

// BuildID constructs the canonical TestItem identifier:
// "<relative-path>::[<ClassName>::]<callable>".
func BuildID(relPath, class, callable string) string {
	if class == "" {
		return fmt.Sprintf("%s::%s", relPath, callable)
	}
	return fmt.Sprintf("%s::%s::%s", relPath, class, callable)
}

// Equal reports identity equality: two TestItems are equal exactly when
// their identifiers are equal (spec §3).
func (t TestItem) Equal(other TestItem) bool {
	return t.ID == other.ID
}

// Marker looks up a marker by key; ok is false if absent.
func (t TestItem) Marker(key string) (Marker, bool) {
	for _, m := range t.Markers {
		if m.Key == key {
			return m, true
		}
	}
	return Marker{}, false
}

// HasParallel reports whether the "parallel" marker is present (class-level
// propagation is applied by the discoverer before this is called).
func (t TestItem) HasParallel() bool {
	_, ok := t.Marker(MarkerKeyParallel)
	return ok
}

// SkipReason returns the explicit @skip reason and whether @skip is present.
func (t TestItem) SkipReason() (string, bool) {
	m, ok := t.Marker(MarkerKeySkip)
	if !ok {
		return "", false
	}
	return m.Scalar, true
}

// BlockRef returns the identity of the block that owns this test: a free
// function's own block, or (since a class collapses into one block with all
// its methods) its enclosing class's block.
func (t TestItem) BlockRef() BlockRef {
	if t.Class != "" {
		return BlockRef{FilePath: t.RelPath, QualifiedName: t.Class}
	}
	return BlockRef{FilePath: t.RelPath, QualifiedName: t.Callable}
}
