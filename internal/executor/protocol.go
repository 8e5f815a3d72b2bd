// Package executor runs TestItems in one of two isolation modes
// (spec §4.4): a fresh child process per test, or a pool of warm,
// long-lived worker processes communicating over line-delimited JSON.
// Grounded on the teacher's persistent_docker.go pool-of-long-lived-
// processes shape and mangle/lsp.go's stdio JSON protocol loop.
package executor

import "taut/internal/model"

// BlockSpan is the line range of one project block, sent to the runner so
// its tracer can map executed lines back to a qualified name without
// re-parsing source.
type BlockSpan struct {
	FilePath      string `json:"file_path"`
	QualifiedName string `json:"qualified_name"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
}

// TestSpec is the JSON payload describing one TestItem to the runner —
// everything it needs to locate, instantiate, and invoke the callable
// without access to the discoverer's parse tree.
type TestSpec struct {
	ID        string      `json:"id"`
	Path      string      `json:"path"`
	RelPath   string      `json:"rel_path"`
	Class     string      `json:"class,omitempty"`
	Callable  string      `json:"callable"`
	Async     bool        `json:"async"`
	Markers   []markerDTO `json:"markers"`
}

type markerDTO struct {
	Key    string   `json:"key"`
	Kind   string   `json:"kind"`
	Scalar string   `json:"scalar,omitempty"`
	Set    []string `json:"set,omitempty"`
}

func toTestSpec(item model.TestItem) TestSpec {
	spec := TestSpec{
		ID:       item.ID,
		Path:     item.Path,
		RelPath:  item.RelPath,
		Class:    item.Class,
		Callable: item.Callable,
		Async:    item.Async,
	}
	for _, m := range item.Markers {
		dto := markerDTO{Key: m.Key, Scalar: m.Scalar, Set: m.Set}
		switch m.Kind {
		case model.MarkerPresence:
			dto.Kind = "presence"
		case model.MarkerScalar:
			dto.Kind = "scalar"
		case model.MarkerSet:
			dto.Kind = "set"
		}
		spec.Markers = append(spec.Markers, dto)
	}
	return spec
}

// Request is one orchestrator→worker message (spec §6 "Worker protocol").
type Request struct {
	ID     uint64      `json:"id"`
	Test   TestSpec    `json:"test"`
	Trace  bool        `json:"trace"`
	Blocks []BlockSpan `json:"blocks,omitempty"`
}

// Response is one worker→orchestrator message.
type Response struct {
	ID     uint64           `json:"id"`
	Result model.TestResult `json:"result"`
	Deps   []BlockSpan      `json:"deps,omitempty"`
}

// ReadyMsg is the worker's single startup line.
type ReadyMsg struct {
	Ready bool `json:"ready"`
	Pid   int  `json:"pid"`
}

// depsToBlockRefs converts the runner's reported deps into BlockRefs for
// depdb, dropping the line-range information the tracer needed but the
// dependency database does not persist.
func depsToBlockRefs(deps []BlockSpan) []model.BlockRef {
	refs := make([]model.BlockRef, 0, len(deps))
	for _, d := range deps {
		refs = append(refs, model.BlockRef{FilePath: d.FilePath, QualifiedName: d.QualifiedName})
	}
	return refs
}
