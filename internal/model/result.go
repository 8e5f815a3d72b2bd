package model

// Outcome is a tagged union over the four terminal states a test can reach
// (spec §3, design note "tagged variants over inheritance").
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeErrored Outcome = "errored"
)

// SkipKind distinguishes why a skipped test didn't execute; it never appears
// on the wire (TestResult.Outcome is just "skipped"). The orchestrator and
// reporter do not set or read it: they keep explicit-@skip and "unchanged"
// items apart as separate lists in reporter.Summary.
type SkipKind string

const (
	SkipExplicit  SkipKind = "explicit"  // @skip marker
	SkipUnchanged SkipKind = "unchanged" // dependency-cache skip
)

// ResultError carries the failure/error detail for a non-passing outcome.
type ResultError struct {
	Message    string `json:"message"`
	Traceback  string `json:"traceback"`
}

// TestResult is the wire schema emitted by a child process or worker and
// consumed by the orchestrator (spec §6 "TestResult schema").
type TestResult struct {
	ID         string       `json:"id"`
	Outcome    Outcome      `json:"outcome"`
	DurationMS float64      `json:"duration_ms"`
	Stdout     string       `json:"stdout"`
	Stderr     string       `json:"stderr"`
	Error      *ResultError `json:"error,omitempty"`

	SkipKind SkipKind `json:"-"` // set locally, never serialized over the wire
}

// TestRecord is the persisted per-test state in the DependencyDB (spec §3).
type TestRecord struct {
	// Deps maps each BlockRef the test depended on to the content hash
	// observed for that block at the time this record was written.
	Deps map[BlockRef]string `json:"deps"`
	// Outcome is the last observed terminal outcome.
	Outcome Outcome `json:"outcome"`
	// OwnBlockHash is the content hash of the test's own block, last observed.
	OwnBlockHash string `json:"own_block_hash"`
}
