// Package depdb implements the dependency database: two persistent maps
// (blocks and per-test records) plus the skip decision that drives
// incremental re-execution (spec §3, §4.2). Persistence follows the
// teacher's promote/reject pattern in
// autopoiesis/prompt_evolution/evolver.go: write to a temp file, then
// os.Rename into place, so the on-disk DB is never partially observable.
package depdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"taut/internal/logging"
	"taut/internal/model"
)

// Schema is the on-disk format version. A mismatch against the cache's
// version file discards the DB rather than attempting migration.
const Schema = 1

// depEntry is the wire-level representation of one TestRecord dependency.
// TestRecord.Deps is keyed by model.BlockRef, a struct, which
// encoding/json cannot use as a map key; entries are flattened to a slice
// for serialization and rebuilt into a map on load.
type depEntry struct {
	FilePath      string `json:"file_path"`
	QualifiedName string `json:"qualified_name"`
	Hash          string `json:"hash"`
}

type testRecordWire struct {
	Deps         []depEntry    `json:"deps"`
	Outcome      model.Outcome `json:"outcome"`
	OwnBlockHash string        `json:"own_block_hash"`
}

type blockEntryWire struct {
	FilePath      string `json:"file_path"`
	QualifiedName string `json:"qualified_name"`
	Hash          string `json:"hash"`
}

type dbWire struct {
	Schema int                       `json:"schema"`
	Blocks []blockEntryWire          `json:"blocks"`
	Tests  map[string]testRecordWire `json:"tests"`
}

// DB is the in-memory dependency database for one project.
type DB struct {
	Blocks map[model.BlockRef]string
	Tests  map[string]model.TestRecord
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		Blocks: make(map[model.BlockRef]string),
		Tests:  make(map[string]model.TestRecord),
	}
}

// Load reads the DB from dir (the project's cache subdirectory). A missing
// file, a missing version file, or a schema mismatch all yield a fresh
// empty DB rather than an error — the spec treats schema mismatch as
// "discard", not "fail".
func Load(dir string) (*DB, error) {
	versionPath := filepath.Join(dir, "version")
	versionBytes, err := os.ReadFile(versionPath)
	if err != nil {
		logging.DepDBDebug("no version file at %s, starting fresh", dir)
		return New(), nil
	}
	var version int
	if _, err := fmt.Sscanf(string(versionBytes), "%d", &version); err != nil || version != Schema {
		logging.DepDBWarn("schema mismatch in %s (got %q, want %d), discarding", dir, string(versionBytes), Schema)
		return New(), nil
	}

	dbPath := filepath.Join(dir, "db")
	data, err := os.ReadFile(dbPath)
	if err != nil {
		logging.DepDBDebug("no db file at %s, starting fresh", dir)
		return New(), nil
	}

	var wire dbWire
	if err := json.Unmarshal(data, &wire); err != nil {
		logging.DepDBWarn("corrupt db at %s, discarding: %v", dbPath, err)
		return New(), nil
	}

	db := New()
	for _, b := range wire.Blocks {
		db.Blocks[model.BlockRef{FilePath: b.FilePath, QualifiedName: b.QualifiedName}] = b.Hash
	}
	for id, tr := range wire.Tests {
		deps := make(map[model.BlockRef]string, len(tr.Deps))
		for _, d := range tr.Deps {
			deps[model.BlockRef{FilePath: d.FilePath, QualifiedName: d.QualifiedName}] = d.Hash
		}
		db.Tests[id] = model.TestRecord{
			Deps:         deps,
			Outcome:      tr.Outcome,
			OwnBlockHash: tr.OwnBlockHash,
		}
	}
	return db, nil
}

// Save atomically persists the DB to dir: write db and version to temp
// files, then rename both into place. A crash mid-write leaves the
// previous DB intact (spec §3 "Lifecycle").
func (db *DB) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	wire := dbWire{
		Schema: Schema,
		Tests:  make(map[string]testRecordWire, len(db.Tests)),
	}
	for ref, hash := range db.Blocks {
		wire.Blocks = append(wire.Blocks, blockEntryWire{FilePath: ref.FilePath, QualifiedName: ref.QualifiedName, Hash: hash})
	}
	for id, tr := range db.Tests {
		entries := make([]depEntry, 0, len(tr.Deps))
		for ref, hash := range tr.Deps {
			entries = append(entries, depEntry{FilePath: ref.FilePath, QualifiedName: ref.QualifiedName, Hash: hash})
		}
		wire.Tests[id] = testRecordWire{Deps: entries, Outcome: tr.Outcome, OwnBlockHash: tr.OwnBlockHash}
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal db: %w", err)
	}

	if err := atomicWrite(filepath.Join(dir, "db"), data); err != nil {
		return fmt.Errorf("write db: %w", err)
	}
	if err := atomicWrite(filepath.Join(dir, "version"), []byte(fmt.Sprintf("%d", Schema))); err != nil {
		return fmt.Errorf("write version: %w", err)
	}

	logging.DepDBDebug("persisted %d blocks, %d test records to %s", len(db.Blocks), len(db.Tests), dir)
	return nil
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		data, readErr := os.ReadFile(tmp)
		if readErr != nil {
			return err
		}
		if writeErr := os.WriteFile(path, data, 0644); writeErr != nil {
			return writeErr
		}
		os.Remove(tmp)
	}
	return nil
}

// RefreshBlocks replaces the entire block set with this run's discovery
// output. It does not union with the persisted set: a block whose source
// file was removed (or that no longer parses as a block) must stop
// resolving in db.Blocks so CanSkip's "dependency ref still exists" check
// fails for it, forcing dependents to re-run instead of being skipped on a
// stale hash.
func (db *DB) RefreshBlocks(blocks []model.Block) {
	fresh := make(map[model.BlockRef]string, len(blocks))
	for _, b := range blocks {
		fresh[b.Ref()] = b.ContentHash
	}
	db.Blocks = fresh
}

// CanSkip implements the four-condition skip decision of spec §4.2. cacheEnabled
// is false when the CLI passed --no-cache.
func (db *DB) CanSkip(testID string, ownBlock model.BlockRef, cacheEnabled bool) bool {
	if !cacheEnabled {
		return false
	}
	record, ok := db.Tests[testID]
	if !ok {
		return false
	}
	if record.Outcome != model.OutcomePassed {
		return false
	}
	currentOwnHash, ok := db.Blocks[ownBlock]
	if !ok || currentOwnHash != record.OwnBlockHash {
		return false
	}
	for ref, recordedHash := range record.Deps {
		currentHash, ok := db.Blocks[ref]
		if !ok || currentHash != recordedHash {
			return false
		}
	}
	return true
}

// RecordResult overwrites testID's record with the dependency set observed
// during this execution. The test's own block ref is always included,
// enforced here regardless of what the worker reported, per the invariant
// that a passed test's dependency set always includes its own block.
func (db *DB) RecordResult(testID string, ownBlock model.BlockRef, deps []model.BlockRef, outcome model.Outcome) {
	depHashes := make(map[model.BlockRef]string, len(deps)+1)
	for _, ref := range deps {
		if hash, ok := db.Blocks[ref]; ok {
			depHashes[ref] = hash
		}
	}
	if hash, ok := db.Blocks[ownBlock]; ok {
		depHashes[ownBlock] = hash
	}
	db.Tests[testID] = model.TestRecord{
		Deps:         depHashes,
		Outcome:      outcome,
		OwnBlockHash: depHashes[ownBlock],
	}
}
