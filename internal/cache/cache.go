// Package cache resolves the on-disk cache location for a project and
// implements the `cache info` / `cache clear` CLI surface (spec §6 "Cache
// layout"). The dependency DB's own file format lives in internal/depdb;
// this package only computes the directory it lives in.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"taut/internal/depdb"
	"taut/internal/logging"
)

// ToolName is the second path segment under the OS cache root
// (<cache-root>/<tool>/<project-hash>/), matching the module name.
const ToolName = "taut"

// ProjectHash derives the stable per-project cache key: a project rooted at
// a given absolute path never shares state with a different root (spec §3
// invariant 3).
func ProjectHash(projectRoot string) (string, error) {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16], nil
}

// Dir returns <cache-root>/taut/<project-hash>, creating no directories.
func Dir(projectRoot string) (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	hash, err := ProjectHash(projectRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ToolName, hash), nil
}

// Info summarizes a project's cache state for `taut cache info`.
type Info struct {
	Dir        string `json:"dir"`
	Exists     bool   `json:"exists"`
	Schema     int    `json:"schema,omitempty"`
	SchemaOK   bool   `json:"schema_ok"`
	BlockCount int    `json:"block_count"`
	TestCount  int    `json:"test_count"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Stat loads the cache directory's current state without mutating it.
func Stat(projectRoot string) (Info, error) {
	dir, err := Dir(projectRoot)
	if err != nil {
		return Info{}, err
	}
	info := Info{Dir: dir}

	dbPath := filepath.Join(dir, "db")
	fi, err := os.Stat(dbPath)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("stat cache db: %w", err)
	}
	info.Exists = true
	info.SizeBytes = fi.Size()

	versionBytes, err := os.ReadFile(filepath.Join(dir, "version"))
	if err == nil {
		var version int
		if _, scanErr := fmt.Sscanf(string(versionBytes), "%d", &version); scanErr == nil {
			info.Schema = version
			info.SchemaOK = version == depdb.Schema
		}
	}

	db, err := depdb.Load(dir)
	if err == nil {
		info.BlockCount = len(db.Blocks)
		info.TestCount = len(db.Tests)
	}
	return info, nil
}

// Clear removes a project's entire cache directory.
func Clear(projectRoot string) error {
	dir, err := Dir(projectRoot)
	if err != nil {
		return err
	}
	logging.CacheDebug("clearing cache dir %s", dir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// MarshalInfo renders Info as pretty JSON for the CLI's `cache info` output.
func MarshalInfo(info Info) (string, error) {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
