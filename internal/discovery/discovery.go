// Package discovery walks a source tree, parses each candidate file's syntax
// tree without executing it, and emits a deterministic catalog of TestItems
// (spec §4.1). Parsing is grounded on the teacher's Tree-sitter based
// language parsers (codenerd/internal/world/python_parser.go); this package
// reuses the same grammar for the opposite purpose — test discovery instead
// of dataflow-fact emission.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"taut/internal/logging"
	"taut/internal/model"
)

// Ext is the TL's canonical source extension. A single constant because the
// core targets one language family per project; see spec §9 open question on
// file- vs callable-pattern independence.
const Ext = ".py"

// bytecodeCacheDir is the directory name the TL's bytecode cache uses and
// that discovery skips, the same way it skips hidden directories.
const bytecodeCacheDir = "__pycache__"

// Error records a parse failure attached to one file; it does not abort
// discovery of the rest of the tree (spec §4.1 "Errors").
type Error struct {
	File string
	Err  error
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// Result is the deterministic, order-stable output of one Discover call.
type Result struct {
	Items  []model.TestItem
	Blocks []model.Block
	Errors []Error
}

// Discovery walks input paths and extracts TestItems and Blocks.
type Discovery struct {
	ProjectRoot string
}

// New creates a Discovery rooted at projectRoot; all TestItem/Block paths are
// reported relative to it.
func New(projectRoot string) *Discovery {
	return &Discovery{ProjectRoot: projectRoot}
}

// Discover walks paths (files or directories), parses every candidate file,
// and returns items sorted by (file path, source line) as required by spec
// §4.1 "Ordering". A parse error on one file is recorded in Result.Errors and
// does not prevent discovery of the others.
func (d *Discovery) Discover(paths []string) (Result, error) {
	timer := logging.StartTimer(logging.CategoryDiscovery, "discover")
	defer timer.Stop()

	files, err := d.candidateFiles(paths)
	if err != nil {
		return Result{}, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	var result Result
	for _, file := range files {
		items, blocks, perr := d.parseFile(parser, file)
		if perr != nil {
			logging.Get(logging.CategoryDiscovery).Error("parse failed: %s: %v", file, perr)
			result.Errors = append(result.Errors, Error{File: file, Err: perr})
			continue
		}
		result.Items = append(result.Items, items...)
		result.Blocks = append(result.Blocks, blocks...)
	}

	sort.Slice(result.Items, func(i, j int) bool {
		a, b := result.Items[i], result.Items[j]
		if a.RelPath != b.RelPath {
			return a.RelPath < b.RelPath
		}
		return a.StartLine < b.StartLine
	})

	logging.DiscoveryDebug("discovered %d items across %d files (%d errors)", len(result.Items), len(files), len(result.Errors))
	return result, nil
}

// candidateFiles expands directories recursively, honoring the file
// selection rule and skipping hidden directories and the bytecode cache dir.
func (d *Discovery) candidateFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if isCandidateFile(filepath.Base(p)) {
				add(p)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if name != "." && (strings.HasPrefix(name, ".") || name == bytecodeCacheDir) {
					return filepath.SkipDir
				}
				return nil
			}
			if isCandidateFile(d.Name()) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// isCandidateFile matches a basename against the three recognized test-file
// shapes (spec §4.1 "File selection").
func isCandidateFile(basename string) bool {
	if !strings.HasSuffix(basename, Ext) {
		return false
	}
	stem := strings.TrimSuffix(basename, Ext)
	switch {
	case strings.HasPrefix(stem, "test_"):
		return true
	case strings.HasSuffix(stem, "_test"):
		return true
	case strings.HasPrefix(stem, "_test"):
		return true
	}
	return false
}

func (d *Discovery) relPath(absPath string) string {
	rel, err := filepath.Rel(d.ProjectRoot, absPath)
	if err != nil {
		return absPath
	}
	return filepath.ToSlash(rel)
}
