// Package config reads the `[tool.taut]` table from a project manifest
// (spec §6 "Config surface"). The manifest is the project's pyproject.toml-
// shaped root file; only the tool.taut table is interpreted here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"taut/internal/logging"
)

// ManifestFile is the canonical manifest basename this package looks for at
// the project root.
const ManifestFile = "pyproject.toml"

// Config is the single recognized configuration surface (spec §6): just
// max_workers today. CLI flags always take precedence over it.
type Config struct {
	MaxWorkers int
}

// rawManifest mirrors the on-disk shape for decoding; unknown keys inside
// [tool.taut] are collected via toml.MetaData and warned about, not
// rejected.
type rawManifest struct {
	Tool struct {
		Taut struct {
			MaxWorkers int `toml:"max_workers"`
		} `toml:"taut"`
	} `toml:"tool"`
}

// Load reads <projectRoot>/pyproject.toml and extracts [tool.taut]. A
// missing manifest or missing [tool.taut] table is not an error — it
// yields the zero Config, meaning "no override".
func Load(projectRoot string) (Config, error) {
	path := filepath.Join(projectRoot, ManifestFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var raw rawManifest
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if raw.Tool.Taut.MaxWorkers < 0 {
		return Config{}, fmt.Errorf("%s: tool.taut.max_workers must be >= 1, got %d", path, raw.Tool.Taut.MaxWorkers)
	}

	warnUnknownKeys(meta, path)

	return Config{MaxWorkers: raw.Tool.Taut.MaxWorkers}, nil
}

func warnUnknownKeys(meta toml.MetaData, path string) {
	for _, key := range meta.Undecoded() {
		if len(key) < 3 || key[0] != "tool" || key[1] != "taut" {
			continue
		}
		joined := key.String()
		logging.Get(logging.CategoryCLI).Warn("%s: unrecognized config key %q, ignored", path, joined)
	}
}

// Merge applies CLI-flag overrides onto a manifest-derived Config. A
// cliMaxWorkers of 0 means "not set on the CLI", so the manifest value (if
// any) is kept; anything > 0 takes precedence (spec §6 "CLI flags take
// precedence").
func (c Config) Merge(cliMaxWorkers int) Config {
	if cliMaxWorkers > 0 {
		c.MaxWorkers = cliMaxWorkers
	}
	return c
}
