// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config loads the optional YAML defaults file the CLI accepts
// with -config, so a user running many attacks does not have to repeat
// -o/-workers/-compress on every invocation. The original C tool has no
// equivalent; everything here is additive and defaults to the same
// behavior as if no config file existed.
package config

import (
	"fmt"
	"os"
	"runtime"

	"sigs.k8s.io/yaml"
)

// Config holds the defaults a file may override.
type Config struct {
	// Workers bounds goroutines fanned across Assemble's outer loop.
	// Zero means runtime.NumCPU().
	Workers int `json:"workers"`

	// DefaultOutput is the path used when -o is not given.
	DefaultOutput string `json:"defaultOutput"`

	// FallbackOutput is tried if writing to DefaultOutput/-o fails,
	// matching the original's hardcoded "/tmp/keys.txt" fallback.
	FallbackOutput string `json:"fallbackOutput"`

	// Compress selects the klauspost/compress/s2 codec for multi-key
	// output files instead of plain hex lines.
	Compress bool `json:"compress"`
}

// Default returns the configuration the CLI uses when -config is not given.
func Default() Config {
	return Config{
		Workers:        runtime.NumCPU(),
		DefaultOutput:  "keys.txt",
		FallbackOutput: "/tmp/keys.txt",
	}
}

// Load reads and unmarshals a YAML config file (sigs.k8s.io/yaml, which
// decodes YAML via the JSON tags above), filling in Default() for any
// field the file omits.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	// Parse into a copy seeded with defaults so unspecified fields
	// survive: sigs.k8s.io/yaml only overwrites fields present in data.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return cfg, nil
}
