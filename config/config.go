// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the YAML-loadable configuration for slicing runs:
// the options shared by every analysis stage plus a list of named slicing
// problems. cmd/slicer reads LogLevel, ReportsDir and EntryPoint; it takes
// criteria from -c and -sc only and does not read SlicingProblems.
package config

import (
	"fmt"
	"os"

	"github.com/argslice/go-slicer/internal/logging"
	"gopkg.in/yaml.v3"
)

var globalConfigFile string

// SetGlobalConfig sets the global config filename to be used by LoadGlobal.
func SetGlobalConfig(filename string) { globalConfigFile = filename }

// LoadGlobal loads the config file set by SetGlobalConfig.
func LoadGlobal() (*Config, error) { return Load(globalConfigFile) }

// Config is the top-level slicing configuration file.
type Config struct {
	// LogLevel is the verbosity of the run (see internal/logging.Level).
	LogLevel int `yaml:"log-level"`

	// ReportsDir is where dot dumps and annotated listings are written when
	// the corresponding CLI flag is set (-statistics prints to stdout).
	ReportsDir string `yaml:"reports-dir"`

	// EntryPoint is the default entry procedure name (overridden by -entry).
	EntryPoint string `yaml:"entry-point"`

	// SlicingProblems lists named, reusable slicing criteria.
	SlicingProblems []SlicingSpec `yaml:"slicing-problems"`
}

// SlicingSpec names a slicing problem: a set of criteria identifying
// program points/variables/call sites that define a backward slice, plus
// the (optional) secondary criteria used to expand it.
type SlicingSpec struct {
	// Name identifies the problem.
	Name string `yaml:"name"`

	// Criteria is the list of primary slicing criteria, in the syntax of
	// spec.md §6.2 ("line:variable", "line:", "name", "name()", "ret").
	Criteria []string `yaml:"criteria"`

	// SecondaryCriteria is the list of secondary criteria (-sc).
	SecondaryCriteria []string `yaml:"secondary-criteria"`

	// EntryPoint overrides Config.EntryPoint for this problem, if non-empty.
	EntryPoint string `yaml:"entry-point"`

	// Forward requests a forward slice instead of the default backward one.
	Forward bool `yaml:"forward"`
}

// Default returns the zero-value configuration: info-level logging, no
// reports dir, entry point "main", no slicing problems.
func Default() *Config {
	return &Config{
		LogLevel:   int(logging.InfoLevel),
		EntryPoint: "main",
	}
}

// Load reads and parses the YAML configuration file at filename. An empty
// filename returns Default().
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", filename, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", filename, err)
	}
	return cfg, nil
}

// Level returns the configured logging.Level.
func (c *Config) Level() logging.Level { return logging.Level(c.LogLevel) }
