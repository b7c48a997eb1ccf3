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

// Package logging provides the leveled logger shared by every analysis
// stage (pointer graph builder, SDG builder, slicer) and by the CLI.
package logging

import (
	"io"
	"log"
	"os"
)

// Level is a logging verbosity level, increasing from fatal-only to tracing.
type Level int

const (
	// ErrLevel is the minimum level of logging: only fatal/error conditions.
	ErrLevel Level = iota + 1

	// WarnLevel logs warnings in addition to errors, e.g. UnhandledInstruction.
	WarnLevel

	// InfoLevel logs high-level progress and results (stage sizes, slice outcome).
	InfoLevel

	// DebugLevel logs per-function and per-block detail. Safe on large programs.
	DebugLevel

	// TraceLevel logs per-node and per-edge detail. Only suitable for small
	// test programs; will not scale to large modules.
	TraceLevel
)

// Group is a leveled logger: each severity writes to its own *log.Logger so
// that callers can check IsLevel before constructing an expensive message.
type Group struct {
	level Level
	trace *log.Logger
	debug *log.Logger
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
}

// New creates a Group at the given level, writing to w (os.Stderr if nil).
func New(level Level, w io.Writer) *Group {
	if w == nil {
		w = os.Stderr
	}
	prefixed := func(prefix string) *log.Logger { return log.New(w, prefix, log.Ltime) }
	return &Group{
		level: level,
		trace: prefixed("[TRACE] "),
		debug: prefixed("[DEBUG] "),
		info:  prefixed("[INFO] "),
		warn:  prefixed("[WARN] "),
		err:   prefixed("[ERROR] "),
	}
}

// SetLevel changes the logging level of the group.
func (g *Group) SetLevel(level Level) { g.level = level }

// IsLevel returns true if the group logs at level l or more verbose.
func (g *Group) IsLevel(l Level) bool { return g.level >= l }

// Errorf logs at ErrLevel, always.
func (g *Group) Errorf(format string, args ...any) { g.err.Printf(format, args...) }

// Warnf logs at WarnLevel.
func (g *Group) Warnf(format string, args ...any) {
	if g.level >= WarnLevel {
		g.warn.Printf(format, args...)
	}
}

// Infof logs at InfoLevel.
func (g *Group) Infof(format string, args ...any) {
	if g.level >= InfoLevel {
		g.info.Printf(format, args...)
	}
}

// Debugf logs at DebugLevel.
func (g *Group) Debugf(format string, args ...any) {
	if g.level >= DebugLevel {
		g.debug.Printf(format, args...)
	}
}

// Tracef logs at TraceLevel.
func (g *Group) Tracef(format string, args ...any) {
	if g.level >= TraceLevel {
		g.trace.Printf(format, args...)
	}
}
