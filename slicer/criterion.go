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

// Package slicer implements the mark-and-sweep backward slicer of spec.md
// §4.7: it resolves user-supplied criteria against a built
// SystemDependenceGraph, marks every node reachable via reverse
// control+data dependence, and sweeps the blocks the mark phase did not
// stamp out of the module; unmarked instructions inside a stamped block are
// kept (Node.SliceID tells which were marked).
package slicer

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the syntactic form of a slicing criterion (spec.md §6.2).
type Kind int

const (
	// KindPoint is "line:variable": a source line plus a local variable.
	KindPoint Kind = iota
	// KindGlobal is "line:", with a global variable name in the second field.
	KindGlobal
	// KindCallName is "name": a control-form criterion on a call site.
	KindCallName
	// KindCallData is "name()": a data-form criterion on a call's result.
	KindCallData
	// KindReturn is "ret": the returns of the entry procedure.
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindGlobal:
		return "global"
	case KindCallName:
		return "call-name"
	case KindCallData:
		return "call-data"
	case KindReturn:
		return "return"
	default:
		return "?"
	}
}

// Criterion is one parsed slicing criterion (spec.md §6.2).
type Criterion struct {
	Kind Kind
	Line int    // KindPoint, KindGlobal
	Name string // variable/global/call name, or "" for KindReturn
	Raw  string // original text, for diagnostics
}

// ParseCriteria splits a comma-separated -c/-sc flag value into its
// individual criteria.
func ParseCriteria(s string) ([]Criterion, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Criterion
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := ParseCriterion(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ParseCriterion parses one criterion in the syntax of spec.md §6.2:
// "line:variable", "line:" (global), "name" (call-site name), "name()"
// (data criterion on a call), or "ret" (returns of entry).
func ParseCriterion(s string) (Criterion, error) {
	if s == "ret" {
		return Criterion{Kind: KindReturn, Raw: s}, nil
	}
	if strings.HasSuffix(s, "()") {
		name := strings.TrimSuffix(s, "()")
		if name == "" {
			return Criterion{}, fmt.Errorf("empty call name in criterion %q", s)
		}
		return Criterion{Kind: KindCallData, Name: name, Raw: s}, nil
	}
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		lineStr, rest := s[:idx], s[idx+1:]
		line, err := strconv.Atoi(lineStr)
		if err != nil {
			return Criterion{}, fmt.Errorf("invalid line in criterion %q: %w", s, err)
		}
		if rest == "" {
			return Criterion{Kind: KindGlobal, Line: line, Raw: s}, nil
		}
		return Criterion{Kind: KindPoint, Line: line, Name: rest, Raw: s}, nil
	}
	if s == "" {
		return Criterion{}, fmt.Errorf("empty criterion")
	}
	return Criterion{Kind: KindCallName, Name: s, Raw: s}, nil
}
