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

package slicer

import (
	"io"
	"testing"

	"github.com/argslice/go-slicer/internal/analysistest"
	"github.com/argslice/go-slicer/internal/logging"
	"github.com/argslice/go-slicer/ir"
	"github.com/argslice/go-slicer/pointer"
	"github.com/argslice/go-slicer/sdg"
)

func testLog() *logging.Group { return logging.New(logging.ErrLevel, io.Discard) }

// buildSDG runs the same pipeline cmd/slicer's main wires (pointer graph ->
// fixed point -> SDG -> control/data dependence -> interprocedural
// linking) over the program loaded from dir.
func buildSDG(t *testing.T, dir string) (*ir.Module, *sdg.SystemDependenceGraph) {
	mod, _ := analysistest.LoadTest(t, dir, nil)

	ptrBuilder := pointer.NewBuilder(mod, testLog())
	ptrG, err := ptrBuilder.Build()
	if err != nil {
		t.Fatalf("pointer graph construction failed: %v", err)
	}
	pointer.NewAnalysis(ptrG, testLog()).Run()

	sdgBuilder := sdg.NewBuilder(mod, testLog())
	s := sdgBuilder.Build()
	for _, proc := range s.Procs() {
		sdg.PostDomEngine{}.Run(proc)
	}
	sdg.NewDataDepEngine(ptrBuilder, ptrG, testLog(), sdg.DataDependenceFlags{Interprocedural: true}).Run(s)
	sdg.NewLinker(ptrBuilder, ptrG, testLog()).Run(s)

	return mod, s
}

// lineNode finds the DGNode for the instruction at the given source line
// in mod, across every procedure registered in s.
func lineNode(t *testing.T, mod *ir.Module, s *sdg.SystemDependenceGraph, line int) (*sdg.DependenceGraph, int64) {
	for _, fn := range mod.Functions() {
		g := s.Proc(fn.String())
		if g == nil {
			continue
		}
		for _, block := range fn.Blocks {
			for _, instr := range block.Instrs {
				if mod.Position(instr.Pos()).Line != line {
					continue
				}
				if id := g.NodeFor(instr); id != 0 {
					return g, id
				}
			}
		}
	}
	t.Fatalf("no DGNode found at line %d", line)
	return nil, 0
}

// TestEndToEndScenarios drives the five scenarios of spec.md §8
// (straight-line, dead-branch, pointer-aliasing, recursion,
// function-pointer) through the full slicing pipeline, using the
// @Kept(p)/@Removed(p) annotations in testdata/ as the oracle.
func TestEndToEndScenarios(t *testing.T) {
	tests := []struct {
		name      string
		dir       string
		entry     string
		criterion string
	}{
		{"straight-line", "testdata/straightline", "compute", "ret"},
		{"dead-branch", "testdata/deadbranch", "deadBranch", "ret"},
		{"pointer-aliasing", "testdata/aliasing", "aliasing", "ret"},
		{"recursion", "testdata/recursion", "factorial", "ret"},
		{"function-pointer", "testdata/funcptr", "main", "Println"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, s := buildSDG(t, tt.dir)
			if err := s.SetEntry(tt.entry); err != nil {
				t.Fatalf("SetEntry(%q): %v", tt.entry, err)
			}

			expected := analysistest.GetExpectedSlice(tt.dir, tt.dir)

			type capture struct {
				g  *sdg.DependenceGraph
				id int64
			}
			kept := map[analysistest.LPos]capture{}
			for pos := range expected.Kept["p"] {
				g, id := lineNode(t, mod, s, pos.Line)
				kept[pos] = capture{g, id}
			}
			removed := map[analysistest.LPos]capture{}
			for pos := range expected.Removed["p"] {
				g, id := lineNode(t, mod, s, pos.Line)
				removed[pos] = capture{g, id}
			}
			if len(kept) == 0 && len(removed) == 0 {
				t.Fatalf("testdata %s has no @Kept/@Removed(p) annotations", tt.dir)
			}

			criteria, err := ParseCriteria(tt.criterion)
			if err != nil {
				t.Fatalf("ParseCriteria: %v", err)
			}
			targets, err := NewResolver(mod, s).Resolve(criteria)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(targets) == 0 {
				t.Fatalf("criterion %q matched nothing", tt.criterion)
			}

			result := New(s, testLog()).Slice(targets, nil, Options{})
			if result.EmptyMain {
				t.Fatalf("slice came back empty")
			}

			for pos, c := range kept {
				if c.g.Node(c.id).SliceID != result.SliceID {
					t.Errorf("%s: expected kept, but node wasn't marked by slice %d", pos, result.SliceID)
				}
			}
			for pos, c := range removed {
				if c.g.Node(c.id).SliceID == result.SliceID {
					t.Errorf("%s: expected removed, but node was marked by slice %d", pos, result.SliceID)
				}
			}
		})
	}
}

// TestDeadBranchSweepsWholeBlock checks the dead-branch scenario's stronger
// property: the if-arm isn't merely left unmarked, its block is actually
// swept out of the graph, since nothing in it is control- or
// data-dependent on the kept return.
func TestDeadBranchSweepsWholeBlock(t *testing.T) {
	dir := "testdata/deadbranch"
	mod, s := buildSDG(t, dir)
	if err := s.SetEntry("deadBranch"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}

	expected := analysistest.GetExpectedSlice(dir, dir)
	var removedLine int
	for pos := range expected.Removed["p"] {
		removedLine = pos.Line
	}
	g, id := lineNode(t, mod, s, removedLine)
	blockID := g.Node(id).Block

	criteria, err := ParseCriteria("ret")
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	targets, err := NewResolver(mod, s).Resolve(criteria)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	New(s, testLog()).Slice(targets, nil, Options{})

	if g.Block(blockID) != nil {
		t.Fatalf("block %d containing the dead branch survived the sweep", blockID)
	}
}

// TestRemoveUnusedOnlyKeepsEntryProcedure exercises
// Options.RemoveUnusedOnly against the function-pointer fixture: the
// reported ProceduresBefore must equal the procedure count before the run,
// and the entry procedure must survive the drop-only pass.
func TestRemoveUnusedOnlyKeepsEntryProcedure(t *testing.T) {
	dir := "testdata/funcptr"
	_, s := buildSDG(t, dir)
	if err := s.SetEntry("main"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	before := len(s.Procs())

	result := New(s, testLog()).Slice(nil, nil, Options{RemoveUnusedOnly: true})

	if result.Stats.ProceduresBefore != before {
		t.Fatalf("ProceduresBefore = %d, want %d", result.Stats.ProceduresBefore, before)
	}
	if s.Proc(s.Entry.FuncName) == nil {
		t.Fatalf("entry procedure was dropped by remove-unused-only")
	}
}

// TestVerifyPassesAfterSlice exercises Verify over a sliced module: the
// CFG/control-dep mirrors the sweep leaves behind must stay consistent.
func TestVerifyPassesAfterSlice(t *testing.T) {
	dir := "testdata/recursion"
	mod, s := buildSDG(t, dir)
	if err := s.SetEntry("factorial"); err != nil {
		t.Fatalf("SetEntry: %v", err)
	}
	criteria, err := ParseCriteria("ret")
	if err != nil {
		t.Fatalf("ParseCriteria: %v", err)
	}
	targets, err := NewResolver(mod, s).Resolve(criteria)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	New(s, testLog()).Slice(targets, nil, Options{})

	if err := Verify(nil, s); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
