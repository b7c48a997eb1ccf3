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
	"fmt"

	"github.com/argslice/go-slicer/pointer"
	"github.com/argslice/go-slicer/sdg"
)

// Verify runs a lightweight structural re-check of the PG/SDG invariants of
// spec.md §8 over the module as it stands after a slice, matching the
// VerifyFailure error-taxonomy case (spec.md §7): a failure is returned to
// the caller; cmd/slicer prints it, still writes its reports, and exits
// non-zero.
func Verify(g *pointer.Graph, s *sdg.SystemDependenceGraph) error {
	if g != nil {
		if err := g.CheckConsistency(); err != nil {
			return fmt.Errorf("VerifyFailure: pointer graph: %w", err)
		}
	}
	for _, proc := range s.Procs() {
		if err := verifyProc(proc); err != nil {
			return fmt.Errorf("VerifyFailure: procedure %s: %w", proc.FuncName, err)
		}
	}
	return nil
}

// verifyProc re-checks the CFG and control-dependence mirror invariants
// (spec.md §8) for one procedure's surviving blocks.
func verifyProc(g *sdg.DependenceGraph) error {
	for _, id := range g.Blocks() {
		b := g.Block(id)
		for _, succID := range b.SuccessorIDs() {
			succ := g.Block(succID)
			if succ == nil {
				return fmt.Errorf("block %d has successor %d which no longer exists", id, succID)
			}
			if !containsInt64(succ.Predecessors(), id) {
				return fmt.Errorf("CFG mirror violated: %d -> %d but %d not in preds(%d)", id, succID, id, succID)
			}
		}
		for _, depID := range b.ControlDeps() {
			dep := g.Block(depID)
			if dep == nil {
				return fmt.Errorf("block %d control-depends on %d which no longer exists", id, depID)
			}
			if !containsInt64(dep.RevControlDeps(), id) {
				return fmt.Errorf("control-dep mirror violated: %d depends on %d but %d not in revControlDeps(%d)", id, depID, id, depID)
			}
		}
	}
	return nil
}

func containsInt64(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
