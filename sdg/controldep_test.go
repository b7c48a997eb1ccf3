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

package sdg

import "testing"

// TestControlDependenceDiamond covers spec.md §8 scenario 2 ("dead branch")
// at the block level: entry branches to then/else, both rejoin at merge.
// then and else are control-dependent on entry (the branch decides whether
// they run); merge is not, since every path through entry reaches it.
func TestControlDependenceDiamond(t *testing.T) {
	g := newTestGraph()
	entry, then, els, merge := g.NewBlock(), g.NewBlock(), g.NewBlock(), g.NewBlock()
	g.Entry = entry.ID

	entry.AddSuccessor(then.ID, 0)
	entry.AddSuccessor(els.ID, 1)
	then.AddSuccessor(merge.ID, 0)
	els.AddSuccessor(merge.ID, 0)

	PostDomEngine{}.Run(g)

	if !contains(then.ControlDeps(), entry.ID) {
		t.Fatalf("then.ControlDeps() = %v, want to contain entry (%d)", then.ControlDeps(), entry.ID)
	}
	if !contains(els.ControlDeps(), entry.ID) {
		t.Fatalf("else.ControlDeps() = %v, want to contain entry (%d)", els.ControlDeps(), entry.ID)
	}
	if contains(merge.ControlDeps(), entry.ID) {
		t.Fatalf("merge should not be control-dependent on entry, got %v", merge.ControlDeps())
	}
	if !contains(entry.RevControlDeps(), then.ID) || !contains(entry.RevControlDeps(), els.ID) {
		t.Fatalf("entry.RevControlDeps() = %v, want to contain then and else", entry.RevControlDeps())
	}
}

// TestPostDomUniquenessPanicsOnDoubleRun ensures PostDomEngine.Run cannot
// be called twice over the same graph without tripping the §8 "post-dom
// uniqueness" contract.
func TestPostDomUniquenessPanicsOnDoubleRun(t *testing.T) {
	g := newTestGraph()
	a, b := g.NewBlock(), g.NewBlock()
	g.Entry = a.ID
	a.AddSuccessor(b.ID, 0)

	PostDomEngine{}.Run(g)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on re-running PostDomEngine over an already-annotated graph")
		}
	}()
	PostDomEngine{}.Run(g)
}
