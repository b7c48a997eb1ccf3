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

// TestBlockIsolateReconnectsPredecessorsToSuccessors covers spec.md §8's
// isolation contract: a -> b -> c, isolate(b), expect a -> c preserving the
// original branch label, and b left with no edges.
func TestBlockIsolateReconnectsPredecessorsToSuccessors(t *testing.T) {
	g := newTestGraph()
	a, b, c := g.NewBlock(), g.NewBlock(), g.NewBlock()
	a.AddSuccessor(b.ID, 1)
	b.AddSuccessor(c.ID, 0)

	b.Isolate()

	if got := a.SuccessorIDs(); !contains(got, c.ID) {
		t.Fatalf("a's successors = %v, want to contain c (%d)", got, c.ID)
	}
	found := false
	for _, e := range a.Successors() {
		if e.target == c.ID && e.label == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a->c to carry label 1 (preserved from a->b)")
	}
	if len(b.Successors()) != 0 || len(b.Predecessors()) != 0 {
		t.Fatalf("b should have no edges left after isolation")
	}
	if contains(c.Predecessors(), b.ID) {
		t.Fatalf("c should no longer list b as a predecessor")
	}
}

// TestBlockIsolateDropsSelfLoop covers the self-loop clause of the
// isolation contract: a -> b -> b (self loop) -> c; isolating b must not
// reconnect a -> b.
func TestBlockIsolateDropsSelfLoop(t *testing.T) {
	g := newTestGraph()
	a, b, c := g.NewBlock(), g.NewBlock(), g.NewBlock()
	a.AddSuccessor(b.ID, 0)
	b.AddSuccessor(b.ID, 0)
	b.AddSuccessor(c.ID, 1)

	b.Isolate()

	for _, e := range a.Successors() {
		if e.target == b.ID {
			t.Fatalf("a should not still point at isolated block b")
		}
	}
	if !contains(a.SuccessorIDs(), c.ID) {
		t.Fatalf("a should be reconnected to c, got %v", a.SuccessorIDs())
	}
}

// TestControlDepMirror covers spec.md §8's "Control-dep mirror: A in
// B.controlDeps iff B in A.revControlDeps".
func TestControlDepMirror(t *testing.T) {
	g := newTestGraph()
	a, b := g.NewBlock(), g.NewBlock()
	b.AddControlDependence(a.ID)

	if !contains(b.ControlDeps(), a.ID) {
		t.Fatalf("b.ControlDeps() = %v, want to contain a (%d)", b.ControlDeps(), a.ID)
	}
	if !contains(a.RevControlDeps(), b.ID) {
		t.Fatalf("a.RevControlDeps() = %v, want to contain b (%d)", a.RevControlDeps(), b.ID)
	}
}

// TestCFGMirror covers spec.md §8's "CFG mirror: A in preds(B) iff B in
// succs(A)".
func TestCFGMirror(t *testing.T) {
	g := newTestGraph()
	a, b := g.NewBlock(), g.NewBlock()
	a.AddSuccessor(b.ID, 0)

	if !contains(a.SuccessorIDs(), b.ID) {
		t.Fatalf("a.SuccessorIDs() = %v, want to contain b", a.SuccessorIDs())
	}
	if !contains(b.Predecessors(), a.ID) {
		t.Fatalf("b.Predecessors() = %v, want to contain a", b.Predecessors())
	}
}
