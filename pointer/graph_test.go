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

package pointer

import "testing"

// TestSentinelInvariants mirrors spec.md §8 "Sentinel immutability":
// NULLPTR and UNKNOWN_MEMORY must carry their fixed singleton points-to
// sets as soon as the graph is created, and those sets never change.
func TestSentinelInvariants(t *testing.T) {
	g := NewGraph()

	nullPT := g.Node(g.Nullptr).PointsTo.Sorted()
	if len(nullPT) != 1 || nullPT[0] != (Pointer{Target: g.Nullptr, Offset: 0}) {
		t.Fatalf("NULLPTR.points_to = %v, want {(NULLPTR,0)}", nullPT)
	}

	unkPT := g.Node(g.UnknownMemory).PointsTo.Sorted()
	if len(unkPT) != 1 || unkPT[0] != (Pointer{Target: g.UnknownMemory, Offset: OffsetUnknown}) {
		t.Fatalf("UNKNOWN_MEMORY.points_to = %v, want {(UNKNOWN_MEMORY,UNKNOWN)}", unkPT)
	}

	if g.Nullptr == g.UnknownMemory {
		t.Fatalf("NULLPTR and UNKNOWN_MEMORY must be distinct nodes")
	}
}

// TestOperandUserMirror mirrors spec.md §8 "PG consistency": every operand
// reference is mirrored by a user back-reference.
func TestOperandUserMirror(t *testing.T) {
	g := NewGraph()
	sg, _ := g.EnsureSubgraph("f")
	a := g.NewNode(sg, KindAlloc)
	load := g.NewNode(sg, KindLoad)
	g.AddOperand(load, a)

	if !contains(g.Node(load).Operands(), a) {
		t.Fatalf("load node missing operand %d", a)
	}
	if !contains(g.Node(a).Users(), load) {
		t.Fatalf("alloc node missing user %d", load)
	}

	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
}

// TestCFGMirror mirrors spec.md §8 "CFG mirror": A in preds(B) iff B in
// succs(A).
func TestCFGMirror(t *testing.T) {
	g := NewGraph()
	sg, _ := g.EnsureSubgraph("f")
	a := g.NewNode(sg, KindEntry)
	b := g.NewNode(sg, KindAlloc)
	g.AddEdge(a, b)

	if !contains(g.Node(a).Successors(), b) {
		t.Fatalf("entry missing successor %d", b)
	}
	if !contains(g.Node(b).Predecessors(), a) {
		t.Fatalf("alloc missing predecessor %d", a)
	}
}

// TestIsolate mirrors spec.md §8 "Isolation contract": after isolating a
// node, it has no incident edges of any kind.
func TestIsolate(t *testing.T) {
	g := NewGraph()
	sg, _ := g.EnsureSubgraph("f")
	a := g.NewNode(sg, KindAlloc)
	cast := g.NewNode(sg, KindCast)
	g.AddOperand(cast, a)
	g.AddEdge(a, cast)

	g.Isolate(cast)

	if !g.Node(cast).Isolated() {
		t.Fatalf("node %d not isolated after Isolate", cast)
	}
	if contains(g.Node(a).Users(), cast) {
		t.Fatalf("alloc still lists isolated node %d as a user", cast)
	}
}

func contains(xs []int64, v int64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
