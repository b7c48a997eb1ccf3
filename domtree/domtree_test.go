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

package domtree_test

import (
	"reflect"
	"testing"

	"github.com/argslice/go-slicer/domtree"
)

// simpleGraph is a minimal domtree.Graph over an explicit adjacency map.
type simpleGraph struct {
	root  int64
	succs map[int64][]int64
	preds map[int64][]int64
	nodes []int64
}

func newSimpleGraph(root int64, edges map[int64][]int64) *simpleGraph {
	preds := map[int64][]int64{}
	nodeSet := map[int64]bool{root: true}
	for from, tos := range edges {
		nodeSet[from] = true
		for _, to := range tos {
			nodeSet[to] = true
			preds[to] = append(preds[to], from)
		}
	}
	var nodes []int64
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	return &simpleGraph{root: root, succs: edges, preds: preds, nodes: nodes}
}

func (g *simpleGraph) Root() int64          { return g.root }
func (g *simpleGraph) Nodes() []int64       { return g.nodes }
func (g *simpleGraph) Preds(id int64) []int64 { return g.preds[id] }
func (g *simpleGraph) Succs(id int64) []int64 { return g.succs[id] }

// TestDiamond checks the classic if/else diamond: 1 -> {2,3} -> 4.
// 1 dominates everything; 4's dominance frontier under post-domination is
// empty since it is the exit; 2 and 3 are each control-dependent on 1.
func TestDiamondDominance(t *testing.T) {
	g := newSimpleGraph(1, map[int64][]int64{
		1: {2, 3},
		2: {4},
		3: {4},
		4: {},
	})
	tree := domtree.Compute(g)

	if idom, ok := tree.Idom(4); !ok || idom != 1 {
		t.Fatalf("expected idom(4) == 1, got %v (ok=%v)", idom, ok)
	}
	if idom, ok := tree.Idom(2); !ok || idom != 1 {
		t.Fatalf("expected idom(2) == 1, got %v (ok=%v)", idom, ok)
	}

	// 4 has two preds (2,3) so it is the frontier point of both.
	if got := tree.Frontier(2); !reflect.DeepEqual(got, []int64{4}) {
		t.Fatalf("expected DF(2) == [4], got %v", got)
	}
}

// TestPostDominance checks the diamond in reverse (post-domination from the
// exit): 4 post-dominates 2 and 3 and 1, since every path to the exit
// (4) passes through it.
func TestPostDominance(t *testing.T) {
	g := newSimpleGraph(1, map[int64][]int64{
		1: {2, 3},
		2: {4},
		3: {4},
		4: {},
	})
	rev := domtree.Reversed{Inner: g, ExitNode: 4, AllNodes: []int64{1, 2, 3, 4}}
	pdom := domtree.Compute(rev)

	if idom, ok := pdom.Idom(2); !ok || idom != 4 {
		t.Fatalf("expected ipdom(2) == 4, got %v (ok=%v)", idom, ok)
	}
	if idom, ok := pdom.Idom(1); !ok || idom != 4 {
		t.Fatalf("expected ipdom(1) == 4, got %v (ok=%v)", idom, ok)
	}
}

// TestFrontierWithSharedJoin mirrors scenario 2 of spec.md §8: an
// if/else where both branches converge before the criterion. Block 1 is a
// two-way branch whose join block 4 falls through to a separate "print"
// block 5, so the dominance frontier of each branch is the join block.
func TestFrontierWithSharedJoin(t *testing.T) {
	// 1 branches to 2 or 3; both go to 4; 4 goes to 5 (unconditional print).
	g := newSimpleGraph(1, map[int64][]int64{
		1: {2, 3},
		2: {4},
		3: {4},
		4: {5},
		5: {},
	})
	tree := domtree.Compute(g)
	// 4's only pred set converges, so DF(2) and DF(3) both contain 4.
	f2 := tree.Frontier(2)
	if len(f2) != 1 || f2[0] != 4 {
		t.Fatalf("expected DF(2) == [4], got %v", f2)
	}
	f3 := tree.Frontier(3)
	if len(f3) != 1 || f3[0] != 4 {
		t.Fatalf("expected DF(3) == [4], got %v", f3)
	}
}
