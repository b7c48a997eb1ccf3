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

import (
	"sort"

	"github.com/argslice/go-slicer/domtree"
)

// virtualExit is the synthetic exit node id joining every return block of
// a procedure with no real successors, so post-domination is always
// computed over a CFG with a unique exit (spec.md §4.2). It is negative
// so it can never collide with a real, positively-numbered Block id.
const virtualExit = int64(-1)

// cfgGraph adapts a DependenceGraph's blocks to domtree.Graph in forward
// (dominance) orientation, with the virtual exit spliced in as every
// exit block's successor.
type cfgGraph struct {
	g     *DependenceGraph
	exits idSet
}

func newCFGGraph(g *DependenceGraph) cfgGraph {
	exits := idSet{}
	for _, id := range g.Blocks() {
		if len(g.block(id).SuccessorIDs()) == 0 {
			exits.add(id)
		}
	}
	return cfgGraph{g: g, exits: exits}
}

func (c cfgGraph) Root() int64 { return c.g.Entry }

func (c cfgGraph) Nodes() []int64 {
	ids := append([]int64{}, c.g.Blocks()...)
	ids = append(ids, virtualExit)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c cfgGraph) Preds(id int64) []int64 {
	if id == virtualExit {
		return c.exits.sorted()
	}
	return c.g.block(id).Predecessors()
}

func (c cfgGraph) Succs(id int64) []int64 {
	if id == virtualExit {
		return nil
	}
	succs := c.g.block(id).SuccessorIDs()
	if len(succs) == 0 {
		return []int64{virtualExit}
	}
	return succs
}

// PostDomEngine computes, per procedure, the post-dominator tree and post-
// dominance frontiers, then derives control-dependence edges (spec.md
// §4.2, §4.5): cd(A, B) iff A is in PDF(B).
type PostDomEngine struct{}

// Run computes dominance and post-dominance for every block of g and adds
// control-dependence edges. It must run after the CFG (successor edges)
// has been fully built by Builder.
func (PostDomEngine) Run(g *DependenceGraph) {
	if g.Entry == 0 || len(g.Blocks()) == 0 {
		return
	}
	fg := newCFGGraph(g)

	domT := domtree.Compute(fg)
	applyDominance(g, domT)

	rev := domtree.Reversed{Inner: fg, ExitNode: virtualExit, AllNodes: fg.Nodes()}
	pdomT := domtree.Compute(rev)
	applyPostDominance(g, pdomT)
	deriveControlDependence(g, pdomT)
}

func applyDominance(g *DependenceGraph, t *domtree.Tree) {
	for _, id := range g.Blocks() {
		b := g.block(id)
		if idom, ok := t.Idom(id); ok {
			assertNotSetTwice(!b.hasIdom, "dominator")
			b.Idom = idom
			b.hasIdom = true
		}
		b.Children = t.Children(id)
		b.Frontier = t.Frontier(id)
	}
}

func applyPostDominance(g *DependenceGraph, t *domtree.Tree) {
	for _, id := range g.Blocks() {
		b := g.block(id)
		if ipdom, ok := t.Idom(id); ok && ipdom != virtualExit {
			assertNotSetTwice(!b.hasIPostDom, "post-dominator")
			b.IPostDom = ipdom
			b.hasIPostDom = true
		}
		var children []int64
		for _, c := range t.Children(id) {
			if c != virtualExit {
				children = append(children, c)
			}
		}
		b.PostDomChildren = children
		var frontier []int64
		for _, f := range t.Frontier(id) {
			if f != virtualExit {
				frontier = append(frontier, f)
			}
		}
		b.PostFrontier = frontier
	}
}

// assertNotSetTwice implements spec.md §8's "Post-dom uniqueness: ipdom(b)
// is set at most once per block per build" as a debug-time contract (§9
// "Assertions as contracts"). PostDomEngine.Run only ever calls
// applyDominance/applyPostDominance once per build, so this only fires if
// a caller mistakenly re-runs the engine over an already-annotated graph.
func assertNotSetTwice(cond bool, what string) {
	if !cond {
		panic("sdg: " + what + " assigned more than once for the same block (violates §8 uniqueness contract)")
	}
}

// deriveControlDependence wires control dependence from the post-dominance
// frontiers: every p in PDF(b) is a branching block that decides whether b
// runs, so b is recorded as control-dependent on p (with the mirrored
// reverse edge on p). Blocks are visited in ascending id order; the result
// does not depend on the order.
func deriveControlDependence(g *DependenceGraph, pdomT *domtree.Tree) {
	for _, id := range g.Blocks() {
		b := g.block(id)
		// b.PostFrontier is PDF(b) per spec.md §4.2's formula (Frontier as
		// computed over the reversed CFG already matches it directly).
		for _, p := range b.PostFrontier {
			b.AddControlDependence(p)
		}
	}
}
