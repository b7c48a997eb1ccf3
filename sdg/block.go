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

import "sort"

// blockEdge is a successor edge, labelled by a small integer (branch
// label; 0 for unconditional, 0..n-1 for a switch), spec.md §3.2.
type blockEdge struct {
	target int64
	label  int
}

// Block is a DGBlock: an ordered list of DGNodes, labelled successor
// edges, an unlabelled predecessor set, forward/reverse control-dependence
// edges, dominance and post-dominance data, a slice-id, and the call-site
// nodes it contains (spec.md §3.2).
type Block struct {
	ID     int64
	Graph  *DependenceGraph
	Nodes  []int64 // ordered list of DGNode ids in this block

	successors   []blockEdge
	predecessors idSet

	controlDeps    idSet // blocks this block is control-dependent ON
	revControlDeps idSet // blocks control-dependent on this block

	// Idom/Children/Frontier are the dominator-tree data; IPostDom/
	// PostDomChildren/PostFrontier are their post-dominance duals
	// (spec.md §3.2 "dominance data... and the dual post-dominance data").
	Idom     int64
	hasIdom  bool
	Children []int64
	Frontier []int64

	IPostDom        int64
	hasIPostDom     bool
	PostDomChildren []int64
	PostFrontier    []int64

	SliceID int

	// CallSites is the set of DGNode ids inside this block that are
	// VariantCall (spec.md §3.2 "a set of call-site nodes inside the
	// block, for fast inter-procedural walks").
	CallSites idSet
}

func newBlock(g *DependenceGraph, id int64) *Block {
	return &Block{
		ID:             id,
		Graph:          g,
		predecessors:   idSet{},
		controlDeps:    idSet{},
		revControlDeps: idSet{},
		CallSites:      idSet{},
	}
}

// Append adds node n (already created via the graph) to the end of b's
// instruction list.
func (b *Block) Append(n *Node) {
	b.Nodes = append(b.Nodes, n.ID)
	n.Block = b.ID
	if n.Variant == VariantCall {
		b.CallSites.add(n.ID)
	}
}

// Successors returns b's successor block ids with their branch labels, in
// target-id order.
func (b *Block) Successors() []blockEdge {
	out := make([]blockEdge, len(b.successors))
	copy(out, b.successors)
	sort.Slice(out, func(i, j int) bool {
		if out[i].target != out[j].target {
			return out[i].target < out[j].target
		}
		return out[i].label < out[j].label
	})
	return out
}

// SuccessorIDs returns just the target ids of Successors(), deduplicated.
func (b *Block) SuccessorIDs() []int64 {
	seen := idSet{}
	var out []int64
	for _, e := range b.Successors() {
		if !seen.has(e.target) {
			seen.add(e.target)
			out = append(out, e.target)
		}
	}
	return out
}

// Predecessors returns b's predecessor block ids, ascending.
func (b *Block) Predecessors() []int64 { return b.predecessors.sorted() }

// ControlDeps returns the block ids b is control-dependent on, ascending.
func (b *Block) ControlDeps() []int64 { return b.controlDeps.sorted() }

// RevControlDeps returns the block ids control-dependent on b, ascending.
func (b *Block) RevControlDeps() []int64 { return b.revControlDeps.sorted() }

// SuccessorsAreSame reports whether every successor edge targets the same
// block, ignoring labels (spec.md §9's "successorsAreSame ignores labels
// by design"; whether the slicer should use this to merge redundant
// branch successors is left an open question there, so this accessor
// exists but nothing in this package calls it to merge anything).
func (b *Block) SuccessorsAreSame() bool {
	if len(b.successors) < 2 {
		return true
	}
	first := b.successors[0].target
	for _, e := range b.successors[1:] {
		if e.target != first {
			return false
		}
	}
	return true
}

// HasSelfLoop reports whether b has a successor edge to itself.
func (b *Block) HasSelfLoop() bool {
	for _, e := range b.successors {
		if e.target == b.ID {
			return true
		}
	}
	return false
}

// AddSuccessor adds a labelled successor edge b -> target, mirrored as a
// predecessor edge on target.
func (b *Block) AddSuccessor(target, label int64) {
	lbl := int(label)
	for _, e := range b.successors {
		if e.target == target && e.label == lbl {
			return
		}
	}
	b.successors = append(b.successors, blockEdge{target: target, label: lbl})
	b.Graph.block(target).predecessors.add(b.ID)
}

// AddControlDependence records that b is control-dependent on dependsOn,
// mirrored by a reverse edge (spec.md §3.2, §8 "Control-dep mirror").
func (b *Block) AddControlDependence(dependsOn int64) {
	b.controlDeps.add(dependsOn)
	b.Graph.block(dependsOn).revControlDeps.add(b.ID)
}

// removeSuccessors clears every outgoing edge, unmirroring each target's
// predecessor entry (DGBBlock::removeSuccessors in the original).
func (b *Block) removeSuccessors() {
	for _, e := range b.successors {
		b.Graph.block(e.target).predecessors.remove(b.ID)
	}
	b.successors = nil
}

// Isolate removes every edge incident to b and reconnects its
// predecessors directly to its successors, preserving branch labels and
// dropping self-loops (spec.md §3.2's removal contract; ported from
// DGBBlock::isolate in the original C++ implementation). If b is its
// procedure's entry block, the caller is responsible for replacing the
// entry reference with none (spec.md §3.2 "The entry block of a procedure
// is replaced with null if removed").
func (b *Block) Isolate() {
	// Reconnect: every predecessor gets a new edge to every successor of b
	// (except b itself), with the label of the edge that used to go to b.
	for _, predID := range b.predecessors.sorted() {
		pred := b.Graph.block(predID)
		var labelsToB []int
		var kept []blockEdge
		for _, e := range pred.successors {
			if e.target == b.ID {
				labelsToB = append(labelsToB, e.label)
			} else {
				kept = append(kept, e)
			}
		}
		pred.successors = kept

		for _, label := range labelsToB {
			for _, succID := range b.SuccessorIDs() {
				if succID == b.ID {
					continue // dropping a self-loop, per spec.md §3.2
				}
				pred.AddSuccessor(succID, int64(label))
			}
		}
	}

	b.removeSuccessors()
	b.predecessors = idSet{}

	for _, depID := range b.controlDeps.sorted() {
		if depID == b.ID {
			continue
		}
		b.Graph.block(depID).revControlDeps.remove(b.ID)
	}
	for _, depID := range b.revControlDeps.sorted() {
		if depID == b.ID {
			continue
		}
		b.Graph.block(depID).controlDeps.remove(b.ID)
	}
	b.controlDeps = idSet{}
	b.revControlDeps = idSet{}
}
