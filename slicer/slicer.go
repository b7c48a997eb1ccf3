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
	"github.com/argslice/go-slicer/internal/logging"
	"github.com/argslice/go-slicer/sdg"
)

// Options controls one slicing run (spec.md §6.2's CLI surface).
type Options struct {
	// Forward requests a forward slice (successors of the criterion)
	// instead of the default backward slice.
	Forward bool

	// RemoveUnusedOnly skips marking/sweeping entirely and only runs the
	// unused-procedure fixed-point cleanup (sweepUnused); globals are not
	// swept.
	RemoveUnusedOnly bool
}

// Statistics reports the sizes the -statistics flag prints (spec.md §6.2).
type Statistics struct {
	ProceduresBefore, ProceduresAfter int
	BlocksBefore, BlocksAfter         int
	NodesBefore, NodesAfter           int
}

// Result is the outcome of one Slice call.
type Result struct {
	SliceID    int
	Targets    []Target
	Stats      Statistics
	EmptyMain  bool // set when CriterionMiss left nothing marked (spec.md §7)
}

// Slicer runs the mark-and-sweep backward slicer of spec.md §4.7 over a
// built SystemDependenceGraph.
type Slicer struct {
	s           *sdg.SystemDependenceGraph
	log         *logging.Group
	nextSliceID int
}

// New creates a Slicer over an already-linked SystemDependenceGraph (built,
// control- and data-dependence-computed, and interprocedurally linked).
func New(s *sdg.SystemDependenceGraph, log *logging.Group) *Slicer {
	return &Slicer{s: s, log: log}
}

// Slice resolves primary and secondary criteria, marks every node reachable
// via reverse control+data dependence (or forward, in -forward mode), and
// sweeps the blocks the mark phase did not stamp out of every procedure;
// unmarked instructions inside a stamped block are kept.
func (sl *Slicer) Slice(primary, secondary []Target, opts Options) *Result {
	sl.nextSliceID++
	id := sl.nextSliceID

	stats := sl.snapshot()

	if opts.RemoveUnusedOnly {
		removed := sl.sweepUnused()
		after := sl.snapshot()
		sl.log.Infof("remove-unused-only: dropped %d unreferenced procedures", removed)
		return &Result{SliceID: id, Stats: Statistics{
			ProceduresBefore: stats.procs, ProceduresAfter: after.procs,
			BlocksBefore: stats.blocks, BlocksAfter: after.blocks,
			NodesBefore: stats.nodes, NodesAfter: after.nodes,
		}}
	}

	targets := append(append([]Target{}, primary...), secondary...)
	if len(targets) == 0 {
		sl.log.Warnf("CriterionMiss: no node matched any criterion")
		return &Result{SliceID: id, EmptyMain: true}
	}

	if opts.Forward {
		sl.markForward(id, targets)
	} else {
		sl.markBackward(id, targets)
	}

	sl.sweep(id)
	sl.sweepUnused()

	after := sl.snapshot()
	return &Result{
		SliceID: id,
		Targets: targets,
		Stats: Statistics{
			ProceduresBefore: stats.procs, ProceduresAfter: after.procs,
			BlocksBefore: stats.blocks, BlocksAfter: after.blocks,
			NodesBefore: stats.nodes, NodesAfter: after.nodes,
		},
	}
}

type sizeSnapshot struct{ procs, blocks, nodes int }

func (sl *Slicer) snapshot() sizeSnapshot {
	var s sizeSnapshot
	for _, g := range sl.s.Procs() {
		s.procs++
		for _, b := range g.Blocks() {
			s.blocks++
			s.nodes += len(g.Block(b).Nodes)
		}
	}
	return s
}

// mark is a (graph, node) pair queued during the reverse/forward walk.
type mark struct {
	g  *sdg.DependenceGraph
	id int64
}

// markBackward implements spec.md §4.7's core algorithm: "reverse
// breadth-first traversal over the union of reverse control-dependence and
// reverse data-dependence edges, starting from C, assigning the current
// slice-id to every visited node and its enclosing block."
func (sl *Slicer) markBackward(id int, targets []Target) {
	visited := map[*sdg.DependenceGraph]map[int64]bool{}
	seen := func(g *sdg.DependenceGraph, n int64) bool {
		m := visited[g]
		return m != nil && m[n]
	}
	markVisited := func(g *sdg.DependenceGraph, n int64) {
		if visited[g] == nil {
			visited[g] = map[int64]bool{}
		}
		visited[g][n] = true
	}

	var queue []mark
	for _, t := range targets {
		queue = append(queue, mark{g: t.Graph, id: t.Node})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen(cur.g, cur.id) {
			continue
		}
		markVisited(cur.g, cur.id)

		n := cur.g.Node(cur.id)
		n.SliceID = id
		block := cur.g.Block(n.Block)
		block.SliceID = id

		for _, defID := range n.DataDeps() {
			queue = append(queue, mark{g: cur.g, id: defID})
		}
		for _, ce := range cur.g.CrossDataDeps(cur.id) {
			queue = append(queue, mark{g: ce.Graph, id: ce.Node})
		}
		// Control dependence lives at block granularity (spec.md §3.2): the
		// blocks n's block is control-dependent on decide whether it runs,
		// so their own control-flow-determining nodes must also survive.
		for _, depBlockID := range block.ControlDeps() {
			depBlock := cur.g.Block(depBlockID)
			depBlock.SliceID = id
			for _, nid := range depBlock.Nodes {
				queue = append(queue, mark{g: cur.g, id: nid})
			}
		}
	}
}

// markForward walks the dual direction (successors of the criterion),
// implementing the -forward CLI mode (spec.md §6.2).
func (sl *Slicer) markForward(id int, targets []Target) {
	visited := map[*sdg.DependenceGraph]map[int64]bool{}
	seen := func(g *sdg.DependenceGraph, n int64) bool {
		m := visited[g]
		return m != nil && m[n]
	}
	markVisited := func(g *sdg.DependenceGraph, n int64) {
		if visited[g] == nil {
			visited[g] = map[int64]bool{}
		}
		visited[g][n] = true
	}

	var queue []mark
	for _, t := range targets {
		queue = append(queue, mark{g: t.Graph, id: t.Node})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen(cur.g, cur.id) {
			continue
		}
		markVisited(cur.g, cur.id)

		n := cur.g.Node(cur.id)
		n.SliceID = id
		block := cur.g.Block(n.Block)
		block.SliceID = id

		for _, useID := range n.RevDataDeps() {
			queue = append(queue, mark{g: cur.g, id: useID})
		}
		for _, ce := range cur.g.RevCrossDataDeps(cur.id) {
			queue = append(queue, mark{g: ce.Graph, id: ce.Node})
		}
		for _, revBlockID := range block.RevControlDeps() {
			revBlock := cur.g.Block(revBlockID)
			revBlock.SliceID = id
			for _, nid := range revBlock.Nodes {
				queue = append(queue, mark{g: cur.g, id: nid})
			}
		}
	}
}

// sweep drops whole blocks whose Block.SliceID wasn't stamped by the mark
// phase; a block that did get stamped is kept whole rather than having its
// individually-unmarked instructions stripped out one by one. markBackward/
// markForward only ever enqueue nodes reached by a dependence edge, so a
// surviving block's nodes are already the ones the mark phase wanted kept —
// but it means node-level removal is left to whoever reads Node.SliceID
// (-annotate slice, or an external adapter), and -statistics' NodesAfter
// counts kept blocks' nodes rather than a separate per-instruction sweep.
func (sl *Slicer) sweep(id int) {
	for _, g := range sl.s.Procs() {
		for _, blockID := range g.Blocks() {
			b := g.Block(blockID)
			if b.SliceID == id {
				continue
			}
			g.RemoveBlock(blockID)
		}
	}
}

// sweepUnused runs a fixed-point sweep of unused procedures: procedures
// with no remaining callers (other than the entry point) and no body left
// are dropped, repeating until nothing changes. Globals and aliases are not
// swept.
func (sl *Slicer) sweepUnused() int {
	removed := 0
	for {
		changed := false
		for _, g := range sl.s.Procs() {
			if g == sl.s.Entry {
				continue
			}
			if len(g.Blocks()) > 0 {
				continue
			}
			if sl.hasCaller(g) {
				continue
			}
			sl.dropProc(g)
			removed++
			changed = true
		}
		if !changed {
			return removed
		}
	}
}

func (sl *Slicer) hasCaller(callee *sdg.DependenceGraph) bool {
	for _, g := range sl.s.Procs() {
		for _, id := range g.Nodes() {
			n := g.Node(id)
			if g.Block(n.Block) == nil {
				continue // call site swept along with its block
			}
			for _, c := range n.Callees {
				if c == callee {
					return true
				}
			}
		}
	}
	return false
}

func (sl *Slicer) dropProc(g *sdg.DependenceGraph) {
	sl.s.RemoveProc(g.FuncName)
}
