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
	"github.com/argslice/go-slicer/internal/logging"
	"github.com/argslice/go-slicer/ir"
	"github.com/argslice/go-slicer/pointer"
	"golang.org/x/tools/go/ssa"
)

// DataDependenceFlags mirror spec.md §4.4's mode switches.
type DataDependenceFlags struct {
	// Interprocedural (DATAFLOW_INTERPROCEDURAL) is not read by Run: the
	// engine adds intraprocedural RAW edges only, whatever its value.
	// Actual->formal and return->call edges are added by Linker; no
	// global-modified edges are added.
	Interprocedural bool

	// BBNoCallSites excludes call-site blocks from participating as
	// definitions when computing gen/kill (DATAFLOW_BB_NO_CALLSITES).
	BBNoCallSites bool
}

// DataDepEngine implements spec.md §4.4: a block-level data-flow
// framework over a lattice of sets of definitions, keyed by the abstract
// memory locations the pointer graph exposes, plus the trivial direct
// def-use edges SSA already gives for free on registers.
type DataDepEngine struct {
	ptr   *pointer.Builder
	ptrG  *pointer.Graph
	log   *logging.Group
	Flags DataDependenceFlags

	// Statistics accumulated over every procedure Run visits: blocks seen,
	// fixed-point rounds, and block visits across those rounds.
	BlockCount      int
	Iterations      int
	ProcessedBlocks int
}

// NewDataDepEngine wraps the pointer analysis results the memory-edge pass
// needs (spec.md §4.4 "Memory via PG").
func NewDataDepEngine(ptr *pointer.Builder, ptrG *pointer.Graph, log *logging.Group, flags DataDependenceFlags) *DataDepEngine {
	return &DataDepEngine{ptr: ptr, ptrG: ptrG, log: log, Flags: flags}
}

// Run adds data-dependence (RAW) edges to every procedure in s.
func (e *DataDepEngine) Run(s *SystemDependenceGraph) {
	for _, g := range s.Procs() {
		e.addRegisterEdges(g)
		e.addMemoryEdges(g)
	}
}

// addRegisterEdges wires the trivial RAW edges SSA's own single-assignment
// form gives directly: a use of value v depends only on v's unique
// defining instruction, when that instruction was lowered into this
// procedure's graph.
func (e *DataDepEngine) addRegisterEdges(g *DependenceGraph) {
	for _, id := range g.Nodes() {
		n := g.Node(id)
		for _, v := range nodeOperandValues(n) {
			defInstr, ok := v.(ssa.Instruction)
			if !ok {
				continue
			}
			defID := g.NodeFor(defInstr)
			if defID == 0 || defID == id {
				continue
			}
			addDataDep(g, defID, id)
		}
	}
}

// nodeOperandValues returns the SSA values a DGNode reads: an
// instruction's own operands, or the single value a VariantArgument node
// stands for.
func nodeOperandValues(n *Node) []ssa.Value {
	if n.Instr != nil {
		return ir.Operands(n.Instr)
	}
	if n.Value != nil {
		return []ssa.Value{n.Value}
	}
	return nil
}

func addDataDep(g *DependenceGraph, def, use int64) {
	if !g.Node(use).dataDeps.has(def) {
		g.Node(use).dataDeps.add(def)
		g.Node(def).revDataDeps.add(use)
	}
}

// location is the gen/kill lattice element: an abstract memory object and
// offset from the pointer graph, exactly as pointer.Pointer models it
// (spec.md §4.1's "Memory objects are keyed by (allocation-node, offset)"
// reused here for the data-dependence lattice, spec.md §4.4).
type location = pointer.Pointer

// addMemoryEdges runs the iterative gen/kill/in/out data-flow framework of
// spec.md §4.4 for LOAD/STORE-shaped instructions in g, using the pointer
// graph's points-to sets to decide aliasing, then emits a RAW edge to every
// load from each store in the in set of the load's block (the stores
// reaching the start of that block) whose location may alias the load's
// points-to set. A store earlier in the load's own block is not considered.
func (e *DataDepEngine) addMemoryEdges(g *DependenceGraph) {
	blocks := g.Blocks()
	e.BlockCount += len(blocks)
	if len(blocks) == 0 {
		return
	}

	gen := map[int64]map[location]int64ptrSet{}  // block -> location -> defining node ids
	kill := map[int64]map[location]bool{}          // block -> location fully overwritten in this block
	in := map[int64]map[location]int64ptrSet{}
	out := map[int64]map[location]int64ptrSet{}

	for _, b := range blocks {
		gen[b] = map[location]int64ptrSet{}
		kill[b] = map[location]bool{}
		for _, nid := range g.block(b).Nodes {
			n := g.Node(nid)
			store, ok := n.Instr.(*ssa.Store)
			if !ok {
				continue
			}
			if e.Flags.BBNoCallSites && len(g.block(b).CallSites) > 0 {
				continue
			}
			addr, ok := e.ptr.ValueNode(store.Addr)
			if !ok {
				continue
			}
			pts := e.ptrG.Node(addr).PointsTo.Sorted()
			for _, p := range pts {
				if gen[b][p] == nil {
					gen[b][p] = int64ptrSet{}
				}
				gen[b][p].add(nid)
				if p.Offset != pointer.OffsetUnknown && len(pts) == 1 {
					kill[b][p] = true
				}
			}
		}
	}

	order := reverseDFSPostorder(g)
	changed := true
	for changed {
		e.Iterations++
		changed = false
		for _, b := range order {
			e.ProcessedBlocks++
			merged := map[location]int64ptrSet{}
			for _, p := range g.block(b).Predecessors() {
				for loc, defs := range out[p] {
					if merged[loc] == nil {
						merged[loc] = int64ptrSet{}
					}
					merged[loc].union(defs)
				}
			}
			in[b] = merged

			newOut := map[location]int64ptrSet{}
			for loc, defs := range gen[b] {
				newOut[loc] = defs.clone()
			}
			for loc, defs := range in[b] {
				if kill[b][loc] {
					continue
				}
				if newOut[loc] == nil {
					newOut[loc] = int64ptrSet{}
				}
				newOut[loc].union(defs)
			}

			if !equalDefSets(out[b], newOut) {
				out[b] = newOut
				changed = true
			}
		}
	}

	for _, b := range blocks {
		for _, nid := range g.block(b).Nodes {
			n := g.Node(nid)
			load, ok := n.Instr.(*ssa.UnOp)
			if !ok || !isLoad(load) {
				continue
			}
			addr, ok := e.ptr.ValueNode(load.X)
			if !ok {
				continue
			}
			for _, p := range e.ptrG.Node(addr).PointsTo.Sorted() {
				for loc, defs := range in[b] {
					if !aliases(loc, p) {
						continue
					}
					for defID := range defs {
						addDataDep(g, defID, nid)
					}
				}
			}
		}
	}
}

func isLoad(u *ssa.UnOp) bool { return ir.Classify(u) == ir.OpLoad }

// aliases reports whether two locations may denote the same memory: exact
// match, or either side's offset is UNKNOWN and the targets match
// (object-wide collapse, spec.md §4.1).
func aliases(a, b location) bool {
	if a.Target != b.Target {
		return false
	}
	if a.Offset == pointer.OffsetUnknown || b.Offset == pointer.OffsetUnknown {
		return true
	}
	return a.Offset == b.Offset
}

type int64ptrSet map[int64]struct{}

func (s int64ptrSet) add(id int64) { s[id] = struct{}{} }
func (s int64ptrSet) union(o int64ptrSet) {
	for id := range o {
		s[id] = struct{}{}
	}
}
func (s int64ptrSet) clone() int64ptrSet {
	c := make(int64ptrSet, len(s))
	c.union(s)
	return c
}

func equalDefSets(a, b map[location]int64ptrSet) bool {
	if len(a) != len(b) {
		return false
	}
	for loc, defs := range a {
		other, ok := b[loc]
		if !ok || len(other) != len(defs) {
			return false
		}
		for id := range defs {
			if _, ok := other[id]; !ok {
				return false
			}
		}
	}
	return true
}

// reverseDFSPostorder returns g's blocks in reverse depth-first
// postorder, the traversal spec.md §4.4 specifies for the gen/kill fixed
// point ("Iterate in reverse DFS post-order until no in/out set changes").
func reverseDFSPostorder(g *DependenceGraph) []int64 {
	if g.Entry == 0 {
		return g.Blocks()
	}
	visited := map[int64]bool{}
	var post []int64
	var visit func(int64)
	visit = func(b int64) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range g.block(b).SuccessorIDs() {
			visit(s)
		}
		post = append(post, b)
	}
	visit(g.Entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
