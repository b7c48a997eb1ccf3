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
	"fmt"
	"sort"

	"golang.org/x/tools/go/ssa"
)

// FormalParams is the container a procedure's VariantArgument nodes belong
// to (spec.md §3.2 "Argument belongs to a Formal-Parameters container
// owned by its procedure").
type FormalParams struct {
	Params  []int64 // node ids, in declaration order
	Vararg  int64   // 0 if the function is not variadic
}

// DependenceGraph is a per-procedure System Dependence Graph: owns the
// DGNodes and DGBlocks of one procedure, references a single entry block,
// and references its formal-parameters container (spec.md §3.2).
type DependenceGraph struct {
	FuncName string
	Fn       *ssa.Function

	nodes  map[int64]*Node
	blocks map[int64]*Block
	nextID int64

	Entry   int64 // entry DGBlock id, 0 if removed (spec.md §3.2)
	Formals FormalParams

	// blockOf maps an ssa.Instruction to the DGBlock id it was lowered
	// into, used by the data-dependence and interprocedural-linking
	// passes that need to find "the block containing this instruction".
	blockOf map[ssa.Instruction]int64

	// nodeOf maps an ssa.Instruction to its DGNode id.
	nodeOf map[ssa.Instruction]int64

	// ssaBlockID maps an *ssa.BasicBlock to the DGBlock id built from it,
	// used while wiring CFG successor edges during Builder.Build.
	ssaBlockID map[*ssa.BasicBlock]int64

	// crossDataDeps/revCrossDataDeps hold interprocedural data-dependence
	// edges (actual->formal, return->call-return) the Linker adds (spec.md
	// §4.6), mirroring the intraprocedural dataDeps/revDataDeps pair: for a
	// "use" node id, crossDataDeps names the defs it depends on that live
	// in another procedure's graph; for a "def" node id, revCrossDataDeps
	// names the uses in other graphs that depend on it. Node ids are only
	// dense within one DependenceGraph, so a cross-graph edge can't be
	// stored in a node's own idSet; each side instead records a pointer to
	// the other graph and node directly. The slicer's interprocedural walk
	// consults these tables when it crosses a call or return boundary.
	crossDataDeps    map[int64][]CrossEdge
	revCrossDataDeps map[int64][]CrossEdge
}

// CrossEdge names a dependence edge's endpoint in a different procedure's
// DependenceGraph.
type CrossEdge struct {
	Graph *DependenceGraph
	Node  int64
}

func newDependenceGraph(fn *ssa.Function) *DependenceGraph {
	return &DependenceGraph{
		FuncName:   fn.String(),
		Fn:         fn,
		nodes:      map[int64]*Node{},
		blocks:     map[int64]*Block{},
		blockOf:    map[ssa.Instruction]int64{},
		nodeOf:     map[ssa.Instruction]int64{},
		ssaBlockID:       map[*ssa.BasicBlock]int64{},
		crossDataDeps:    map[int64][]CrossEdge{},
		revCrossDataDeps: map[int64][]CrossEdge{},
	}
}

// addCrossDataDep records that useID (owned by useGraph) depends on defID
// (owned by defGraph), mirroring addDataDep's def/use argument order across
// a procedure boundary.
func addCrossDataDep(defGraph *DependenceGraph, defID int64, useGraph *DependenceGraph, useID int64) {
	useGraph.crossDataDeps[useID] = append(useGraph.crossDataDeps[useID], CrossEdge{Graph: defGraph, Node: defID})
	defGraph.revCrossDataDeps[defID] = append(defGraph.revCrossDataDeps[defID], CrossEdge{Graph: useGraph, Node: useID})
}

// CrossDataDeps returns the interprocedural defs id depends on, added by
// the Linker (spec.md §4.6). Mirrors DataDeps across a procedure boundary.
func (g *DependenceGraph) CrossDataDeps(id int64) []CrossEdge { return g.crossDataDeps[id] }

// RevCrossDataDeps returns the interprocedural uses that depend on id.
// Mirrors RevDataDeps across a procedure boundary.
func (g *DependenceGraph) RevCrossDataDeps(id int64) []CrossEdge { return g.revCrossDataDeps[id] }

func (g *DependenceGraph) newID() int64 {
	g.nextID++
	return g.nextID
}

// NewBlock allocates and registers a fresh, empty Block.
func (g *DependenceGraph) NewBlock() *Block {
	id := g.newID()
	b := newBlock(g, id)
	g.blocks[id] = b
	return b
}

// NewNode allocates a fresh Node of the given variant inside block b,
// wrapping the SSA instruction instr (nil for a pure Argument node).
func (g *DependenceGraph) NewNode(b *Block, variant NodeVariant, instr ssa.Instruction) *Node {
	id := g.newID()
	n := newNode(g, id, variant, b.ID, instr)
	g.nodes[id] = n
	b.Append(n)
	if instr != nil {
		g.blockOf[instr] = b.ID
		g.nodeOf[instr] = id
	}
	return n
}

// Node looks up a node by id.
func (g *DependenceGraph) Node(id int64) *Node { return g.nodes[id] }

// block is the package-internal accessor blockEdge/Isolate logic uses.
func (g *DependenceGraph) block(id int64) *Block { return g.blocks[id] }

// Block looks up a block by id (public accessor).
func (g *DependenceGraph) Block(id int64) *Block { return g.blocks[id] }

// NodeFor returns the DGNode id lowered from instr, or 0 if instr hasn't
// been lowered (e.g. it was classified as not dependence-relevant).
func (g *DependenceGraph) NodeFor(instr ssa.Instruction) int64 { return g.nodeOf[instr] }

// BlockFor returns the DGBlock id containing instr, or 0.
func (g *DependenceGraph) BlockFor(instr ssa.Instruction) int64 { return g.blockOf[instr] }

// Blocks returns every block id in ascending order.
func (g *DependenceGraph) Blocks() []int64 {
	ids := make([]int64, 0, len(g.blocks))
	for id := range g.blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Nodes returns every node id in ascending order.
func (g *DependenceGraph) Nodes() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RemoveBlock isolates b (detaching every edge) and destroys it. If b was
// the entry block, Entry is reset to 0 (spec.md §3.2).
func (g *DependenceGraph) RemoveBlock(id int64) {
	b := g.blocks[id]
	if b == nil {
		return
	}
	b.Isolate()
	if g.Entry == id {
		g.Entry = 0
	}
	delete(g.blocks, id)
}

// SystemDependenceGraph owns all per-procedure graphs, keyed by function
// identity, plus a designated entry procedure (spec.md §3.2).
type SystemDependenceGraph struct {
	procs map[string]*DependenceGraph
	Entry *DependenceGraph
}

// NewSystemDependenceGraph creates an empty SDG.
func NewSystemDependenceGraph() *SystemDependenceGraph {
	return &SystemDependenceGraph{procs: map[string]*DependenceGraph{}}
}

// EnsureProc returns the existing DependenceGraph for fn, or creates one.
// Registering before the body is built lets recursive call graphs
// terminate (mirrors pointer.Graph.EnsureSubgraph, spec.md §4.1).
func (s *SystemDependenceGraph) EnsureProc(fn *ssa.Function) (g *DependenceGraph, created bool) {
	key := fn.String()
	if g, ok := s.procs[key]; ok {
		return g, false
	}
	g = newDependenceGraph(fn)
	s.procs[key] = g
	return g, true
}

// Proc looks up the per-procedure graph for a function by its SSA string
// identity, or nil.
func (s *SystemDependenceGraph) Proc(fnKey string) *DependenceGraph { return s.procs[fnKey] }

// RemoveProc drops the procedure graph keyed by fnKey, e.g. once the
// slicer's unused-procedure sweep decides it is no longer reachable.
func (s *SystemDependenceGraph) RemoveProc(fnKey string) { delete(s.procs, fnKey) }

// Procs returns every procedure graph, sorted by function identity for
// deterministic iteration (spec.md §5).
func (s *SystemDependenceGraph) Procs() []*DependenceGraph {
	keys := make([]string, 0, len(s.procs))
	for k := range s.procs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*DependenceGraph, len(keys))
	for i, k := range keys {
		out[i] = s.procs[k]
	}
	return out
}

// SetEntry designates the entry procedure by function name, returning an
// error implementing the MissingEntry error-taxonomy case (spec.md §7) if
// no procedure of that name exists.
func (s *SystemDependenceGraph) SetEntry(name string) error {
	for _, g := range s.Procs() {
		if g.Fn.Name() == name {
			s.Entry = g
			return nil
		}
	}
	return fmt.Errorf("MissingEntry: no function named %q", name)
}
