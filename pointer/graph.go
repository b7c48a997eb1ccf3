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

// Package pointer implements the Pointer Graph: a field-sensitive
// points-to analysis over the SSA IR (spec.md §4.1). The analysis is
// flow-insensitive: stored values live in one memory map keyed by
// (object, offset) for the whole program, with no per-program-point state
// and no strong updates.
//
// The graph is an arena of Nodes indexed by dense ids (§9 design note:
// "model every graph as an arena of nodes indexed by dense ids"); edges
// between nodes are represented as id sets on each node so removal and
// mirror-invariant checking stay cheap.
package pointer

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Kind is the PGNode kind vocabulary of spec.md §4.1.
type Kind int

const (
	KindInvalid Kind = iota
	KindAlloc
	KindDynAlloc
	KindLoad
	KindStore
	KindGEP
	KindMemcpy
	KindCast
	KindPhi
	KindConstant
	KindFunction
	KindCall
	KindCallFuncPtr
	KindCallReturn
	KindEntry
	KindReturn
	KindFork
	KindJoin
	KindInvalidate
	KindFree
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindAlloc:
		return "ALLOC"
	case KindDynAlloc:
		return "DYN_ALLOC"
	case KindLoad:
		return "LOAD"
	case KindStore:
		return "STORE"
	case KindGEP:
		return "GEP"
	case KindMemcpy:
		return "MEMCPY"
	case KindCast:
		return "CAST"
	case KindPhi:
		return "PHI"
	case KindConstant:
		return "CONSTANT"
	case KindFunction:
		return "FUNCTION"
	case KindCall:
		return "CALL"
	case KindCallFuncPtr:
		return "CALL_FUNCPTR"
	case KindCallReturn:
		return "CALL_RETURN"
	case KindEntry:
		return "ENTRY"
	case KindReturn:
		return "RETURN"
	case KindFork:
		return "FORK"
	case KindJoin:
		return "JOIN"
	case KindInvalidate:
		return "INVALIDATE"
	case KindFree:
		return "FREE"
	case KindUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// OffsetUnknown is the sentinel Offset value meaning "cannot be determined
// statically" (spec.md §3.1).
const OffsetUnknown = int64(-1)

// Pointer is a (target, offset) pair, an element of a points-to set.
type Pointer struct {
	Target int64 // node id of the abstract memory object
	Offset int64 // OffsetUnknown if not statically known
}

func (p Pointer) String() string {
	if p.Offset == OffsetUnknown {
		return fmt.Sprintf("(#%d,?)", p.Target)
	}
	return fmt.Sprintf("(#%d,%d)", p.Target, p.Offset)
}

// PointsToSet is a set of Pointers, keyed for cheap membership tests. Its
// iteration order is not observable by clients (spec.md §5): callers that
// need deterministic output must sort via Sorted().
type PointsToSet map[Pointer]struct{}

// Add inserts p, returning true if the set grew (used to detect monotone
// fixed-point progress, spec.md §8 "Monotone fixed-point").
func (s PointsToSet) Add(p Pointer) bool {
	if _, ok := s[p]; ok {
		return false
	}
	s[p] = struct{}{}
	return true
}

// Union adds every element of other to s, returning true if s grew.
func (s PointsToSet) Union(other PointsToSet) bool {
	grew := false
	for p := range other {
		if s.Add(p) {
			grew = true
		}
	}
	return grew
}

// Sorted returns the set's elements in a deterministic order.
func (s PointsToSet) Sorted() []Pointer {
	out := maps.Keys(s)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// idSet is a small ordered-on-demand set of node ids, used for the
// operand/user/successor/predecessor edges of a Node.
type idSet map[int64]struct{}

func (s idSet) add(id int64)      { s[id] = struct{}{} }
func (s idSet) remove(id int64)   { delete(s, id) }
func (s idSet) has(id int64) bool { _, ok := s[id]; return ok }
func (s idSet) empty() bool       { return len(s) == 0 }
func (s idSet) sorted() []int64 {
	out := maps.Keys(s)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Node is a PGNode (spec.md §3.1): a stable-id abstract location or
// operation, its operand/user back-references, its CFG neighbours within
// the pointer graph, and its accumulated points-to set.
type Node struct {
	ID      int64
	Kind    Kind
	Subgraph *Subgraph // owning procedure, nil for the two sentinels

	// Offset is meaningful for KindGEP (constant part of the pointer
	// arithmetic) and KindConstant (offset into the constant's base).
	Offset int64

	// ZeroInitialized marks an ALLOC/DYN_ALLOC that was fully zeroed by a
	// memset-to-zero pattern before first use (§4.1 "Construction").
	ZeroInitialized bool

	operands     idSet
	users        idSet
	successors   idSet
	predecessors idSet

	PointsTo PointsToSet

	// CallTargets holds, for a call node with a static callee, the ENTRY
	// node id of the spliced-in callee subgraph, and for a CALL_FUNCPTR
	// node the FUNCTION node ids its function operand may point to
	// (possibly several).
	CallTargets idSet

	// pairedCallReturn links a CALL to its CALL_RETURN (§4.1).
	pairedCallReturn int64
}

// Operands returns n's operand node ids in ascending order.
func (n *Node) Operands() []int64 { return n.operands.sorted() }

// Users returns the node ids that reference n as an operand.
func (n *Node) Users() []int64 { return n.users.sorted() }

// Successors returns n's PG-internal CFG successors.
func (n *Node) Successors() []int64 { return n.successors.sorted() }

// Predecessors returns n's PG-internal CFG predecessors.
func (n *Node) Predecessors() []int64 { return n.predecessors.sorted() }

// Isolated reports whether n has no operand, user, successor or
// predecessor edges left, the precondition for removal (spec.md §3.1).
func (n *Node) Isolated() bool {
	return n.operands.empty() && n.users.empty() && n.successors.empty() && n.predecessors.empty()
}

// Subgraph is a PGSubgraph: the pointer graph of one procedure (§3.1).
type Subgraph struct {
	Root        int64 // ENTRY node id
	Ret         int64 // unified RETURN node id, 0 if the function never returns
	Vararg      int64 // vararg sink node id, 0 if not variadic
	ReturnNodes []int64
	FuncName    string
}

// Graph is the PointerGraph: owns every Node and Subgraph, plus the two
// sentinel nodes and the call graph (spec.md §3.1).
type Graph struct {
	nodes     map[int64]*Node
	nextID    int64
	subgraphs map[string]*Subgraph // keyed by function identity (name)

	// Nullptr and UnknownMemory are the two sentinel nodes, held as fields
	// of the Graph instance rather than package globals so multiple graphs
	// remain independently testable (§9 design note).
	Nullptr      int64
	UnknownMemory int64

	// CallGraph maps a caller ENTRY node id to the set of callee ENTRY
	// node ids reachable from a direct call in that procedure.
	CallGraph map[int64]idSet

	// memory models STORE effects, keyed by (allocation-node, offset) for
	// field sensitivity (spec.md §4.1 "Memory objects are keyed by
	// (allocation-node, offset)"). Populated lazily by Analysis.
	memory map[Pointer]PointsToSet
}

// NewGraph allocates an empty PointerGraph with its two sentinels wired
// per spec.md §3.1: NULLPTR.points_to = {(NULLPTR,0)}, UNKNOWN_MEMORY
// .points_to = {(UNKNOWN_MEMORY, UNKNOWN)}.
func NewGraph() *Graph {
	g := &Graph{
		nodes:     map[int64]*Node{},
		subgraphs: map[string]*Subgraph{},
		CallGraph: map[int64]idSet{},
	}
	g.Nullptr = g.newNode(nil, KindConstant, OffsetUnknown)
	g.UnknownMemory = g.newNode(nil, KindUnknown, OffsetUnknown)
	g.nodes[g.Nullptr].PointsTo.Add(Pointer{Target: g.Nullptr, Offset: 0})
	g.nodes[g.UnknownMemory].PointsTo.Add(Pointer{Target: g.UnknownMemory, Offset: OffsetUnknown})
	return g
}

// newNode allocates a fresh Node with the next dense id (id 0 is reserved,
// so the first allocated node gets id 1, per spec.md §3.1).
func (g *Graph) newNode(sg *Subgraph, kind Kind, offset int64) int64 {
	g.nextID++
	id := g.nextID
	g.nodes[id] = &Node{
		ID:           id,
		Kind:         kind,
		Subgraph:     sg,
		Offset:       offset,
		operands:     idSet{},
		users:        idSet{},
		successors:   idSet{},
		predecessors: idSet{},
		PointsTo:     PointsToSet{},
		CallTargets:  idSet{},
	}
	return id
}

// NewNode is the public entry point builders use to allocate a node of any
// kind within sg. Per §9's "typed constructors" note, callers should
// prefer the per-kind helpers below over calling this directly.
func (g *Graph) NewNode(sg *Subgraph, kind Kind) int64 { return g.newNode(sg, kind, 0) }

// NewGEP allocates a GEP(base, off) node and wires base as its operand.
func (g *Graph) NewGEP(sg *Subgraph, base int64, off int64) int64 {
	id := g.newNode(sg, KindGEP, off)
	g.AddOperand(id, base)
	return id
}

// NewConstant allocates a CONSTANT(base, off) node.
func (g *Graph) NewConstant(sg *Subgraph, base int64, off int64) int64 {
	id := g.newNode(sg, KindConstant, off)
	g.nodes[id].PointsTo.Add(Pointer{Target: base, Offset: off})
	return id
}

// Node returns the node with the given id, or nil if it doesn't exist.
func (g *Graph) Node(id int64) *Node { return g.nodes[id] }

// Nodes returns every node id in the graph, in ascending order.
func (g *Graph) Nodes() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Subgraph looks up the PGSubgraph for a function by name.
func (g *Graph) Subgraph(fn string) *Subgraph { return g.subgraphs[fn] }

// EnsureSubgraph returns the existing subgraph for fn, or registers a new,
// empty one. Registering before building the body is what makes recursive
// and mutually-recursive call graphs terminate during construction
// (spec.md §4.1 "to avoid infinite recursion on cyclic call graphs").
func (g *Graph) EnsureSubgraph(fn string) (sg *Subgraph, created bool) {
	if sg, ok := g.subgraphs[fn]; ok {
		return sg, false
	}
	sg = &Subgraph{FuncName: fn}
	g.subgraphs[fn] = sg
	return sg, true
}

// AddOperand records that node `use` reads node `def`, mirroring the
// reference with a `users` back-edge on `def` (spec.md §3.1, §8 "PG
// consistency").
func (g *Graph) AddOperand(use, def int64) {
	g.nodes[use].operands.add(def)
	g.nodes[def].users.add(use)
}

// RemoveOperand undoes AddOperand.
func (g *Graph) RemoveOperand(use, def int64) {
	g.nodes[use].operands.remove(def)
	g.nodes[def].users.remove(use)
}

// AddEdge adds a PG-internal CFG edge from -> to, mirrored as a
// predecessor edge on `to`.
func (g *Graph) AddEdge(from, to int64) {
	g.nodes[from].successors.add(to)
	g.nodes[to].predecessors.add(from)
}

// LinkCall pairs a CALL (or CALL_FUNCPTR) node with its CALL_RETURN node.
func (g *Graph) LinkCall(call, callReturn int64) {
	g.nodes[call].pairedCallReturn = callReturn
}

// CallReturn returns the CALL_RETURN paired with a CALL node, or 0.
func (g *Graph) CallReturn(call int64) int64 { return g.nodes[call].pairedCallReturn }

// AddCallEdge records call in the process-wide call graph from caller's
// ENTRY node to callee's ENTRY node (spec.md §3.1 "process-wide call
// graph mapping caller-entry to callee-entry").
func (g *Graph) AddCallEdge(callerEntry, calleeEntry int64) {
	if g.CallGraph[callerEntry] == nil {
		g.CallGraph[callerEntry] = idSet{}
	}
	g.CallGraph[callerEntry].add(calleeEntry)
}

// Isolate detaches every edge incident to id (§3.1 "removal of a node
// requires operands = users = successors = predecessors = ∅"). It is the
// PG analogue of DGBlock.isolate (§3.2), applied at node granularity.
func (g *Graph) Isolate(id int64) {
	n := g.nodes[id]
	for _, o := range n.operands.sorted() {
		g.RemoveOperand(id, o)
	}
	for _, u := range n.users.sorted() {
		g.RemoveOperand(u, id)
	}
	for _, s := range n.successors.sorted() {
		g.nodes[s].predecessors.remove(id)
	}
	for _, p := range n.predecessors.sorted() {
		g.nodes[p].successors.remove(id)
	}
	n.successors = idSet{}
	n.predecessors = idSet{}
}

// CheckConsistency validates the mirror invariants of spec.md §8 ("PG
// consistency": every operand/user pair is mutual). It is meant to run
// under a debug build or in tests, per §9's "assertions as contracts"
// note.
func (g *Graph) CheckConsistency() error {
	for id, n := range g.nodes {
		for o := range n.operands {
			if !g.nodes[o].users.has(id) {
				return fmt.Errorf("node %d has operand %d but %d has no matching user back-reference", id, o, o)
			}
		}
		for u := range n.users {
			if !g.nodes[u].operands.has(id) {
				return fmt.Errorf("node %d has user %d but %d has no matching operand", id, u, u)
			}
		}
		for s := range n.successors {
			if !g.nodes[s].predecessors.has(id) {
				return fmt.Errorf("node %d has successor %d but %d has no matching predecessor", id, s, s)
			}
		}
	}
	if !g.nodes[g.Nullptr].PointsTo.Sorted()[0].equal(Pointer{Target: g.Nullptr, Offset: 0}) {
		return fmt.Errorf("NULLPTR sentinel points-to set corrupted")
	}
	return nil
}

func (p Pointer) equal(o Pointer) bool { return p == o }
