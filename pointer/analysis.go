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

import "github.com/argslice/go-slicer/internal/logging"

// Analysis runs the points-to fixed-point over a Graph built by Builder
// (spec.md §4.1 "Fixed-point"): repeated sweeps over every node in
// ascending id order, updating points_to sets monotonically, terminating
// after a sweep in which nothing grows.
type Analysis struct {
	g   *Graph
	log *logging.Group

	// Iterations counts full sweeps over the graph's nodes.
	Iterations int
}

// NewAnalysis wraps g for fixed-point propagation.
func NewAnalysis(g *Graph, log *logging.Group) *Analysis {
	return &Analysis{g: g, log: log}
}

// Run iterates the worklist to a fixed point, then resolves any
// function-pointer calls newly discovered by the points-to sets, and
// repeats until nothing changes on either front (spec.md §4.1
// "Interprocedural linking" / "Function-pointer calls are resolved after
// each fixed-point round").
func (a *Analysis) Run() {
	for {
		a.propagate()
		if !a.resolveFuncPtrCalls() {
			return
		}
	}
}

// propagate runs the monotone worklist to a fixed point over the current
// graph shape (no new nodes/edges). Each round visits every node in
// ascending id order; a round that grows nothing ends the pass. A plain per-node
// successor/user worklist would miss STORE→LOAD propagation through the
// abstract memory model (§4.1's memory objects aren't graph edges), so a
// full sweep is used instead of a narrower queue — still monotone, still
// terminating, since points-to sets only ever grow and are bounded by the
// finite node count.
func (a *Analysis) propagate() {
	nodes := a.g.Nodes()
	for {
		a.Iterations++
		changed := false
		for _, id := range nodes {
			if a.transfer(id) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// transfer applies the node's transfer function (spec.md §4.1 kind table)
// and reports whether its points-to set grew.
func (a *Analysis) transfer(id int64) bool {
	n := a.g.nodes[id]
	switch n.Kind {
	case KindConstant, KindFunction:
		return false // fixed at construction time

	case KindCast, KindPhi:
		grew := false
		for _, opID := range n.operands.sorted() {
			if n.PointsTo.Union(a.g.nodes[opID].PointsTo) {
				grew = true
			}
		}
		return grew

	case KindGEP:
		grew := false
		base := a.operandAt(n, 0)
		for _, p := range base.PointsTo.Sorted() {
			off := p.Offset
			if off != OffsetUnknown && n.Offset != OffsetUnknown {
				off = off + n.Offset
			} else {
				off = OffsetUnknown
			}
			if n.PointsTo.Add(Pointer{Target: p.Target, Offset: off}) {
				grew = true
			}
		}
		return grew

	case KindLoad:
		grew := false
		base := a.operandAt(n, 0)
		for _, p := range base.PointsTo.Sorted() {
			for _, loaded := range a.memoryAt(p) {
				if n.PointsTo.Add(loaded) {
					grew = true
				}
			}
		}
		return grew

	case KindStore:
		// STORE has no points-to set of its own; it mutates memory, which
		// this analysis models by keying a virtual "memory(target,offset)"
		// node lazily — see memoryAt/storeInto.
		addr := a.operandAt(n, 0)
		val := a.operandAt(n, 1)
		grew := false
		for _, p := range addr.PointsTo.Sorted() {
			if a.storeInto(p, val.PointsTo) {
				grew = true
			}
		}
		return grew

	case KindMemcpy:
		// operands[0] = dst, operands[1] = src, operands[2] = len (best
		// effort: Go's builtin copy(dst, src) has no explicit length
		// operand beyond the slice values themselves).
		if len(n.operands) < 2 {
			return false
		}
		ops := n.operands.sorted()
		dst, src := a.g.nodes[ops[0]], a.g.nodes[ops[1]]
		grew := false
		for _, dp := range dst.PointsTo.Sorted() {
			for _, sp := range src.PointsTo.Sorted() {
				for _, loaded := range a.memoryAt(sp) {
					if a.storeInto(dp, setOf(loaded)) {
						grew = true
					}
				}
			}
		}
		return grew

	case KindCallFuncPtr:
		// The callee function value's points-to set is tracked on its own
		// node (an operand of n); resolution into CallTargets happens in
		// resolveFuncPtrCalls, not here.
		return false

	case KindEntry, KindReturn, KindCall, KindCallReturn, KindFork, KindJoin:
		return false // pure control plumbing; no points-to of their own

	case KindUnknown:
		return n.PointsTo.Add(Pointer{Target: a.g.UnknownMemory, Offset: OffsetUnknown})

	case KindAlloc, KindDynAlloc:
		return n.PointsTo.Add(Pointer{Target: id, Offset: 0})

	default:
		return false
	}
}

func (a *Analysis) operandAt(n *Node, i int) *Node {
	ops := n.operands.sorted()
	if i >= len(ops) {
		return a.g.nodes[a.g.UnknownMemory]
	}
	return a.g.nodes[ops[i]]
}

// memory models the contents of abstract locations keyed by
// (allocation-node, offset), giving field sensitivity (spec.md §4.1
// "Memory objects are keyed by (allocation-node, offset)... using UNKNOWN
// as offset collapses to object-wide").
func (a *Analysis) memoryKey(p Pointer) Pointer { return p }

func (a *Analysis) memoryAt(p Pointer) []Pointer {
	if a.g.memory == nil {
		return nil
	}
	set, ok := a.g.memory[a.memoryKey(p)]
	if !ok {
		if p.Offset != OffsetUnknown {
			// fall back to the object-wide entry, conservative but sound
			if wide, ok := a.g.memory[Pointer{Target: p.Target, Offset: OffsetUnknown}]; ok {
				return wide.Sorted()
			}
		}
		return nil
	}
	return set.Sorted()
}

func (a *Analysis) storeInto(p Pointer, val PointsToSet) bool {
	if a.g.memory == nil {
		a.g.memory = map[Pointer]PointsToSet{}
	}
	key := a.memoryKey(p)
	set, ok := a.g.memory[key]
	if !ok {
		set = PointsToSet{}
		a.g.memory[key] = set
	}
	return set.Union(val)
}

func setOf(p Pointer) PointsToSet {
	s := PointsToSet{}
	s.Add(p)
	return s
}

// resolveFuncPtrCalls records, for every CALL_FUNCPTR node, each FUNCTION
// target in its function operand's points-to set that is not yet in
// CallTargets (spec.md §4.1 "Function-pointer calls are resolved after each
// fixed-point round"). No callee subgraph is built or spliced here. It
// returns true if any CallTargets set grew, meaning propagate must run
// again.
func (a *Analysis) resolveFuncPtrCalls() bool {
	changed := false
	for _, id := range a.g.Nodes() {
		n := a.g.nodes[id]
		if n.Kind != KindCallFuncPtr {
			continue
		}
		ops := n.operands.sorted()
		if len(ops) == 0 {
			continue
		}
		fnOperand := a.g.nodes[ops[0]]
		for _, p := range fnOperand.PointsTo.Sorted() {
			target := a.g.nodes[p.Target]
			if target == nil || target.Kind != KindFunction {
				continue
			}
			if n.CallTargets.has(p.Target) {
				continue
			}
			n.CallTargets.add(p.Target)
			changed = true
			// Link the return path of an already-built subgraph for this
			// candidate to the call's CALL_RETURN node.
			if callReturn := a.g.CallReturn(id); callReturn != 0 {
				for _, sg := range a.g.subgraphs {
					if sg.Root == p.Target && sg.Ret != 0 {
						a.g.AddEdge(sg.Ret, callReturn)
					}
				}
			}
		}
	}
	return changed
}
