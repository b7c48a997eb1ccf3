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

// Package sdg implements the System Dependence Graph: per-procedure
// dependence graphs of basic blocks and instructions (spec.md §3.2, §4.3),
// the post-dominator/PDF control-dependence engine (§4.2, §4.5), the
// data-dependence engine (§4.4), the interprocedural linker (§4.6) and the
// mark-and-sweep slicer that consumes it (§4.7, package slicer).
package sdg

import (
	"sort"

	"golang.org/x/tools/go/ssa"
)

// NodeVariant is the DGNode variant tag (spec.md §3.2).
type NodeVariant int

const (
	VariantInstruction NodeVariant = iota
	VariantCall
	VariantArgument
)

func (v NodeVariant) String() string {
	switch v {
	case VariantInstruction:
		return "Instruction"
	case VariantCall:
		return "Call"
	case VariantArgument:
		return "Argument"
	default:
		return "?"
	}
}

// Node is a DGNode: a stable-id dependence-graph node with a back-pointer
// to its owning DependenceGraph, belonging to exactly one Block.
type Node struct {
	ID       int64
	Variant  NodeVariant
	Graph    *DependenceGraph
	Block    int64 // owning DGBlock id

	Instr ssa.Instruction // nil for a pure Argument node

	// Value is the SSA value a VariantArgument node stands for: the
	// ssa.Parameter for a formal (nil for the vararg sink), or the passed
	// expression for an actual. Used by the data-dependence engine to find what an
	// argument node "uses" (spec.md §4.4).
	Value ssa.Value

	// ActualParams holds, for a VariantCall node, the node ids of its
	// actual-parameter Argument nodes, in call-argument order.
	ActualParams []int64

	// Callees holds the callee DependenceGraphs the Linker resolved: the
	// static callee, or every candidate the pointer analysis found for a
	// function-pointer call (empty when none is known).
	Callees []*DependenceGraph

	// FormalIndex is the 0-based parameter position for a VariantArgument
	// node belonging to a FormalParams container; -1 otherwise.
	FormalIndex int

	// dataDeps / revDataDeps are node-level RAW edges from the
	// data-dependence engine (§4.4): d in n.dataDeps means n's value/use
	// depends on the definition at d.
	dataDeps    idSet
	revDataDeps idSet

	// SliceID is 0 (not in any slice) or the id of the most recent slicing
	// pass that marked this node (spec.md §3.3).
	SliceID int
}

func newNode(g *DependenceGraph, id int64, variant NodeVariant, block int64, instr ssa.Instruction) *Node {
	return &Node{
		ID:             id,
		Variant:        variant,
		Graph:          g,
		Block:          block,
		Instr:          instr,
		FormalIndex: -1,
		dataDeps:    idSet{},
		revDataDeps: idSet{},
	}
}

// ControlDeps returns the block ids n's owning block is control-dependent
// on. Control dependence is tracked at block granularity (spec.md §3.2:
// the DGBlock carries the controlDeps/revControlDeps sets); every node in
// the block shares its block's control dependence.
func (n *Node) ControlDeps() []int64 { return n.Graph.block(n.Block).ControlDeps() }

// RevControlDeps returns the block ids control-dependent on n's block.
func (n *Node) RevControlDeps() []int64 { return n.Graph.block(n.Block).RevControlDeps() }

// DataDeps returns the node ids n's value/use depends on, ascending.
func (n *Node) DataDeps() []int64 { return n.dataDeps.sorted() }

// RevDataDeps returns the node ids whose value/use depends on n, ascending.
func (n *Node) RevDataDeps() []int64 { return n.revDataDeps.sorted() }

// idSet is a small int64 set, mirroring pointer.idSet; sdg keeps its own
// copy since the two packages must not share mutable internal state.
type idSet map[int64]struct{}

func (s idSet) add(id int64)    { s[id] = struct{}{} }
func (s idSet) remove(id int64) { delete(s, id) }
func (s idSet) has(id int64) bool { _, ok := s[id]; return ok }
func (s idSet) sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
