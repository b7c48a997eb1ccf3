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
	"github.com/argslice/go-slicer/pointer"
	"golang.org/x/tools/go/ssa"
)

// Linker implements spec.md §4.6: for every call site, wires call->entry
// control dependence, actual->formal data edges, return->call-return
// edges, and (deferred) thread-create/join semantics for goroutines.
type Linker struct {
	ptr  *pointer.Builder
	ptrG *pointer.Graph
	log  *logging.Group
}

// NewLinker creates a Linker consulting the resolved pointer graph for
// function-pointer call targets (spec.md §4.1's CallTargets).
func NewLinker(ptr *pointer.Builder, ptrG *pointer.Graph, log *logging.Group) *Linker {
	return &Linker{ptr: ptr, ptrG: ptrG, log: log}
}

// Run links every call site across every procedure of s.
func (l *Linker) Run(s *SystemDependenceGraph) {
	for _, g := range s.Procs() {
		for _, id := range g.Nodes() {
			n := g.Node(id)
			if n.Variant != VariantCall {
				continue
			}
			l.linkCall(s, g, n)
		}
	}
}

// linkCall wires one call site per spec.md §4.6.
func (l *Linker) linkCall(s *SystemDependenceGraph, caller *DependenceGraph, call *Node) {
	callees := l.resolveCallees(s, call)
	call.Callees = callees
	if len(callees) == 0 {
		return // external function, builtin, or unresolved function pointer
	}

	callerBlock := caller.block(call.Block)

	for _, callee := range callees {
		if callee.Entry == 0 {
			continue
		}
		// "Add c -> entry(P) control edge." Modelled as a control
		// dependence from the callee's entry block on the caller's call
		// block, so a backward slice reaching the call pulls in the
		// callee's body.
		callee.block(callee.Entry).AddControlDependence(callerBlock.ID)

		// "For each actual parameter a_i, add a_i -> formal_i data edge."
		// The formal (callee side) depends on the actual (caller side); the
		// two live in different graphs, so the edge is recorded via each
		// graph's crossDataDeps table rather than a shared id space. Extra
		// actuals beyond the declared formals (a variadic call) all feed
		// the vararg sink.
		for i, actualID := range call.ActualParams {
			formalID := callee.Formals.Vararg
			if i < len(callee.Formals.Params) {
				formalID = callee.Formals.Params[i]
			}
			if formalID == 0 {
				continue
			}
			addCrossDataDep(caller, actualID, callee, formalID)
		}

		// "For each return site r in P and the matching call-return node
		// c', add r -> c'." The call's result (caller side) depends on the
		// callee's return value computation. The callee's RETURN
		// instructions are already VariantInstruction nodes.
		for _, retID := range calleeReturnNodes(callee) {
			addCrossDataDep(callee, retID, caller, call.ID)
		}
	}
}

// calleeReturnNodes returns the DGNode ids of every ssa.Return in callee.
func calleeReturnNodes(g *DependenceGraph) []int64 {
	var out []int64
	for _, id := range g.Nodes() {
		n := g.Node(id)
		if _, ok := n.Instr.(*ssa.Return); ok {
			out = append(out, id)
		}
	}
	return out
}

// resolveCallees returns the callee DependenceGraphs for a call node: the
// single statically-known callee if the call's instruction names one
// directly, or every candidate the pointer analysis resolved for a
// function-pointer call (spec.md §4.1's CallTargets on the paired PG node).
func (l *Linker) resolveCallees(s *SystemDependenceGraph, call *Node) []*DependenceGraph {
	callInstr, ok := call.Instr.(ssa.CallInstruction)
	if !ok {
		return nil
	}
	if callee := callInstr.Common().StaticCallee(); callee != nil {
		if g := s.Proc(callee.String()); g != nil {
			return []*DependenceGraph{g}
		}
		return nil
	}

	// Function-pointer call: the call itself is an ssa.Value, so its PG
	// node (a CALL_FUNCPTR) carries the resolved candidates in CallTargets
	// (populated by pointer.Analysis.resolveFuncPtrCalls). Map each
	// candidate FUNCTION node back to its *ssa.Function via the builder's
	// functionOf table and look up the matching procedure graph.
	if l.ptr == nil || l.ptrG == nil {
		return nil
	}
	callVal, ok := call.Instr.(ssa.Value)
	if !ok {
		l.log.Debugf("function-pointer call %v has no PG-tracked value (goroutine/defer call, not resolved)", call.Instr)
		return nil
	}
	pgID, ok := l.ptr.ValueNode(callVal)
	if !ok {
		return nil
	}
	n := l.ptrG.Node(pgID)
	if n == nil || n.Kind != pointer.KindCallFuncPtr {
		return nil
	}
	var out []*DependenceGraph
	for target := range n.CallTargets {
		fn, ok := l.ptr.FunctionFor(target)
		if !ok {
			continue
		}
		if g := s.Proc(fn.String()); g != nil {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		l.log.Debugf("function-pointer call %v left unresolved (no candidates)", call.Instr)
	}
	return out
}
