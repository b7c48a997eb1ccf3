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

import (
	"fmt"
	"go/types"

	"github.com/argslice/go-slicer/internal/logging"
	"github.com/argslice/go-slicer/ir"
	"golang.org/x/tools/go/ssa"
)

// Builder translates an ir.Module into a Graph: one Subgraph per function,
// visited in dominator-tree BFS order per block (spec.md §4.1
// "Construction"). The builder holds the in-progress id maps; the Graph it
// produces becomes read-mostly once Build returns (§9 "Builder state
// sharing").
type Builder struct {
	g   *Graph
	mod *ir.Module
	log *logging.Group

	// valueNodes maps an ssa.Value to the PG node id that represents it,
	// scoped across the whole module (SSA values are already unique).
	valueNodes map[ssa.Value]int64

	// funcEntry maps a *ssa.Function to its ENTRY node id, used to resolve
	// call targets and to register the subgraph before its body is built.
	funcEntry map[*ssa.Function]int64

	// phiPending records PHI nodes whose operands are added in the second
	// pass, so forward references across blocks resolve (§4.1).
	phiPending []phiFixup

	// functionOf maps a FUNCTION node id back to the *ssa.Function it
	// represents, so the sdg package's interprocedural linker can resolve
	// a function-pointer call's candidates to real procedures.
	functionOf map[int64]*ssa.Function

	// unknownConstants counts UnhandledConstant warnings (§7 error taxonomy).
	unknownConstants int
}

type phiFixup struct {
	node *ssa.Phi
	id   int64
}

// NewBuilder creates a Builder over mod, logging warnings/errors to log.
func NewBuilder(mod *ir.Module, log *logging.Group) *Builder {
	return &Builder{
		g:          NewGraph(),
		mod:        mod,
		log:        log,
		valueNodes: map[ssa.Value]int64{},
		funcEntry:  map[*ssa.Function]int64{},
		functionOf: map[int64]*ssa.Function{},
	}
}

// ValueNode returns the PG node id representing SSA value v, if the
// builder has lowered it. Used by the sdg package's data-dependence engine
// and interprocedural linker to look up an operand's points-to set
// (spec.md §4.4 "Memory via PG").
func (b *Builder) ValueNode(v ssa.Value) (int64, bool) {
	id, ok := b.valueNodes[v]
	return id, ok
}

// FunctionFor returns the *ssa.Function a FUNCTION PG node represents, if
// pgNodeID is such a node.
func (b *Builder) FunctionFor(pgNodeID int64) (*ssa.Function, bool) {
	fn, ok := b.functionOf[pgNodeID]
	return fn, ok
}

// Build lowers every function in the module to pointer-graph nodes and
// returns the resulting Graph. It does not run the fixed-point analysis;
// call NewAnalysis(g, log).Run() (analysis.go) afterwards.
func (b *Builder) Build() (*Graph, error) {
	for _, fn := range b.mod.Functions() {
		if err := b.buildFunction(fn); err != nil {
			return nil, err
		}
	}
	b.resolvePhis()
	return b.g, nil
}

// buildFunction lowers fn's body, registering its subgraph first (so a
// recursive or mutually-recursive call graph terminates, per §4.1).
func (b *Builder) buildFunction(fn *ssa.Function) error {
	sg, created := b.g.EnsureSubgraph(fn.String())
	if !created {
		return nil // already built (e.g. reached earlier via a call edge)
	}
	entry := b.g.newNode(sg, KindEntry, 0)
	sg.Root = entry
	b.funcEntry[fn] = entry

	if fn.Signature.Variadic() {
		sg.Vararg = b.g.newNode(sg, KindUnknown, 0)
	}

	for _, block := range ir.DomBFSOrder(fn) {
		prevCursor := entry
		for _, instr := range block.Instrs {
			id, err := b.lowerInstruction(sg, instr)
			if err != nil {
				return err
			}
			if id == 0 {
				continue // comparisons, unreachable marker, etc: not PG-relevant
			}
			b.g.AddEdge(prevCursor, id)
			prevCursor = id
			if ret, ok := instr.(*ssa.Return); ok {
				_ = ret
				sg.ReturnNodes = append(sg.ReturnNodes, id)
			}
		}
	}

	if len(sg.ReturnNodes) > 0 {
		sg.Ret = b.g.newNode(sg, KindReturn, 0)
		for _, r := range sg.ReturnNodes {
			b.g.AddEdge(r, sg.Ret)
		}
	}
	return nil
}

// lowerInstruction lowers a single SSA instruction to zero or one PGNode,
// returning 0 for instructions with no pointer-graph relevance (branches,
// comparisons whose operands carry no pointer information, etc).
func (b *Builder) lowerInstruction(sg *Subgraph, instr ssa.Instruction) (int64, error) {
	op := ir.Classify(instr)
	val, isValue := instr.(ssa.Value)

	switch op {
	case ir.OpAlloc:
		id := b.g.newNode(sg, KindAlloc, 0)
		if ir.IsDynAlloc(instr) {
			b.g.nodes[id].Kind = KindDynAlloc
		}
		b.bind(val, id)
		return id, nil

	case ir.OpLoad:
		id := b.g.newNode(sg, KindLoad, 0)
		base, err := b.operand(sg, ir.Operands(instr)[0])
		if err != nil {
			return 0, err
		}
		b.g.AddOperand(id, base)
		b.bind(val, id)
		return id, nil

	case ir.OpStore:
		id := b.g.newNode(sg, KindStore, 0)
		store := instr.(*ssa.Store)
		addrID, err := b.operand(sg, store.Addr)
		if err != nil {
			return 0, err
		}
		valID, err := b.operand(sg, store.Val)
		if err != nil {
			return 0, err
		}
		b.g.AddOperand(id, addrID) // operand[0]: destination address
		b.g.AddOperand(id, valID)  // operand[1]: stored value
		return id, nil

	case ir.OpGEP:
		id := b.g.newNode(sg, KindGEP, b.gepOffset(instr))
		base, err := b.operand(sg, ir.Operands(instr)[0])
		if err != nil {
			return 0, err
		}
		b.g.AddOperand(id, base)
		if isValue {
			b.bind(val, id)
		}
		return id, nil

	case ir.OpMemcpy:
		id := b.g.newNode(sg, KindMemcpy, 0)
		call := instr.(*ssa.Call)
		for _, arg := range call.Call.Args {
			argID, err := b.operand(sg, arg)
			if err != nil {
				return 0, err
			}
			b.g.AddOperand(id, argID)
		}
		b.bind(val, id)
		return id, nil

	case ir.OpCast:
		id := b.g.newNode(sg, KindCast, 0)
		for _, operand := range ir.Operands(instr) {
			opID, err := b.operand(sg, operand)
			if err != nil {
				return 0, err
			}
			b.g.AddOperand(id, opID)
		}
		b.bind(val, id)
		return id, nil

	case ir.OpPhi:
		id := b.g.newNode(sg, KindPhi, 0)
		phi := instr.(*ssa.Phi)
		b.phiPending = append(b.phiPending, phiFixup{node: phi, id: id})
		b.bind(val, id)
		return id, nil

	case ir.OpCall:
		return b.lowerCall(sg, instr.(*ssa.Call))

	case ir.OpFork:
		id := b.g.newNode(sg, KindFork, 0)
		g := instr.(*ssa.Go)
		b.linkCallCommon(sg, id, g.Call)
		return id, nil

	case ir.OpJoin:
		id := b.g.newNode(sg, KindJoin, 0)
		d := instr.(*ssa.Defer)
		b.linkCallCommon(sg, id, d.Call)
		return id, nil

	case ir.OpReturn:
		id := b.g.newNode(sg, KindReturn, 0)
		for _, r := range instr.(*ssa.Return).Results {
			opID, err := b.operand(sg, r)
			if err != nil {
				return 0, err
			}
			b.g.AddOperand(id, opID)
		}
		return id, nil

	case ir.OpBranch, ir.OpSwitch, ir.OpCmp, ir.OpArithmetic:
		// Not pointer-graph relevant by themselves; still register constant
		// scalar values so later lookups don't treat them as missing.
		if isValue {
			b.bind(val, b.g.newNode(sg, KindConstant, 0))
		}
		return 0, nil

	default: // ir.OpUnknown: UnhandledInstruction, §7 error taxonomy
		if isValue && ir.TypeContainsPointer(val.Type()) {
			id := b.g.newNode(sg, KindUnknown, 0)
			b.bind(val, id)
			b.log.Warnf("unhandled instruction %s (%T), treated as UNKNOWN", instr, instr)
			return id, nil
		}
		return 0, nil
	}
}

// lowerCall builds the CALL/CALL_FUNCPTR node and, via linkCallCommon, its
// CALL_RETURN and callee wiring (spec.md §4.1 "Interprocedural linking").
// Actual parameters become operands of the call node itself; no edge joins
// an actual to the callee's formal parameter, which is lowered on its own
// as an UNKNOWN node.
func (b *Builder) lowerCall(sg *Subgraph, call *ssa.Call) (int64, error) {
	kind := KindCall
	if call.Call.IsInvoke() || call.Call.StaticCallee() == nil {
		kind = KindCallFuncPtr
	}
	id := b.g.newNode(sg, kind, 0)
	b.linkCallCommon(sg, id, call.Call)
	b.bind(call, id)
	return id, nil
}

// linkCallCommon wires a CALL/CALL_FUNCPTR/FORK/JOIN node's actual
// parameters, splices in the callee subgraph if statically known (lazily,
// registering it before its body is built so recursive call graphs
// terminate), and creates a paired CALL_RETURN node.
func (b *Builder) linkCallCommon(sg *Subgraph, id int64, call ssa.CallCommon) {
	for _, arg := range call.Args {
		argID, err := b.operand(sg, arg)
		if err != nil {
			b.log.Errorf("missing operand while lowering call: %v", err)
			continue
		}
		b.g.AddOperand(id, argID)
	}

	callReturn := b.g.newNode(sg, KindCallReturn, 0)
	b.g.LinkCall(id, callReturn)
	b.g.AddEdge(id, callReturn)

	if callee := call.StaticCallee(); callee != nil {
		if callee.Blocks != nil {
			if err := b.buildFunction(callee); err != nil {
				b.log.Errorf("failed to build callee %s: %v", callee, err)
				return
			}
		}
		entry, ok := b.funcEntry[callee]
		if !ok {
			return // external function: no body to splice in
		}
		b.g.AddCallEdge(sg.Root, entry)
		b.g.nodes[id].CallTargets.add(entry)
		if calleeSg := b.g.Subgraph(callee.String()); calleeSg != nil && calleeSg.Ret != 0 {
			b.g.AddEdge(calleeSg.Ret, callReturn)
		}
	}
	// Function-pointer calls are resolved after the fixed-point analysis
	// rounds (see analysis.go resolveFuncPtrCalls), once the callee node's
	// points_to set is known.
}

// operand resolves an ssa.Value to its PG node id, creating a CONSTANT or
// FUNCTION node on first use for values that aren't instructions (constants,
// globals, function literals, parameters).
func (b *Builder) operand(sg *Subgraph, v ssa.Value) (int64, error) {
	if id, ok := b.valueNodes[v]; ok {
		return id, nil
	}
	switch x := v.(type) {
	case *ssa.Const:
		if x.IsNil() {
			b.bind(v, b.g.Nullptr)
			return b.g.Nullptr, nil
		}
		id := b.g.NewConstant(sg, b.g.UnknownMemory, OffsetUnknown)
		b.unknownConstants++
		b.bind(v, id)
		return id, nil
	case *ssa.Function:
		id := b.g.newNode(sg, KindFunction, 0)
		b.g.nodes[id].PointsTo.Add(Pointer{Target: id, Offset: 0})
		b.bind(v, id)
		b.functionOf[id] = x
		return id, nil
	case *ssa.Global:
		id := b.g.newNode(sg, KindAlloc, 0)
		b.bind(v, id)
		return id, nil
	case *ssa.Parameter, *ssa.FreeVar:
		id := b.g.newNode(sg, KindUnknown, 0)
		b.bind(v, id)
		return id, nil
	case nil:
		return 0, fmt.Errorf("missing operand: nil ssa.Value (MissingOperand)")
	default:
		return 0, fmt.Errorf("missing operand: value %v (%T) used before definition (MissingOperand)", x, x)
	}
}

// bind records the PG node representing v, if v is non-nil.
func (b *Builder) bind(v ssa.Value, id int64) {
	if v == nil {
		return
	}
	b.valueNodes[v] = id
}

// gepOffset resolves the constant field/element offset of a GEP-classified
// instruction, or OffsetUnknown if the index is dynamic (spec.md §3.2).
func (b *Builder) gepOffset(instr ssa.Instruction) int64 {
	switch v := instr.(type) {
	case *ssa.FieldAddr:
		structType := v.X.Type()
		if ptr, ok := structType.Underlying().(*types.Pointer); ok {
			structType = ptr.Elem()
		}
		return ir.FieldOffset(structType, v.Field)
	case *ssa.Field:
		return ir.FieldOffset(v.X.Type(), v.Field)
	case *ssa.IndexAddr, *ssa.Index:
		return OffsetUnknown // dynamic index: field-sensitivity collapses
	default:
		return OffsetUnknown
	}
}

// resolvePhis adds PHI operands in a second pass so that operands defined
// later in dominator-tree BFS order (loop back-edges) still resolve
// (spec.md §4.1 "PHI operands are added in a second pass").
func (b *Builder) resolvePhis() {
	for _, fixup := range b.phiPending {
		for _, edge := range fixup.node.Edges {
			sg := b.g.nodes[fixup.id].Subgraph
			opID, err := b.operand(sg, edge)
			if err != nil {
				b.log.Errorf("missing PHI operand: %v", err)
				continue
			}
			b.g.AddOperand(fixup.id, opID)
		}
	}
}
