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

package ir

import (
	"go/token"
	"go/types"

	"github.com/argslice/go-slicer/domtree"
	"golang.org/x/tools/go/ssa"
)

// Op is the opcode classification spec.md §6.1 asks the IR Adapter to
// produce for every instruction, so the pointer graph builder and the
// dependence engines don't need to know about Go SSA's actual value
// hierarchy.
type Op int

const (
	OpUnknown Op = iota
	OpAlloc
	OpLoad
	OpStore
	OpGEP
	OpMemcpy
	OpPhi
	OpCast
	OpCall
	OpReturn
	OpBranch
	OpSwitch
	OpCmp
	OpArithmetic
	OpFork // go statement: spawns a concurrent goroutine (PGNode kind FORK)
	OpJoin // deferred call resolved at function exit, treated as a join point
)

func (o Op) String() string {
	switch o {
	case OpAlloc:
		return "alloc"
	case OpLoad:
		return "load"
	case OpStore:
		return "store"
	case OpGEP:
		return "gep"
	case OpMemcpy:
		return "memcpy"
	case OpPhi:
		return "phi"
	case OpCast:
		return "cast"
	case OpCall:
		return "call"
	case OpReturn:
		return "return"
	case OpBranch:
		return "branch"
	case OpSwitch:
		return "switch"
	case OpCmp:
		return "cmp"
	case OpArithmetic:
		return "arithmetic"
	case OpFork:
		return "fork"
	case OpJoin:
		return "join"
	default:
		return "unknown"
	}
}

// Classify maps a Go SSA instruction onto the opcode vocabulary the pointer
// and sdg packages consume. Where Go SSA doesn't distinguish something the
// spec does (e.g. gep vs. value-typed field access), the closer of the two
// categories is used and noted below.
func Classify(instr ssa.Instruction) Op {
	switch v := instr.(type) {
	case *ssa.Alloc:
		return OpAlloc
	case *ssa.UnOp:
		if v.Op == token.MUL {
			return OpLoad // *p, i.e. a pointer dereference
		}
		return OpArithmetic // ^x, <-ch, !x etc.
	case *ssa.Store:
		return OpStore
	case *ssa.FieldAddr, *ssa.IndexAddr:
		return OpGEP
	case *ssa.Field, *ssa.Index:
		// Value-typed field/element access: no address is materialized, but
		// it is still positional aggregate navigation, so PG treats it like
		// GEP for points-to propagation purposes.
		return OpGEP
	case *ssa.Phi:
		return OpPhi
	case *ssa.ChangeType, *ssa.Convert, *ssa.ChangeInterface, *ssa.MakeInterface, *ssa.Slice, *ssa.SliceToArrayPointer, *ssa.TypeAssert:
		return OpCast
	case *ssa.Call:
		if isMemcpyLike(v.Call) {
			return OpMemcpy
		}
		return OpCall
	case *ssa.Go:
		return OpFork
	case *ssa.Defer:
		return OpJoin
	case *ssa.Return:
		return OpReturn
	case *ssa.If:
		return OpBranch
	case *ssa.Jump:
		return OpBranch
	case *ssa.BinOp:
		switch v.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			return OpCmp
		default:
			return OpArithmetic
		}
	case *ssa.MakeClosure, *ssa.MakeChan, *ssa.MakeMap, *ssa.MakeSlice:
		return OpAlloc // dynamic allocation: DYN_ALLOC in pointer graph terms
	default:
		return OpUnknown
	}
}

// isMemcpyLike reports whether a call is to the builtin copy(), which the
// pointer graph models as a MEMCPY node (bulk points-to propagation)
// instead of an ordinary call. No other callee is treated this way.
func isMemcpyLike(call ssa.CallCommon) bool {
	if b, ok := call.Value.(*ssa.Builtin); ok {
		return b.Name() == "copy"
	}
	return false
}

// IsDynAlloc reports whether instr is a dynamic (heap, not stack-frame)
// allocation: closures, channels, maps and slices created at runtime,
// distinguished from a plain ssa.Alloc by whether it escapes to heap.
func IsDynAlloc(instr ssa.Instruction) bool {
	switch v := instr.(type) {
	case *ssa.Alloc:
		return v.Heap
	case *ssa.MakeClosure, *ssa.MakeChan, *ssa.MakeMap, *ssa.MakeSlice:
		return true
	}
	return false
}

// Operands returns the operand values read by instr, in Go SSA's own
// operand order (stable, since ssa.Instruction.Operands appends in
// declaration order of the struct fields).
func Operands(instr ssa.Instruction) []ssa.Value {
	var rands [10]*ssa.Value
	ops := instr.Operands(rands[:0])
	out := make([]ssa.Value, 0, len(ops))
	for _, p := range ops {
		if p == nil || *p == nil {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// TypeContainsPointer reports whether t transitively contains a pointer,
// interface, map, channel, slice, or function value: anything the pointer
// graph builder must track as a potential aliasing carrier. This is the
// "type-contains-pointer" query of spec.md §6.1.
func TypeContainsPointer(t types.Type) bool {
	return typeContainsPointer(t, map[types.Type]bool{})
}

func typeContainsPointer(t types.Type, seen map[types.Type]bool) bool {
	if t == nil || seen[t] {
		return false
	}
	seen[t] = true
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Map, *types.Chan, *types.Signature:
		return true
	case *types.Slice:
		return true // slice headers carry a data pointer regardless of elem type
	case *types.Array:
		return typeContainsPointer(u.Elem(), seen)
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if typeContainsPointer(u.Field(i).Type(), seen) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// TypeSize approximates the in-memory size of t in machine words on a
// 64-bit target, used only to decide whether a GEP offset can be resolved
// to a constant field index (§3.2 "Offset" precision) or must be treated
// as UNKNOWN. This is not a real ABI layout: it is precise enough for the
// slicer's offset arithmetic, which only needs relative ordering of
// fields, not byte-accurate sizes.
func TypeSize(t types.Type) int64 {
	return typeSize(t.Underlying())
}

func typeSize(t types.Type) int64 {
	switch u := t.(type) {
	case *types.Basic:
		return 1
	case *types.Pointer, *types.Chan, *types.Map, *types.Signature:
		return 1
	case *types.Interface:
		return 2 // itab + data word
	case *types.Slice:
		return 3 // ptr, len, cap
	case *types.Array:
		return u.Len() * typeSize(u.Elem().Underlying())
	case *types.Struct:
		var n int64
		for i := 0; i < u.NumFields(); i++ {
			n += typeSize(u.Field(i).Type().Underlying())
		}
		return n
	default:
		return 1
	}
}

// FieldOffset returns the ordinal offset of a struct field access performed
// by a FieldAddr/Field instruction, used by the pointer graph builder to
// build field-sensitive Pointer{target, offset} values (§3.2).
func FieldOffset(structType types.Type, field int) int64 {
	st, ok := structType.Underlying().(*types.Struct)
	if !ok {
		return OffsetUnknown
	}
	var off int64
	for i := 0; i < field && i < st.NumFields(); i++ {
		off += typeSize(st.Field(i).Type().Underlying())
	}
	return off
}

// OffsetUnknown is the sentinel Pointer.Offset value used whenever a GEP's
// index cannot be resolved to a constant (dynamic array index, unresolved
// interface layout, etc). See spec.md §3.2.
const OffsetUnknown = int64(-1)

// blockGraph adapts a *ssa.Function's basic blocks to domtree.Graph, using
// the block's Index as its dense id and Index+1 as the domtree node id (so
// that id 0 stays reserved, matching domtree's "0 means none" sentinel).
type blockGraph struct {
	fn *ssa.Function
}

func (g blockGraph) Root() int64    { return int64(g.fn.Blocks[0].Index) + 1 }
func (g blockGraph) Nodes() []int64 {
	ids := make([]int64, len(g.fn.Blocks))
	for i, b := range g.fn.Blocks {
		ids[i] = int64(b.Index) + 1
	}
	return ids
}
func (g blockGraph) Preds(id int64) []int64 { return blockIDs(g.fn.Blocks[id-1].Preds) }
func (g blockGraph) Succs(id int64) []int64 { return blockIDs(g.fn.Blocks[id-1].Succs) }

func blockIDs(blocks []*ssa.BasicBlock) []int64 {
	ids := make([]int64, len(blocks))
	for i, b := range blocks {
		ids[i] = int64(b.Index) + 1
	}
	return ids
}

// DomTree computes the dominator tree of fn's control-flow graph, used by
// the pointer graph builder for its BFS visiting order (spec.md §4.1).
// Block ids in the returned tree are ssa.BasicBlock.Index+1.
func DomTree(fn *ssa.Function) *domtree.Tree {
	return domtree.Compute(blockGraph{fn: fn})
}

// PostDomTree computes the post-dominator tree of fn's control-flow graph,
// rooted at the block whose Index is exitBlockIndex. No synthetic exit is
// added: if fn has several exit blocks, the others are not joined to it,
// and a block that cannot reach the chosen exit has no post-dominator in
// the result.
func PostDomTree(fn *ssa.Function, exitBlockIndex int) *domtree.Tree {
	g := blockGraph{fn: fn}
	rev := domtree.Reversed{
		Inner:    g,
		ExitNode: int64(exitBlockIndex) + 1,
		AllNodes: g.Nodes(),
	}
	return domtree.Compute(rev)
}

// DomBFSOrder returns fn's basic blocks in dominator-tree breadth-first
// order, the traversal order spec.md §4.1 and §6.1 require for pointer
// graph construction.
func DomBFSOrder(fn *ssa.Function) []*ssa.BasicBlock {
	tree := DomTree(fn)
	order := tree.BFS()
	out := make([]*ssa.BasicBlock, 0, len(order))
	for _, id := range order {
		out = append(out, fn.Blocks[id-1])
	}
	return out
}
