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
	"golang.org/x/tools/go/ssa"
)

// Builder lowers an ir.Module's functions into a SystemDependenceGraph:
// one DependenceGraph per function, blocks mirroring IR blocks, one DGNode
// per instruction (spec.md §4.3 "SDG Builder").
type Builder struct {
	mod *ir.Module
	sdg *SystemDependenceGraph
	log *logging.Group
}

// NewBuilder creates a Builder over mod.
func NewBuilder(mod *ir.Module, log *logging.Group) *Builder {
	return &Builder{mod: mod, sdg: NewSystemDependenceGraph(), log: log}
}

// Build lowers every function reachable in the module and returns the
// resulting SystemDependenceGraph. Call Build before running the
// post-dominator/control-dependence and data-dependence engines, which
// operate on the CFG shape this pass produces.
func (b *Builder) Build() *SystemDependenceGraph {
	for _, fn := range b.mod.Functions() {
		b.buildFunction(fn)
	}
	return b.sdg
}

// buildFunction lowers fn's basic blocks and instructions, mirroring the
// IR's CFG shape (spec.md §4.3: "basic blocks are created mirroring IR
// blocks").
func (b *Builder) buildFunction(fn *ssa.Function) *DependenceGraph {
	g, created := b.sdg.EnsureProc(fn)
	if !created {
		return g
	}

	for _, ssaBlock := range fn.Blocks {
		block := g.NewBlock()
		g.ssaBlockID[ssaBlock] = block.ID
	}
	g.Entry = g.ssaBlockID[fn.Blocks[0]]

	b.buildFormals(g, fn)

	for _, ssaBlock := range fn.Blocks {
		block := g.block(g.ssaBlockID[ssaBlock])
		for _, instr := range ssaBlock.Instrs {
			b.lowerInstruction(g, block, instr)
		}
	}

	// Successor edges: switch gets 0..n-1 labels, everything else gets a
	// single unconditional (label 0) or two-way if/else (labels 0,1) edge
	// set, matching Go SSA's own successor ordering (spec.md §4.3
	// "Successor edges carry the branch label").
	for _, ssaBlock := range fn.Blocks {
		block := g.block(g.ssaBlockID[ssaBlock])
		for label, succ := range ssaBlock.Succs {
			block.AddSuccessor(g.ssaBlockID[succ], int64(label))
		}
	}

	return g
}

// buildFormals creates one Argument DGNode per parameter (and, for
// variadic functions, a vararg sink), owned by the procedure's
// Formal-Parameters container (spec.md §3.2).
func (b *Builder) buildFormals(g *DependenceGraph, fn *ssa.Function) {
	entryBlock := g.block(g.ssaBlockID[fn.Blocks[0]])
	for i, p := range fn.Params {
		n := g.NewNode(entryBlock, VariantArgument, nil)
		n.FormalIndex = i
		n.Value = p
		g.Formals.Params = append(g.Formals.Params, n.ID)
	}
	if fn.Signature.Variadic() {
		n := g.NewNode(entryBlock, VariantArgument, nil)
		n.FormalIndex = len(fn.Params)
		g.Formals.Vararg = n.ID
	}
}

// lowerInstruction creates one DGNode for instr, classifying it as
// VariantCall for call-shaped instructions (Call/Go/Defer; a call to the
// builtin copy is classified memcpy and stays VariantInstruction) and
// VariantInstruction otherwise. Pure control-flow instructions (Jump, If,
// Return) are still lowered, since the slicer (and §4.7's
// post-marking sweep) needs a node to mark/sweep per the block they
// belong to, even though their dependence edges come entirely from
// control dependence rather than data dependence.
func (b *Builder) lowerInstruction(g *DependenceGraph, block *Block, instr ssa.Instruction) {
	variant := VariantInstruction
	switch ir.Classify(instr) {
	case ir.OpCall, ir.OpFork, ir.OpJoin:
		variant = VariantCall
	}
	n := g.NewNode(block, variant, instr)

	if variant != VariantCall {
		return
	}
	call, ok := instr.(ssa.CallInstruction)
	if !ok {
		return
	}
	for _, arg := range call.Common().Args {
		argNode := g.NewNode(block, VariantArgument, nil)
		argNode.Value = arg
		n.ActualParams = append(n.ActualParams, argNode.ID)
	}
}
