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
	"fmt"

	"github.com/argslice/go-slicer/ir"
	"github.com/argslice/go-slicer/sdg"
	"golang.org/x/tools/go/ssa"
)

// Target is a resolved criterion: the DGNode it names, together with the
// procedure graph that owns it.
type Target struct {
	Graph *sdg.DependenceGraph
	Node  int64
	Crit  Criterion
}

// Resolver matches Criterion values against the built SystemDependenceGraph,
// using mod's debug info to map source lines to instructions.
type Resolver struct {
	mod *ir.Module
	s   *sdg.SystemDependenceGraph
}

// NewResolver creates a Resolver over an already-built module and SDG.
func NewResolver(mod *ir.Module, s *sdg.SystemDependenceGraph) *Resolver {
	return &Resolver{mod: mod, s: s}
}

// Resolve finds the DGNodes named by every criterion. A criterion matching
// nothing adds no target and is not an error; callers decide whether an
// entirely-empty result set is fatal (Slicer.Slice reports it as
// CriterionMiss).
func (r *Resolver) Resolve(criteria []Criterion) ([]Target, error) {
	var out []Target
	for _, c := range criteria {
		matches, err := r.resolveOne(c)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

func (r *Resolver) resolveOne(c Criterion) ([]Target, error) {
	switch c.Kind {
	case KindReturn:
		return r.resolveReturn()
	case KindPoint:
		return r.resolvePoint(c)
	case KindGlobal:
		return r.resolveGlobal(c)
	case KindCallName, KindCallData:
		return r.resolveCall(c)
	default:
		return nil, fmt.Errorf("unrecognized criterion kind for %q", c.Raw)
	}
}

// resolveReturn returns every RETURN-shaped node of the entry procedure.
func (r *Resolver) resolveReturn() ([]Target, error) {
	if r.s.Entry == nil {
		return nil, fmt.Errorf("MissingEntry: no entry procedure set")
	}
	g := r.s.Entry
	var out []Target
	for _, id := range g.Nodes() {
		if _, ok := g.Node(id).Instr.(*ssa.Return); ok {
			out = append(out, Target{Graph: g, Node: id, Crit: Criterion{Kind: KindReturn}})
		}
	}
	return out, nil
}

// resolvePoint matches "line:variable": an instruction at the given source
// line whose defined or stored-to local is named variable. Go SSA does not
// retain source names for most registers, so the match is heuristic: it
// accepts a *ssa.Store whose address is a named *ssa.Alloc (Comment holds
// the original local's name when built with debug info), or any value
// whose own Name() equals variable.
func (r *Resolver) resolvePoint(c Criterion) ([]Target, error) {
	var out []Target
	for _, fn := range r.mod.Functions() {
		g := r.s.Proc(fn.String())
		if g == nil {
			continue
		}
		for _, block := range fn.Blocks {
			for _, instr := range block.Instrs {
				if r.mod.Position(instr.Pos()).Line != c.Line {
					continue
				}
				if !instructionNames(instr, c.Name) {
					continue
				}
				if id := g.NodeFor(instr); id != 0 {
					out = append(out, Target{Graph: g, Node: id, Crit: c})
				}
			}
		}
	}
	return out, nil
}

// resolveGlobal matches "line:": the module-level *ssa.Global whose name is
// c.Name, resolved to every load/store instruction that references it at
// c.Line (0 meaning "any line").
func (r *Resolver) resolveGlobal(c Criterion) ([]Target, error) {
	var out []Target
	for _, fn := range r.mod.Functions() {
		g := r.s.Proc(fn.String())
		if g == nil {
			continue
		}
		for _, block := range fn.Blocks {
			for _, instr := range block.Instrs {
				if c.Line != 0 && r.mod.Position(instr.Pos()).Line != c.Line {
					continue
				}
				if !referencesGlobal(instr, c.Name) {
					continue
				}
				if id := g.NodeFor(instr); id != 0 {
					out = append(out, Target{Graph: g, Node: id, Crit: c})
				}
			}
		}
	}
	return out, nil
}

// resolveCall matches call sites whose statically-known callee is named
// c.Name, for both the control-form ("name") and data-form ("name()")
// criteria; the two forms mark the same call node, since the call's
// dependence in the SDG already carries both its control effect (the
// callee's body) and its result value.
func (r *Resolver) resolveCall(c Criterion) ([]Target, error) {
	var out []Target
	for _, g := range r.s.Procs() {
		for _, id := range g.Nodes() {
			n := g.Node(id)
			if n.Variant != sdg.VariantCall {
				continue
			}
			callInstr, ok := n.Instr.(ssa.CallInstruction)
			if !ok {
				continue
			}
			if callee := callInstr.Common().StaticCallee(); callee != nil && callee.Name() == c.Name {
				out = append(out, Target{Graph: g, Node: id, Crit: c})
			}
		}
	}
	return out, nil
}

func instructionNames(instr ssa.Instruction, name string) bool {
	if store, ok := instr.(*ssa.Store); ok {
		if alloc, ok := store.Addr.(*ssa.Alloc); ok && alloc.Comment == name {
			return true
		}
	}
	if v, ok := instr.(ssa.Value); ok && v.Name() == name {
		return true
	}
	return false
}

func referencesGlobal(instr ssa.Instruction, name string) bool {
	for _, v := range ir.Operands(instr) {
		if g, ok := v.(*ssa.Global); ok && g.Name() == name {
			return true
		}
	}
	if store, ok := instr.(*ssa.Store); ok {
		if g, ok := store.Addr.(*ssa.Global); ok && g.Name() == name {
			return true
		}
	}
	return false
}
