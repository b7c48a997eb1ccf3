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

// Package ir is the IR Adapter of spec.md §6.1: it parses a module (a Go
// package set, our realization of "a compiled IR module") and exposes the
// function/block/instruction iteration, opcode classification and
// debug-info access the pointer and sdg packages need. It is deliberately
// thin: the adapter is an external collaborator, not part of the core.
package ir

import (
	"fmt"
	"go/token"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadMode is the packages.Load mode used to get everything the SSA
// builder and the debug-info queries need.
const LoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// Module is a loaded, SSA-built program: the "compiled IR module" the rest
// of the pipeline operates on.
type Module struct {
	Prog *ssa.Program
	Fset *token.FileSet

	// pkgs are the initially-loaded packages, kept for diagnostics.
	pkgs []*packages.Package
}

// Load parses and type-checks the packages named by patterns, builds SSA
// for the whole program (including dependencies, so interprocedural
// linking can resolve any callee) and returns the Module.
//
// platform, if non-empty, sets GOOS for the load (cross-analysis support).
func Load(patterns []string, platform string) (*Module, error) {
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode: LoadMode,
		Fset: fset,
	}
	if platform != "" {
		cfg.Env = append(os.Environ(), fmt.Sprintf("GOOS=%s", platform))
	}

	initial, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(initial) == 0 {
		return nil, fmt.Errorf("no packages matched %v", patterns)
	}
	if packages.PrintErrors(initial) > 0 {
		return nil, fmt.Errorf("errors while loading packages %v", patterns)
	}

	prog, ssaPkgs := ssautil.AllPackages(initial, ssa.SanityCheckFunctions)
	for i, p := range ssaPkgs {
		if p == nil {
			return nil, fmt.Errorf("failed to build SSA for package %s", initial[i])
		}
	}
	prog.Build()

	return &Module{Prog: prog, Fset: fset, pkgs: initial}, nil
}

// Functions returns every function in the module, in a stable, sorted
// order (by String()), for deterministic iteration (§5).
func (m *Module) Functions() []*ssa.Function {
	all := ssautil.AllFunctions(m.Prog)
	fns := make([]*ssa.Function, 0, len(all))
	for f := range all {
		if f == nil || f.Blocks == nil {
			continue // external/unimplemented function: no body to lower
		}
		fns = append(fns, f)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}

// FindFunction looks up a function by its unqualified name across every
// loaded package, returning the first match in Functions() order.
func (m *Module) FindFunction(name string) *ssa.Function {
	for _, f := range m.Functions() {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Position returns the source position of pos, or an invalid position if
// pos is token.NoPos.
func (m *Module) Position(pos token.Pos) token.Position {
	return m.Fset.Position(pos)
}
