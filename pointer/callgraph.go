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

import "github.com/argslice/go-slicer/internal/graphutil"

// CallGraphAsIDGraph exposes the Graph's process-wide call graph (caller
// ENTRY id -> callee ENTRY ids) as a graphutil.IDGraph, so recursive call
// cycles can be enumerated with graphutil's cycle search (see
// RecursiveCycles).
func (g *Graph) CallGraphAsIDGraph() graphutil.IDGraph {
	adjacency := make(map[int64][]int64, len(g.CallGraph))
	for caller, callees := range g.CallGraph {
		adjacency[caller] = callees.sorted()
	}
	return graphutil.NewIDGraph(adjacency, func(id int64) string {
		if n := g.nodes[id]; n != nil && n.Subgraph != nil {
			return n.Subgraph.FuncName
		}
		return ""
	})
}

// RecursiveCycles returns every elementary cycle in the call graph: the
// entry-id sequences of mutually (or self-) recursive procedures. This is
// scenario 4 of spec.md §8 ("Recursive call"): the slicer must terminate
// on these without re-descending into an already-registered subgraph.
func (g *Graph) RecursiveCycles() [][]int64 {
	return graphutil.FindAllElementaryCycles(g.CallGraphAsIDGraph())
}

// IsRecursive reports whether the procedure whose ENTRY node is entry
// participates in any call-graph cycle (direct or mutual recursion).
func (g *Graph) IsRecursive(entry int64) bool {
	for _, cycle := range g.RecursiveCycles() {
		for _, id := range cycle {
			if id == entry {
				return true
			}
		}
	}
	return false
}
