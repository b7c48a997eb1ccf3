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
	"github.com/argslice/go-slicer/sdg"
	"golang.org/x/tools/go/ssa"
)

// ExpandSecondary implements spec.md §4.7's secondary-criteria step: before
// propagation, scan backward through CFG blocks from each primary
// criterion, collecting call nodes matching a secondary criterion's name
// (control-form) or a secondary data criterion's call ("name()").
// Interprocedural scanning visits callee exit blocks, following each call
// node's Callees back to their RETURN-shaped nodes.
func ExpandSecondary(primary []Target, secondary []Criterion) []Target {
	if len(secondary) == 0 {
		return nil
	}
	names := map[string]bool{}
	for _, c := range secondary {
		names[c.Name] = true
	}

	var out []Target
	for _, t := range primary {
		visitedBlocks := map[*sdg.DependenceGraph]map[int64]bool{}
		var queue []mark
		queue = append(queue, mark{g: t.Graph, id: t.Graph.Node(t.Node).Block})
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if visitedBlocks[cur.g] == nil {
				visitedBlocks[cur.g] = map[int64]bool{}
			}
			if visitedBlocks[cur.g][cur.id] {
				continue
			}
			visitedBlocks[cur.g][cur.id] = true

			block := cur.g.Block(cur.id)
			for _, nid := range block.Nodes {
				n := cur.g.Node(nid)
				if n.Variant != sdg.VariantCall {
					continue
				}
				callInstr, ok := n.Instr.(ssa.CallInstruction)
				if !ok {
					continue
				}
				callee := callInstr.Common().StaticCallee()
				if callee == nil || !names[callee.Name()] {
					continue
				}
				out = append(out, Target{Graph: cur.g, Node: nid})

				// Interprocedural: keep scanning inside the matched
				// callee's own body, starting from its RETURN nodes.
				for _, cg := range n.Callees {
					for _, rid := range calleeReturnBlocks(cg) {
						queue = append(queue, mark{g: cg, id: rid})
					}
				}
			}
			for _, predID := range block.Predecessors() {
				queue = append(queue, mark{g: cur.g, id: predID})
			}
		}
	}
	return out
}

func calleeReturnBlocks(g *sdg.DependenceGraph) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, id := range g.Nodes() {
		n := g.Node(id)
		if _, ok := n.Instr.(*ssa.Return); ok && !seen[n.Block] {
			seen[n.Block] = true
			out = append(out, n.Block)
		}
	}
	return out
}
