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

// Package dotdump renders one procedure's dependence graph as a Graphviz
// dot file, for the -dump-dg/-dump-bb-only CLI outputs.
package dotdump

import (
	"fmt"
	"strings"

	"github.com/argslice/go-slicer/sdg"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// node wraps a block id with the label dot.Marshal prints for it.
type node struct {
	id    int64
	label string
}

func (n node) ID() int64     { return n.id }
func (n node) DOTID() string { return n.label }

// Procedure renders g's basic blocks as a dot digraph. When blocksOnly is
// true, each node is labelled with just its block id (-dump-bb-only);
// otherwise every surviving instruction in the block is listed
// (-dump-dg[-only]).
func Procedure(g *sdg.DependenceGraph, blocksOnly bool) ([]byte, error) {
	dg := simple.NewDirectedGraph()
	nodes := make(map[int64]node, len(g.Blocks()))

	for _, id := range g.Blocks() {
		n := node{id: id, label: blockLabel(g, id, blocksOnly)}
		nodes[id] = n
		dg.AddNode(n)
	}
	for _, id := range g.Blocks() {
		b := g.Block(id)
		for _, succID := range b.SuccessorIDs() {
			if _, ok := nodes[succID]; !ok {
				continue
			}
			dg.SetEdge(dg.NewEdge(nodes[id], nodes[succID]))
		}
	}

	return dot.Marshal(dg, sanitizeGraphName(g.FuncName), "", "  ")
}

func blockLabel(g *sdg.DependenceGraph, id int64, blocksOnly bool) string {
	b := g.Block(id)
	if blocksOnly {
		return fmt.Sprintf("B%d", id)
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("B%d", id))
	for _, nid := range b.Nodes {
		n := g.Node(nid)
		if n.Instr != nil {
			lines = append(lines, n.Instr.String())
		} else {
			lines = append(lines, fmt.Sprintf("arg#%d", n.FormalIndex))
		}
	}
	return strings.Join(lines, "\\l") + "\\l"
}

func sanitizeGraphName(name string) string {
	r := strings.NewReplacer(".", "_", "(", "_", ")", "_", "*", "_", "/", "_")
	return r.Replace(name)
}
