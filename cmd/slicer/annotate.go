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

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/argslice/go-slicer/sdg"
)

// annotateOpts is the parsed form of -annotate's comma-separated tag list
// (spec.md §6.2: "dd,cd,rd,pta,slice").
type annotateOpts struct {
	dd, cd, rd, pta, slice bool
}

func parseAnnotateOpts(s string) annotateOpts {
	var o annotateOpts
	for _, tag := range strings.Split(s, ",") {
		switch strings.TrimSpace(tag) {
		case "dd":
			o.dd = true
		case "cd":
			o.cd = true
		case "rd":
			o.rd = true
		case "pta":
			o.pta = true
		case "slice":
			o.slice = true
		}
	}
	return o
}

func (o annotateOpts) any() bool { return o.dd || o.cd || o.rd || o.pta || o.slice }

// writeAnnotated writes, per procedure, one line per surviving instruction
// tagged with the requested dependence/slice-id info. The pta tag prints
// the node's SSA value name; no points-to set is printed.
func writeAnnotated(w io.Writer, s *sdg.SystemDependenceGraph, o annotateOpts) {
	for _, g := range s.Procs() {
		fmt.Fprintf(w, "== %s ==\n", g.FuncName)
		for _, bid := range g.Blocks() {
			b := g.Block(bid)
			fmt.Fprintf(w, "B%d:\n", bid)
			for _, nid := range b.Nodes {
				n := g.Node(nid)
				var tags []string
				if o.dd {
					tags = append(tags, fmt.Sprintf("dd=%v", n.DataDeps()))
				}
				if o.rd {
					tags = append(tags, fmt.Sprintf("rd=%v", n.RevDataDeps()))
				}
				if o.cd {
					tags = append(tags, fmt.Sprintf("cd=%v", n.ControlDeps()))
				}
				if o.pta && n.Value != nil {
					tags = append(tags, fmt.Sprintf("pta-value=%s", n.Value.Name()))
				}
				if o.slice {
					tags = append(tags, fmt.Sprintf("slice=%d", n.SliceID))
				}
				text := "arg"
				if n.Instr != nil {
					text = n.Instr.String()
				}
				if len(tags) == 0 {
					fmt.Fprintf(w, "  %s\n", text)
					continue
				}
				fmt.Fprintf(w, "  %s\t[%s]\n", text, strings.Join(tags, " "))
			}
		}
	}
}
