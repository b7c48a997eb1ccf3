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

import "golang.org/x/tools/go/ssa"

// newTestGraph builds an empty DependenceGraph without going through
// Builder, for tests that only exercise block-level wiring and the
// post-dominance/control-dependence engine (neither of which consult Fn).
func newTestGraph() *DependenceGraph {
	return &DependenceGraph{
		FuncName:         "test",
		nodes:            map[int64]*Node{},
		blocks:           map[int64]*Block{},
		blockOf:          map[ssa.Instruction]int64{},
		nodeOf:           map[ssa.Instruction]int64{},
		ssaBlockID:       map[*ssa.BasicBlock]int64{},
		crossDataDeps:    map[int64][]CrossEdge{},
		revCrossDataDeps: map[int64][]CrossEdge{},
	}
}

func contains(ids []int64, want int64) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
