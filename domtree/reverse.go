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

package domtree

// Reversed wraps a Graph with predecessors and successors swapped and a
// different root, so that Compute(Reversed(g, exit)) yields the
// post-dominator tree of g. Used by the sdg package's control-dependence
// engine (spec.md §4.2).
type Reversed struct {
	Inner    Graph
	ExitNode int64
	AllNodes []int64
}

// Root implements Graph.
func (r Reversed) Root() int64 { return r.ExitNode }

// Nodes implements Graph.
func (r Reversed) Nodes() []int64 { return r.AllNodes }

// Preds implements Graph (successors of the forward graph).
func (r Reversed) Preds(id int64) []int64 { return r.Inner.Succs(id) }

// Succs implements Graph (predecessors of the forward graph).
func (r Reversed) Succs(id int64) []int64 { return r.Inner.Preds(id) }
