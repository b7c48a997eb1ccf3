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

// Package graphutil provides small, domain-agnostic graph algorithms and
// adapters shared by the pointer and sdg packages: an id-keyed directed
// graph that satisfies gonum's graph.Graph interface and yourbasic/graph's
// Iterator interface, and elementary cycle enumeration (built on
// yourbasic/graph's StrongComponents).
package graphutil

import (
	"sort"

	"gonum.org/v1/gonum/graph"
)

// IDGraph is a directed graph over dense int64 ids, built from an adjacency
// map. It is used to hand the CFG of a procedure (block id -> successor
// block ids) or a call graph (entry id -> callee entry id) to gonum graph
// algorithms (e.g. topological sort for deterministic worklist order).
type IDGraph struct {
	labels map[int64]string
	edges  map[int64]map[int64]bool
	keys   []int64
}

// NewIDGraph builds an IDGraph from an adjacency map and a label function.
// The adjacency map is not retained; IDGraph keeps its own copy so that
// later mutation of edges by the caller does not affect the graph.
func NewIDGraph(adjacency map[int64][]int64, label func(int64) string) IDGraph {
	edges := make(map[int64]map[int64]bool, len(adjacency))
	labels := make(map[int64]string, len(adjacency))
	keys := make([]int64, 0, len(adjacency))

	for id, succs := range adjacency {
		keys = append(keys, id)
		labels[id] = label(id)
		set := make(map[int64]bool, len(succs))
		for _, s := range succs {
			set[s] = true
		}
		edges[id] = set
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return IDGraph{labels: labels, edges: edges, keys: keys}
}

// Successors returns the sorted successor ids of id.
func (g IDGraph) Successors(id int64) []int64 {
	out := make([]int64, 0, len(g.edges[id]))
	for s := range g.edges[id] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Label returns the label attached to id, or "" if id is not in the graph.
func (g IDGraph) Label(id int64) string { return g.labels[id] }

// Order implements github.com/yourbasic/graph's Iterator interface so that
// IDGraph can be fed to yourbasic/graph algorithms (e.g. StrongComponents)
// as well as gonum's, without maintaining two adjacency representations.
// yourbasic vertex v stands for the v-th smallest node id of the graph.
func (g IDGraph) Order() int { return len(g.keys) }

// Visit implements github.com/yourbasic/graph's Iterator interface. Edges
// to ids that are not nodes of the graph are skipped.
func (g IDGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for w := range g.edges[g.keys[v]] {
		i := sort.Search(len(g.keys), func(j int) bool { return g.keys[j] >= w })
		if i == len(g.keys) || g.keys[i] != w {
			continue
		}
		if do(i, 1) {
			return true
		}
	}
	return false
}

// Node implements graph.Graph.
func (g IDGraph) Node(id int64) graph.Node {
	if _, ok := g.labels[id]; !ok {
		return nil
	}
	return idNode(id)
}

// Nodes implements graph.Graph.
func (g IDGraph) Nodes() graph.Nodes {
	ns := make([]graph.Node, len(g.keys))
	for i, k := range g.keys {
		ns[i] = idNode(k)
	}
	return &idNodeIterator{nodes: ns, cur: -1}
}

// From implements graph.Graph.
func (g IDGraph) From(id int64) graph.Nodes {
	succs := g.Successors(id)
	ns := make([]graph.Node, len(succs))
	for i, s := range succs {
		ns[i] = idNode(s)
	}
	return &idNodeIterator{nodes: ns, cur: -1}
}

// HasEdgeBetween implements graph.Graph.
func (g IDGraph) HasEdgeBetween(xid, yid int64) bool {
	return g.edges[xid][yid] || g.edges[yid][xid]
}

// Edge implements graph.Graph.
func (g IDGraph) Edge(uid, vid int64) graph.Edge {
	if g.edges[uid][vid] {
		return idEdge{from: idNode(uid), to: idNode(vid)}
	}
	return nil
}

type idNode int64

func (n idNode) ID() int64 { return int64(n) }

type idNodeIterator struct {
	nodes []graph.Node
	cur   int
}

func (it *idNodeIterator) Next() bool {
	if it.cur < len(it.nodes)-1 {
		it.cur++
		return true
	}
	return false
}

func (it *idNodeIterator) Len() int { return len(it.nodes) - (it.cur + 1) }

func (it *idNodeIterator) Reset() { it.cur = -1 }

func (it *idNodeIterator) Node() graph.Node {
	if it.cur < 0 || it.cur >= len(it.nodes) {
		return nil
	}
	return it.nodes[it.cur]
}

type idEdge struct {
	from, to idNode
}

func (e idEdge) From() graph.Node         { return e.from }
func (e idEdge) To() graph.Node           { return e.to }
func (e idEdge) ReversedEdge() graph.Edge { return idEdge{from: e.to, to: e.from} }

// Subgraph returns the IDGraph restricted to include, preserving only edges
// whose endpoints are both in include.
func Subgraph(g IDGraph, include []int64) IDGraph {
	set := make(map[int64]bool, len(include))
	for _, i := range include {
		set[i] = true
	}
	adjacency := make(map[int64][]int64, len(include))
	for _, i := range include {
		for s := range g.edges[i] {
			if set[s] {
				adjacency[i] = append(adjacency[i], s)
			}
		}
		if _, ok := adjacency[i]; !ok {
			adjacency[i] = nil
		}
	}
	return NewIDGraph(adjacency, g.Label)
}
