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

// Package domtree computes dominator trees, dominance frontiers and their
// post-dominance duals over an abstract control-flow graph. It is shared by
// the pointer package (dominator-tree BFS visiting order during pointer
// graph construction, §4.1) and the sdg package (the post-dominator/PDF
// engine that derives control dependence, §4.2).
//
// The algorithm is the iterative one of Cooper, Harvey and Kennedy, "A
// Simple, Fast Dominance Algorithm" (2001), applied to the reversed CFG
// (with a synthetic exit joining multiple returns) to get post-dominance,
// exactly as spec.md §4.2 requires.
package domtree

import "sort"

// Graph is the minimal view of a control-flow graph domtree needs: a set of
// dense node ids, a designated root, and predecessor/successor functions.
// Implementations are expected to hand back sorted slices so that results
// are deterministic (§5, "Ordering guarantees").
type Graph interface {
	// Root is the entry (for dominance) or exit (for post-dominance) node.
	Root() int64
	// Nodes returns every node id reachable from Root, in a stable order.
	Nodes() []int64
	// Preds returns the direct predecessors of id in traversal direction.
	Preds(id int64) []int64
	// Succs returns the direct successors of id in traversal direction.
	Succs(id int64) []int64
}

// Tree is the result of a dominance computation: for every node reachable
// from the root, its immediate dominator (Idom), and the derived
// dominance frontier and dominator-tree children.
type Tree struct {
	root     int64
	order    map[int64]int // reverse-postorder index, used by the algorithm
	postorder []int64
	idom     map[int64]int64
	children map[int64][]int64
	frontier map[int64][]int64
}

// Idom returns the immediate dominator of id, or (0, false) if id is the
// root or unreachable. Node id 0 is never a valid node id (§3.1 invariant
// "Node id 0 is reserved/invalid"), so it doubles as the "none" sentinel.
func (t *Tree) Idom(id int64) (int64, bool) {
	d, ok := t.idom[id]
	if !ok || d == 0 {
		return 0, false
	}
	return d, true
}

// Dominates returns true if a dominates b (reflexively: a dominates a).
func (t *Tree) Dominates(a, b int64) bool {
	if a == b {
		return true
	}
	cur, ok := t.Idom(b)
	for ok {
		if cur == a {
			return true
		}
		cur, ok = t.Idom(cur)
	}
	return false
}

// Children returns the dominator-tree children of id, in ascending id order.
func (t *Tree) Children(id int64) []int64 { return t.children[id] }

// Frontier returns the dominance frontier of id, in ascending id order.
func (t *Tree) Frontier(id int64) []int64 { return t.frontier[id] }

// BFS returns every node reachable from the root, in dominator-tree
// breadth-first order (root first). Used for the "dominator-tree BFS
// order" required by spec.md §4.1 and §6.1.
func (t *Tree) BFS() []int64 {
	order := []int64{t.root}
	queue := []int64{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range t.Children(n) {
			order = append(order, c)
			queue = append(queue, c)
		}
	}
	return order
}

// Compute builds the dominator tree of g rooted at g.Root().
func Compute(g Graph) *Tree {
	nodes := g.Nodes()
	root := g.Root()

	rpo := reversePostorder(root, g)
	order := make(map[int64]int, len(rpo))
	for i, n := range rpo {
		order[n] = i
	}

	const undefined = int64(-1)
	idom := make(map[int64]int64, len(nodes))
	for _, n := range nodes {
		idom[n] = undefined
	}
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			var newIdom int64 = undefined
			for _, p := range g.Preds(b) {
				if idom[p] == undefined {
					continue
				}
				if newIdom == undefined {
					newIdom = p
					continue
				}
				newIdom = intersect(order, idom, newIdom, p)
			}
			if newIdom != undefined && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	t := &Tree{
		root:     root,
		order:    order,
		idom:     map[int64]int64{},
		children: map[int64][]int64{},
		frontier: map[int64][]int64{},
	}
	for n, d := range idom {
		if d == undefined {
			continue // unreachable from root
		}
		if n == root {
			continue
		}
		t.idom[n] = d
		t.children[d] = append(t.children[d], n)
	}
	for d := range t.children {
		sort.Slice(t.children[d], func(i, j int) bool { return t.children[d][i] < t.children[d][j] })
	}

	computeFrontiers(t, g, nodes)
	return t
}

// intersect finds the closest common ancestor of a and b in the (partially
// built) dominator tree, walking up by reverse-postorder index.
func intersect(order map[int64]int, idom map[int64]int64, a, b int64) int64 {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

// computeFrontiers implements the standard Cytron et al. dominance-frontier
// construction: DF(b) collects join points where b's dominance ends.
func computeFrontiers(t *Tree, g Graph, nodes []int64) {
	for _, b := range nodes {
		preds := g.Preds(b)
		if len(preds) < 2 {
			continue
		}
		idomB, hasIdomB := t.Idom(b)
		for _, p := range preds {
			if _, ok := t.idom[p]; !ok && p != t.root {
				continue // unreachable predecessor
			}
			runner := p
			for runner != idomB || !hasIdomB {
				t.frontier[runner] = appendUnique(t.frontier[runner], b)
				next, ok := t.Idom(runner)
				if !ok {
					break
				}
				runner = next
			}
		}
	}
	for k := range t.frontier {
		sort.Slice(t.frontier[k], func(i, j int) bool { return t.frontier[k][i] < t.frontier[k][j] })
	}
}

func appendUnique(s []int64, v int64) []int64 {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// reversePostorder returns the nodes reachable from root in reverse
// postorder of a DFS following Succs, the order the CHK algorithm needs to
// converge in a single-digit number of iterations.
func reversePostorder(root int64, g Graph) []int64 {
	visited := map[int64]bool{}
	var post []int64
	var visit func(int64)
	visit = func(n int64) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, s := range g.Succs(n) {
			visit(s)
		}
		post = append(post, n)
	}
	visit(root)
	// reverse in place
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
