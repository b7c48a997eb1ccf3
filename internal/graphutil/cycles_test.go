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

package graphutil_test

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/argslice/go-slicer/internal/funcutil"
	"github.com/argslice/go-slicer/internal/graphutil"
)

func TestFindAllElementaryCycles(t *testing.T) {
	// 1 -> 2 -> 1  (cycle)
	// 2 -> 3 -> 2  (cycle)
	// 4 (isolated, no cycle)
	adjacency := map[int64][]int64{
		1: {2},
		2: {1, 3},
		3: {2},
		4: {},
	}
	g := graphutil.NewIDGraph(adjacency, func(id int64) string { return strconv.FormatInt(id, 10) })

	cycles := graphutil.FindAllElementaryCycles(g)
	if len(cycles) != 2 {
		t.Fatalf("expected 2 elementary cycles, got %d: %v", len(cycles), cycles)
	}

	results := make([]string, len(cycles))
	for i, cycle := range cycles {
		results[i] = strings.Join(
			funcutil.Map(cycle, func(x int64) string { return strconv.FormatInt(x, 10) }), "")
	}
	sort.Strings(results)
	want := []string{"121", "232"}
	for i, w := range want {
		if results[i] != w {
			t.Fatalf("cycle %d: got %q, want %q (all: %v)", i, results[i], w, results)
		}
	}
}

func TestFindAllElementaryCyclesAcyclic(t *testing.T) {
	adjacency := map[int64][]int64{
		1: {2},
		2: {3},
		3: {},
	}
	g := graphutil.NewIDGraph(adjacency, func(id int64) string { return strconv.FormatInt(id, 10) })
	if cycles := graphutil.FindAllElementaryCycles(g); len(cycles) != 0 {
		t.Fatalf("expected no cycles in a DAG, got %v", cycles)
	}
}
