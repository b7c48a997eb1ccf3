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

// Package analysistest loads small Go programs under testdata/ for the
// pointer, sdg and slicer packages' table-driven tests, and scans their
// source comments for slicing expectations.
package analysistest

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/argslice/go-slicer/config"
	"github.com/argslice/go-slicer/internal/funcutil"
	"github.com/argslice/go-slicer/ir"
)

// LoadTest loads the program in dir (expects a main.go and a config.yaml),
// plus any extraFiles, the way cmd/slicer loads a real module.
func LoadTest(t *testing.T, dir string, extraFiles []string) (*ir.Module, *config.Config) {
	configFile := filepath.Join(dir, "config.yaml")
	config.SetGlobalConfig(configFile)

	patterns := []string{filepath.Join(dir, "main.go")}
	for _, extraFile := range extraFiles {
		patterns = append(patterns, filepath.Join(dir, extraFile))
	}

	mod, err := ir.Load(patterns, "")
	if err != nil {
		t.Fatalf("error loading test module from %s: %v", dir, err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading global config: %v", err)
	}
	return mod, cfg
}

// KeptRegex/RemovedRegex match "// @Kept(id1, id2)" and "// @Removed(id1,
// id2)" annotations marking which named slicing criteria each line is
// expected to survive or be swept out for, by slice id.
var KeptRegex = regexp.MustCompile(`//.*@Kept\(((?:\s*\w\s*,?)+)\)`)
var RemovedRegex = regexp.MustCompile(`//.*@Removed\(((?:\s*\w\s*,?)+)\)`)

// LPos is a source position with the column dropped, for stable test
// comparisons across platforms.
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string { return fmt.Sprintf("%s:%d", p.Filename, p.Line) }

// ExpectedSlice records, per named criterion id, which source lines a test
// testdata program expects to be kept and which it expects to be removed
// after slicing.
type ExpectedSlice struct {
	Kept    map[string]map[LPos]bool
	Removed map[string]map[LPos]bool
}

// GetExpectedSlice scans the files in dir for @Kept/@Removed annotations
// and builds an ExpectedSlice, the slicing-test analogue of the teacher's
// @Source/@Sink taint-flow annotation scanner.
func GetExpectedSlice(reldir string, dir string) *ExpectedSlice {
	d := make(map[string]*ast.Package)
	fset := token.NewFileSet()

	err := filepath.Walk(dir, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			d0, err := parser.ParseDir(fset, p, nil, parser.ParseComments)
			funcutil.Merge(d, d0, func(x *ast.Package, _ *ast.Package) *ast.Package { return x })
			return err
		}
		return nil
	})
	if err != nil {
		fmt.Println(err)
		return nil
	}

	out := &ExpectedSlice{Kept: map[string]map[LPos]bool{}, Removed: map[string]map[LPos]bool{}}
	scan := func(re *regexp.Regexp, into map[string]map[LPos]bool) {
		for _, pkg := range d {
			for _, f := range pkg.Files {
				for _, c := range f.Comments {
					for _, c1 := range c.List {
						m := re.FindStringSubmatch(c1.Text)
						if len(m) <= 1 {
							continue
						}
						pos := relPos(fset.Position(c1.Pos()), reldir)
						for _, ident := range strings.Split(m[1], ",") {
							id := strings.TrimSpace(ident)
							if into[id] == nil {
								into[id] = map[LPos]bool{}
							}
							into[id][pos] = true
						}
					}
				}
			}
		}
	}
	scan(KeptRegex, out.Kept)
	scan(RemovedRegex, out.Removed)
	return out
}

// RemoveColumn drops the column from a token.Position for stable comparisons.
func RemoveColumn(pos token.Position) LPos { return LPos{Line: pos.Line, Filename: pos.Filename} }

func relPos(pos token.Position, reldir string) LPos {
	return LPos{Line: pos.Line, Filename: path.Join(reldir, pos.Filename)}
}
