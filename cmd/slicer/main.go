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

// Command slicer runs the backward (or -forward) mark-and-sweep slicer
// over a Go package set: builds the pointer graph, the system dependence
// graph, links call sites interprocedurally, resolves the -c/-sc criteria
// and writes the sliced module's statistics, dot dumps and annotated
// listing (spec.md §6.2).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/argslice/go-slicer/config"
	"github.com/argslice/go-slicer/internal/dotdump"
	"github.com/argslice/go-slicer/internal/formatutil"
	"github.com/argslice/go-slicer/internal/logging"
	"github.com/argslice/go-slicer/ir"
	"github.com/argslice/go-slicer/pointer"
	"github.com/argslice/go-slicer/sdg"
	"github.com/argslice/go-slicer/slicer"
)

var (
	configPath       = flag.String("config", "", "Config file path")
	criteria         = flag.String("c", "", "Slicing criterion, comma-separated (required unless -remove-unused-only)")
	secondary        = flag.String("sc", "", "Secondary criterion, comma-separated")
	entry            = flag.String("entry", "", "Entry procedure (overrides config's entry-point, default \"main\")")
	forward          = flag.Bool("forward", false, "Forward slice instead of backward")
	annotate         = flag.String("annotate", "", "Emit annotated IR (dd,cd,rd,pta,slice)")
	dumpDG           = flag.Bool("dump-dg", false, "Emit dot graphs of every surviving procedure")
	dumpDGOnly       = flag.Bool("dump-dg-only", false, "Like -dump-dg, but skip writing the sliced statistics")
	dumpBBOnly       = flag.Bool("dump-bb-only", false, "Emit dot graphs with block ids only, no instructions")
	statistics       = flag.Bool("statistics", false, "Print sizes before/after slicing")
	removeUnusedOnly = flag.Bool("remove-unused-only", false, "Skip slicing; only drop unreferenced procedures")
	dontVerify       = flag.Bool("dont-verify", false, "Skip the post-slice structural verification pass")
	verbose          = flag.Bool("verbose", false, "Verbose (debug-level) logging")
)

const usage = `Slice a Go program to the instructions a criterion depends on.
Usage:
    slicer [options] <package path(s)>
Examples:
    slicer -c 42:x -entry main ./...
    slicer -c "foo()" -sc bar -forward -statistics ./cmd/app
`

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
		return 1
	}

	logger := log.New(os.Stdout, "", log.Flags())

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config %s: %v\n", *configPath, err)
		return 1
	}
	if *verbose {
		cfg.LogLevel = int(logging.DebugLevel)
	}
	logGroup := logging.New(cfg.Level(), os.Stdout)

	entryName := cfg.EntryPoint
	if *entry != "" {
		entryName = *entry
	}
	if entryName == "" {
		entryName = "main"
	}

	logger.Printf(formatutil.Faint("Loading program") + "\n")
	mod, err := ir.Load(flag.Args(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load program: %v\n", err)
		return 1
	}

	start := time.Now()
	result, s, ptrG, err := slice(mod, logGroup, entryName, sliceRequest{
		criteria:         *criteria,
		secondary:        *secondary,
		forward:          *forward,
		removeUnusedOnly: *removeUnusedOnly,
	})
	duration := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	exitCode := 0
	if !*dontVerify && !*removeUnusedOnly {
		if err := slicer.Verify(ptrG, s); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			exitCode = 1
		}
	}

	if *statistics && !*dumpDGOnly {
		printStatistics(logger, result, duration)
	}

	if err := writeReports(cfg, s, result, *annotate, *dumpDG || *dumpDGOnly, *dumpBBOnly); err != nil {
		fmt.Fprintf(os.Stderr, "could not write reports: %v\n", err)
		return 1
	}

	return exitCode
}

type sliceRequest struct {
	criteria, secondary string
	forward             bool
	removeUnusedOnly    bool
}

// slice runs the full pipeline of spec.md §4: pointer graph build and
// fixed-point, SDG build, control- and data-dependence, interprocedural
// linking, criteria resolution and mark-and-sweep.
func slice(mod *ir.Module, log *logging.Group, entryName string, req sliceRequest) (*slicer.Result, *sdg.SystemDependenceGraph, *pointer.Graph, error) {
	ptrBuilder := pointer.NewBuilder(mod, log)
	ptrG, err := ptrBuilder.Build()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pointer graph construction failed: %w", err)
	}
	pointer.NewAnalysis(ptrG, log).Run()

	if cycles := ptrG.RecursiveCycles(); len(cycles) > 0 {
		log.Debugf("%d recursive call cycle(s) in the call graph", len(cycles))
	}

	sdgBuilder := sdg.NewBuilder(mod, log)
	s := sdgBuilder.Build()
	for _, proc := range s.Procs() {
		sdg.PostDomEngine{}.Run(proc)
	}

	sdg.NewDataDepEngine(ptrBuilder, ptrG, log, sdg.DataDependenceFlags{Interprocedural: true}).Run(s)
	sdg.NewLinker(ptrBuilder, ptrG, log).Run(s)

	if err := s.SetEntry(entryName); err != nil {
		return nil, nil, nil, err
	}

	sl := slicer.New(s, log)

	if req.removeUnusedOnly {
		return sl.Slice(nil, nil, slicer.Options{RemoveUnusedOnly: true}), s, ptrG, nil
	}

	primaryCriteria, err := slicer.ParseCriteria(req.criteria)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid -c: %w", err)
	}
	if len(primaryCriteria) == 0 {
		return nil, nil, nil, fmt.Errorf("CriterionMiss: -c is required unless -remove-unused-only is set")
	}
	secondaryCriteria, err := slicer.ParseCriteria(req.secondary)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid -sc: %w", err)
	}

	resolver := slicer.NewResolver(mod, s)
	primary, err := resolver.Resolve(primaryCriteria)
	if err != nil {
		return nil, nil, nil, err
	}
	secondaryTargets := slicer.ExpandSecondary(primary, secondaryCriteria)

	result := sl.Slice(primary, secondaryTargets, slicer.Options{Forward: req.forward})
	if result.EmptyMain {
		return nil, nil, nil, fmt.Errorf("CriterionMiss: no node matched any of %q", req.criteria)
	}
	return result, s, ptrG, nil
}

func printStatistics(logger *log.Logger, r *slicer.Result, duration time.Duration) {
	logger.Printf("")
	logger.Printf(formatutil.Bold("-" + strings.Repeat("*", 78)))
	logger.Printf("Slicing took %3.4f s", duration.Seconds())
	logger.Printf("Procedures: %d -> %s", r.Stats.ProceduresBefore, formatutil.Green(r.Stats.ProceduresAfter))
	logger.Printf("Blocks:     %d -> %s", r.Stats.BlocksBefore, formatutil.Green(r.Stats.BlocksAfter))
	logger.Printf("Nodes:      %d -> %s", r.Stats.NodesBefore, formatutil.Green(r.Stats.NodesAfter))
	logger.Printf("Targets matched: %d", len(r.Targets))
}

// writeReports emits the optional dot dumps and annotated listing under
// cfg.ReportsDir (spec.md §6.3: "output is emitted to... optional dot/
// annotated files").
func writeReports(cfg *config.Config, s *sdg.SystemDependenceGraph, r *slicer.Result, annotateSpec string, dumpDG, dumpBB bool) error {
	if !dumpDG && !dumpBB && annotateSpec == "" {
		return nil
	}
	dir := cfg.ReportsDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if dumpDG || dumpBB {
		for _, g := range s.Procs() {
			data, err := dotdump.Procedure(g, dumpBB && !dumpDG)
			if err != nil {
				return fmt.Errorf("dot dump of %s: %w", g.FuncName, err)
			}
			name := strings.NewReplacer("/", "_", " ", "_").Replace(g.FuncName) + ".dot"
			if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
				return err
			}
		}
	}

	if opts := parseAnnotateOpts(annotateSpec); opts.any() {
		f, err := os.Create(filepath.Join(dir, "annotated.txt"))
		if err != nil {
			return err
		}
		defer f.Close()
		writeAnnotated(f, s, opts)
	}

	return nil
}
