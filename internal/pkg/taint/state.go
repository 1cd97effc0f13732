// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package taint implements the whole-program taint-type fixpoint driver
// (spec.md §4, §8): the worklist-driven outer loop, the per-function
// pass over every instruction and terminator, and the two public
// analysis entry points (RunSingleFunction, RunWholeProgram).
package taint

import (
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/config"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/funcstate"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/summary"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/worklist"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

// maxConsecutiveReprocess bounds how many times the same function may
// be popped off the worklist back-to-back before the driver gives up
// and reports non-convergence, rather than looping forever over a
// fixpoint that (due to an analysis bug, or IR the lattice genuinely
// cannot stabilize over) never settles. Carried over from the
// original analysis's divergence guard of the same name.
const maxConsecutiveReprocess = 8

// TaintState is the process-wide state of one analysis run: the shared
// lattice tables (cells, named structs, globals), the per-function
// summaries and working states, the worklist driving the fixpoint, and
// the reverse call graph used to re-enqueue a function's callers when
// its return type changes.
type TaintState struct {
	module *xmodule.Module
	config *config.Config

	cells   *tainttype.Arena
	structs *tainttype.NamedStructs
	globals *tainttype.Globals
	builder *tainttype.Builder

	summaries  *summary.Table
	worklist   *worklist.Worklist
	funcStates map[string]*funcstate.FunctionTaintState

	// callers maps a callee's name to the set of function names known
	// to call it, direct or indirect-by-signature. Populated lazily as
	// call sites are processed.
	callers map[string]map[string]bool

	lastProcessed    string
	consecutiveCount int
}

// newState builds an empty TaintState over mod, with every module-level
// global pre-registered in the Globals table (spec.md §4.4): a global
// must have a canonical cell before any function can reference it,
// since function processing order is not otherwise constrained.
func newState(mod *xmodule.Module, cfg *config.Config) *TaintState {
	wl := worklist.New()
	cells := tainttype.NewArena(wl)
	structs := tainttype.NewNamedStructs(cells)
	globals := tainttype.NewGlobals(cells)
	builder := tainttype.NewBuilder(cells, structs)

	ts := &TaintState{
		module:     mod,
		config:     cfg,
		cells:      cells,
		structs:    structs,
		globals:    globals,
		builder:    builder,
		summaries:  summary.NewTable(),
		worklist:   wl,
		funcStates: map[string]*funcstate.FunctionTaintState{},
		callers:    map[string]map[string]bool{},
	}
	for _, g := range mod.Globals() {
		globals.Define(g.Name(), builder.FromLLVMType(g.ContentType))
	}
	return ts
}

// getOrCreateFuncState returns name's persistent working state, across
// however many fixpoint passes it takes to stabilize.
func (ts *TaintState) getOrCreateFuncState(name string) *funcstate.FunctionTaintState {
	if fs, ok := ts.funcStates[name]; ok {
		return fs
	}
	fs := funcstate.New(name, ts.cells, ts.structs, ts.globals)
	ts.funcStates[name] = fs
	return fs
}

// addCallerEdge records that caller calls callee, direct or indirect.
func (ts *TaintState) addCallerEdge(callee, caller string) {
	set, ok := ts.callers[callee]
	if !ok {
		set = map[string]bool{}
		ts.callers[callee] = set
	}
	set[caller] = true
}

// enqueueCallers re-enqueues every function known to call name, e.g.
// after name's summary return type changed.
func (ts *TaintState) enqueueCallers(name string) {
	for caller := range ts.callers[name] {
		ts.worklist.Add(caller)
	}
}
