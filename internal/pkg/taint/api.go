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

package taint

import (
	"fmt"

	"github.com/llir/llvm/ir/value"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/config"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/funcstate"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/summary"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

// TaintResult is the output of a completed analysis run: every
// function's final summary, and (for render/debugging purposes) the
// final per-variable taint type within every function the fixpoint
// actually visited.
type TaintResult struct {
	summaries  *summary.Table
	funcStates map[string]*funcstate.FunctionTaintState
	cells      *tainttype.Arena
}

func newResult(ts *TaintState) *TaintResult {
	return &TaintResult{summaries: ts.summaries, funcStates: ts.funcStates, cells: ts.cells}
}

// Functions returns the names of every function a summary was computed
// for.
func (r *TaintResult) Functions() []string { return r.summaries.Names() }

// Summary returns fn's final parameter/return taint contract.
func (r *TaintResult) Summary(fn string) (*summary.FunctionSummary, bool) {
	return r.summaries.Get(fn)
}

// VariableType returns the final taint type of v within fn, if fn was
// visited by the fixpoint and v was observed.
func (r *TaintResult) VariableType(fn string, v value.Value) (tainttype.Type, bool) {
	fs, ok := r.funcStates[fn]
	if !ok {
		return nil, false
	}
	t, seen := fs.Lookup(v)
	return t, seen
}

// Equal reports whether two taint types produced by this result are
// equal, resolving pointee cells through this run's arena.
func (r *TaintResult) Equal(a, b tainttype.Type) bool {
	return tainttype.Equal(a, b, r.cells)
}

// RunWholeProgram analyzes every defined function in mod to a joint
// fixpoint (spec.md §4, the original's do_analysis_multiple_functions):
// every function with a body is seeded onto the initial worklist.
// initialStructDefs optionally pre-taints named struct fields before
// the fixpoint starts (spec.md's NamedStructInitialDef); initialVars
// optionally seeds specific variables of specific functions (keyed by
// function name) with an initial taint type before that function is
// first processed.
func RunWholeProgram(mod *xmodule.Module, cfg *config.Config, initialStructDefs map[string][]tainttype.Type, initialVars map[string]map[value.Value]tainttype.Type) (*TaintResult, error) {
	ts := newState(mod, cfg)
	if len(initialStructDefs) > 0 {
		ts.structs.WithInitialDefs(initialStructDefs)
	}

	for _, f := range mod.DefinedFuncs() {
		name := f.Name()
		ts.worklist.Add(name)
		if vars, ok := initialVars[name]; ok {
			fs := ts.getOrCreateFuncState(name)
			for v, t := range vars {
				fs.SetInitial(v, t)
			}
		}
	}

	if err := ts.compute(); err != nil {
		return nil, fmt.Errorf("whole-program analysis: %w", err)
	}
	return newResult(ts), nil
}

// RunSingleFunction analyzes only fnName, seeding its parameters from
// argTypes rather than discovering them from call sites (spec.md's
// single-function entry point, the original's
// do_analysis_single_function): useful when fnName is a library entry
// point with no callers in the module under analysis.
func RunSingleFunction(mod *xmodule.Module, cfg *config.Config, fnName string, argTypes []tainttype.Type, initialStructDefs map[string][]tainttype.Type) (*TaintResult, error) {
	f, ok := mod.FuncByName(fnName)
	if !ok {
		return nil, fmt.Errorf("function %q not found in module", fnName)
	}
	if xmodule.IsExternal(f) {
		return nil, fmt.Errorf("function %q has no body to analyze", fnName)
	}

	ts := newState(mod, cfg)
	if len(initialStructDefs) > 0 {
		ts.structs.WithInitialDefs(initialStructDefs)
	}

	summ := ts.summaries.GetOrCreate(fnName, f.Sig, ts.builder)
	for i, t := range argTypes {
		if i >= len(summ.Params()) {
			break
		}
		if _, err := summ.UpdateParam(i, t, ts.cells); err != nil {
			return nil, fmt.Errorf("seeding parameter %d of %q: %w", i, fnName, err)
		}
	}

	ts.worklist.Add(fnName)
	if err := ts.compute(); err != nil {
		return nil, fmt.Errorf("single-function analysis of %q: %w", fnName, err)
	}
	return newResult(ts), nil
}
