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

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

// compute drains the worklist, processing one function per iteration
// until it is empty (spec.md §4's outer fixpoint loop). A function
// popped more than maxConsecutiveReprocess times in a row, without any
// other function being processed in between, indicates the analysis is
// not converging and the run is aborted rather than looping forever.
func (ts *TaintState) compute() error {
	for {
		name, ok := ts.worklist.Pop()
		if !ok {
			return nil
		}
		if name == ts.lastProcessed {
			ts.consecutiveCount++
		} else {
			ts.lastProcessed = name
			ts.consecutiveCount = 1
		}
		if ts.consecutiveCount > maxConsecutiveReprocess {
			return fmt.Errorf("function %s reprocessed more than %d times consecutively without converging", name, maxConsecutiveReprocess)
		}
		if err := ts.processFunction(name); err != nil {
			return err
		}
	}
}

// processFunction runs one fixpoint pass over name's body: parameters
// are seeded from the current summary, every instruction and
// terminator is given its transfer function, and on exit the function
// re-enqueues itself (if its own state changed this pass, e.g. a loop
// still converging) and/or its callers (if its summary — return type or
// any parameter type — changed).
func (ts *TaintState) processFunction(name string) error {
	f, ok := ts.module.FuncByName(name)
	if !ok {
		return fmt.Errorf("worklist named unknown function %q", name)
	}
	if xmodule.IsExternal(f) {
		// Only a defined function's name should ever reach the
		// worklist; tolerate an external function being enqueued
		// (e.g. by a stale indirect-call candidate) as a no-op rather
		// than treating it as a bug.
		return nil
	}

	fs := ts.getOrCreateFuncState(name)
	summ := ts.summaries.GetOrCreate(name, f.Sig, fs.Builder())

	for i, p := range f.Params {
		if i >= len(summ.Params()) {
			break
		}
		if _, err := fs.UpdateVar(p, summ.Params()[i]); err != nil {
			return wrapErr(name, "", err)
		}
	}

	cd := ts.module.ControlDependence(f)
	summaryChanged := false

	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if err := ts.processInstruction(fs, cd, b, inst); err != nil {
				return wrapErr(name, fmt.Sprintf("%T", inst), err)
			}
		}
		changed, err := ts.processTerminator(fs, summ, b)
		if err != nil {
			return wrapErr(name, fmt.Sprintf("%T", b.Term), err)
		}
		summaryChanged = summaryChanged || changed
	}

	// Mirror the function's own current parameter-variable types back
	// into its summary (spec.md §4.7.3): this is the only path by which
	// a caller-independent initial taint seeded directly onto a
	// parameter variable (RunWholeProgram's initialVars, or a single-
	// function entry point reusing an already-visited function) reaches
	// the summary that call sites elsewhere actually read from.
	for i, p := range f.Params {
		if i >= len(summ.Params()) {
			break
		}
		pt, ok := fs.Lookup(p)
		if !ok {
			continue
		}
		changed, err := summ.UpdateParam(i, pt, fs.Cells())
		if err != nil {
			return wrapErr(name, "", err)
		}
		summaryChanged = summaryChanged || changed
	}

	if summaryChanged {
		ts.enqueueCallers(name)
	}
	if fs.Changed() {
		ts.worklist.Add(name)
	}
	return nil
}
