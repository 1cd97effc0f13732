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

// Package funcstate implements FunctionTaintState: the per-function
// working state of the taint fixpoint (spec.md §4.5) — a map from every
// SSA register the function has produced or consumed to its current
// taint type, plus a bit per basic block recording whether that block's
// terminator operand (branch condition, switch scrutinee, indirectbr
// address or returned value) is tainted.
package funcstate

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
)

// FunctionTaintState is the mutable taint state for one function during
// one or more passes of the outer fixpoint loop.
type FunctionTaintState struct {
	name    string
	cells   *tainttype.Arena
	structs *tainttype.NamedStructs
	globals *tainttype.Globals
	builder *tainttype.Builder

	vars               map[value.Value]tainttype.Type
	taintedTerminators map[*ir.Block]bool

	changed bool
}

// New returns an empty FunctionTaintState for the function named name,
// sharing the given process-wide tables.
func New(name string, cells *tainttype.Arena, structs *tainttype.NamedStructs, globals *tainttype.Globals) *FunctionTaintState {
	return &FunctionTaintState{
		name:               name,
		cells:              cells,
		structs:            structs,
		globals:            globals,
		builder:            tainttype.NewBuilder(cells, structs),
		vars:               map[value.Value]tainttype.Type{},
		taintedTerminators: map[*ir.Block]bool{},
	}
}

// Name returns the function name this state belongs to.
func (fs *FunctionTaintState) Name() string { return fs.name }

// Cells, Structs, Globals and Builder expose the shared tables so that
// driver-side transfer functions (which need to mint cells, register
// named structs, or read globals while processing an instruction) don't
// need to thread them through separately.
func (fs *FunctionTaintState) Cells() *tainttype.Arena          { return fs.cells }
func (fs *FunctionTaintState) Structs() *tainttype.NamedStructs { return fs.structs }
func (fs *FunctionTaintState) Globals() *tainttype.Globals      { return fs.globals }
func (fs *FunctionTaintState) Builder() *tainttype.Builder      { return fs.builder }

// GetType returns v's current taint type, lazily constructing a
// wholly-untainted initial type from v's LLVM type the first time v is
// observed (spec.md §4.5: unseen locals default to untainted until
// something propagates taint into them).
func (fs *FunctionTaintState) GetType(v value.Value) tainttype.Type {
	if t, ok := fs.vars[v]; ok {
		return t
	}
	// A reference to a module-level global must resolve to the shared
	// Globals table's cell rather than mint a fresh one: fs.vars is
	// per-function, so without this special case two functions
	// referencing the same @global would each build their own pointee
	// cell and never observe each other's stores.
	if g, ok := v.(*ir.Global); ok {
		if c, err := fs.globals.Cell(g.Name()); err == nil {
			t := tainttype.UntaintedPointer(c)
			fs.vars[v] = t
			return t
		}
	}
	t := fs.builder.FromLLVMType(v.Type())
	fs.vars[v] = t
	return t
}

// Lookup returns v's current taint type without lazily constructing
// one, for read-only inspection (e.g. by internal/pkg/taint's result
// type) after the fixpoint has already finished running.
func (fs *FunctionTaintState) Lookup(v value.Value) (tainttype.Type, bool) {
	t, ok := fs.vars[v]
	return t, ok
}

// SetInitial directly installs t as v's taint type, overwriting any
// prior value without joining against it. Used once, up front, to seed
// parameters from a FunctionSummary or an explicit caller-supplied type
// (spec.md's single-function entry point) — there is nothing to join
// against yet.
func (fs *FunctionTaintState) SetInitial(v value.Value, t tainttype.Type) {
	fs.vars[v] = t
}

// UpdateVar joins newTy into v's current taint type. It reports whether
// the join changed v's type, and also latches fs.changed so a full pass
// can tell whether anything in this function changed at all.
func (fs *FunctionTaintState) UpdateVar(v value.Value, newTy tainttype.Type) (bool, error) {
	cur := fs.GetType(v)
	joined, changed, err := tainttype.Join(cur, newTy, fs.cells)
	if err != nil {
		return false, fmt.Errorf("function %s: updating %s: %w", fs.name, v, err)
	}
	if changed {
		fs.vars[v] = joined
		fs.changed = true
	}
	return changed, nil
}

// Dereference reads the current taint type of the pointee cell that v
// (which must currently have a Pointer taint type) refers to, and
// records this function as an observer of that cell so that a future
// change to the pointee re-enqueues it.
func (fs *FunctionTaintState) Dereference(v value.Value) (tainttype.Type, error) {
	p, ok := fs.GetType(v).(tainttype.Pointer)
	if !ok {
		return nil, fmt.Errorf("function %s: %s does not have pointer taint type", fs.name, v)
	}
	fs.cells.AddUser(p.Cell, fs.name)
	return fs.cells.Read(p.Cell), nil
}

// UpdatePointee joins newTy into the pointee cell that v (which must
// currently have a Pointer taint type) refers to: the transfer function
// for Store and for memset-shaped external calls.
func (fs *FunctionTaintState) UpdatePointee(v value.Value, newTy tainttype.Type) (bool, error) {
	p, ok := fs.GetType(v).(tainttype.Pointer)
	if !ok {
		return false, fmt.Errorf("function %s: %s does not have pointer taint type", fs.name, v)
	}
	changed, err := fs.cells.Update(p.Cell, newTy)
	if err != nil {
		return false, fmt.Errorf("function %s: storing through %s: %w", fs.name, v, err)
	}
	if changed {
		fs.changed = true
	}
	return changed, nil
}

// TaintPointee deep-taints the pointee cell that v refers to, e.g. for
// Config.DereferencingTaintedPtrGivesTainted or llvm.memset over the
// whole object.
func (fs *FunctionTaintState) TaintPointee(v value.Value) (bool, error) {
	p, ok := fs.GetType(v).(tainttype.Pointer)
	if !ok {
		return false, fmt.Errorf("function %s: %s does not have pointer taint type", fs.name, v)
	}
	changed, err := fs.cells.Taint(p.Cell, fs.structs)
	if changed {
		fs.changed = true
	}
	return changed, err
}

// IsScalarOperandTainted reports whether v currently carries tainted
// data: for a scalar/function-pointer/data-pointer operand this is its
// own top-level tag; for an aggregate operand (spec.md §4.5) it is
// tainted iff any element or field reachable within it is tainted.
func (fs *FunctionTaintState) IsScalarOperandTainted(v value.Value) bool {
	return tainttype.IsTaintedDeep(fs.GetType(v), fs.structs)
}

// MarkTerminatorTainted records that blk's terminator operand is
// tainted (spec.md §4.7.6's implicit-flow tracking):
// any Phi or Store instruction control-dependent on blk must have taint
// joined in accordingly.
func (fs *FunctionTaintState) MarkTerminatorTainted(blk *ir.Block) {
	if !fs.taintedTerminators[blk] {
		fs.taintedTerminators[blk] = true
		fs.changed = true
	}
}

// IsTerminatorTainted reports whether blk's terminator has been marked
// tainted by MarkTerminatorTainted.
func (fs *FunctionTaintState) IsTerminatorTainted(blk *ir.Block) bool {
	return fs.taintedTerminators[blk]
}

// Changed reports whether anything in this function's state has
// changed since the last call to Changed, and resets the flag. The
// driver calls this once per pass over the function to decide whether
// the function's summary needs recomputing and whether callers/callees
// need to be re-enqueued.
func (fs *FunctionTaintState) Changed() bool {
	c := fs.changed
	fs.changed = false
	return c
}

// MarkChanged lets driver code (e.g. after updating a FunctionSummary
// derived from this state) explicitly flag that something changed, for
// cases that don't go through UpdateVar/UpdatePointee/MarkTerminatorTainted.
func (fs *FunctionTaintState) MarkChanged() { fs.changed = true }
