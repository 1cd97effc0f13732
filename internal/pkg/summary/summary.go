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

// Package summary implements FunctionSummary: the per-function
// parameter/return taint-type contract the interprocedural fixpoint
// joins calls against (spec.md §4.6), and the per-module table of
// summaries keyed by function name.
package summary

import (
	"fmt"

	"github.com/llir/llvm/ir/types"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
)

// FunctionSummary is the externally-visible taint contract of a
// function: one taint type per parameter, and one for its return value.
// A call site joins its argument types into the callee's summary
// (possibly enqueueing the callee for reprocessing) and reads the
// summary's return type as the call's result, without needing the
// callee's full body to already be processed.
type FunctionSummary struct {
	params []tainttype.Type
	ret    tainttype.Type
}

// NewUntainted returns the wholly-untainted summary matching sig's
// shape, used the first time a function is seen (by declaration or by
// definition).
func NewUntainted(sig *types.FuncType, builder *tainttype.Builder) *FunctionSummary {
	params := make([]tainttype.Type, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = builder.FromLLVMType(p)
	}
	return &FunctionSummary{
		params: params,
		ret:    builder.FromLLVMType(sig.RetType),
	}
}

// Params returns the summary's current parameter taint types, in
// declaration order. Callers must not mutate the returned slice.
func (s *FunctionSummary) Params() []tainttype.Type { return s.params }

// Ret returns the summary's current return taint type.
func (s *FunctionSummary) Ret() tainttype.Type { return s.ret }

// UpdateParam joins newTy into parameter i's current taint type.
func (s *FunctionSummary) UpdateParam(i int, newTy tainttype.Type, arena *tainttype.Arena) (changed bool, err error) {
	if i < 0 || i >= len(s.params) {
		return false, fmt.Errorf("parameter index %d out of range (have %d params)", i, len(s.params))
	}
	joined, changed, err := tainttype.Join(s.params[i], newTy, arena)
	if err != nil {
		return false, fmt.Errorf("updating parameter %d: %w", i, err)
	}
	if changed {
		s.params[i] = joined
	}
	return changed, nil
}

// UpdateRet joins newTy into the summary's current return taint type.
func (s *FunctionSummary) UpdateRet(newTy tainttype.Type, arena *tainttype.Arena) (changed bool, err error) {
	joined, changed, err := tainttype.Join(s.ret, newTy, arena)
	if err != nil {
		return false, fmt.Errorf("updating return type: %w", err)
	}
	if changed {
		s.ret = joined
	}
	return changed, nil
}

// TaintRet deep-taints the summary's return type and reports whether
// that changed it.
func (s *FunctionSummary) TaintRet(ns *tainttype.NamedStructs, arena *tainttype.Arena) (changed bool, err error) {
	t, err := tainttype.ToTaintedDeep(s.ret, ns, arena)
	if err != nil {
		return false, err
	}
	return s.UpdateRet(t, arena)
}

// Table is the per-module map from function name to FunctionSummary.
type Table struct {
	entries map[string]*FunctionSummary
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{entries: map[string]*FunctionSummary{}}
}

// Get returns fn's summary, if one has been created.
func (t *Table) Get(fn string) (*FunctionSummary, bool) {
	s, ok := t.entries[fn]
	return s, ok
}

// GetOrCreate returns fn's summary, creating a wholly-untainted one
// matching sig the first time fn is seen.
func (t *Table) GetOrCreate(fn string, sig *types.FuncType, builder *tainttype.Builder) *FunctionSummary {
	if s, ok := t.entries[fn]; ok {
		return s
	}
	s := NewUntainted(sig, builder)
	t.entries[fn] = s
	return s
}

// Names returns the function names with a summary, for diagnostics.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	return out
}
