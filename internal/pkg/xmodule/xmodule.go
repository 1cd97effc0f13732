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

// Package xmodule implements the cross-module analysis collaborator
// spec.md §6 leaves as an external interface: function lookup and
// enumeration, a type-indexed function index (for resolving indirect
// calls by signature, since no call graph is supplied up front), and a
// per-function control-dependence graph. spec.md treats all of this as
// "supplied by the embedder"; this package is the concrete
// implementation cmd/taintinfer embeds so the engine is runnable
// end-to-end over a real .ll module.
package xmodule

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// Module is a github.com/llir/llvm/ir.Module indexed for the queries
// the taint driver needs during the fixpoint.
type Module struct {
	m        *ir.Module
	byName   map[string]*ir.Func
	byType   map[string][]*ir.Func
	cdgCache map[*ir.Func]*ControlDependence
}

// New indexes m for fast lookup. The underlying *ir.Module is never
// mutated: the collaborator only reads it.
func New(m *ir.Module) *Module {
	mod := &Module{
		m:        m,
		byName:   make(map[string]*ir.Func, len(m.Funcs)),
		byType:   make(map[string][]*ir.Func),
		cdgCache: make(map[*ir.Func]*ControlDependence),
	}
	for _, f := range m.Funcs {
		mod.byName[f.Name()] = f
		key := f.Sig.String()
		mod.byType[key] = append(mod.byType[key], f)
	}
	return mod
}

// LLVMModule returns the underlying IR module.
func (m *Module) LLVMModule() *ir.Module { return m.m }

// FuncByName looks up a function (defined or declared-only) by its
// unqualified name (without the leading '@').
func (m *Module) FuncByName(name string) (*ir.Func, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// DefinedFuncs returns every function in the module with a body, in
// module order: the set the whole-program entry point seeds the
// worklist with.
func (m *Module) DefinedFuncs() []*ir.Func {
	out := make([]*ir.Func, 0, len(m.m.Funcs))
	for _, f := range m.m.Funcs {
		if len(f.Blocks) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// IsExternal reports whether f has no body: a declaration, handled
// through Config's ExternalFunctionHandling policy rather than by
// processing a body.
func IsExternal(f *ir.Func) bool { return len(f.Blocks) == 0 }

// CandidatesForSignature returns every function (defined or declared)
// whose signature exactly matches sig, the conservative resolution
// rule for an indirect call through a function-pointer-typed value
// whose concrete target isn't statically known (spec.md §4.9's call
// handling for indirect calls): every same-shaped function is a
// possible callee, and its summary is joined against accordingly.
func (m *Module) CandidatesForSignature(sig *types.FuncType) []*ir.Func {
	return m.byType[sig.String()]
}

// ControlDependence returns (computing and caching on first use) the
// control-dependence graph of f.
func (m *Module) ControlDependence(f *ir.Func) *ControlDependence {
	if cd, ok := m.cdgCache[f]; ok {
		return cd
	}
	cd := BuildControlDependence(f)
	m.cdgCache[f] = cd
	return cd
}

// Globals returns the module's global variable declarations/definitions.
func (m *Module) Globals() []*ir.Global { return m.m.Globals }
