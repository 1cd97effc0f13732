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
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/config"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

func mustSummary(t *testing.T, r *TaintResult, fn string) *summaryView {
	t.Helper()
	s, ok := r.Summary(fn)
	if !ok {
		t.Fatalf("no summary computed for %q", fn)
	}
	return &summaryView{s}
}

// summaryView adapts summary.FunctionSummary's opaque tainttype.Type
// values to boolean top-level assertions, since test cases care about
// "tainted or not", not about cell identity.
type summaryView struct {
	s interface {
		Params() []tainttype.Type
		Ret() tainttype.Type
	}
}

func (v *summaryView) retTainted() bool { return tainttype.IsTainted(v.s.Ret()) }
func (v *summaryView) paramTainted(i int) bool {
	return tainttype.IsTainted(v.s.Params()[i])
}

// buildScenario1 builds: define i32 @f(i32 %x) { %y = add i32 %x, 1; ret i32 %y }
func buildScenario1() *ir.Module {
	f := ir.NewFunc("f", types.I32, ir.NewParam("x", types.I32))
	entry := f.NewBlock("entry")
	y := entry.NewAdd(f.Params[0], constant.NewInt(types.I32, 1))
	entry.NewRet(y)
	m := &ir.Module{}
	m.Funcs = append(m.Funcs, f)
	return m
}

func TestDirectTaintPropagation(t *testing.T) {
	m := buildScenario1()
	mod := xmodule.New(m)
	result, err := RunSingleFunction(mod, config.Default(), "f", []tainttype.Type{tainttype.Tainted()}, nil)
	if err != nil {
		t.Fatalf("RunSingleFunction: %v", err)
	}
	sv := mustSummary(t, result, "f")
	if !sv.paramTainted(0) {
		t.Error("expected parameter 0 to be tainted")
	}
	if !sv.retTainted() {
		t.Error("expected return value to be tainted")
	}
}

func TestUntaintedBaseline(t *testing.T) {
	m := buildScenario1()
	mod := xmodule.New(m)
	result, err := RunSingleFunction(mod, config.Default(), "f", []tainttype.Type{tainttype.Untainted()}, nil)
	if err != nil {
		t.Fatalf("RunSingleFunction: %v", err)
	}
	sv := mustSummary(t, result, "f")
	if sv.paramTainted(0) {
		t.Error("expected parameter 0 to remain untainted")
	}
	if sv.retTainted() {
		t.Error("expected return value to remain untainted")
	}
}

// buildScenario3 builds:
//
//	define i32 @f(i32 %tainted) {
//	  %p = alloca i32
//	  store i32 %tainted, i32* %p
//	  %r = load i32, i32* %p
//	  ret i32 %r
//	}
func buildScenario3() (*ir.Module, *ir.InstLoad) {
	f := ir.NewFunc("f", types.I32, ir.NewParam("tainted", types.I32))
	entry := f.NewBlock("entry")
	p := entry.NewAlloca(types.I32)
	entry.NewStore(f.Params[0], p)
	r := entry.NewLoad(types.I32, p)
	entry.NewRet(r)
	m := &ir.Module{}
	m.Funcs = append(m.Funcs, f)
	return m, r
}

func TestStoreThroughPointerPropagation(t *testing.T) {
	m, r := buildScenario3()
	mod := xmodule.New(m)
	result, err := RunSingleFunction(mod, config.Default(), "f", []tainttype.Type{tainttype.Tainted()}, nil)
	if err != nil {
		t.Fatalf("RunSingleFunction: %v", err)
	}
	rTy, ok := result.VariableType("f", r)
	if !ok {
		t.Fatal("no taint type recorded for %r")
	}
	if !tainttype.IsTainted(rTy) {
		t.Errorf("%%r = %s, want tainted", rTy)
	}
}

// buildScenario4 builds a diamond where D's Phi joins two untainted
// incoming values, but A's branch condition is tainted:
//
//	define void @f(i32 %cond, i32 %b, i32 %c) {
//	A: %c2 = icmp ne i32 %cond, 0; condbr %c2, B, C
//	B: br D
//	C: br D
//	D: %phi = phi i32 [%b, B], [%c, C]; ret void
//	}
func buildScenario4() (*ir.Module, *ir.InstPhi) {
	f := ir.NewFunc("f", types.Void,
		ir.NewParam("cond", types.I32),
		ir.NewParam("b", types.I32),
		ir.NewParam("c", types.I32),
	)
	a := f.NewBlock("A")
	b := f.NewBlock("B")
	c := f.NewBlock("C")
	d := f.NewBlock("D")

	cond2 := a.NewICmp(enum.IPredNE, f.Params[0], constant.NewInt(types.I32, 0))
	a.NewCondBr(cond2, b, c)
	b.NewBr(d)
	c.NewBr(d)
	phi := d.NewPhi(ir.NewIncoming(f.Params[1], b), ir.NewIncoming(f.Params[2], c))
	d.NewRet(nil)

	m := &ir.Module{}
	m.Funcs = append(m.Funcs, f)
	return m, phi
}

func TestImplicitFlowViaControlDependence(t *testing.T) {
	m, phi := buildScenario4()
	mod := xmodule.New(m)
	result, err := RunSingleFunction(mod, config.Default(), "f",
		[]tainttype.Type{tainttype.Tainted(), tainttype.Untainted(), tainttype.Untainted()}, nil)
	if err != nil {
		t.Fatalf("RunSingleFunction: %v", err)
	}
	phiTy, ok := result.VariableType("f", phi)
	if !ok {
		t.Fatal("no taint type recorded for %phi")
	}
	if !tainttype.IsTainted(phiTy) {
		t.Errorf("%%phi = %s, want tainted (implicit flow through tainted branch condition)", phiTy)
	}
}

// buildScenario5 builds:
//
//	define i32 @g(i32 %x) { ret i32 %x }
//	define i32 @f(i32 %t) { %r = call i32 @g(i32 %t); ret i32 %r }
//
// (the test seeds f's parameter %t as tainted, so f passes a tainted
// argument straight to g).
func buildScenario5() (*ir.Module, *ir.Func, *ir.Func) {
	g := ir.NewFunc("g", types.I32, ir.NewParam("x", types.I32))
	gEntry := g.NewBlock("entry")
	gEntry.NewRet(g.Params[0])

	f := ir.NewFunc("f", types.I32, ir.NewParam("t", types.I32))
	fEntry := f.NewBlock("entry")
	call := fEntry.NewCall(g, f.Params[0])
	fEntry.NewRet(call)

	m := &ir.Module{}
	m.Funcs = append(m.Funcs, g, f)
	return m, f, g
}

func TestInterproceduralSummary(t *testing.T) {
	m, _, _ := buildScenario5()
	mod := xmodule.New(m)
	result, err := RunWholeProgram(mod, config.Default(), nil, nil)
	if err != nil {
		t.Fatalf("RunWholeProgram: %v", err)
	}

	// f's own parameter %t defaults to untainted with no caller of f, so
	// g never observes a tainted argument through this call graph alone;
	// seed f directly instead to exercise propagation through the call.
	result, err = RunSingleFunction(mod, config.Default(), "f", []tainttype.Type{tainttype.Tainted()}, nil)
	if err != nil {
		t.Fatalf("RunSingleFunction: %v", err)
	}
	gv := mustSummary(t, result, "g")
	if !gv.paramTainted(0) {
		t.Error("expected g's parameter to become tainted via the call from f")
	}
	if !gv.retTainted() {
		t.Error("expected g's return to become tainted")
	}
	fv := mustSummary(t, result, "f")
	if !fv.retTainted() {
		t.Error("expected f's return (g's result, passed through) to become tainted")
	}
}

// buildScenario6 builds:
//
//	declare i32 @h(i32, i32)
//	define i32 @f(i32 %t) { %r = call i32 @h(i32 %t, i32 0); ret i32 %r }
func buildScenario6() (*ir.Module, *ir.Func) {
	h := ir.NewFunc("h", types.I32, ir.NewParam("", types.I32), ir.NewParam("", types.I32))
	// h has no blocks: a declaration, per xmodule.IsExternal.

	f := ir.NewFunc("f", types.I32, ir.NewParam("t", types.I32))
	entry := f.NewBlock("entry")
	call := entry.NewCall(h, f.Params[0], constant.NewInt(types.I32, 0))
	entry.NewRet(call)

	m := &ir.Module{}
	m.Funcs = append(m.Funcs, h, f)
	return m, f
}

func TestExternalPolicyPropagateTaintShallow(t *testing.T) {
	m, _ := buildScenario6()
	mod := xmodule.New(m)
	cfg := config.Default()
	cfg.ExtFunctions = map[string]config.ExternalFunctionHandling{
		"h": config.PropagateTaintShallow,
	}

	result, err := RunSingleFunction(mod, cfg, "f", []tainttype.Type{tainttype.Tainted()}, nil)
	if err != nil {
		t.Fatalf("RunSingleFunction: %v", err)
	}
	fv := mustSummary(t, result, "f")
	if !fv.retTainted() {
		t.Error("expected f's return (the call result) to become tainted")
	}
}

// TestIdempotenceOfReanalysis runs the single-function analysis of f
// twice, each time from a fresh TaintState with the same inputs, and
// checks that both runs give f the same summary. It does not re-run
// compute on an already-finished TaintState.
func TestIdempotenceOfReanalysis(t *testing.T) {
	m := buildScenario1()
	mod := xmodule.New(m)
	cfg := config.Default()

	first, err := RunSingleFunction(mod, cfg, "f", []tainttype.Type{tainttype.Tainted()}, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunSingleFunction(mod, cfg, "f", []tainttype.Type{tainttype.Tainted()}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	fv1 := mustSummary(t, first, "f")
	fv2 := mustSummary(t, second, "f")
	if fv1.retTainted() != fv2.retTainted() || fv1.paramTainted(0) != fv2.paramTainted(0) {
		t.Error("re-running the analysis from scratch on the same inputs produced a different result")
	}
}
