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
	"log"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/config"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/funcstate"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

// processCall dispatches an InstCall to intrinsic handling, a direct
// call to a defined or declared function, or an indirect call resolved
// by signature (spec.md §4.9).
func (ts *TaintState) processCall(fs *funcstate.FunctionTaintState, v *ir.InstCall) error {
	if f, ok := v.Callee.(*ir.Func); ok {
		name := f.Name()
		if isIntrinsic(name) {
			return ts.processIntrinsicCall(fs, v, name)
		}
		if target, known := ts.module.FuncByName(name); known && !xmodule.IsExternal(target) {
			return ts.processDirectCall(fs, v, target)
		}
		return ts.processExternalCall(fs, v, name)
	}
	return ts.processIndirectCall(fs, v)
}

// isIntrinsic reports whether name is an "llvm.*" compiler intrinsic,
// which is never declared/defined as an ordinary function and so is
// handled separately from both the direct- and external-call paths.
func isIntrinsic(name string) bool {
	return strings.HasPrefix(name, "llvm.")
}

// processIntrinsicCall handles the small set of intrinsics the
// analysis gives specific meaning to; every other "llvm.*" intrinsic
// (dbg.*, lifetime.*, invariant.*, and the rest) is treated as a no-op,
// since none of them read or write program data the taint lattice
// tracks.
func (ts *TaintState) processIntrinsicCall(fs *funcstate.FunctionTaintState, v *ir.InstCall, name string) error {
	switch {
	case strings.HasPrefix(name, "llvm.memset"):
		// llvm.memset.*(dst, val, len, ...): if the fill byte itself is
		// tainted, the whole destination object becomes tainted; the
		// length and alignment operands never carry taint into memory.
		if len(v.Args) < 2 {
			return fmt.Errorf("%s: expected at least 2 arguments, got %d", name, len(v.Args))
		}
		if fs.IsScalarOperandTainted(v.Args[1]) {
			_, err := fs.TaintPointee(v.Args[0])
			return err
		}
		return nil

	case strings.HasPrefix(name, "llvm.memcpy"), strings.HasPrefix(name, "llvm.memmove"):
		// llvm.memcpy.*(dst, src, len, ...)/llvm.memmove.*: the source
		// object's current taint type is joined wholesale into the
		// destination object.
		if len(v.Args) < 2 {
			return fmt.Errorf("%s: expected at least 2 arguments, got %d", name, len(v.Args))
		}
		srcVal, err := fs.Dereference(v.Args[1])
		if err != nil {
			return err
		}
		_, err = fs.UpdatePointee(v.Args[0], srcVal)
		return err

	case strings.HasPrefix(name, "llvm.dbg."),
		strings.HasPrefix(name, "llvm.lifetime."),
		strings.HasPrefix(name, "llvm.invariant."),
		strings.HasPrefix(name, "llvm.assume"),
		strings.HasPrefix(name, "llvm.expect"):
		return nil

	default:
		log.Printf("function %s: unmodeled intrinsic %s treated as a no-op", fs.Name(), name)
		return nil
	}
}

// processDirectCall handles a direct call to a function this module
// defines (declaration-only callees go through processExternalCall
// instead; spec.md §4.8): every argument is
// joined into the callee's summary (enqueueing the callee if that
// changes anything), a caller edge is recorded so a later change to
// the callee's return type re-enqueues this function, and the call's
// result is the callee's current summary return type.
func (ts *TaintState) processDirectCall(fs *funcstate.FunctionTaintState, v *ir.InstCall, target *ir.Func) error {
	name := target.Name()
	ts.addCallerEdge(name, fs.Name())

	summ := ts.summaries.GetOrCreate(name, target.Sig, fs.Builder())
	for i, arg := range v.Args {
		if i >= len(summ.Params()) {
			break // varargs tail: spec.md does not track taint through varargs.
		}
		changed, err := summ.UpdateParam(i, fs.GetType(arg), fs.Cells())
		if err != nil {
			return fmt.Errorf("calling %s: %w", name, err)
		}
		if changed {
			ts.worklist.Add(name)
		}
	}
	_, err := fs.UpdateVar(v, summ.Ret())
	return err
}

// processExternalCall handles a call to a function with no body
// available, per the Config-selected ExternalFunctionHandling policy
// (spec.md §4.9).
func (ts *TaintState) processExternalCall(fs *funcstate.FunctionTaintState, v *ir.InstCall, name string) error {
	switch ts.config.HandlingFor(name) {
	case config.IgnoreAndReturnUntainted:
		fs.GetType(v) // materialize the default (untainted) result, nothing to propagate.
		return nil

	case config.IgnoreAndReturnTainted:
		tainted, err := tainttype.ToTaintedDeep(fs.GetType(v), fs.Structs(), fs.Cells())
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, tainted)
		return err

	case config.PropagateTaintShallow:
		anyTainted := false
		for _, arg := range v.Args {
			if fs.IsScalarOperandTainted(arg) {
				anyTainted = true
				break
			}
		}
		if !anyTainted {
			fs.GetType(v)
			return nil
		}
		tainted, err := tainttype.ToTaintedDeep(fs.GetType(v), fs.Structs(), fs.Cells())
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, tainted)
		return err

	case config.Panic:
		return fmt.Errorf("call to external function %q reached Panic handling policy", name)

	default:
		return fmt.Errorf("call to external function %q: no usable handling policy configured", name)
	}
}

// funcPtrSig extracts the function signature out of a function-pointer-
// typed value, for resolving an indirect call's candidates.
func funcPtrSig(v *ir.InstCall) (*types.FuncType, bool) {
	ptr, ok := v.Callee.Type().(*types.PointerType)
	if !ok {
		return nil, false
	}
	sig, ok := ptr.ElemType.(*types.FuncType)
	return sig, ok
}

// processIndirectCall handles a call through a function-pointer value
// whose concrete target isn't known statically: every function in the
// module sharing the pointer's signature is a possible callee, and the
// call's result is the join of all of their summaries' return types
// (spec.md §4.9's conservative resolution for indirect calls).
func (ts *TaintState) processIndirectCall(fs *funcstate.FunctionTaintState, v *ir.InstCall) error {
	sig, ok := funcPtrSig(v)
	if !ok {
		return fmt.Errorf("indirect call target has no recognizable function-pointer type")
	}
	candidates := ts.module.CandidatesForSignature(sig)
	if len(candidates) == 0 {
		log.Printf("function %s: indirect call has no resolvable candidates, conservatively tainting result", fs.Name())
		tainted, err := tainttype.ToTaintedDeep(fs.GetType(v), fs.Structs(), fs.Cells())
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, tainted)
		return err
	}

	result := fs.GetType(v)
	for _, cand := range candidates {
		if xmodule.IsExternal(cand) {
			continue
		}
		name := cand.Name()
		ts.addCallerEdge(name, fs.Name())
		summ := ts.summaries.GetOrCreate(name, cand.Sig, fs.Builder())
		for i, arg := range v.Args {
			if i >= len(summ.Params()) {
				break
			}
			changed, err := summ.UpdateParam(i, fs.GetType(arg), fs.Cells())
			if err != nil {
				return fmt.Errorf("indirect call candidate %s: %w", name, err)
			}
			if changed {
				ts.worklist.Add(name)
			}
		}
		joined, _, err := tainttype.Join(result, summ.Ret(), fs.Cells())
		if err != nil {
			return fmt.Errorf("joining indirect call candidate %s's return type: %w", name, err)
		}
		result = joined
	}
	_, err := fs.UpdateVar(v, result)
	return err
}
