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

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/funcstate"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

// binaryOperands extracts the two data operands of a binary arithmetic
// or bitwise instruction. These all share the X, Y value.Value field
// shape in github.com/llir/llvm/ir.
func binaryOperands(inst ir.Instruction) (x, y value.Value, ok bool) {
	switch i := inst.(type) {
	case *ir.InstAdd:
		return i.X, i.Y, true
	case *ir.InstFAdd:
		return i.X, i.Y, true
	case *ir.InstSub:
		return i.X, i.Y, true
	case *ir.InstFSub:
		return i.X, i.Y, true
	case *ir.InstMul:
		return i.X, i.Y, true
	case *ir.InstFMul:
		return i.X, i.Y, true
	case *ir.InstUDiv:
		return i.X, i.Y, true
	case *ir.InstSDiv:
		return i.X, i.Y, true
	case *ir.InstFDiv:
		return i.X, i.Y, true
	case *ir.InstURem:
		return i.X, i.Y, true
	case *ir.InstSRem:
		return i.X, i.Y, true
	case *ir.InstFRem:
		return i.X, i.Y, true
	case *ir.InstShl:
		return i.X, i.Y, true
	case *ir.InstLShr:
		return i.X, i.Y, true
	case *ir.InstAShr:
		return i.X, i.Y, true
	case *ir.InstAnd:
		return i.X, i.Y, true
	case *ir.InstOr:
		return i.X, i.Y, true
	case *ir.InstXor:
		return i.X, i.Y, true
	case *ir.InstICmp:
		return i.X, i.Y, true
	case *ir.InstFCmp:
		return i.X, i.Y, true
	default:
		return nil, nil, false
	}
}

// conversionOperand extracts the single data operand of a value-
// preserving conversion instruction (all share the From value.Value/To
// types.Type shape), or of FNeg (which has a bare X operand instead).
func conversionOperand(inst ir.Instruction) (x value.Value, ok bool) {
	switch i := inst.(type) {
	case *ir.InstTrunc:
		return i.From, true
	case *ir.InstZExt:
		return i.From, true
	case *ir.InstSExt:
		return i.From, true
	case *ir.InstFPTrunc:
		return i.From, true
	case *ir.InstFPExt:
		return i.From, true
	case *ir.InstFPToUI:
		return i.From, true
	case *ir.InstFPToSI:
		return i.From, true
	case *ir.InstUIToFP:
		return i.From, true
	case *ir.InstSIToFP:
		return i.From, true
	case *ir.InstAddrSpaceCast:
		return i.From, true
	case *ir.InstFNeg:
		return i.X, true
	default:
		return nil, false
	}
}

// constIndex extracts a compile-time-constant integer index, as used
// by GetElementPtr/ExtractValue/InsertValue field selectors.
func constIndex(v value.Value) (int, bool) {
	if ci, ok := v.(*constant.Int); ok {
		return int(ci.X.Int64()), true
	}
	return 0, false
}

// blockImplicitlyTainted reports whether b's execution is controlled by
// a branch whose condition is currently tainted (spec.md §4.7.6): every
// Phi or Store in such a block must have its result/written value
// joined with Tainted, since which value is observed, or whether the
// store happens at all, depends on tainted data even though no tainted
// value is a direct operand.
func blockImplicitlyTainted(fs *funcstate.FunctionTaintState, cd *xmodule.ControlDependence, b *ir.Block) bool {
	for _, a := range cd.ControllingBlocks(b) {
		if fs.IsTerminatorTainted(a) {
			return true
		}
	}
	return false
}

// aggregateFieldType returns the taint type of field idx of aggregate
// type t (a Struct, ArrayOrVector, or Named), used by ExtractValue,
// InsertValue and the struct/array-indexing steps of GetElementPtr.
func aggregateFieldType(structs *tainttype.NamedStructs, t tainttype.Type, idx int) (tainttype.Type, error) {
	switch v := t.(type) {
	case tainttype.Struct:
		if idx < 0 || idx >= len(v.Fields) {
			return nil, fmt.Errorf("struct field index %d out of range", idx)
		}
		return v.Fields[idx], nil
	case tainttype.ArrayOrVector:
		return v.Elem, nil
	case tainttype.Named:
		return structs.FieldType(v.Name, idx)
	default:
		return nil, fmt.Errorf("cannot index into non-aggregate taint type %s", t)
	}
}

// withAggregateField returns a copy of aggregate type t with field idx
// replaced by newField (Struct/ArrayOrVector case), or mutates the
// shared canonical definition in place and returns t unchanged (Named
// case, since the canonical field cell is the single source of truth).
func withAggregateField(structs *tainttype.NamedStructs, cells *tainttype.Arena, t tainttype.Type, idx int, newField tainttype.Type) (tainttype.Type, error) {
	switch v := t.(type) {
	case tainttype.Struct:
		if idx < 0 || idx >= len(v.Fields) {
			return nil, fmt.Errorf("struct field index %d out of range", idx)
		}
		fields := append([]tainttype.Type(nil), v.Fields...)
		joined, _, err := tainttype.Join(fields[idx], newField, cells)
		if err != nil {
			return nil, err
		}
		fields[idx] = joined
		return tainttype.Struct{Fields: fields}, nil
	case tainttype.ArrayOrVector:
		joined, _, err := tainttype.Join(v.Elem, newField, cells)
		if err != nil {
			return nil, err
		}
		return tainttype.ArrayOrVector{Elem: joined}, nil
	case tainttype.Named:
		if _, err := structs.UpdateField(v.Name, idx, newField); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("cannot index into non-aggregate taint type %s", t)
	}
}

// processInstruction applies the transfer function for inst, updating
// fs in place.
func (ts *TaintState) processInstruction(fs *funcstate.FunctionTaintState, cd *xmodule.ControlDependence, b *ir.Block, inst ir.Instruction) error {
	cells := fs.Cells()

	if x, y, ok := binaryOperands(inst); ok {
		joined, _, err := tainttype.Join(fs.GetType(x), fs.GetType(y), cells)
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(inst.(value.Value), joined)
		return err
	}
	if x, ok := conversionOperand(inst); ok {
		_, err := fs.UpdateVar(inst.(value.Value), fs.GetType(x))
		return err
	}

	switch v := inst.(type) {
	case *ir.InstAlloca:
		// fs.GetType lazily mints the cell/pointee on first sight from
		// v's own (pointer) type. If the (optional) element-count operand
		// is tainted, the number of objects allocated depends on tainted
		// data, so the resulting pointer value itself must be tainted
		// (spec.md §4.7.4) — distinct from the pointee it refers to.
		result := fs.GetType(v)
		if v.NElems != nil && fs.IsScalarOperandTainted(v.NElems) {
			p, ok := result.(tainttype.Pointer)
			if !ok {
				return fmt.Errorf("alloca result is not a pointer taint type (%s)", result)
			}
			_, err := fs.UpdateVar(v, tainttype.TaintedPointer(p.Cell))
			return err
		}
		return nil

	case *ir.InstBitCast:
		srcTy := fs.GetType(v.From)
		if p, ok := srcTy.(tainttype.Pointer); ok {
			// A pointer bitcast is a pure reinterpretation: it shares the
			// same pointee cell, it does not mint a new one.
			_, err := fs.UpdateVar(v, tainttype.Pointer{Tainted: p.Tainted, Cell: p.Cell})
			return err
		}
		_, err := fs.UpdateVar(v, srcTy)
		return err

	case *ir.InstPtrToInt:
		srcTy := fs.GetType(v.From)
		p, ok := srcTy.(tainttype.Pointer)
		if !ok {
			return fmt.Errorf("ptrtoint operand is not a pointer taint type (%s)", srcTy)
		}
		// Documented unsoundness (spec.md §4.7.4): the pointee cell
		// identity is discarded; only the pointer value's own
		// taintedness survives the round trip through an integer.
		_, err := fs.UpdateVar(v, tainttype.Scalar{Tainted: p.Tainted})
		return err

	case *ir.InstIntToPtr:
		// fs.GetType materializes a fresh, wholly-untainted pointee the
		// first time this instruction is seen; we only need to fold in
		// the taintedness of the integer operand being reinterpreted.
		result := fs.GetType(v)
		p, ok := result.(tainttype.Pointer)
		if !ok {
			return fmt.Errorf("inttoptr result is not a pointer taint type (%s)", result)
		}
		if fs.IsScalarOperandTainted(v.From) {
			_, err := fs.UpdateVar(v, tainttype.TaintedPointer(p.Cell))
			return err
		}
		return nil

	case *ir.InstExtractElement:
		vecTy, ok := fs.GetType(v.X).(tainttype.ArrayOrVector)
		if !ok {
			return fmt.Errorf("extractelement operand is not a vector taint type")
		}
		elem := vecTy.Elem
		if fs.IsScalarOperandTainted(v.Index) {
			var err error
			elem, err = tainttype.ToTaintedDeep(elem, fs.Structs(), cells)
			if err != nil {
				return err
			}
		}
		_, err := fs.UpdateVar(v, elem)
		return err

	case *ir.InstInsertElement:
		vecTy, ok := fs.GetType(v.X).(tainttype.ArrayOrVector)
		if !ok {
			return fmt.Errorf("insertelement operand is not a vector taint type")
		}
		elemTy := fs.GetType(v.Elem)
		joined, _, err := tainttype.Join(vecTy.Elem, elemTy, cells)
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, tainttype.ArrayOrVector{Elem: joined})
		return err

	case *ir.InstShuffleVector:
		xTy, ok1 := fs.GetType(v.X).(tainttype.ArrayOrVector)
		yTy, ok2 := fs.GetType(v.Y).(tainttype.ArrayOrVector)
		if !ok1 || !ok2 {
			return fmt.Errorf("shufflevector operands are not vector taint types")
		}
		joined, _, err := tainttype.Join(xTy.Elem, yTy.Elem, cells)
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, tainttype.ArrayOrVector{Elem: joined})
		return err

	case *ir.InstExtractValue:
		cur := fs.GetType(v.X)
		for _, idx := range v.Indices {
			var err error
			cur, err = aggregateFieldType(fs.Structs(), cur, int(idx))
			if err != nil {
				return err
			}
		}
		_, err := fs.UpdateVar(v, cur)
		return err

	case *ir.InstInsertValue:
		if len(v.Indices) == 0 {
			return fmt.Errorf("insertvalue with no indices")
		}
		aggTy := fs.GetType(v.X)
		elemTy := fs.GetType(v.Elem)
		updated, err := insertValueNested(fs.Structs(), cells, aggTy, v.Indices, elemTy)
		if err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, updated)
		return err

	case *ir.InstLoad:
		fs.GetType(v) // materialize with a default initial type
		pointee, err := fs.Dereference(v.Src)
		if err != nil {
			return err
		}
		if ts.config.DereferencingTaintedPtrGivesTainted {
			if p, ok := fs.GetType(v.Src).(tainttype.Pointer); ok && p.Tainted {
				// Upgrade the shared pointee cell itself, so every pointer
				// sharing it observes the taint, not only this load.
				if _, err := fs.TaintPointee(v.Src); err != nil {
					return err
				}
				pointee, err = fs.Dereference(v.Src)
				if err != nil {
					return err
				}
			}
		}
		_, err = fs.UpdateVar(v, pointee)
		return err

	case *ir.InstStore:
		valTy := fs.GetType(v.Src)
		if blockImplicitlyTainted(fs, cd, b) {
			var err error
			valTy, err = tainttype.ToTaintedDeep(valTy, fs.Structs(), cells)
			if err != nil {
				return err
			}
		}
		_, err := fs.UpdatePointee(v.Dst, valTy)
		return err

	case *ir.InstFence:
		return nil

	case *ir.InstGetElementPtr:
		return ts.processGEP(fs, v)

	case *ir.InstPhi:
		result := fs.GetType(v)
		for _, inc := range v.Incs {
			var err error
			result, _, err = tainttype.Join(result, fs.GetType(inc.X), cells)
			if err != nil {
				return err
			}
		}
		// Implicit flow reaches a Phi through its own block or through any
		// incoming predecessor block that is control-dependent on a
		// tainted branch (which arm ran decides the merged value).
		implicit := blockImplicitlyTainted(fs, cd, b)
		for _, inc := range v.Incs {
			if pb, ok := value.Value(inc.Pred).(*ir.Block); ok && blockImplicitlyTainted(fs, cd, pb) {
				implicit = true
			}
		}
		if implicit {
			var err error
			result, err = tainttype.ToTaintedDeep(result, fs.Structs(), cells)
			if err != nil {
				return err
			}
		}
		_, err := fs.UpdateVar(v, result)
		return err

	case *ir.InstSelect:
		joined, _, err := tainttype.Join(fs.GetType(v.X), fs.GetType(v.Y), cells)
		if err != nil {
			return err
		}
		// Select is a direct-operand rule (spec.md §4.7.4), not a
		// control-dependence one: the i1 condition operand is read by
		// every execution of the instruction itself, so a tainted
		// condition taints the result outright, regardless of whether
		// the two arms are themselves tainted.
		if fs.IsScalarOperandTainted(v.Cond) {
			joined, err = tainttype.ToTaintedDeep(joined, fs.Structs(), cells)
			if err != nil {
				return err
			}
		}
		_, err = fs.UpdateVar(v, joined)
		return err

	case *ir.InstAtomicRMW:
		// The SSA result of an atomicrmw is the value that was there
		// before the read-modify-write (spec.md §4.7.4); the memory
		// effect is the join of that old value with the operand, written
		// back separately. The lattice has no way to express the exact
		// arithmetic of each RMW opcode, so the write-back is modeled as
		// a join rather than a precise per-opcode computation (sound,
		// since join only ever widens).
		old, err := fs.Dereference(v.Dst)
		if err != nil {
			return err
		}
		xTy := fs.GetType(v.X)
		newTy, _, err := tainttype.Join(old, xTy, cells)
		if err != nil {
			return err
		}
		if _, err := fs.UpdatePointee(v.Dst, newTy); err != nil {
			return err
		}
		_, err = fs.UpdateVar(v, old)
		return err

	case *ir.InstCall:
		return ts.processCall(fs, v)

	default:
		// Any instruction kind not explicitly modeled (inline asm,
		// numeric/unnamed function forms, other constructs the engine
		// has no transfer function for) must fail explicitly rather than
		// silently guess at a sound approximation (spec.md §4.7.4, §7;
		// the original aborts the same way via unimplemented!).
		return fmt.Errorf("no transfer function for instruction kind %T", inst)
	}
}

// insertValueNested applies withAggregateField recursively down a
// multi-level Indices path, as InsertValue requires.
func insertValueNested(structs *tainttype.NamedStructs, cells *tainttype.Arena, agg tainttype.Type, indices []uint64, newLeaf tainttype.Type) (tainttype.Type, error) {
	if len(indices) == 1 {
		return withAggregateField(structs, cells, agg, int(indices[0]), newLeaf)
	}
	child, err := aggregateFieldType(structs, agg, int(indices[0]))
	if err != nil {
		return nil, err
	}
	updatedChild, err := insertValueNested(structs, cells, child, indices[1:], newLeaf)
	if err != nil {
		return nil, err
	}
	return withAggregateField(structs, cells, agg, int(indices[0]), updatedChild)
}
