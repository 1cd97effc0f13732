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

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/funcstate"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
)

// processGEP is the transfer function for GetElementPtr (spec.md
// §4.7.4's most involved case). A GEP's first index is pure pointer
// arithmetic over the base object (it never changes which aggregate is
// being addressed), so it contributes no navigation step; every index
// after it walks one level into the current aggregate's shape.
//
// Navigating into a Named struct's field lands on that field's
// canonical, persistent Cell, so that two GEPs into the same named
// field from different call sites (or different functions entirely)
// continue to observe and mutate the same pointee state. Navigating
// into an anonymous Struct or an ArrayOrVector has no such canonical
// identity to land on (an anonymous aggregate's shape isn't registered
// anywhere by name), so the result is an ephemeral, freshly-minted cell
// holding the statically-known field/element type: a documented
// precision loss (no cross-site sharing for anonymous aggregate
// fields), not a soundness one.
func (ts *TaintState) processGEP(fs *funcstate.FunctionTaintState, v *ir.InstGetElementPtr) error {
	cells := fs.Cells()

	srcTy, ok := fs.GetType(v.Src).(tainttype.Pointer)
	if !ok {
		return fmt.Errorf("getelementptr base %s is not a pointer taint type", v.Src)
	}
	cells.AddUser(srcTy.Cell, fs.Name())
	cur := cells.Read(srcTy.Cell)

	if len(v.Indices) == 0 {
		_, err := fs.UpdateVar(v, tainttype.Pointer{Tainted: srcTy.Tainted, Cell: srcTy.Cell})
		return err
	}

	resultCell := srcTy.Cell
	needFresh := false
	for _, idxVal := range v.Indices[1:] {
		idx, isConst := constIndex(idxVal)
		switch t := cur.(type) {
		case tainttype.Named:
			if !isConst {
				return fmt.Errorf("getelementptr into named struct %%%s requires a constant field index", t.Name)
			}
			fc, err := fs.Structs().FieldCell(t.Name, idx)
			if err != nil {
				return err
			}
			if err := fs.Structs().AddFieldUser(t.Name, idx, fs.Name()); err != nil {
				return err
			}
			resultCell = fc
			cur = cells.Read(fc)
			needFresh = false

		case tainttype.Struct:
			if !isConst {
				return fmt.Errorf("getelementptr into anonymous struct requires a constant field index")
			}
			ft, err := aggregateFieldType(fs.Structs(), t, idx)
			if err != nil {
				return err
			}
			cur = ft
			needFresh = true

		case tainttype.ArrayOrVector:
			cur = t.Elem
			needFresh = true

		default:
			return fmt.Errorf("getelementptr indexes into non-aggregate taint type %s", cur)
		}
	}

	if needFresh {
		resultCell = cells.New(cur)
	}
	// The result shares the parent pointer's own taintedness tag (spec.md
	// §4.3): a GEP off a pointer whose tag is tainted (e.g. one produced
	// by inttoptr of a tainted integer) must itself stay tainted, even
	// though navigation only changes which pointee cell is addressed.
	_, err := fs.UpdateVar(v, tainttype.Pointer{Tainted: srcTy.Tainted, Cell: resultCell})
	return err
}
