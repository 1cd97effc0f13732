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

package tainttype

// Join computes a ⊔ b, the least upper bound of a and b in the taint
// lattice (spec.md §4.1): Untainted ⊑ Tainted, pointwise over
// aggregates, and pointer pointees are unified (rather than merely
// compared) because two taint types that disagree on whether they
// refer to the same cell must be made to refer to the same cell from
// here on, per spec.md's sharing-soundness requirement. changed reports
// whether the result differs from a (so callers can decide whether to
// re-enqueue observers); err is non-nil if a and b have incompatible
// shapes, which should never happen for well-typed IR.
func Join(a, b Type, arena *Arena) (result Type, changed bool, err error) {
	switch av := a.(type) {
	case Scalar:
		bv, ok := b.(Scalar)
		if !ok {
			return nil, false, shapeMismatch(a, b)
		}
		joined := av.Tainted || bv.Tainted
		return Scalar{Tainted: joined}, joined != av.Tainted, nil

	case FnPtr:
		bv, ok := b.(FnPtr)
		if !ok {
			return nil, false, shapeMismatch(a, b)
		}
		joined := av.Tainted || bv.Tainted
		return FnPtr{Tainted: joined}, joined != av.Tainted, nil

	case Pointer:
		bv, ok := b.(Pointer)
		if !ok {
			return nil, false, shapeMismatch(a, b)
		}
		taintedChanged := bv.Tainted && !av.Tainted
		joinedTainted := av.Tainted || bv.Tainted
		unifiedCell := av.Cell
		cellChanged := false
		if arena != nil && arena.Root(av.Cell) != arena.Root(bv.Cell) {
			c, err := arena.Unify(av.Cell, bv.Cell)
			if err != nil {
				return nil, false, err
			}
			unifiedCell = c
			cellChanged = true
		} else if arena != nil {
			unifiedCell = arena.Root(av.Cell)
		}
		return Pointer{Tainted: joinedTainted, Cell: unifiedCell}, taintedChanged || cellChanged, nil

	case ArrayOrVector:
		bv, ok := b.(ArrayOrVector)
		if !ok {
			return nil, false, shapeMismatch(a, b)
		}
		elem, elemChanged, err := Join(av.Elem, bv.Elem, arena)
		if err != nil {
			return nil, false, err
		}
		return ArrayOrVector{Elem: elem}, elemChanged, nil

	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return nil, false, shapeMismatch(a, b)
		}
		fields := make([]Type, len(av.Fields))
		any := false
		for i := range av.Fields {
			f, fc, err := Join(av.Fields[i], bv.Fields[i], arena)
			if err != nil {
				return nil, false, err
			}
			fields[i] = f
			any = any || fc
		}
		return Struct{Fields: fields}, any, nil

	case Named:
		bv, ok := b.(Named)
		if !ok || av.Name != bv.Name {
			return nil, false, shapeMismatch(a, b)
		}
		// The canonical definition lives in the NamedStructs table, keyed
		// by name; joining two references to the same name carries no
		// further information at the Type-value level.
		return av, false, nil

	default:
		return nil, false, shapeMismatch(a, b)
	}
}

// ToTaintedDeep returns t with every leaf scalar/fnptr/pointer tag
// upgraded to tainted: recursively over ArrayOrVector/Struct, and (via
// ns) over every field of a Named struct's canonical definition.
// Pointer taint types are upgraded only at the pointer-value tag; the
// pointee a pointer's cell refers to is a separate, independently
// tracked taint type and is untouched here (spec.md §4.1: tainting a
// pointer value does not imply its pointee is tainted; that relation is
// governed separately by Config.DereferencingTaintedPtrGivesTainted).
func ToTaintedDeep(t Type, ns *NamedStructs, arena *Arena) (Type, error) {
	switch v := t.(type) {
	case Scalar:
		return Scalar{Tainted: true}, nil
	case FnPtr:
		return FnPtr{Tainted: true}, nil
	case Pointer:
		return Pointer{Tainted: true, Cell: v.Cell}, nil
	case ArrayOrVector:
		elem, err := ToTaintedDeep(v.Elem, ns, arena)
		if err != nil {
			return nil, err
		}
		return ArrayOrVector{Elem: elem}, nil
	case Struct:
		fields := make([]Type, len(v.Fields))
		for i, f := range v.Fields {
			tf, err := ToTaintedDeep(f, ns, arena)
			if err != nil {
				return nil, err
			}
			fields[i] = tf
		}
		return Struct{Fields: fields}, nil
	case Named:
		if ns != nil {
			if err := ns.TaintAllFields(v.Name, arena); err != nil {
				return nil, err
			}
		}
		return v, nil
	default:
		return nil, shapeMismatch(t, t)
	}
}

// Equal reports whether a and b denote the same taint type, resolving
// pointer cells to their current canonical roots so that two pointers
// unified by the arena compare equal even if they were minted as
// distinct cells. Tests call it directly to compare taint types; it
// compares pointers by cell root rather than by pointee, so it does not
// recurse forever if a pointee cell transitively refers back to itself.
func Equal(a, b Type, arena *Arena) bool {
	switch av := a.(type) {
	case Scalar:
		bv, ok := b.(Scalar)
		return ok && av.Tainted == bv.Tainted
	case FnPtr:
		bv, ok := b.(FnPtr)
		return ok && av.Tainted == bv.Tainted
	case Pointer:
		bv, ok := b.(Pointer)
		if !ok || av.Tainted != bv.Tainted {
			return false
		}
		if arena == nil {
			return av.Cell == bv.Cell
		}
		return arena.Root(av.Cell) == arena.Root(bv.Cell)
	case ArrayOrVector:
		bv, ok := b.(ArrayOrVector)
		return ok && Equal(av.Elem, bv.Elem, arena)
	case Struct:
		bv, ok := b.(Struct)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i := range av.Fields {
			if !Equal(av.Fields[i], bv.Fields[i], arena) {
				return false
			}
		}
		return true
	case Named:
		bv, ok := b.(Named)
		return ok && av.Name == bv.Name
	default:
		return false
	}
}
