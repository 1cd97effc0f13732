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

// Package tainttype implements the taint-type lattice, the pointee-cell
// arena that gives pointer taint types their sharing semantics, and the
// two global tables (NamedStructs, Globals) that give named aggregates
// and module-level globals a single canonical taint type across an
// entire module. These three concerns share one package because they
// are mutually referential: a pointer's taint type names a cell, a
// cell's payload can itself be a taint type that names another cell or
// a named struct, and a named struct's fields are themselves cells.
package tainttype

import "fmt"

// Type is a node in the taint-type lattice described by spec.md §3/§4.1.
// It is a closed sum type: the only implementations are the concrete
// types declared in this file, and callers switch on them with a type
// switch rather than adding new implementations.
type Type interface {
	fmt.Stringer
	isTaintedType()
}

// Scalar is UntaintedValue/TaintedValue: any non-pointer, non-function,
// non-aggregate value (integers, floats, `void`); vectors are
// ArrayOrVector.
type Scalar struct{ Tainted bool }

// FnPtr is UntaintedFnPtr/TaintedFnPtr: a pointer to a function.
// Function pointers do not carry a pointee cell: spec.md treats function
// bodies as reached through the call graph, not through load/store.
type FnPtr struct{ Tainted bool }

// Pointer is UntaintedPointer(cell)/TaintedPointer(cell): a pointer to
// data, tagged with the taintedness of the pointer value itself and
// naming the Cell that holds the taint type of whatever it points to.
type Pointer struct {
	Tainted bool
	Cell    Cell
}

// ArrayOrVector is the taint type of every element of a fixed-length
// aggregate of homogeneous elements (LLVM array or vector types share
// one case, per spec.md §4.1, since neither supports heterogeneous
// elements or by-name field access).
type ArrayOrVector struct{ Elem Type }

// Struct is the taint type of an anonymous (unnamed) LLVM struct type:
// one taint type per field, addressed positionally.
type Struct struct{ Fields []Type }

// Named is NamedStruct(name): a reference to a named LLVM struct type
// whose canonical, shared-across-the-module definition lives in a
// NamedStructs table. Named carries only the name; all mutable state
// lives behind the table so that every occurrence of the same name
// observes the same taint type.
type Named struct{ Name string }

func (Scalar) isTaintedType()        {}
func (FnPtr) isTaintedType()         {}
func (Pointer) isTaintedType()       {}
func (ArrayOrVector) isTaintedType() {}
func (Struct) isTaintedType()        {}
func (Named) isTaintedType()         {}

func (t Scalar) String() string {
	if t.Tainted {
		return "tainted"
	}
	return "untainted"
}

func (t FnPtr) String() string {
	if t.Tainted {
		return "tainted fnptr"
	}
	return "untainted fnptr"
}

func (t Pointer) String() string {
	if t.Tainted {
		return fmt.Sprintf("tainted ptr(%s)", t.Cell)
	}
	return fmt.Sprintf("untainted ptr(%s)", t.Cell)
}

func (t ArrayOrVector) String() string {
	return fmt.Sprintf("[%s]", t.Elem)
}

func (t Struct) String() string {
	return fmt.Sprintf("struct%v", t.Fields)
}

func (t Named) String() string {
	return fmt.Sprintf("%%%s", t.Name)
}

// Untainted and Tainted are convenience constructors for the common
// scalar case.
func Untainted() Type { return Scalar{Tainted: false} }
func Tainted() Type   { return Scalar{Tainted: true} }

// UntaintedFnPtr and TaintedFnPtr construct FnPtr taint types.
func UntaintedFnPtr() Type { return FnPtr{Tainted: false} }
func TaintedFnPtr() Type   { return FnPtr{Tainted: true} }

// UntaintedPointer and TaintedPointer construct Pointer taint types
// naming the given cell.
func UntaintedPointer(cell Cell) Type { return Pointer{Tainted: false, Cell: cell} }
func TaintedPointer(cell Cell) Type   { return Pointer{Tainted: true, Cell: cell} }

// IsTainted reports whether t is tainted at the top level: for scalars
// and function pointers this is the tag itself; for data pointers it is
// the taintedness of the pointer value (not its pointee, which is a
// separate, independently-tracked taint type reached through the cell);
// aggregates and named structs are never "tainted" at the top level,
// since spec.md models aggregate taintedness per-field/per-cell, never
// as a single bit on the aggregate as a whole.
func IsTainted(t Type) bool {
	switch v := t.(type) {
	case Scalar:
		return v.Tainted
	case FnPtr:
		return v.Tainted
	case Pointer:
		return v.Tainted
	default:
		return false
	}
}

// IsTaintedDeep reports whether t is tainted anywhere within it: for
// scalars, function pointers and data pointers this is the same as
// IsTainted; for ArrayOrVector and Struct it recurses into every
// element/field; for Named it recurses into every field of the named
// struct's canonical definition through structs. Used wherever spec.md
// requires treating an aggregate operand as tainted "iff any element is
// tainted" (e.g. a vector select/insertelement index), as opposed to
// IsTainted's top-level-only notion used for propagation bookkeeping.
func IsTaintedDeep(t Type, structs *NamedStructs) bool {
	switch v := t.(type) {
	case ArrayOrVector:
		return IsTaintedDeep(v.Elem, structs)
	case Struct:
		for _, f := range v.Fields {
			if IsTaintedDeep(f, structs) {
				return true
			}
		}
		return false
	case Named:
		n, err := structs.NumFields(v.Name)
		if err != nil {
			return false
		}
		for i := 0; i < n; i++ {
			ft, err := structs.FieldType(v.Name, i)
			if err != nil {
				continue
			}
			if IsTaintedDeep(ft, structs) {
				return true
			}
		}
		return false
	default:
		return IsTainted(t)
	}
}

// ToTaintedTopLevel returns t with its own top-level tag upgraded to
// tainted, leaving any pointee cell, array element type or struct field
// list untouched (those are upgraded independently, through the cell
// arena / NamedStructs table, not by this function). For aggregate and
// named-struct types, which have no top-level tag, it returns t
// unchanged: callers that need to taint every reachable leaf of an
// aggregate must do so explicitly (spec.md §4.1, "Struct/ArrayOrVector
// taintedness is the pointwise join of their parts, not a separate
// flag").
func ToTaintedTopLevel(t Type) Type {
	switch v := t.(type) {
	case Scalar:
		return Scalar{Tainted: true}
	case FnPtr:
		return FnPtr{Tainted: true}
	case Pointer:
		return Pointer{Tainted: true, Cell: v.Cell}
	default:
		return t
	}
}

// shapeMismatch reports a join between two taint types of structurally
// incompatible shape: this indicates that the same LLVM value (or the
// same cell, or the same named struct) was observed with two
// incompatible types, which should be impossible for well-typed LLVM IR
// and indicates a bug in the analysis or an IR/type-table mismatch.
func shapeMismatch(a, b Type) error {
	return fmt.Errorf("cannot join incompatible taint types %s and %s", a, b)
}
