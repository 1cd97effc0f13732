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

import "github.com/llir/llvm/ir/types"

// Builder constructs the initial, wholly-untainted taint type for an
// LLVM type (spec.md §4.1's "constructing an initial TaintedType from
// an llvm_ir type"). It needs an Arena (to mint fresh pointee cells for
// every pointer it encounters) and a NamedStructs table (to register a
// named struct's canonical definition the first time that name is
// seen), so it is a small struct rather than a free function.
type Builder struct {
	Cells   *Arena
	Structs *NamedStructs
}

// NewBuilder returns a Builder backed by the given tables.
func NewBuilder(cells *Arena, structs *NamedStructs) *Builder {
	return &Builder{Cells: cells, Structs: structs}
}

// FromLLVMType returns the wholly-untainted taint type matching the
// shape of t: a Scalar for any integer/float/void/label/token/metadata
// type, an FnPtr for function types (and pointers to them), a Pointer
// wrapping a fresh cell recursively built from the pointee type for
// data pointers, an ArrayOrVector of the recursively-built element type
// for arrays and vectors, a Struct of recursively-built field types for
// anonymous structs, and a Named reference (registering the struct's
// canonical definition on first sight) for identified structs.
func (b *Builder) FromLLVMType(t types.Type) Type {
	switch tv := t.(type) {
	case *types.PointerType:
		if _, isFunc := tv.ElemType.(*types.FuncType); isFunc {
			return UntaintedFnPtr()
		}
		pointee := b.FromLLVMType(tv.ElemType)
		cell := b.Cells.New(pointee)
		return UntaintedPointer(cell)

	case *types.FuncType:
		return UntaintedFnPtr()

	case *types.VectorType:
		return ArrayOrVector{Elem: b.FromLLVMType(tv.ElemType)}

	case *types.ArrayType:
		return ArrayOrVector{Elem: b.FromLLVMType(tv.ElemType)}

	case *types.StructType:
		if tv.TypeName != "" {
			if b.Structs.Reserve(tv.TypeName) {
				fields := make([]Type, len(tv.Fields))
				for i, f := range tv.Fields {
					fields[i] = b.FromLLVMType(f)
				}
				b.Structs.Finalize(tv.TypeName, fields)
			}
			return Named{Name: tv.TypeName}
		}
		fields := make([]Type, len(tv.Fields))
		for i, f := range tv.Fields {
			fields[i] = b.FromLLVMType(f)
		}
		return Struct{Fields: fields}

	default:
		// IntType, FloatType, VoidType, LabelType, MetadataType,
		// TokenType and any other leaf type: none of these are
		// addressable or callable, so they are all plain scalars for
		// taint-propagation purposes.
		return Untainted()
	}
}
