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

import (
	"testing"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/worklist"
)

func TestJoinScalar(t *testing.T) {
	cases := []struct {
		name    string
		a, b    Type
		want    Type
		changed bool
	}{
		{"untainted-untainted", Untainted(), Untainted(), Untainted(), false},
		{"untainted-tainted", Untainted(), Tainted(), Tainted(), true},
		{"tainted-untainted", Tainted(), Untainted(), Tainted(), false},
		{"tainted-tainted", Tainted(), Tainted(), Tainted(), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, changed, err := Join(c.a, c.b, nil)
			if err != nil {
				t.Fatalf("Join: %v", err)
			}
			if !Equal(got, c.want, nil) {
				t.Errorf("Join(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
			if changed != c.changed {
				t.Errorf("Join(%v, %v) changed = %v, want %v", c.a, c.b, changed, c.changed)
			}
		})
	}
}

func TestJoinShapeMismatchIsError(t *testing.T) {
	if _, _, err := Join(Untainted(), UntaintedFnPtr(), nil); err == nil {
		t.Fatal("Join of Scalar and FnPtr should have failed, got nil error")
	}
}

func TestJoinArrayOrVector(t *testing.T) {
	a := ArrayOrVector{Elem: Untainted()}
	b := ArrayOrVector{Elem: Tainted()}
	got, changed, err := Join(a, b, nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !changed {
		t.Error("expected change")
	}
	if !Equal(got, ArrayOrVector{Elem: Tainted()}, nil) {
		t.Errorf("got %v, want tainted element array", got)
	}
}

func TestJoinStructFieldwise(t *testing.T) {
	a := Struct{Fields: []Type{Untainted(), Tainted()}}
	b := Struct{Fields: []Type{Tainted(), Tainted()}}
	got, changed, err := Join(a, b, nil)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !changed {
		t.Error("expected change")
	}
	want := Struct{Fields: []Type{Tainted(), Tainted()}}
	if !Equal(got, want, nil) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestJoinStructArityMismatchIsError(t *testing.T) {
	a := Struct{Fields: []Type{Untainted()}}
	b := Struct{Fields: []Type{Untainted(), Untainted()}}
	if _, _, err := Join(a, b, nil); err == nil {
		t.Fatal("expected arity mismatch error")
	}
}

func TestJoinPointerUnifiesCells(t *testing.T) {
	arena := NewArena(worklist.New())
	c1 := arena.New(Untainted())
	c2 := arena.New(Tainted())

	got, changed, err := Join(UntaintedPointer(c1), UntaintedPointer(c2), arena)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !changed {
		t.Error("expected change: pointee types differed (untainted vs tainted)")
	}
	p, ok := got.(Pointer)
	if !ok {
		t.Fatalf("got %T, want Pointer", got)
	}
	if arena.Root(c1) != arena.Root(c2) {
		t.Error("Join of two pointers should unify their cells")
	}
	if !Equal(arena.Read(p.Cell), Tainted(), arena) {
		t.Errorf("unified pointee = %v, want tainted", arena.Read(p.Cell))
	}
}

func TestToTaintedDeep(t *testing.T) {
	in := Struct{Fields: []Type{Untainted(), ArrayOrVector{Elem: Untainted()}}}
	out, err := ToTaintedDeep(in, nil, nil)
	if err != nil {
		t.Fatalf("ToTaintedDeep: %v", err)
	}
	want := Struct{Fields: []Type{Tainted(), ArrayOrVector{Elem: Tainted()}}}
	if !Equal(out, want, nil) {
		t.Errorf("ToTaintedDeep(%v) = %v, want %v", in, out, want)
	}
}

func TestToTaintedDeepLeavesPointeeAlone(t *testing.T) {
	arena := NewArena(worklist.New())
	c := arena.New(Untainted())
	out, err := ToTaintedDeep(UntaintedPointer(c), nil, arena)
	if err != nil {
		t.Fatalf("ToTaintedDeep: %v", err)
	}
	p := out.(Pointer)
	if !p.Tainted {
		t.Error("pointer tag should be tainted")
	}
	if !Equal(arena.Read(p.Cell), Untainted(), arena) {
		t.Error("pointee should be untouched by tainting the pointer value")
	}
}
