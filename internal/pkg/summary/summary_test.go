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

package summary

import (
	"testing"

	"github.com/llir/llvm/ir/types"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/worklist"
)

func testBuilder() *tainttype.Builder {
	arena := tainttype.NewArena(worklist.New())
	structs := tainttype.NewNamedStructs(arena)
	return tainttype.NewBuilder(arena, structs)
}

func TestNewUntaintedMatchesSignatureShape(t *testing.T) {
	sig := types.NewFunc(types.I32, types.I32, types.I32)
	s := NewUntainted(sig, testBuilder())
	if len(s.Params()) != 2 {
		t.Fatalf("got %d params, want 2", len(s.Params()))
	}
	for i, p := range s.Params() {
		if tainttype.IsTainted(p) {
			t.Errorf("param %d should start untainted", i)
		}
	}
	if tainttype.IsTainted(s.Ret()) {
		t.Error("return type should start untainted")
	}
}

func TestUpdateParamAndRet(t *testing.T) {
	sig := types.NewFunc(types.I32, types.I32)
	s := NewUntainted(sig, testBuilder())
	arena := tainttype.NewArena(worklist.New())

	changed, err := s.UpdateParam(0, tainttype.Tainted(), arena)
	if err != nil {
		t.Fatalf("UpdateParam: %v", err)
	}
	if !changed {
		t.Error("expected change")
	}
	if !tainttype.IsTainted(s.Params()[0]) {
		t.Error("param 0 should be tainted")
	}

	changed, err = s.UpdateRet(tainttype.Tainted(), arena)
	if err != nil {
		t.Fatalf("UpdateRet: %v", err)
	}
	if !changed || !tainttype.IsTainted(s.Ret()) {
		t.Error("return type should be tainted after UpdateRet")
	}
}

func TestTableGetOrCreateIsIdempotent(t *testing.T) {
	table := NewTable()
	builder := testBuilder()
	sig := types.NewFunc(types.Void)

	a := table.GetOrCreate("f", sig, builder)
	b := table.GetOrCreate("f", sig, builder)
	if a != b {
		t.Fatal("GetOrCreate should return the same summary instance for the same name")
	}
	if _, ok := table.Get("nonexistent"); ok {
		t.Error("Get should report false for a name with no summary")
	}
}
