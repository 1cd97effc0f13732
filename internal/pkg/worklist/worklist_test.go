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

package worklist

import "testing"

func TestSetSemantics(t *testing.T) {
	w := New()
	w.Add("f")
	w.Add("f")
	w.Add("g")
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}
}

func TestPopFIFOOrder(t *testing.T) {
	w := FromNames("f", "g", "h")
	for _, want := range []string{"f", "g", "h"} {
		got, ok := w.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %q, %v, want %q, true", got, ok, want)
		}
	}
	if !w.IsEmpty() {
		t.Error("expected empty worklist")
	}
	if _, ok := w.Pop(); ok {
		t.Error("Pop() on empty worklist should report ok=false")
	}
}

func TestReAddAfterPopIsAllowed(t *testing.T) {
	w := FromNames("f")
	w.Pop()
	w.Add("f")
	if w.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", w.Len())
	}
}
