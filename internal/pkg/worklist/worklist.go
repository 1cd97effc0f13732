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

// Package worklist implements the set-semantics queue of function names
// that drives the taint fixpoint: a function is on the worklist exactly
// when some change to taint state might still affect its analysis.
package worklist

// Worklist is a FIFO queue of function names with set semantics: adding a
// name that is already queued is a no-op, so a function can never be
// queued more than once at a time.
type Worklist struct {
	queue  []string
	queued map[string]bool
}

// New returns an empty Worklist.
func New() *Worklist {
	return &Worklist{queued: make(map[string]bool)}
}

// FromNames returns a Worklist seeded with the given function names, in order.
func FromNames(names ...string) *Worklist {
	w := New()
	for _, n := range names {
		w.Add(n)
	}
	return w
}

// Add enqueues fn, unless it is already queued.
func (w *Worklist) Add(fn string) {
	if w.queued[fn] {
		return
	}
	w.queued[fn] = true
	w.queue = append(w.queue, fn)
}

// Pop removes and returns an arbitrary (but fair: FIFO) queued name. The
// second return value is false if the worklist is empty.
func (w *Worklist) Pop() (string, bool) {
	if len(w.queue) == 0 {
		return "", false
	}
	fn := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, fn)
	return fn, true
}

// IsEmpty reports whether the worklist has no queued names.
func (w *Worklist) IsEmpty() bool {
	return len(w.queue) == 0
}

// Len returns the number of currently queued names.
func (w *Worklist) Len() int {
	return len(w.queue)
}
