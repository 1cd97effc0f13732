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
	"fmt"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/worklist"
)

// Cell identifies a pointee: a mutable, shareable slot holding the taint
// type of whatever a pointer (or a named struct's field) refers to. Two
// pointers that may alias are modeled by giving them the same Cell, so
// that updating the pointee through either one is visible through both
// (spec.md §4.2, "sharing soundness").
//
// Cell is only meaningful relative to the Arena that minted it; it is a
// plain integer handle rather than a pointer so that taint types (which
// embed Cell values) remain simple, comparable values.
type Cell int

func (c Cell) String() string { return fmt.Sprintf("cell%d", int(c)) }

// cellInfo is the union-find node for one cell. Only the information
// stored at a partition's root is meaningful; non-root cellInfo values
// are kept around only to record the parent pointer.
type cellInfo struct {
	parent int
	size   int
	ty     Type
	users  map[string]bool
}

// Arena is the process-wide pointee-cell table: a union-find partition
// of cells, where each partition root holds the joined taint type of
// every cell unified into it plus the set of function names that have
// observed (loaded through, or otherwise looked up) that partition.
// This is grounded on internal/pkg/earpointer/state.go's AbsState:
// the same parents/partitions-by-root shape, weighted union by size,
// and path compression, adapted from "alias partition of SSA registers"
// to "alias partition of taint-type pointees".
type Arena struct {
	cells []*cellInfo
	wl    *worklist.Worklist
}

// NewArena returns an empty Arena that enqueues affected function names
// onto wl whenever a cell update changes its partition's taint type.
func NewArena(wl *worklist.Worklist) *Arena {
	return &Arena{wl: wl}
}

// New allocates a fresh cell, its own partition of size one, holding
// initial as its taint type.
func (a *Arena) New(initial Type) Cell {
	id := len(a.cells)
	a.cells = append(a.cells, &cellInfo{parent: id, size: 1, ty: initial, users: map[string]bool{}})
	return Cell(id)
}

// find returns the root index of c's partition, compressing the path
// from c to the root as it goes.
func (a *Arena) find(c Cell) int {
	i := int(c)
	for a.cells[i].parent != i {
		a.cells[i].parent = a.cells[a.cells[i].parent].parent
		i = a.cells[i].parent
	}
	return i
}

// Root returns the canonical Cell for c's partition.
func (a *Arena) Root(c Cell) Cell { return Cell(a.find(c)) }

// Read returns the current taint type held by c's partition.
func (a *Arena) Read(c Cell) Type {
	return a.cells[a.find(c)].ty
}

// AddUser records that fn has observed c's partition, so that future
// updates to it re-enqueue fn.
func (a *Arena) AddUser(c Cell, fn string) {
	a.cells[a.find(c)].users[fn] = true
}

// Users returns the function names that have observed c's partition.
func (a *Arena) Users(c Cell) []string {
	root := a.cells[a.find(c)]
	out := make([]string, 0, len(root.users))
	for fn := range root.users {
		out = append(out, fn)
	}
	return out
}

// enqueueUsers pushes every user of the partition rooted at idx onto
// the worklist. Called whenever that partition's taint type changes.
func (a *Arena) enqueueUsers(idx int) {
	for fn := range a.cells[idx].users {
		a.wl.Add(fn)
	}
}

// Update joins newTy into c's current pointee type. If the join
// strictly increases the type (spec.md's monotonicity requirement),
// every function that has observed this cell is re-enqueued on the
// worklist, since their previously-computed types may now be stale.
func (a *Arena) Update(c Cell, newTy Type) (changed bool, err error) {
	idx := a.find(c)
	joined, changed, err := Join(a.cells[idx].ty, newTy, a)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	a.cells[idx].ty = joined
	a.enqueueUsers(idx)
	return true, nil
}

// Taint deeply taints c's current pointee type (spec.md §4.1's
// to_tainted, applied to whatever this cell holds) and re-enqueues
// observers if that changed anything. ns is consulted (and possibly
// itself mutated) when the pointee is, or contains, a NamedStruct.
func (a *Arena) Taint(c Cell, ns *NamedStructs) (changed bool, err error) {
	idx := a.find(c)
	taintedTy, err := ToTaintedDeep(a.cells[idx].ty, ns, a)
	if err != nil {
		return false, err
	}
	return a.Update(c, taintedTy)
}

// Unify merges the partitions of x and y, joining their pointee types.
// It returns the resulting canonical Cell. This is the direct
// equivalent of earpointer's AbsState.Unify/UnifyReps: weighted union
// by partition size, with the smaller partition's root folded into the
// larger one so that repeated unification stays close to O(n·α(n)).
func (a *Arena) Unify(x, y Cell) (Cell, error) {
	ix, iy := a.find(x), a.find(y)
	if ix == iy {
		return Cell(ix), nil
	}
	joined, changed, err := Join(a.cells[ix].ty, a.cells[iy].ty, a)
	if err != nil {
		return 0, fmt.Errorf("unifying %s and %s: %w", Cell(ix), Cell(iy), err)
	}

	small, big := ix, iy
	if a.cells[ix].size > a.cells[iy].size {
		small, big = iy, ix
	}
	a.cells[small].parent = big
	a.cells[big].size += a.cells[small].size
	a.cells[big].ty = joined
	for fn := range a.cells[small].users {
		a.cells[big].users[fn] = true
	}
	a.cells[small].users = nil
	if changed {
		a.enqueueUsers(big)
	}
	return Cell(big), nil
}
