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

import "fmt"

// namedEntry is the canonical definition of one named struct type: one
// Cell per field, shared by every occurrence of that name anywhere in
// the module. Routing fields through cells (rather than storing a
// plain []Type) is what lets a GetElementPtr into a named struct's
// field, from any function, alias the same mutable slot as every other
// GetElementPtr into that field (spec.md's "named struct coherence"
// property).
type namedEntry struct {
	fields []Cell
}

// NamedStructs is the process-wide table of named struct definitions
// (spec.md §4.3). A name is "defined" the first time any function's
// analysis encounters it; from then on every reference to that name,
// from any function, observes and can mutate the same per-field cells.
type NamedStructs struct {
	arena   *Arena
	entries map[string]*namedEntry
}

// NewNamedStructs returns an empty NamedStructs table backed by arena.
func NewNamedStructs(arena *Arena) *NamedStructs {
	return &NamedStructs{arena: arena, entries: map[string]*namedEntry{}}
}

// WithInitialDefs pre-populates name's canonical definition before the
// fixpoint starts, for names in defs not yet defined. This implements
// the original analysis's NamedStructInitialDef: a caller that knows,
// out of band, that (for example) a particular struct always has a
// tainted first field (an OS-supplied credential struct, say) can seed
// that fact once instead of waiting for the fixpoint to discover it
// from use sites alone. Returns ns for chaining.
func (ns *NamedStructs) WithInitialDefs(defs map[string][]Type) *NamedStructs {
	for name, fields := range defs {
		ns.Define(name, fields)
	}
	return ns
}

// IsDefined reports whether name already has a canonical definition.
func (ns *NamedStructs) IsDefined(name string) bool {
	_, ok := ns.entries[name]
	return ok
}

// Define registers name's field list the first time it is seen, each
// field wrapped in its own fresh Cell initialized to initialFields[i].
// It is a no-op, returning the existing Named reference, if name is
// already defined: redefinition with a different shape would silently
// discard state functions have already observed, so the first
// definition wins.
func (ns *NamedStructs) Define(name string, initialFields []Type) Named {
	if ns.Reserve(name) {
		ns.Finalize(name, initialFields)
	}
	return Named{Name: name}
}

// Reserve marks name as defined without yet supplying its field list,
// returning true iff name was not already defined. Building the taint
// type of a self-referential named struct (one with a field that is a
// pointer back to the same named struct) must reserve the name before
// recursing into its field types, so that the recursive occurrence sees
// name as already defined and simply returns a Named reference instead
// of looping forever. Finalize must be called exactly once afterwards.
func (ns *NamedStructs) Reserve(name string) bool {
	if _, ok := ns.entries[name]; ok {
		return false
	}
	ns.entries[name] = &namedEntry{}
	return true
}

// Finalize supplies name's field list after a Reserve. A no-op if name
// has already been finalized (by an earlier Define/Finalize).
func (ns *NamedStructs) Finalize(name string, fieldTypes []Type) {
	e, ok := ns.entries[name]
	if !ok || e.fields != nil {
		return
	}
	cells := make([]Cell, len(fieldTypes))
	for i, t := range fieldTypes {
		cells[i] = ns.arena.New(t)
	}
	e.fields = cells
}

func (ns *NamedStructs) lookup(name string) (*namedEntry, error) {
	e, ok := ns.entries[name]
	if !ok {
		return nil, fmt.Errorf("named struct %%%s has no canonical definition", name)
	}
	return e, nil
}

// NumFields returns the number of fields in name's canonical definition.
func (ns *NamedStructs) NumFields(name string) (int, error) {
	e, err := ns.lookup(name)
	if err != nil {
		return 0, err
	}
	return len(e.fields), nil
}

// FieldCell returns the Cell backing field idx of name's canonical
// definition, e.g. to build a Pointer taint type for a GetElementPtr
// result that addresses that field.
func (ns *NamedStructs) FieldCell(name string, idx int) (Cell, error) {
	e, err := ns.lookup(name)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(e.fields) {
		return 0, fmt.Errorf("named struct %%%s has no field %d", name, idx)
	}
	return e.fields[idx], nil
}

// FieldType reads the current taint type of field idx of name's
// canonical definition.
func (ns *NamedStructs) FieldType(name string, idx int) (Type, error) {
	c, err := ns.FieldCell(name, idx)
	if err != nil {
		return nil, err
	}
	return ns.arena.Read(c), nil
}

// IsTainted reports whether field idx of name is currently tainted.
func (ns *NamedStructs) IsTainted(name string, idx int) (bool, error) {
	t, err := ns.FieldType(name, idx)
	if err != nil {
		return false, err
	}
	return IsTainted(t), nil
}

// UpdateField joins newTy into field idx's current taint type,
// re-enqueueing every function that has observed that field if the
// join changed anything.
func (ns *NamedStructs) UpdateField(name string, idx int, newTy Type) (changed bool, err error) {
	c, err := ns.FieldCell(name, idx)
	if err != nil {
		return false, err
	}
	return ns.arena.Update(c, newTy)
}

// AddFieldUser marks fn as having observed field idx of name, so that a
// future UpdateField/TaintAllFields affecting that field re-enqueues fn.
func (ns *NamedStructs) AddFieldUser(name string, idx int, fn string) error {
	c, err := ns.FieldCell(name, idx)
	if err != nil {
		return err
	}
	ns.arena.AddUser(c, fn)
	return nil
}

// TaintAllFields deeply taints every field of name's canonical
// definition. Called when a whole named-struct value (not just one
// field) must become tainted: for example the pointee of a tainted
// pointer, under Config.DereferencingTaintedPtrGivesTainted, or a
// memset covering an entire struct.
func (ns *NamedStructs) TaintAllFields(name string, arena *Arena) error {
	e, err := ns.lookup(name)
	if err != nil {
		return err
	}
	for _, c := range e.fields {
		if _, err := ns.arena.Taint(c, ns); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the currently-defined struct names, for diagnostics.
func (ns *NamedStructs) Names() []string {
	out := make([]string, 0, len(ns.entries))
	for name := range ns.entries {
		out = append(out, name)
	}
	return out
}
