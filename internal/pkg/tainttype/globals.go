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

// Globals is the process-wide table of module-level global variable
// taint types (spec.md §4.4): one Cell per global, shared across every
// function that references `@global` by name, so that a store to a
// global from one function is visible to every other function's next
// load of it.
type Globals struct {
	arena *Arena
	cells map[string]Cell
}

// NewGlobals returns an empty Globals table backed by arena.
func NewGlobals(arena *Arena) *Globals {
	return &Globals{arena: arena, cells: map[string]Cell{}}
}

// Define registers name's initial pointee taint type the first time it
// is seen; a no-op if name is already registered.
func (g *Globals) Define(name string, initial Type) Cell {
	if c, ok := g.cells[name]; ok {
		return c
	}
	c := g.arena.New(initial)
	g.cells[name] = c
	return c
}

func (g *Globals) lookup(name string) (Cell, error) {
	c, ok := g.cells[name]
	if !ok {
		return 0, fmt.Errorf("global @%s has no canonical definition", name)
	}
	return c, nil
}

// Type reads the current taint type of global name.
func (g *Globals) Type(name string) (Type, error) {
	c, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	return g.arena.Read(c), nil
}

// Cell returns the Cell backing global name, e.g. to build the Pointer
// taint type for a GlobalValue reference.
func (g *Globals) Cell(name string) (Cell, error) {
	return g.lookup(name)
}

// Update joins newTy into global name's current taint type,
// re-enqueueing observers if that changed anything.
func (g *Globals) Update(name string, newTy Type) (changed bool, err error) {
	c, err := g.lookup(name)
	if err != nil {
		return false, err
	}
	return g.arena.Update(c, newTy)
}

// AddUser marks fn as having observed global name.
func (g *Globals) AddUser(name string, fn string) error {
	c, err := g.lookup(name)
	if err != nil {
		return err
	}
	g.arena.AddUser(c, fn)
	return nil
}

// Taint deeply taints global name's current value.
func (g *Globals) Taint(name string, ns *NamedStructs) (changed bool, err error) {
	c, err := g.lookup(name)
	if err != nil {
		return false, err
	}
	return g.arena.Taint(c, ns)
}

// Names returns the currently-defined global names, for diagnostics.
func (g *Globals) Names() []string {
	out := make([]string, 0, len(g.cells))
	for name := range g.cells {
		out = append(out, name)
	}
	return out
}
