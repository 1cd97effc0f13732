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

package xmodule

// This file implements dominance over a small int-indexed graph, used
// both directly (forward dominance isn't needed by the driver, but the
// same routine computes post-dominance over the reversed CFG, which the
// control-dependence graph in cdg.go is built from). The algorithm is
// Cooper, Harvey & Kennedy's "A Simple, Fast Dominance Algorithm": a
// handful of lines, no dataflow framework required, which is exactly
// the style internal/pkg/levee/propagation/propagation.go reaches for
// (go/ssa's ready-made BasicBlock.Dominates) when it needs reachability
// gated by control flow — llir/llvm's ir.Block has no such built-in, so
// this package supplies it.

// graph is the minimal shape the dominance algorithm needs: n nodes
// numbered 0..n-1, entry is the root, and preds[i]/succs[i] list i's
// predecessors/successors (idoms computes the reverse postorder itself).
type graph struct {
	n     int
	entry int
	preds [][]int
	succs [][]int
}

// reversePostorder returns the node indices reachable from g.entry in
// reverse postorder, and a lookup from node index to its position in
// that order (-1 if unreached).
func (g *graph) reversePostorder() (order []int, rpoIndex []int) {
	rpoIndex = make([]int, g.n)
	for i := range rpoIndex {
		rpoIndex[i] = -1
	}
	visited := make([]bool, g.n)
	var postorder []int
	var visit func(int)
	visit = func(u int) {
		visited[u] = true
		for _, v := range g.succs[u] {
			if !visited[v] {
				visit(v)
			}
		}
		postorder = append(postorder, u)
	}
	visit(g.entry)

	order = make([]int, len(postorder))
	for i, u := range postorder {
		order[len(postorder)-1-i] = u
	}
	for i, u := range order {
		rpoIndex[u] = i
	}
	return order, rpoIndex
}

// idoms returns the immediate dominator of every node reachable from
// g.entry (idoms[g.entry] == g.entry), with -1 for unreached nodes.
func (g *graph) idoms() []int {
	order, rpoIndex := g.reversePostorder()

	idom := make([]int, g.n)
	for i := range idom {
		idom[i] = -1
	}
	idom[g.entry] = g.entry

	intersect := func(a, b int) int {
		for a != b {
			for rpoIndex[a] > rpoIndex[b] {
				a = idom[a]
			}
			for rpoIndex[b] > rpoIndex[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, node := range order {
			if node == g.entry {
				continue
			}
			newIdom := -1
			for _, p := range g.preds[node] {
				if idom[p] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p)
			}
			if newIdom != -1 && idom[node] != newIdom {
				idom[node] = newIdom
				changed = true
			}
		}
	}
	return idom
}
