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

import "github.com/llir/llvm/ir"

// ControlDependence is the control-dependence graph of one function:
// for each block, the set of branching blocks whose outcome determines
// whether that block executes at all. spec.md's implicit-flow rule for
// Phi and Store (§4.7.6) needs exactly this: a block reachable only
// along one arm of a tainted branch taints the values it writes.
//
// Built from the standard postdominator-tree construction (Ferrante,
// Ottenstein & Warren): a block B is control-dependent on a branching
// block A if some successor of A postdominates B but A itself does
// not, equivalently: walking up the postdominator tree from each of A's
// successors until reaching A's own immediate postdominator visits
// exactly the blocks control-dependent on A. Grounded on the same
// dominance-based reachability idea as
// internal/pkg/levee/propagation/propagation.go's use of
// ssa.BasicBlock.Dominates, generalized from dominance to
// postdominance because control dependence is inherently a
// postdominance notion, not a dominance one.
type ControlDependence struct {
	dependents map[*ir.Block]map[*ir.Block]bool
}

// IsControlDependentOn reports whether b only executes as a result of
// the branch taken at a (i.e. a is in b's control-dependence set).
func (cd *ControlDependence) IsControlDependentOn(b, a *ir.Block) bool {
	set := cd.dependents[b]
	return set != nil && set[a]
}

// ControllingBlocks returns every block whose branch outcome b is
// control-dependent on.
func (cd *ControlDependence) ControllingBlocks(b *ir.Block) []*ir.Block {
	set := cd.dependents[b]
	out := make([]*ir.Block, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	return out
}

// BuildControlDependence computes the control-dependence graph of f.
func BuildControlDependence(f *ir.Func) *ControlDependence {
	blocks := f.Blocks
	n := len(blocks)
	cd := &ControlDependence{dependents: make(map[*ir.Block]map[*ir.Block]bool, n)}
	if n == 0 {
		return cd
	}

	index := make(map[*ir.Block]int, n)
	for i, b := range blocks {
		index[b] = i
	}

	exit := n
	total := n + 1

	origSucc := make([][]int, total)
	for i, b := range blocks {
		for _, s := range Successors(b.Term) {
			if si, ok := index[s]; ok {
				origSucc[i] = append(origSucc[i], si)
			}
		}
		if len(origSucc[i]) == 0 {
			origSucc[i] = []int{exit}
		}
	}

	origPred := make([][]int, total)
	for u, succs := range origSucc {
		for _, v := range succs {
			origPred[v] = append(origPred[v], u)
		}
	}

	g := &graph{n: total, entry: exit, preds: origSucc, succs: origPred}
	postdom := g.idoms()

	for i, b := range blocks {
		succs := origSucc[i]
		if len(succs) < 2 {
			continue // Br/Ret/Unreachable: no branch, no control dependence contributed.
		}
		ipdomA := postdom[i]
		for _, s := range succs {
			cur := s
			for steps := 0; steps < total && cur != -1 && cur != ipdomA && cur != exit; steps++ {
				if cur != exit {
					dependent := blocks[cur]
					if cd.dependents[dependent] == nil {
						cd.dependents[dependent] = map[*ir.Block]bool{}
					}
					cd.dependents[dependent][b] = true
				}
				next := postdom[cur]
				if next == cur {
					break
				}
				cur = next
			}
		}
	}
	return cd
}

// Successors returns the blocks term can transfer control to.
func Successors(term ir.Terminator) []*ir.Block {
	switch t := term.(type) {
	case *ir.TermBr:
		return []*ir.Block{t.Target}
	case *ir.TermCondBr:
		return []*ir.Block{t.TargetTrue, t.TargetFalse}
	case *ir.TermSwitch:
		out := make([]*ir.Block, 0, len(t.Cases)+1)
		out = append(out, t.TargetDefault)
		for _, c := range t.Cases {
			out = append(out, c.Target)
		}
		return out
	case *ir.TermIndirectBr:
		return t.ValidTargets
	default:
		// TermRet, TermUnreachable and any other terminator without a
		// static list of successor blocks: none.
		return nil
	}
}
