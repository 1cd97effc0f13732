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

package taint

import (
	"github.com/llir/llvm/ir"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/funcstate"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/summary"
)

// processTerminator applies the transfer function for b's terminator.
// A branching terminator whose condition currently carries tainted
// data marks b itself as tainted (spec.md §4.7.6): every block that is
// control-dependent on b must have taint joined into whatever it
// writes or joins, even though no tainted value is a direct operand of
// the instructions in that block. A Ret instead folds its operand into
// the function's summary, reporting whether that changed the summary's
// return type so the driver can decide whether this function's callers
// need to be re-enqueued.
func (ts *TaintState) processTerminator(fs *funcstate.FunctionTaintState, summ *summary.FunctionSummary, b *ir.Block) (retChanged bool, err error) {
	switch t := b.Term.(type) {
	case *ir.TermRet:
		if t.X == nil {
			return false, nil
		}
		if fs.IsScalarOperandTainted(t.X) {
			fs.MarkTerminatorTainted(b)
		}
		return summ.UpdateRet(fs.GetType(t.X), fs.Cells())

	case *ir.TermCondBr:
		if fs.IsScalarOperandTainted(t.Cond) {
			fs.MarkTerminatorTainted(b)
		}
		return false, nil

	case *ir.TermSwitch:
		if fs.IsScalarOperandTainted(t.X) {
			fs.MarkTerminatorTainted(b)
		}
		return false, nil

	case *ir.TermIndirectBr:
		if fs.IsScalarOperandTainted(t.Addr) {
			fs.MarkTerminatorTainted(b)
		}
		return false, nil

	case *ir.TermBr, *ir.TermUnreachable:
		return false, nil

	default:
		// TermResume, TermCatchSwitch, TermCatchRet, TermCleanupRet and
		// any other exception-handling terminator: not modeled. They
		// carry no branch condition this analysis needs to treat as an
		// implicit-flow source.
		return false, nil
	}
}
