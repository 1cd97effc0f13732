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

import "fmt"

// AnalysisError is a fixpoint error annotated with the function (and,
// where applicable, the instruction) being processed when it occurred,
// mirroring the "...while processing..." wrapping chain the original
// Rust analysis builds up via format! as an error propagates out of
// nested instruction/terminator handling (spec.md §7).
type AnalysisError struct {
	Func string
	Inst string
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Inst == "" {
		return fmt.Sprintf("function %s: %v", e.Func, e.Err)
	}
	return fmt.Sprintf("function %s, instruction %s: %v", e.Func, e.Inst, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func wrapErr(fn, inst string, err error) error {
	if err == nil {
		return nil
	}
	return &AnalysisError{Func: fn, Inst: inst, Err: err}
}
