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

// Package render formats a *taint.TaintResult as a human-readable text
// table, the same stdlib-only approach the teacher takes for its own
// analysis.Pass.Reportf output: no third-party report renderer, just
// text/tabwriter over an io.Writer.
package render

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/taint"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/tainttype"
)

// Summaries writes one row per analyzed function, listing its
// parameter taint types and its return taint type, sorted by function
// name for deterministic output.
func Summaries(w io.Writer, result *taint.TaintResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNCTION\tPARAMS\tRETURN")

	names := result.Functions()
	sort.Strings(names)
	for _, name := range names {
		summ, ok := result.Summary(name)
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, formatParams(summ.Params()), summ.Ret())
	}
	return tw.Flush()
}

func formatParams(params []tainttype.Type) string {
	if len(params) == 0 {
		return "()"
	}
	out := "("
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprint(p)
	}
	return out + ")"
}
