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

// Command taintinfer runs the whole-program taint-type fixpoint over an
// LLVM IR module and prints every function's inferred parameter/return
// taint contract.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/llir/llvm/asm"

	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/config"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/render"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/taint"
	"github.com/kdankert-ubc/llvm-ir-taint/internal/pkg/xmodule"
)

var configPath = flag.String("config", "", "path to a YAML/JSON taint config file (optional; built-in defaults used if empty)")

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: taintinfer [-config path] <module.ll>")
	}
	irPath := flag.Arg(0)

	m, err := asm.ParseFile(irPath)
	if err != nil {
		log.Fatalf("parsing %s: %v", irPath, err)
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}

	mod := xmodule.New(m)
	result, err := taint.RunWholeProgram(mod, cfg, nil, nil)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	if err := render.Summaries(os.Stdout, result); err != nil {
		log.Fatalf("rendering result: %v", err)
	}
}
