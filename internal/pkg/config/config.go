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

// Package config implements the external, user-supplied knobs the
// taint engine is parameterized over (spec.md §6): how to treat calls
// to functions whose body isn't available, and whether dereferencing a
// tainted pointer should itself be treated as producing tainted data.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// ExternalFunctionHandling is the policy applied at a call site whose
// callee's body the cross-module collaborator cannot supply (spec.md
// §4.9): a declaration-only function, an indirect call with no
// resolvable target, or a call the collaborator otherwise can't look up.
type ExternalFunctionHandling string

const (
	// IgnoreAndReturnUntainted treats the call as a no-op that returns
	// untainted data, regardless of its arguments.
	IgnoreAndReturnUntainted ExternalFunctionHandling = "ignore_and_return_untainted"
	// IgnoreAndReturnTainted treats the call as a no-op that
	// unconditionally returns tainted data.
	IgnoreAndReturnTainted ExternalFunctionHandling = "ignore_and_return_tainted"
	// PropagateTaintShallow taints the call's direct result, like
	// IgnoreAndReturnTainted, if any argument is tainted (an aggregate
	// argument counts if any element or field is) (spec.md §4.9); it does
	// not follow pointer arguments into their pointees.
	PropagateTaintShallow ExternalFunctionHandling = "propagate_taint_shallow"
	// PropagateTaintDeep additionally taints through pointer/aggregate
	// arguments' pointees. spec.md marks this case "not implemented";
	// Validate rejects any Config naming it.
	PropagateTaintDeep ExternalFunctionHandling = "propagate_taint_deep"
	// Panic aborts the whole analysis run when the call is reached,
	// for external functions the caller considers it a bug to call
	// with an unresolvable target (spec.md §4.9, §7).
	Panic ExternalFunctionHandling = "panic"
)

// Config is the set of externally-supplied parameters the driver
// (internal/pkg/taint) needs and cannot derive from the IR itself.
type Config struct {
	// ExtFunctions maps an external function's name to the handling
	// policy for calls to it, overriding both the built-in libc table
	// (internal/pkg/config/libc.go) and ExtFunctionsDefault.
	ExtFunctions map[string]ExternalFunctionHandling `json:"ext_functions,omitempty"`
	// ExtFunctionsDefault is the policy applied to an external function
	// named neither in ExtFunctions nor in the built-in libc table.
	ExtFunctionsDefault ExternalFunctionHandling `json:"ext_functions_default"`
	// DereferencingTaintedPtrGivesTainted, if true, makes a Load through
	// a tainted pointer value deep-taint the pointee cell it reads (so
	// every pointer sharing that cell observes it) and produce that
	// tainted pointee as its result (spec.md §4.7.4's documented
	// unsoundness/soundness knob for Load).
	DereferencingTaintedPtrGivesTainted bool `json:"dereferencing_tainted_ptr_gives_tainted"`
}

// Default returns the conservative default Config: unknown external
// functions return tainted data (fail safe, not fail open), and
// dereferencing a tainted pointer is treated as tainting the result.
func Default() *Config {
	return &Config{
		ExtFunctionsDefault:                  IgnoreAndReturnTainted,
		DereferencingTaintedPtrGivesTainted: true,
	}
}

// Load reads a YAML (or JSON, which is valid YAML) config file from
// path via sigs.k8s.io/yaml, the same thin YAML-over-JSON convenience
// the teacher package uses for its own config format.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports an error if the config names an unimplemented or
// unrecognized handling policy anywhere.
func (c *Config) Validate() error {
	if err := validateHandling("ext_functions_default", c.ExtFunctionsDefault); err != nil {
		return err
	}
	for name, h := range c.ExtFunctions {
		if err := validateHandling(fmt.Sprintf("ext_functions[%s]", name), h); err != nil {
			return err
		}
	}
	return nil
}

func validateHandling(field string, h ExternalFunctionHandling) error {
	switch h {
	case IgnoreAndReturnUntainted, IgnoreAndReturnTainted, PropagateTaintShallow, Panic:
		return nil
	case PropagateTaintDeep:
		return fmt.Errorf("%s: propagate_taint_deep is not implemented", field)
	case "":
		return fmt.Errorf("%s: must be set", field)
	default:
		return fmt.Errorf("%s: unrecognized external function handling %q", field, h)
	}
}

// HandlingFor returns the ExternalFunctionHandling that applies to a
// call to the external function named fn: the user's explicit
// ExtFunctions entry, if any; otherwise the built-in libc default, if
// fn is a recognized libc function; otherwise ExtFunctionsDefault.
func (c *Config) HandlingFor(fn string) ExternalFunctionHandling {
	if h, ok := c.ExtFunctions[fn]; ok {
		return h
	}
	if h, ok := libcDefaults[fn]; ok {
		return h
	}
	return c.ExtFunctionsDefault
}
