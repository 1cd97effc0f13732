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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHandlingForPrecedence(t *testing.T) {
	cfg := Default()
	cfg.ExtFunctionsDefault = IgnoreAndReturnUntainted

	if got := cfg.HandlingFor("memcpy"); got != PropagateTaintShallow {
		t.Errorf("HandlingFor(memcpy) = %v, want libc default %v", got, PropagateTaintShallow)
	}
	if got := cfg.HandlingFor("totally_unknown_fn"); got != IgnoreAndReturnUntainted {
		t.Errorf("HandlingFor(unknown) = %v, want global default %v", got, IgnoreAndReturnUntainted)
	}

	cfg.ExtFunctions = map[string]ExternalFunctionHandling{"memcpy": Panic}
	if got := cfg.HandlingFor("memcpy"); got != Panic {
		t.Errorf("explicit ExtFunctions entry should override libc default, got %v", got)
	}
}

func TestValidateRejectsPropagateTaintDeep(t *testing.T) {
	cfg := Default()
	cfg.ExtFunctionsDefault = PropagateTaintDeep
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject propagate_taint_deep as unimplemented")
	}

	cfg = Default()
	cfg.ExtFunctions = map[string]ExternalFunctionHandling{"foo": PropagateTaintDeep}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject propagate_taint_deep in ext_functions")
	}
}

func TestValidateRejectsUnrecognizedHandling(t *testing.T) {
	cfg := Default()
	cfg.ExtFunctionsDefault = ExternalFunctionHandling("not_a_real_policy")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to reject an unrecognized policy")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := []byte(`
ext_functions_default: ignore_and_return_tainted
dereferencing_tainted_ptr_gives_tainted: false
ext_functions:
  my_custom_sink: panic
`)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ExtFunctionsDefault != IgnoreAndReturnTainted {
		t.Errorf("ExtFunctionsDefault = %v, want %v", cfg.ExtFunctionsDefault, IgnoreAndReturnTainted)
	}
	if cfg.DereferencingTaintedPtrGivesTainted {
		t.Error("DereferencingTaintedPtrGivesTainted should be false")
	}
	if got := cfg.HandlingFor("my_custom_sink"); got != Panic {
		t.Errorf("HandlingFor(my_custom_sink) = %v, want %v", got, Panic)
	}
}
