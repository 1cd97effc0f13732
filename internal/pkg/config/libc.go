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

// libcDefaults is a small built-in table of sensible default handling
// policies for common external C library functions, so that a Config
// with an empty ExtFunctions map still behaves reasonably for ordinary
// C code instead of falling through to the single global default for
// every libc call. Modeled on internal/pkg/propagation/stdlib.go's
// summary.For(call) lookup in the teacher: ship defaults, let user
// config override them via Config.ExtFunctions.
var libcDefaults = map[string]ExternalFunctionHandling{
	// Pure data-movement: the result is exactly as tainted as the
	// source argument. Shallow propagation captures the common case
	// (tainting the destination pointer's own value, not yet its
	// pointee) without requiring the unimplemented deep policy.
	"memcpy":  PropagateTaintShallow,
	"memmove": PropagateTaintShallow,
	"strcpy":  PropagateTaintShallow,
	"strncpy": PropagateTaintShallow,
	"strcat":  PropagateTaintShallow,
	"strncat": PropagateTaintShallow,
	"strdup":  PropagateTaintShallow,

	// Allocators and pure-zeroing calls: the returned memory carries no
	// taint of its own. realloc is the exception: it returns the old
	// contents, so it propagates its arguments' taint shallowly.
	"malloc":  IgnoreAndReturnUntainted,
	"calloc":  IgnoreAndReturnUntainted,
	"realloc": PropagateTaintShallow,
	"free":    IgnoreAndReturnUntainted,
	"memset":  IgnoreAndReturnUntainted,

	// Classic taint sources: data that enters the program from the
	// environment, the filesystem, or a network peer.
	"read":      IgnoreAndReturnTainted,
	"recv":      IgnoreAndReturnTainted,
	"recvfrom":  IgnoreAndReturnTainted,
	"fread":     IgnoreAndReturnTainted,
	"fgets":     IgnoreAndReturnTainted,
	"gets":      IgnoreAndReturnTainted,
	"getenv":    IgnoreAndReturnTainted,
	"scanf":     IgnoreAndReturnTainted,
	"fscanf":    IgnoreAndReturnTainted,
	"getchar":   IgnoreAndReturnTainted,
	"fgetc":     IgnoreAndReturnTainted,

	// Parsers over already-tainted data: conservatively shallow-tainted,
	// since their result is only as tainted as their own argument, and
	// arguments to these are overwhelmingly taint sources themselves.
	"atoi":    PropagateTaintShallow,
	"atol":    PropagateTaintShallow,
	"strtol":  PropagateTaintShallow,
	"strtoul": PropagateTaintShallow,
	"strtod":  PropagateTaintShallow,

	// Pure output/logging sinks: no meaningful return-value taint.
	"printf":  IgnoreAndReturnUntainted,
	"fprintf": IgnoreAndReturnUntainted,
	"puts":    IgnoreAndReturnUntainted,
	"write":   IgnoreAndReturnUntainted,
	"send":    IgnoreAndReturnUntainted,

	// Pure computation over scalar arguments with no hidden data
	// source: propagate shallow taint from arguments to the result.
	"strlen": PropagateTaintShallow,
	"strcmp": PropagateTaintShallow,
	"memcmp": PropagateTaintShallow,
	"abs":    PropagateTaintShallow,
	"labs":   PropagateTaintShallow,
}
