// Copyright 2025 AutoSA Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gpu

import (
	"fmt"

	"github.com/arash1902/AutoSA/aff"
)

// CompileError reports that mapping one kernel invocation site failed.
// Recoverable placement outcomes (unbounded dimensions, non-bijective
// privatization candidates, empty accesses) never produce one; only a
// violated programming contract does.
type CompileError struct {
	Kernel int
	Op     string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: kernel %d: %s: %v", e.Kernel, e.Op, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// contract panics with a ContractError when cond is false. Used for
// malformed input that upstream collaborators promise never to send.
func contract(cond bool, op, format string, args ...any) {
	if !cond {
		panic(&aff.ContractError{Op: op, Msg: fmt.Sprintf(format, args...)})
	}
}
