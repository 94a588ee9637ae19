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

// Package aff implements integer affine sets and relations: systems of
// linear equalities and inequalities over named parameters, input and
// output dimensions, and existentially quantified auxiliary dimensions.
// It provides the operations the placement core needs: intersection,
// application, exact projection, affine and simple hulls, emptiness and
// bijectivity tests, and parametric maximization via linear programming.
//
// Relations are unions of basic relations (BasicMap); a set is a
// relation with no input dimensions. All operations are pure: methods
// return fresh values and never mutate their receivers.
package aff

import "fmt"

// DimKind identifies one of the dimension classes of a relation.
type DimKind int

const (
	// ParamDim are the global symbolic parameters, shared by every
	// relation in one compilation.
	ParamDim DimKind = iota
	// InDim are the domain (input) dimensions.
	InDim
	// OutDim are the range (output) dimensions.
	OutDim
	// DivDim are existentially quantified auxiliary dimensions local to
	// one basic relation.
	DivDim
)

func (k DimKind) String() string {
	switch k {
	case ParamDim:
		return "param"
	case InDim:
		return "in"
	case OutDim:
		return "out"
	case DivDim:
		return "div"
	}
	return fmt.Sprintf("DimKind(%d)", int(k))
}

// Space describes the shape of a relation: its parameter names and the
// number of input and output dimensions. Existential dimensions are not
// part of the space; each basic relation carries its own.
type Space struct {
	Params []string
	In     int
	Out    int
}

// NewSpace returns a space with the given parameters and dimension
// counts. The parameter slice is shared, not copied; callers treat it
// as immutable.
func NewSpace(params []string, in, out int) Space {
	assertf(in >= 0 && out >= 0, "NewSpace: negative dimension count (%d, %d)", in, out)
	return Space{Params: params, In: in, Out: out}
}

// SetSpace returns a space for a set with n dimensions.
func SetSpace(params []string, n int) Space {
	return NewSpace(params, 0, n)
}

// NParam returns the number of parameters.
func (s Space) NParam() int { return len(s.Params) }

// Dim returns the number of dimensions of the given kind. Div counts
// live on BasicMap, not on the space.
func (s Space) Dim(k DimKind) int {
	switch k {
	case ParamDim:
		return len(s.Params)
	case InDim:
		return s.In
	case OutDim:
		return s.Out
	}
	assertf(false, "Space.Dim: no %v count on a space", k)
	return 0
}

// Equal reports whether the two spaces have identical parameters and
// dimension counts.
func (s Space) Equal(o Space) bool {
	if s.In != o.In || s.Out != o.Out || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

// Reverse returns the space with input and output dimensions swapped.
func (s Space) Reverse() Space {
	return Space{Params: s.Params, In: s.Out, Out: s.In}
}

// RangeSpace returns the space of the relation's range, as a set space.
func (s Space) RangeSpace() Space {
	return Space{Params: s.Params, In: 0, Out: s.Out}
}

// DomainSpace returns the space of the relation's domain, as a set
// space.
func (s Space) DomainSpace() Space {
	return Space{Params: s.Params, In: 0, Out: s.In}
}

// ContractError reports a violated programming contract: malformed
// dimension counts, mismatched spaces, or misuse of an operation. These
// indicate a bug in the caller, never bad input data, and are raised as
// panics.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("aff: contract violated in %s: %s", e.Op, e.Msg)
}

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(&ContractError{Op: "aff", Msg: fmt.Sprintf(format, args...)})
	}
}

func assertOp(cond bool, op, format string, args ...any) {
	if !cond {
		panic(&ContractError{Op: op, Msg: fmt.Sprintf(format, args...)})
	}
}
