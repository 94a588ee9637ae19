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

package aff

import "testing"

func TestEmptyUniverse(t *testing.T) {
	b := UniverseBasic(SetSpace(nil, 1))
	if b.Empty() {
		t.Errorf("universe reported empty")
	}
}

func TestEmptyContradiction(t *testing.T) {
	b := UniverseBasic(SetSpace(nil, 1))
	b.AddInequality(-1, T(OutDim, 0, 1))  // x >= 1
	b.AddInequality(0, T(OutDim, 0, -1)) // x <= 0
	if !b.Empty() {
		t.Errorf("x >= 1 and x <= 0 reported nonempty")
	}
}

func TestEmptyParity(t *testing.T) {
	// x = 2a and x = 2b + 1 has no integer solution even though the
	// rational relaxation is feasible.
	b := UniverseBasic(SetSpace(nil, 1))
	a := b.AddDiv()
	c := b.AddDiv()
	b.AddEquality(0, T(OutDim, 0, 1), T(DivDim, a, -2))
	b.AddEquality(-1, T(OutDim, 0, 1), T(DivDim, c, -2))
	if !b.Empty() {
		t.Errorf("parity contradiction reported nonempty")
	}
}

func TestEmptyInconsistentEqualities(t *testing.T) {
	b := UniverseBasic(SetSpace(nil, 1))
	b.AddEquality(-2, T(OutDim, 0, 1)) // x = 2
	b.AddEquality(-3, T(OutDim, 0, 1)) // x = 3
	if !b.Empty() {
		t.Errorf("x = 2 and x = 3 reported nonempty")
	}
}

func TestIsFixed(t *testing.T) {
	b := UniverseBasic(SetSpace(nil, 2))
	b.AddEquality(-5, T(OutDim, 0, 1))   // x = 5
	b.AddInequality(0, T(OutDim, 1, 1))  // y >= 0
	b.AddInequality(9, T(OutDim, 1, -1)) // y <= 9

	if v, ok := b.IsFixed(OutDim, 0); !ok || v != 5 {
		t.Errorf("IsFixed(x) = %d, %v, want 5, true", v, ok)
	}
	if _, ok := b.IsFixed(OutDim, 1); ok {
		t.Errorf("IsFixed(y) = true for a ranging dimension")
	}
}

func TestProjectionKeepsStride(t *testing.T) {
	// Projecting the input out of {(i) -> (2i)} must keep the range
	// restricted to even numbers.
	m := Universe(NewSpace(nil, 1, 1))
	m.Pieces[0].AddEquality(0, T(OutDim, 0, 1), T(InDim, 0, -2))
	r := m.Range()

	if r.FixDim(OutDim, 0, 4).IsEmpty() {
		t.Errorf("4 not in range of i -> 2i")
	}
	if !r.FixDim(OutDim, 0, 3).IsEmpty() {
		t.Errorf("3 in range of i -> 2i")
	}
}

func TestProjectionInequalities(t *testing.T) {
	// {(i) -> (o) : i <= o <= i + 2, 0 <= i <= 10} projected onto o.
	m := Universe(NewSpace(nil, 1, 1))
	b := &m.Pieces[0]
	b.AddInequality(0, T(OutDim, 0, 1), T(InDim, 0, -1))
	b.AddInequality(2, T(InDim, 0, 1), T(OutDim, 0, -1))
	b.AddInequality(0, T(InDim, 0, 1))
	b.AddInequality(10, T(InDim, 0, -1))
	r := m.Range()

	for _, tc := range []struct {
		v  int64
		in bool
	}{{0, true}, {12, true}, {-1, false}, {13, false}} {
		got := !r.FixDim(OutDim, 0, tc.v).IsEmpty()
		if got != tc.in {
			t.Errorf("contains(%d) = %v, want %v", tc.v, got, tc.in)
		}
	}
}
