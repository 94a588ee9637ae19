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
	"testing"

	"github.com/arash1902/AutoSA/aff"
)

// stencilAccess is the union of a three-point stencil's reads over one
// tile: the schedule coordinate equals g0 and the accessed elements
// span [g0-1, g0+64].
func stencilAccess() aff.Map {
	m := aff.Universe(aff.NewSpace([]string{"g0"}, 1, 1))
	b := &m.Pieces[0]
	b.AddEquality(0, aff.T(aff.InDim, 0, 1), aff.T(aff.ParamDim, 0, -1))
	b.AddInequality(1, aff.T(aff.OutDim, 0, 1), aff.T(aff.InDim, 0, -1))
	b.AddInequality(64, aff.T(aff.InDim, 0, 1), aff.T(aff.OutDim, 0, -1))
	return m
}

func TestCanTileStencil(t *testing.T) {
	bounds, ok := canTile(stencilAccess(), []string{"g0"}, 0)
	if !ok {
		t.Fatalf("stencil tile reported unbounded")
	}
	if len(bounds) != 1 {
		t.Fatalf("got %d bounds, want 1", len(bounds))
	}
	b := bounds[0]
	if b.Size != 66 {
		t.Errorf("size = %d, want 66", b.Size)
	}
	if b.Strided() {
		t.Errorf("stride = %d, want 1", b.Stride)
	}
	// lb = g0 - 1
	if b.LB.Cst != -1 || b.LB.Denom != 1 || b.LB.Coef[0] != 1 {
		t.Errorf("lb = %v, want g0 - 1", b.LB)
	}
}

func TestCanTileUnbounded(t *testing.T) {
	// No upper bound on the accessed element: no tile.
	m := aff.Universe(aff.NewSpace([]string{"g0"}, 1, 1))
	b := &m.Pieces[0]
	b.AddInequality(0, aff.T(aff.OutDim, 0, 1), aff.T(aff.ParamDim, 0, -1))
	if _, ok := canTile(m, []string{"g0"}, 0); ok {
		t.Errorf("half-line reported tilable")
	}
}

func TestCanTileFixedDim(t *testing.T) {
	// An equality pins the dimension: size 1.
	m := aff.Universe(aff.NewSpace([]string{"g0"}, 1, 1))
	m.Pieces[0].AddEquality(5, aff.T(aff.OutDim, 0, 1), aff.T(aff.ParamDim, 0, -1))
	bounds, ok := canTile(m, []string{"g0"}, 0)
	if !ok {
		t.Fatalf("fixed dim reported unbounded")
	}
	if bounds[0].Size != 1 {
		t.Errorf("size = %d, want 1", bounds[0].Size)
	}
	// lb = g0 - 5
	if bounds[0].LB.Cst != -5 || bounds[0].LB.Coef[0] != 1 {
		t.Errorf("lb = %v, want g0 - 5", bounds[0].LB)
	}
}

func TestCanTileSmallestCandidateWins(t *testing.T) {
	// Two lower bounds: a >= 0 (size 129) and a >= g0 (size 65 over the
	// relation). The tighter parametric one must win.
	m := aff.Universe(aff.NewSpace([]string{"g0"}, 0, 1))
	b := &m.Pieces[0]
	b.AddInequality(0, aff.T(aff.OutDim, 0, 1))
	b.AddInequality(0, aff.T(aff.OutDim, 0, 1), aff.T(aff.ParamDim, 0, -1))
	b.AddInequality(64, aff.T(aff.ParamDim, 0, 1), aff.T(aff.OutDim, 0, -1))
	b.AddInequality(128, aff.T(aff.OutDim, 0, -1))
	b.AddInequality(0, aff.T(aff.ParamDim, 0, 1))
	b.AddInequality(64, aff.T(aff.ParamDim, 0, -1))

	bounds, ok := canTile(m, []string{"g0"}, -1)
	if !ok {
		t.Fatalf("bounded interval reported unbounded")
	}
	if bounds[0].Size != 65 {
		t.Errorf("size = %d, want 65", bounds[0].Size)
	}
	if bounds[0].LB.Coef[0] != 1 || bounds[0].LB.Cst != 0 {
		t.Errorf("lb = %v, want g0", bounds[0].LB)
	}
}

func TestCheckStrideEven(t *testing.T) {
	// Elements g0, g0+2, ..., g0+126: stride 2, 64 values.
	m := aff.Universe(aff.NewSpace([]string{"g0"}, 1, 1))
	b := &m.Pieces[0]
	b.AddEquality(0, aff.T(aff.InDim, 0, 1), aff.T(aff.ParamDim, 0, -1))
	e := b.AddDiv()
	b.AddEquality(0, aff.T(aff.OutDim, 0, 1), aff.T(aff.DivDim, e, -2), aff.T(aff.ParamDim, 0, -1))
	b.AddInequality(0, aff.T(aff.DivDim, e, 1))
	b.AddInequality(63, aff.T(aff.DivDim, e, -1))

	bounds, ok := canTile(m, []string{"g0"}, 0)
	if !ok {
		t.Fatalf("strided tile reported unbounded")
	}
	bd := bounds[0]
	if bd.Stride != 2 {
		t.Fatalf("stride = %d, want 2", bd.Stride)
	}
	if bd.Size != 64 {
		t.Errorf("size = %d, want 64", bd.Size)
	}
	// shift = -g0, so (i + shift) is divisible by 2 on every element.
	if bd.Shift.Coef[0] != -1 || bd.Shift.Cst != 0 {
		t.Errorf("shift = %v, want -g0", bd.Shift)
	}
	// The shift map sends g0 + 2k to k.
	if !bd.ShiftMap.Contains([]int64{10}, []int64{16}, []int64{3}) {
		t.Errorf("shift map did not send 16 to 3 under g0 = 10")
	}
}

func TestFloorDiv(t *testing.T) {
	for _, tc := range []struct{ a, b, want int64 }{
		{7, 2, 3}, {-7, 2, -4}, {6, 3, 2}, {-6, 3, -2}, {0, 5, 0},
	} {
		if got := floorDiv(tc.a, tc.b); got != tc.want {
			t.Errorf("floorDiv(%d, %d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
