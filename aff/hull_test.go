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

func countEqs(b BasicMap) int {
	n := 0
	for _, c := range b.Cons {
		if c.Eq {
			n++
		}
	}
	return n
}

func TestAffineHullKeepsEqualities(t *testing.T) {
	m := affineMap(nil, 1, [][]int64{{3}}, []int64{0}) // (i) -> (3i)
	h := m.AffineHull()
	if countEqs(h) != 1 {
		t.Fatalf("hull has %d equalities, want 1", countEqs(h))
	}
	hm := FromBasic(h)
	if !hm.Contains(nil, []int64{2}, []int64{6}) {
		t.Errorf("(2, 6) not in hull of i -> 3i")
	}
	if hm.Contains(nil, []int64{2}, []int64{7}) {
		t.Errorf("(2, 7) in hull of i -> 3i")
	}
}

func TestAffineHullDetectsImplicitEquality(t *testing.T) {
	// x >= 2 and x <= 2 is the equality x = 2 in disguise.
	m := Universe(SetSpace(nil, 1))
	m.Pieces[0].AddInequality(-2, T(OutDim, 0, 1))
	m.Pieces[0].AddInequality(2, T(OutDim, 0, -1))
	h := m.AffineHull()
	if v, ok := h.IsFixed(OutDim, 0); !ok || v != 2 {
		t.Errorf("hull fixes x to %d, %v, want 2, true", v, ok)
	}
}

func TestAffineHullUnion(t *testing.T) {
	// Both pieces satisfy o = i; only the union-wide equality survives.
	a := affineMap(nil, 1, [][]int64{{1}}, []int64{0})
	a.Pieces[0].AddInequality(0, T(InDim, 0, 1)) // i >= 0
	b := affineMap(nil, 1, [][]int64{{1}}, []int64{0})
	b.Pieces[0].AddInequality(-1, T(InDim, 0, -1)) // i <= -1
	h := a.Union(b).AffineHull()
	if countEqs(h) != 1 {
		t.Errorf("union hull has %d equalities, want 1", countEqs(h))
	}
}

func TestSimpleHullSinglePiece(t *testing.T) {
	m := Universe(SetSpace(nil, 1))
	m.Pieces[0].AddInequality(0, T(OutDim, 0, 1))
	m.Pieces[0].AddInequality(5, T(OutDim, 0, -1))
	h := FromBasic(m.SimpleHull())
	if !m.IsSubsetOf(h) {
		t.Errorf("set not contained in its simple hull")
	}
	if !h.FixDim(OutDim, 0, 6).IsEmpty() {
		t.Errorf("simple hull of [0,5] contains 6")
	}
}

func TestSimpleHullUnion(t *testing.T) {
	lo := Universe(SetSpace(nil, 1))
	lo.Pieces[0].AddInequality(0, T(OutDim, 0, 1))
	lo.Pieces[0].AddInequality(3, T(OutDim, 0, -1))
	hi := Universe(SetSpace(nil, 1))
	hi.Pieces[0].AddInequality(-5, T(OutDim, 0, 1))
	hi.Pieces[0].AddInequality(8, T(OutDim, 0, -1))
	u := lo.Union(hi)
	h := FromBasic(u.SimpleHull())

	if !u.IsSubsetOf(h) {
		t.Errorf("union not contained in its simple hull")
	}
	if !h.FixDim(OutDim, 0, -1).IsEmpty() {
		t.Errorf("hull of [0,3] + [5,8] contains -1")
	}
	if !h.FixDim(OutDim, 0, 9).IsEmpty() {
		t.Errorf("hull of [0,3] + [5,8] contains 9")
	}
}
