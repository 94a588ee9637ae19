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

import "github.com/arash1902/AutoSA/aff"

// Bound describes the tile of one array dimension for one reference
// group: the dimension's accessed range fits in [LB, LB+Size-1] after
// stride normalization. Stride is 1 unless the detector found a larger
// one, in which case ShiftMap rewrites an index i to (i+Shift)/Stride
// and LB/Size refer to the rewritten index.
type Bound struct {
	Size int64
	LB   aff.Expr

	Stride   int64
	Shift    aff.Expr
	ShiftMap aff.Map
}

// Strided reports whether the dimension carries a stride bigger than
// one.
func (b Bound) Strided() bool { return b.Stride > 1 }

// dimHull reduces an access relation with a single output dimension to
// one basic relation the solver can run LP queries on. A single piece
// is used as is, keeping its existential dims for stride detection;
// unions fall back to the existential-free simple hull. Returns false
// when the relation is empty.
func dimHull(m aff.Map) (aff.BasicMap, bool) {
	kept := aff.Map{Space: m.Space}
	for i := range m.Pieces {
		if !m.Pieces[i].Empty() {
			kept.Pieces = append(kept.Pieces, m.Pieces[i])
		}
	}
	switch len(kept.Pieces) {
	case 0:
		return aff.BasicMap{}, false
	case 1:
		return kept.Pieces[0].Copy(), true
	default:
		return kept.SimpleHull(), true
	}
}

// computeDimSize looks for a parameter expression such that the single
// output dimension of hull, shifted by it, has a constant range. Every
// lower-bound constraint m*i >= b(x) is a candidate: lb = ceil(b/m) and
// the size is the maximum of i - lb + 1 over the relation. The
// candidate with the smallest size wins. Input-dimension coefficients
// are folded into the parameters starting at foldBase, which must
// mirror them. Returns false if no candidate has a finite maximum.
func computeDimSize(b *Bound, hull aff.BasicMap, params []string, foldBase int) bool {
	hull = checkStride(b, hull, params, foldBase)

	b.Size = -1
	np := len(params)
	nIn := hull.Space.In
	outCol := 1 + np + nIn
	for _, c := range hull.Cons {
		if anyNonZero(c.Row[outCol+1:]) {
			continue
		}
		row := c.Row
		m := row[outCol]
		if c.Eq && m < 0 {
			// Equalities are stored with a canonical sign; read them as
			// a lower bound on the dimension.
			row = negRow(row)
			m = -m
		}
		if m <= 0 {
			continue
		}
		var v int64
		if c.Eq {
			// The constraint pins m*i to its bound: one value.
			v = 0
		} else {
			obj := make([]int64, len(row))
			copy(obj, row)
			max, st := hull.Max(obj)
			if st != aff.LPOK {
				continue
			}
			v = max
		}
		size := floorDiv(v, m) + 1
		if b.Size >= 0 && size >= b.Size {
			continue
		}
		b.Size = size
		b.LB = aff.ExprFromRow(params, lowerBoundRow(row, np, nIn, foldBase), m)
	}
	return b.Size >= 0
}

// lowerBoundRow extracts b(x) from the constraint m*i - b(x) >= 0 as a
// parameter-only row, folding input dims onto their mirror parameters.
func lowerBoundRow(row []int64, np, nIn, foldBase int) []int64 {
	out := make([]int64, 1+np)
	out[0] = -row[0]
	for j := 0; j < np; j++ {
		out[1+j] = -row[1+j]
	}
	for k := 0; k < nIn; k++ {
		if row[1+np+k] == 0 {
			continue
		}
		contract(foldBase >= 0 && foldBase+k < np, "computeDimSize",
			"input dim %d has no mirror parameter", k)
		out[1+foldBase+k] -= row[1+np+k]
	}
	return out
}

// canTile computes a bound for every dimension of the given access
// relation (domain: schedule coordinates, range: array elements).
// It returns nil, false as soon as one dimension is unbounded.
func canTile(access aff.Map, params []string, foldBase int) ([]Bound, bool) {
	nIndex := access.Space.Out
	bounds := make([]Bound, nIndex)
	for i := 0; i < nIndex; i++ {
		dim := access.ProjectOut(aff.OutDim, i+1, nIndex-i-1).ProjectOut(aff.OutDim, 0, i)
		hull, ok := dimHull(dim)
		if !ok {
			return nil, false
		}
		if !computeDimSize(&bounds[i], hull, params, foldBase) {
			return nil, false
		}
	}
	return bounds, true
}

func negRow(row []int64) []int64 {
	out := make([]int64, len(row))
	for i, v := range row {
		out[i] = -v
	}
	return out
}

func anyNonZero(vs []int64) bool {
	for _, v := range vs {
		if v != 0 {
			return true
		}
	}
	return false
}

// floorDiv returns floor(a/b) for b > 0.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
