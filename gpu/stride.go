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

// checkStride looks for a shift a(p) and stride g > 1 such that the
// single output dimension i of bounds satisfies a(p) + i = 0 mod g.
// The witnesses are equalities of the affine hull of the form
//
//	a(p,x) + i = g*f(e)
//
// with f over the existential dims only; g is the gcd of their
// coefficients and the largest g across all such equalities wins.
// On success the stride is recorded in b and the returned relation has
// its output rewritten to (i + a)/g; otherwise bounds is returned
// unchanged with stride 1.
func checkStride(b *Bound, bounds aff.BasicMap, params []string, foldBase int) aff.BasicMap {
	b.Stride = 1

	hull := aff.FromBasic(bounds).AffineHull()
	if hull.NDiv == 0 {
		return bounds
	}
	np := len(params)
	nIn := hull.Space.In
	outCol := 1 + np + nIn

	var stride int64
	var shiftRow []int64
	for _, c := range hull.Cons {
		if !c.Eq {
			continue
		}
		v := c.Row[outCol]
		if v != 1 && v != -1 {
			continue
		}
		var g int64
		for _, d := range c.Row[outCol+1:] {
			g = gcd(g, d)
		}
		if g <= stride {
			continue
		}
		// Sign-adjust so the equality reads a(p) + i = g*f(e).
		row := make([]int64, 1+np)
		for j := 0; j <= np; j++ {
			row[j] = v * c.Row[j]
		}
		for k := 0; k < nIn; k++ {
			if c.Row[1+np+k] == 0 {
				continue
			}
			contract(foldBase >= 0 && foldBase+k < np, "checkStride",
				"input dim %d has no mirror parameter", k)
			row[1+foldBase+k] += v * c.Row[1+np+k]
		}
		stride = g
		shiftRow = row
	}
	if stride <= 1 {
		return bounds
	}

	b.Stride = stride
	b.Shift = aff.ExprFromRow(params, shiftRow, 1)
	b.ShiftMap = shiftMap(params, shiftRow, stride)

	rewritten := aff.FromBasic(bounds).ApplyRange(b.ShiftMap)
	contract(len(rewritten.Pieces) == 1, "checkStride", "stride rewrite lost the relation")
	return rewritten.Pieces[0]
}

// shiftMap builds { i -> o : g*o = i + shift(p) }.
func shiftMap(params []string, shiftRow []int64, g int64) aff.Map {
	m := aff.Universe(aff.NewSpace(params, 1, 1))
	terms := []aff.Term{aff.T(aff.InDim, 0, 1), aff.T(aff.OutDim, 0, -g)}
	for j := 1; j < len(shiftRow); j++ {
		if shiftRow[j] != 0 {
			terms = append(terms, aff.T(aff.ParamDim, j-1, shiftRow[j]))
		}
	}
	m.Pieces[0].AddEquality(shiftRow[0], terms...)
	return m
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
