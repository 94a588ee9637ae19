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

// tileMap builds the relation from a len-dimensional point to a
// len+n-dimensional point that splits each of the n coordinates
// starting at first into (point / size, point % size): the quotients
// land at first, the remainders right after them, and the remaining
// coordinates pass through unchanged.
func tileMap(params []string, length, first, n int, sizes []int64) aff.Map {
	contract(first >= 0 && first+n <= length, "tileMap",
		"band [%d,%d) exceeds %d dims", first, first+n, length)
	contract(len(sizes) >= n, "tileMap", "got %d sizes for %d dims", len(sizes), n)
	m := aff.Universe(aff.NewSpace(params, length, length+n))
	b := &m.Pieces[0]
	for i := 0; i < length-n; i++ {
		j, k := i, i
		if i >= first {
			j, k = i+n, i+2*n
		}
		b.AddEquality(0, aff.T(aff.InDim, j, -1), aff.T(aff.OutDim, k, 1))
	}
	for i := 0; i < n; i++ {
		contract(sizes[i] >= 1, "tileMap", "size %d at dim %d", sizes[i], i)
		b.AddEquality(0, aff.T(aff.InDim, first+i, -1),
			aff.T(aff.OutDim, first+i, sizes[i]),
			aff.T(aff.OutDim, first+n+i, 1))
		b.AddInequality(0, aff.T(aff.OutDim, first+n+i, 1))
		b.AddInequality(sizes[i]-1, aff.T(aff.OutDim, first+n+i, -1))
	}
	return m
}

// wrapMap is the round-robin dual of tileMap: each wrapped coordinate
// is retained and followed by its remainder modulo the size, with the
// quotient projected away.
func wrapMap(params []string, length, first, n int, sizes []int64) aff.Map {
	contract(first >= 0 && first+n <= length, "wrapMap",
		"band [%d,%d) exceeds %d dims", first, first+n, length)
	contract(len(sizes) >= n, "wrapMap", "got %d sizes for %d dims", len(sizes), n)
	m := aff.Universe(aff.NewSpace(params, length, length+2*n))
	b := &m.Pieces[0]
	for i := 0; i < length; i++ {
		k := i
		if i >= first+n {
			k = i + 2*n
		}
		b.AddEquality(0, aff.T(aff.InDim, i, -1), aff.T(aff.OutDim, k, 1))
	}
	for i := 0; i < n; i++ {
		contract(sizes[i] >= 1, "wrapMap", "size %d at dim %d", sizes[i], i)
		b.AddEquality(0, aff.T(aff.OutDim, first+i, -1),
			aff.T(aff.OutDim, first+n+i, 1),
			aff.T(aff.OutDim, first+2*n+i, sizes[i]))
		b.AddInequality(0, aff.T(aff.OutDim, first+n+i, 1))
		b.AddInequality(sizes[i]-1, aff.T(aff.OutDim, first+n+i, -1))
	}
	return m.ProjectOut(aff.OutDim, first+2*n, n)
}

// distribute picks tileMap or wrapMap per the configured policy.
func distribute(cfg Config, params []string, length, first, n int, sizes []int64) aff.Map {
	if cfg.Wrap {
		return wrapMap(params, length, first, n, sizes)
	}
	return tileMap(params, length, first, n, sizes)
}

// parametrization builds the set of length-dimensional points whose
// coordinates first..first+n-1 equal the parameters starting at
// paramFirst. The parameters must already exist in params.
func parametrization(params []string, length, first, n, paramFirst int) aff.Set {
	contract(first >= 0 && first+n <= length, "parametrization",
		"band [%d,%d) exceeds %d dims", first, first+n, length)
	contract(paramFirst >= 0 && paramFirst+n <= len(params), "parametrization",
		"parameters [%d,%d) exceed %d", paramFirst, paramFirst+n, len(params))
	s := aff.Universe(aff.SetSpace(params, length))
	b := &s.Pieces[0]
	for i := 0; i < n; i++ {
		b.AddEquality(0, aff.T(aff.ParamDim, paramFirst+i, -1),
			aff.T(aff.OutDim, first+i, 1))
	}
	return s
}

// projection maps an n-dimensional point to its first m coordinates.
func projection(params []string, n, m int) aff.Map {
	contract(m >= 0 && m <= n, "projection", "cannot keep %d of %d dims", m, n)
	p := aff.Universe(aff.NewSpace(params, n, m))
	b := &p.Pieces[0]
	for i := 0; i < m; i++ {
		b.AddEquality(0, aff.T(aff.InDim, i, -1), aff.T(aff.OutDim, i, 1))
	}
	return p
}

// nextMap increments coordinate pos and fixes all others.
func nextMap(params []string, length, pos int) aff.Map {
	m := aff.Universe(aff.NewSpace(params, length, length))
	b := &m.Pieces[0]
	for i := 0; i < length; i++ {
		var cst int64
		if i == pos {
			cst = 1
		}
		b.AddEquality(cst, aff.T(aff.InDim, i, 1), aff.T(aff.OutDim, i, -1))
	}
	return m
}

// permutationMap sends input dimension i to output dimension pos[i].
func permutationMap(params []string, pos []int) aff.Map {
	n := len(pos)
	m := aff.Universe(aff.NewSpace(params, n, n))
	b := &m.Pieces[0]
	for i := 0; i < n; i++ {
		contract(pos[i] >= 0 && pos[i] < n, "permutationMap", "position %d out of range", pos[i])
		b.AddEquality(0, aff.T(aff.InDim, i, -1), aff.T(aff.OutDim, pos[i], 1))
	}
	return m
}

// scaleMap multiplies coordinate i by factor(i): out_i = factor(i)*in_i.
func scaleMap(params []string, length int, factor func(int) int64) aff.Map {
	m := aff.Universe(aff.NewSpace(params, length, length))
	b := &m.Pieces[0]
	for i := 0; i < length; i++ {
		f := factor(i)
		contract(f >= 1, "scaleMap", "factor %d at dim %d", f, i)
		b.AddEquality(0, aff.T(aff.InDim, i, f), aff.T(aff.OutDim, i, -1))
	}
	return m
}
