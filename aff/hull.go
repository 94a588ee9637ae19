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

// affineHull returns the smallest affine subspace containing the basic
// relation: its explicit equalities plus every inequality whose reverse
// direction also holds everywhere.
func (b *BasicMap) affineHull() BasicMap {
	nb := b.Copy()
	if !nb.normalize() {
		return emptyBasic(b.Space)
	}
	res := BasicMap{Space: b.Space, NDiv: nb.NDiv}
	for _, c := range nb.Cons {
		if c.Eq {
			res.Cons = append(res.Cons, c.Copy())
			continue
		}
		neg := make([]int64, len(c.Row))
		for i, v := range c.Row {
			neg[i] = -v
		}
		if nb.minNonNegative(neg) {
			nc := c.Copy()
			nc.Eq = true
			res.Cons = append(res.Cons, nc)
		}
	}
	res.eqReduce()
	res.normalize()
	res.sortCons()
	return res
}

func emptyBasic(space Space) BasicMap {
	b := UniverseBasic(space)
	b.AddEquality(1)
	return b
}

// AffineHull returns a basic relation whose integer points form the
// smallest affine subspace containing m. For unions with several
// pieces, only existential-free equalities are considered.
func (m Map) AffineHull() BasicMap {
	nm := m.dropEmpty()
	if len(nm.Pieces) == 0 {
		return emptyBasic(m.Space)
	}
	hull := nm.Pieces[0].affineHull()
	if len(nm.Pieces) == 1 {
		return hull
	}
	res := BasicMap{Space: m.Space}
	nFixed := 1 + m.Space.NParam() + m.Space.In + m.Space.Out
	for _, c := range hull.Cons {
		if !allZero(c.Row[nFixed:]) {
			continue
		}
		row := c.Row[:nFixed]
		if holdsOnAll(nm.Pieces[1:], row, true) {
			nr := make([]int64, nFixed)
			copy(nr, row)
			res.Cons = append(res.Cons, Constraint{Eq: true, Row: nr})
		}
	}
	res.eqReduce()
	res.normalize()
	res.sortCons()
	return res
}

// holdsOnAll reports whether row >= 0 (or == 0 when eq) is valid on the
// rational relaxation of every piece. The row is existential-free and
// gets zero-padded to each piece's width.
func holdsOnAll(pieces []BasicMap, row []int64, eq bool) bool {
	for i := range pieces {
		p := &pieces[i]
		padded := make([]int64, p.Cols())
		copy(padded, row)
		if !p.minNonNegative(padded) {
			return false
		}
		if eq {
			neg := make([]int64, p.Cols())
			for j, v := range row {
				neg[j] = -v
			}
			if !p.minNonNegative(neg) {
				return false
			}
		}
	}
	return true
}

// dropDivs returns the existential-free overapproximation of b obtained
// by discarding every constraint that mentions an existential dim.
func (b *BasicMap) dropDivs() BasicMap {
	nFixed := 1 + b.Space.NParam() + b.Space.In + b.Space.Out
	res := BasicMap{Space: b.Space}
	for _, c := range b.Cons {
		if !allZero(c.Row[nFixed:]) {
			continue
		}
		row := make([]int64, nFixed)
		copy(row, c.Row[:nFixed])
		res.Cons = append(res.Cons, Constraint{Eq: c.Eq, Row: row})
	}
	return res
}

// SimpleHull returns a single existential-free basic relation
// containing m: the constraints of the pieces that are valid on every
// piece. For a single piece this is exact up to the discarded
// existential constraints.
func (m Map) SimpleHull() BasicMap {
	nm := m.dropEmpty()
	if len(nm.Pieces) == 0 {
		return emptyBasic(m.Space)
	}
	if len(nm.Pieces) == 1 {
		h := nm.Pieces[0].dropDivs()
		h.normalize()
		h.sortCons()
		return h
	}
	res := BasicMap{Space: m.Space}
	seen := make(map[string]bool)
	for i := range nm.Pieces {
		cand := nm.Pieces[i].dropDivs()
		for _, c := range cand.Cons {
			key := rowKey(c.Eq, c.Row)
			if seen[key] {
				continue
			}
			seen[key] = true
			if holdsOnAll(nm.Pieces, c.Row, c.Eq) {
				res.Cons = append(res.Cons, c.Copy())
			}
		}
	}
	res.normalize()
	res.sortCons()
	return res
}
