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

import "strings"

// Map is a finite union of basic relations over one space. A Set is a
// Map with no input dimensions.
type Map struct {
	Space  Space
	Pieces []BasicMap
}

// Set is a relation with no input dimensions, by convention.
type Set = Map

// FromBasic wraps a single basic relation.
func FromBasic(b BasicMap) Map {
	return Map{Space: b.Space, Pieces: []BasicMap{b}}
}

// Universe returns the unconstrained relation over space.
func Universe(space Space) Map {
	return FromBasic(UniverseBasic(space))
}

// Empty returns the empty relation over space.
func Empty(space Space) Map {
	return Map{Space: space}
}

// UniverseSet returns the unconstrained set with n dimensions.
func UniverseSet(params []string, n int) Set {
	return Universe(SetSpace(params, n))
}

// Copy returns a deep copy.
func (m Map) Copy() Map {
	nm := Map{Space: m.Space, Pieces: make([]BasicMap, len(m.Pieces))}
	for i := range m.Pieces {
		nm.Pieces[i] = m.Pieces[i].Copy()
	}
	return nm
}

func (m Map) dropEmpty() Map {
	kept := make([]BasicMap, 0, len(m.Pieces))
	for i := range m.Pieces {
		if !m.Pieces[i].Empty() {
			kept = append(kept, m.Pieces[i])
		}
	}
	return Map{Space: m.Space, Pieces: kept}
}

// IsEmpty reports whether the relation holds no integer point.
func (m Map) IsEmpty() bool {
	for i := range m.Pieces {
		if !m.Pieces[i].Empty() {
			return false
		}
	}
	return true
}

// Union returns the union of two relations over the same space.
func (m Map) Union(o Map) Map {
	assertOp(m.Space.Equal(o.Space), "Map.Union", "space mismatch")
	nm := m.Copy()
	oc := o.Copy()
	nm.Pieces = append(nm.Pieces, oc.Pieces...)
	return nm
}

// intersectBasic conjoins two basic relations over the same space,
// concatenating their existential dims.
func intersectBasic(a, b *BasicMap) BasicMap {
	res := a.Copy()
	bdiv := b.NDiv
	at := res.Off(DivDim) + res.NDiv
	// Widen a's rows for b's divs.
	for i := range res.Cons {
		res.Cons[i].Row = insertZeros(res.Cons[i].Row, at+0, bdiv)
	}
	adiv := res.NDiv
	res.NDiv += bdiv
	divOff := res.Off(DivDim)
	for _, c := range b.Cons {
		row := make([]int64, res.Cols())
		copy(row[:divOff], c.Row[:divOff])
		copy(row[divOff+adiv:], c.Row[divOff:])
		res.Cons = append(res.Cons, Constraint{Eq: c.Eq, Row: row})
	}
	return res
}

// Intersect returns the intersection of two relations over the same
// space.
func (m Map) Intersect(o Map) Map {
	assertOp(m.Space.Equal(o.Space), "Map.Intersect", "space mismatch")
	res := Map{Space: m.Space}
	for i := range m.Pieces {
		for j := range o.Pieces {
			res.Pieces = append(res.Pieces, intersectBasic(&m.Pieces[i], &o.Pieces[j]))
		}
	}
	return res.dropEmpty()
}

// Reverse swaps domain and range.
func (m Map) Reverse() Map {
	res := Map{Space: m.Space.Reverse()}
	np := m.Space.NParam()
	in, out := m.Space.In, m.Space.Out
	for i := range m.Pieces {
		p := m.Pieces[i].Copy()
		for j := range p.Cons {
			row := p.Cons[j].Row
			nr := make([]int64, len(row))
			copy(nr[:1+np], row[:1+np])
			copy(nr[1+np:1+np+out], row[1+np+in:1+np+in+out])
			copy(nr[1+np+out:1+np+out+in], row[1+np:1+np+in])
			copy(nr[1+np+in+out:], row[1+np+in+out:])
			p.Cons[j].Row = nr
		}
		p.Space = res.Space
		res.Pieces = append(res.Pieces, p)
	}
	return res
}

// ApplyRange composes m : A -> B with o : B -> C into A -> C. The
// intermediate dimensions are projected out exactly, surviving as
// existential dims where necessary.
func (m Map) ApplyRange(o Map) Map {
	assertOp(m.Space.Out == o.Space.In, "Map.ApplyRange",
		"range has %d dims, argument domain has %d", m.Space.Out, o.Space.In)
	assertOp(paramsEqual(m.Space.Params, o.Space.Params), "Map.ApplyRange", "parameter mismatch")
	np := m.Space.NParam()
	nA, nB, nC := m.Space.In, m.Space.Out, o.Space.Out
	space := NewSpace(m.Space.Params, nA, nC)
	res := Map{Space: space}
	for i := range m.Pieces {
		for j := range o.Pieces {
			p1, p2 := &m.Pieces[i], &o.Pieces[j]
			d1, d2 := p1.NDiv, p2.NDiv
			// Combined layout: [1, p, A, C, B, d1, d2], with B and the
			// divs all existential.
			comb := BasicMap{Space: space, NDiv: nB + d1 + d2}
			for _, c := range p1.Cons {
				row := make([]int64, comb.Cols())
				copy(row[:1+np], c.Row[:1+np])
				copy(row[1+np:1+np+nA], c.Row[1+np:1+np+nA])
				copy(row[1+np+nA+nC:1+np+nA+nC+nB], c.Row[1+np+nA:1+np+nA+nB])
				copy(row[1+np+nA+nC+nB:1+np+nA+nC+nB+d1], c.Row[1+np+nA+nB:])
				comb.Cons = append(comb.Cons, Constraint{Eq: c.Eq, Row: row})
			}
			for _, c := range p2.Cons {
				row := make([]int64, comb.Cols())
				copy(row[:1+np], c.Row[:1+np])
				copy(row[1+np+nA+nC:1+np+nA+nC+nB], c.Row[1+np:1+np+nB])
				copy(row[1+np+nA:1+np+nA+nC], c.Row[1+np+nB:1+np+nB+nC])
				copy(row[1+np+nA+nC+nB+d1:], c.Row[1+np+nB+nC:])
				comb.Cons = append(comb.Cons, Constraint{Eq: c.Eq, Row: row})
			}
			if comb.projectOutCols(DivDim, 0, nB) {
				res.Pieces = append(res.Pieces, comb)
			}
		}
	}
	return res.dropEmpty()
}

// ApplyDomain composes m : A -> B with o : A -> C into C -> B,
// mapping o(x) to m(x).
func (m Map) ApplyDomain(o Map) Map {
	return m.Reverse().ApplyRange(o).Reverse()
}

// IntersectRange restricts the range of m to the set s.
func (m Map) IntersectRange(s Set) Map {
	assertOp(s.Space.In == 0 && s.Space.Out == m.Space.Out, "Map.IntersectRange",
		"set has %d dims, range has %d", s.Space.Out, m.Space.Out)
	lifted := Map{Space: m.Space}
	np := m.Space.NParam()
	for i := range s.Pieces {
		p := s.Pieces[i].Copy()
		for j := range p.Cons {
			p.Cons[j].Row = insertZeros(p.Cons[j].Row, 1+np, m.Space.In)
		}
		p.Space = m.Space
		lifted.Pieces = append(lifted.Pieces, p)
	}
	return m.Intersect(lifted)
}

// IntersectDomain restricts the domain of m to the set s.
func (m Map) IntersectDomain(s Set) Map {
	return m.Reverse().IntersectRange(s).Reverse()
}

// IntersectParams conjoins parameter-only constraints onto m.
func (m Map) IntersectParams(s Set) Map {
	assertOp(s.Space.Out == 0 && s.Space.In == 0, "Map.IntersectParams", "expected a parameter set")
	lifted := Map{Space: m.Space}
	for i := range s.Pieces {
		p := s.Pieces[i].Copy()
		np := m.Space.NParam()
		for j := range p.Cons {
			p.Cons[j].Row = insertZeros(p.Cons[j].Row, 1+np, m.Space.In+m.Space.Out)
		}
		p.Space = m.Space
		lifted.Pieces = append(lifted.Pieces, p)
	}
	return m.Intersect(lifted)
}

// ProjectOut existentially projects away n dimensions of kind k
// starting at first.
func (m Map) ProjectOut(k DimKind, first, n int) Map {
	var space Space
	switch k {
	case InDim:
		space = NewSpace(m.Space.Params, m.Space.In-n, m.Space.Out)
	case OutDim:
		space = NewSpace(m.Space.Params, m.Space.In, m.Space.Out-n)
	default:
		assertOp(false, "Map.ProjectOut", "cannot project %v dims", k)
	}
	res := Map{Space: space}
	for i := range m.Pieces {
		p := m.Pieces[i].Copy()
		if p.projectOutCols(k, first, n) {
			res.Pieces = append(res.Pieces, p)
		}
	}
	return res
}

// Range returns the range of m as a set.
func (m Map) Range() Set {
	r := m.ProjectOut(InDim, 0, m.Space.In)
	r.Space = SetSpace(m.Space.Params, m.Space.Out)
	for i := range r.Pieces {
		r.Pieces[i].Space = r.Space
	}
	return r
}

// Domain returns the domain of m as a set.
func (m Map) Domain() Set {
	return m.Reverse().Range()
}

// InsertDims inserts n fresh unconstrained dimensions of kind k at
// position pos.
func (m Map) InsertDims(k DimKind, pos, n int) Map {
	var space Space
	switch k {
	case InDim:
		space = NewSpace(m.Space.Params, m.Space.In+n, m.Space.Out)
	case OutDim:
		space = NewSpace(m.Space.Params, m.Space.In, m.Space.Out+n)
	default:
		assertOp(false, "Map.InsertDims", "cannot insert %v dims", k)
	}
	res := Map{Space: space}
	for i := range m.Pieces {
		p := m.Pieces[i].Copy()
		at := p.Off(k) + pos
		for j := range p.Cons {
			p.Cons[j].Row = insertZeros(p.Cons[j].Row, at, n)
		}
		p.Space = space
		res.Pieces = append(res.Pieces, p)
	}
	return res
}

// FixDim constrains dimension (k, pos) to the constant val.
func (m Map) FixDim(k DimKind, pos int, val int64) Map {
	res := m.Copy()
	for i := range res.Pieces {
		res.Pieces[i].AddEquality(-val, T(k, pos, 1))
	}
	return res
}

// AlignParams widens the parameter list to params, of which the current
// list must be a prefix.
func (m Map) AlignParams(params []string) Map {
	old := m.Space.NParam()
	assertOp(old <= len(params), "Map.AlignParams", "cannot drop parameters")
	for i := 0; i < old; i++ {
		assertOp(m.Space.Params[i] == params[i], "Map.AlignParams",
			"parameter %d: %q vs %q", i, m.Space.Params[i], params[i])
	}
	space := NewSpace(params, m.Space.In, m.Space.Out)
	res := Map{Space: space}
	n := len(params) - old
	for i := range m.Pieces {
		p := m.Pieces[i].Copy()
		for j := range p.Cons {
			p.Cons[j].Row = insertZeros(p.Cons[j].Row, 1+old, n)
		}
		p.Space = space
		res.Pieces = append(res.Pieces, p)
	}
	return res
}

// IsSubsetOf reports whether every point of m lies in o, which must be
// a union with a single piece.
func (m Map) IsSubsetOf(o Map) bool {
	assertOp(m.Space.Equal(o.Space), "Map.IsSubsetOf", "space mismatch")
	assertOp(len(o.Pieces) == 1, "Map.IsSubsetOf", "superset must be a single basic relation")
	sup := &o.Pieces[0]
	assertOp(sup.NDiv == 0, "Map.IsSubsetOf", "superset must be existential-free")
	for ci := range sup.Cons {
		c := sup.Cons[ci]
		// Negate: c >= 0 fails iff -c - 1 >= 0 holds somewhere; an
		// equality fails in either direction.
		dirs := [][]int64{negRow(c.Row)}
		if c.Eq {
			pos := make([]int64, len(c.Row))
			copy(pos, c.Row)
			pos[0]--
			dirs = append(dirs, pos)
		}
		for _, d := range dirs {
			for i := range m.Pieces {
				p := m.Pieces[i].Copy()
				row := make([]int64, p.Cols())
				copy(row, d[:1+p.Space.NParam()+p.Space.In+p.Space.Out])
				p.Cons = append(p.Cons, Constraint{Row: row})
				if !p.Empty() {
					return false
				}
			}
		}
	}
	return true
}

func negRow(row []int64) []int64 {
	out := make([]int64, len(row))
	for i, v := range row {
		out[i] = -v
	}
	out[0]--
	return out
}

// IsSingleValued reports whether m maps every domain point to at most
// one range point.
func (m Map) IsSingleValued() bool {
	// Pairs (y1, y2) of range points sharing a domain point.
	pairs := m.Reverse().ApplyRange(m)
	for i := 0; i < m.Space.Out; i++ {
		for _, sgn := range []int64{1, -1} {
			probe := pairs.Copy()
			for j := range probe.Pieces {
				probe.Pieces[j].AddInequality(-1,
					T(InDim, i, -sgn), T(OutDim, i, sgn))
			}
			if !probe.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// IsInjective reports whether no two domain points map to a common
// range point.
func (m Map) IsInjective() bool {
	return m.Reverse().IsSingleValued()
}

// IsBijective reports whether m is both single-valued and injective.
func (m Map) IsBijective() bool {
	return m.IsSingleValued() && m.IsInjective()
}

// FlatProduct returns the relation pairing m : A -> B and o : C -> D
// into (A, C) -> (B, D).
func (m Map) FlatProduct(o Map) Map {
	assertOp(paramsEqual(m.Space.Params, o.Space.Params), "Map.FlatProduct", "parameter mismatch")
	np := m.Space.NParam()
	space := NewSpace(m.Space.Params, m.Space.In+o.Space.In, m.Space.Out+o.Space.Out)
	res := Map{Space: space}
	for i := range m.Pieces {
		for j := range o.Pieces {
			p1, p2 := &m.Pieces[i], &o.Pieces[j]
			comb := BasicMap{Space: space, NDiv: p1.NDiv + p2.NDiv}
			for _, c := range p1.Cons {
				row := make([]int64, comb.Cols())
				copy(row[:1+np], c.Row[:1+np])
				copy(row[1+np:1+np+p1.Space.In], c.Row[1+np:1+np+p1.Space.In])
				copy(row[1+np+space.In:1+np+space.In+p1.Space.Out],
					c.Row[1+np+p1.Space.In:1+np+p1.Space.In+p1.Space.Out])
				copy(row[1+np+space.In+space.Out:1+np+space.In+space.Out+p1.NDiv],
					c.Row[1+np+p1.Space.In+p1.Space.Out:])
				comb.Cons = append(comb.Cons, Constraint{Eq: c.Eq, Row: row})
			}
			for _, c := range p2.Cons {
				row := make([]int64, comb.Cols())
				copy(row[:1+np], c.Row[:1+np])
				copy(row[1+np+p1.Space.In:1+np+space.In], c.Row[1+np:1+np+p2.Space.In])
				copy(row[1+np+space.In+p1.Space.Out:1+np+space.In+space.Out],
					c.Row[1+np+p2.Space.In:1+np+p2.Space.In+p2.Space.Out])
				copy(row[1+np+space.In+space.Out+p1.NDiv:],
					c.Row[1+np+p2.Space.In+p2.Space.Out:])
				comb.Cons = append(comb.Cons, Constraint{Eq: c.Eq, Row: row})
			}
			res.Pieces = append(res.Pieces, comb)
		}
	}
	return res
}

// Contains reports whether the given point (input then output
// coordinates, under the given parameter values) lies in the relation.
func (m Map) Contains(params, in, out []int64) bool {
	assertOp(len(params) == m.Space.NParam() && len(in) == m.Space.In && len(out) == m.Space.Out,
		"Map.Contains", "point shape mismatch")
	probe := m.Copy()
	for i, v := range params {
		probe = probe.FixDim(ParamDim, i, v)
	}
	for i, v := range in {
		probe = probe.FixDim(InDim, i, v)
	}
	for i, v := range out {
		probe = probe.FixDim(OutDim, i, v)
	}
	return !probe.IsEmpty()
}

func (m Map) String() string {
	if len(m.Pieces) == 0 {
		return "{ }"
	}
	parts := make([]string, len(m.Pieces))
	for i := range m.Pieces {
		parts[i] = m.Pieces[i].String()
	}
	return strings.Join(parts, " or ")
}

func paramsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
