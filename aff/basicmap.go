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

import (
	"fmt"
	"sort"
	"strings"
)

// BasicMap is a single conjunction of affine constraints over a space,
// possibly with existentially quantified auxiliary dimensions. The
// relation it denotes is the set of integer (in, out) pairs for which
// integer values of the existential dimensions satisfying every
// constraint exist.
type BasicMap struct {
	Space Space
	NDiv  int
	Cons  []Constraint
}

// UniverseBasic returns the unconstrained basic relation over space.
func UniverseBasic(space Space) BasicMap {
	return BasicMap{Space: space}
}

// Cols returns the number of columns of a constraint row: one constant
// column plus one per parameter, input, output and existential dim.
func (b *BasicMap) Cols() int {
	return 1 + b.Space.NParam() + b.Space.In + b.Space.Out + b.NDiv
}

// Off returns the first column of the given dimension kind.
func (b *BasicMap) Off(k DimKind) int {
	switch k {
	case ParamDim:
		return 1
	case InDim:
		return 1 + b.Space.NParam()
	case OutDim:
		return 1 + b.Space.NParam() + b.Space.In
	case DivDim:
		return 1 + b.Space.NParam() + b.Space.In + b.Space.Out
	}
	assertOp(false, "BasicMap.Off", "unknown dim kind %v", k)
	return 0
}

// Dim returns the number of dimensions of the given kind.
func (b *BasicMap) Dim(k DimKind) int {
	if k == DivDim {
		return b.NDiv
	}
	return b.Space.Dim(k)
}

// Coef returns the coefficient of dimension (k, pos) in constraint c.
func (b *BasicMap) Coef(c Constraint, k DimKind, pos int) int64 {
	assertOp(pos >= 0 && pos < b.Dim(k), "BasicMap.Coef", "%v dim %d out of range", k, pos)
	return c.Row[b.Off(k)+pos]
}

// Copy returns a deep copy.
func (b *BasicMap) Copy() BasicMap {
	nb := BasicMap{Space: b.Space, NDiv: b.NDiv}
	nb.Cons = make([]Constraint, len(b.Cons))
	for i, c := range b.Cons {
		nb.Cons[i] = c.Copy()
	}
	return nb
}

func (b *BasicMap) addRow(eq bool, cst int64, terms []Term) {
	row := make([]int64, b.Cols())
	row[0] = cst
	for _, t := range terms {
		assertOp(t.Pos >= 0 && t.Pos < b.Dim(t.Kind), "BasicMap.addRow",
			"%v dim %d out of range (have %d)", t.Kind, t.Pos, b.Dim(t.Kind))
		row[b.Off(t.Kind)+t.Pos] += t.Coef
	}
	b.Cons = append(b.Cons, Constraint{Eq: eq, Row: row})
}

// AddEquality adds the constraint cst + sum(terms) == 0.
func (b *BasicMap) AddEquality(cst int64, terms ...Term) {
	b.addRow(true, cst, terms)
}

// AddInequality adds the constraint cst + sum(terms) >= 0.
func (b *BasicMap) AddInequality(cst int64, terms ...Term) {
	b.addRow(false, cst, terms)
}

// AddDiv appends one existential dimension and returns its position.
func (b *BasicMap) AddDiv() int {
	at := b.Off(DivDim) + b.NDiv
	for i := range b.Cons {
		b.Cons[i].Row = insertZeros(b.Cons[i].Row, at, 1)
	}
	b.NDiv++
	return b.NDiv - 1
}

func insertZeros(row []int64, at, n int) []int64 {
	out := make([]int64, len(row)+n)
	copy(out, row[:at])
	copy(out[at+n:], row[at:])
	return out
}

func removeCol(row []int64, at int) []int64 {
	out := make([]int64, 0, len(row)-1)
	out = append(out, row[:at]...)
	out = append(out, row[at+1:]...)
	return out
}

// moveCol moves column from to position to, shifting the columns in
// between.
func moveCol(row []int64, from, to int) []int64 {
	if from == to {
		return row
	}
	v := row[from]
	out := removeCol(row, from)
	res := make([]int64, 0, len(row))
	res = append(res, out[:to]...)
	res = append(res, v)
	res = append(res, out[to:]...)
	return res
}

// normalize gcd-reduces every constraint, deduplicates, and drops
// trivially satisfied rows. It returns false when the system is
// syntactically inconsistent (a constraint no integer point can
// satisfy).
func (b *BasicMap) normalize() bool {
	kept := b.Cons[:0]
	seen := make(map[string]int)
	for _, c := range b.Cons {
		g := int64(0)
		for _, v := range c.Row[1:] {
			g = gcd64(g, v)
		}
		if g == 0 {
			// Constant-only constraint.
			if c.Eq && c.Row[0] != 0 {
				return false
			}
			if !c.Eq && c.Row[0] < 0 {
				return false
			}
			continue
		}
		if c.Eq {
			if c.Row[0]%g != 0 {
				return false
			}
			if g > 1 {
				for i := range c.Row {
					c.Row[i] /= g
				}
			}
			// Canonical sign: first nonzero variable coefficient positive.
			for _, v := range c.Row[1:] {
				if v == 0 {
					continue
				}
				if v < 0 {
					for i := range c.Row {
						c.Row[i] = -c.Row[i]
					}
				}
				break
			}
		} else if g > 1 {
			c.Row[0] = floorDiv(c.Row[0], g)
			for i := 1; i < len(c.Row); i++ {
				c.Row[i] /= g
			}
		}
		key := rowKey(c.Eq, c.Row[1:])
		if j, ok := seen[key]; ok {
			if c.Eq {
				if kept[j].Row[0] != c.Row[0] {
					// Same direction, different constant: x = a and x = b.
					return false
				}
				continue
			}
			// Keep the tighter inequality.
			if c.Row[0] < kept[j].Row[0] {
				kept[j].Row[0] = c.Row[0]
			}
			continue
		}
		seen[key] = len(kept)
		kept = append(kept, c)
	}
	b.Cons = kept
	return true
}

func rowKey(eq bool, vars []int64) string {
	var sb strings.Builder
	if eq {
		sb.WriteByte('=')
	}
	for _, v := range vars {
		fmt.Fprintf(&sb, "%d,", v)
	}
	return sb.String()
}

// substitute eliminates column col using an equality with coefficient
// +1 or -1 at col, removing both the pivot constraint and the column.
func (b *BasicMap) substitute(pivot int, col int) {
	eq := b.Cons[pivot]
	sign := eq.Row[col]
	for i := range b.Cons {
		if i == pivot {
			continue
		}
		f := b.Cons[i].Row[col]
		if f == 0 {
			continue
		}
		// With sign = +1 the equality solves to col = -(rest), so each
		// occurrence f*col becomes -f*(rest); subtract f*eq. With
		// sign = -1 add f*eq.
		for j := range b.Cons[i].Row {
			b.Cons[i].Row[j] -= sign * f * eq.Row[j]
		}
	}
	b.Cons = append(b.Cons[:pivot], b.Cons[pivot+1:]...)
	for i := range b.Cons {
		b.Cons[i].Row = removeCol(b.Cons[i].Row, col)
	}
}

// fourierMotzkin eliminates column col, which must occur only in
// inequalities, by combining every lower bound with every upper bound.
// The result is the rational shadow of the projection.
func (b *BasicMap) fourierMotzkin(col int) {
	var lower, upper, rest []Constraint
	for _, c := range b.Cons {
		switch {
		case c.Row[col] > 0:
			lower = append(lower, c)
		case c.Row[col] < 0:
			upper = append(upper, c)
		default:
			rest = append(rest, c)
		}
	}
	for _, l := range lower {
		for _, u := range upper {
			a := -u.Row[col]
			bb := l.Row[col]
			row := make([]int64, len(l.Row))
			for j := range row {
				row[j] = a*l.Row[j] + bb*u.Row[j]
			}
			rest = append(rest, Constraint{Row: row})
		}
	}
	b.Cons = rest
	for i := range b.Cons {
		b.Cons[i].Row = removeCol(b.Cons[i].Row, col)
	}
}

// projectOutCols eliminates n dimensions of kind k starting at first.
// Dimensions that cannot be eliminated exactly (they occur in an
// equality with no unit coefficient anywhere) are retained as
// existential dims, preserving the integer semantics (and the stride
// information the placement core mines from them). Dimensions occurring
// only in inequalities are removed by Fourier-Motzkin elimination.
// Returns false if the relation is detected to be empty along the way.
func (b *BasicMap) projectOutCols(k DimKind, first, n int) bool {
	assertOp(first >= 0 && first+n <= b.Dim(k), "BasicMap.projectOutCols",
		"range [%d,%d) exceeds %v count %d", first, first+n, k, b.Dim(k))
	if n == 0 {
		return b.normalize()
	}
	// Move the doomed columns past the divs, then adjust bookkeeping.
	start := b.Off(k) + first
	end := b.Cols()
	for i := range b.Cons {
		row := b.Cons[i].Row
		moved := make([]int64, 0, len(row))
		moved = append(moved, row[:start]...)
		moved = append(moved, row[start+n:]...)
		moved = append(moved, row[start:start+n]...)
		b.Cons[i].Row = moved
	}
	switch k {
	case InDim:
		b.Space.In -= n
	case OutDim:
		b.Space.Out -= n
	case DivDim:
		b.NDiv -= n
	default:
		assertOp(false, "BasicMap.projectOutCols", "cannot project %v dims", k)
	}
	pendBase := end - n // first pending column after the move

	for pend := n; pend > 0; pend-- {
		col := pendBase + pend - 1
		if !b.normalize() {
			return false
		}
		pivot := -1
		inEq := -1
		used := false
		for i, c := range b.Cons {
			if c.Row[col] == 0 {
				continue
			}
			used = true
			if c.Eq {
				if c.Row[col] == 1 || c.Row[col] == -1 {
					pivot = i
					break
				}
				inEq = i
			}
		}
		switch {
		case !used:
			for i := range b.Cons {
				b.Cons[i].Row = removeCol(b.Cons[i].Row, col)
			}
		case pivot >= 0:
			b.substitute(pivot, col)
		case inEq >= 0:
			// Keep as an existential dim: slide the column into the div
			// block, in front of the remaining pending columns.
			for i := range b.Cons {
				b.Cons[i].Row = moveCol(b.Cons[i].Row, col, pendBase)
			}
			b.NDiv++
			pendBase++
		default:
			b.fourierMotzkin(col)
		}
	}
	// Substitution can leave equalities that are not gcd-reduced yet
	// (2*e - 2*o = 0); reduce them first so gaussDivs sees the unit
	// coefficient.
	if !b.normalize() {
		return false
	}
	b.gaussDivs()
	return b.normalize()
}

// gaussDivs substitutes away existential dims that some equality pins
// with a unit coefficient; they carry no integer information. Divs with
// only non-unit coefficients stay, encoding strides.
func (b *BasicMap) gaussDivs() {
	for col := b.Cols() - 1; col >= b.Off(DivDim); col-- {
		pivot := -1
		for i, c := range b.Cons {
			if c.Eq && (c.Row[col] == 1 || c.Row[col] == -1) {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			continue
		}
		b.substitute(pivot, col)
		b.NDiv--
	}
}

// eqReduce brings the equalities of b into an integer echelon form
// using exact row operations, so that infeasibilities such as
// {x = 2a, x = 2b+1} surface as a single contradictory row. The
// inequalities are left untouched.
func (b *BasicMap) eqReduce() {
	cols := b.Cols()
	var eqs []int
	for i, c := range b.Cons {
		if c.Eq {
			eqs = append(eqs, i)
		}
	}
	done := make(map[int]bool)
	for col := 1; col < cols; col++ {
		for {
			// Pick the unused equality with the smallest nonzero
			// coefficient at col.
			piv := -1
			for _, i := range eqs {
				if done[i] || b.Cons[i].Row[col] == 0 {
					continue
				}
				if piv < 0 || abs64(b.Cons[i].Row[col]) < abs64(b.Cons[piv].Row[col]) {
					piv = i
				}
			}
			if piv < 0 {
				break
			}
			reducedAny := false
			for _, i := range eqs {
				if i == piv || done[i] || b.Cons[i].Row[col] == 0 {
					continue
				}
				q := b.Cons[i].Row[col] / b.Cons[piv].Row[col]
				for j := range b.Cons[i].Row {
					b.Cons[i].Row[j] -= q * b.Cons[piv].Row[j]
				}
				if b.Cons[i].Row[col] != 0 {
					reducedAny = true
				}
			}
			if !reducedAny {
				done[piv] = true
				break
			}
		}
	}
}

// integerInfeasible reports whether the equalities of b alone rule out
// any integer solution. It may return false for relations that are in
// fact empty; it never returns true for a nonempty relation.
func (b *BasicMap) integerInfeasible() bool {
	nb := b.Copy()
	nb.eqReduce()
	for _, c := range nb.Cons {
		if !c.Eq {
			continue
		}
		g := int64(0)
		for _, v := range c.Row[1:] {
			g = gcd64(g, v)
		}
		if g == 0 {
			if c.Row[0] != 0 {
				return true
			}
			continue
		}
		if c.Row[0]%g != 0 {
			return true
		}
	}
	return false
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Empty reports whether the basic relation contains no integer point.
// It combines syntactic normalization, the integer equality test and a
// rational feasibility check.
func (b *BasicMap) Empty() bool {
	nb := b.Copy()
	if !nb.normalize() {
		return true
	}
	if nb.integerInfeasible() {
		return true
	}
	return !nb.feasible()
}

// IsFixed reports whether dimension (k, pos) takes a single value on
// the whole relation, and returns that value.
func (b *BasicMap) IsFixed(k DimKind, pos int) (int64, bool) {
	obj := make([]int64, b.Cols())
	obj[b.Off(k)+pos] = 1
	hi, st1 := b.Max(obj)
	if st1 != LPOK {
		return 0, false
	}
	lo, st2 := b.Min(obj)
	if st2 != LPOK || hi != lo {
		return 0, false
	}
	return hi, true
}

func (b *BasicMap) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	names := b.colNames()
	for i, c := range b.Cons {
		if i > 0 {
			sb.WriteString(" and ")
		}
		first := true
		for j, v := range c.Row {
			if v == 0 && !(j == 0 && first && allZero(c.Row[1:])) {
				continue
			}
			if !first && v >= 0 {
				sb.WriteString(" + ")
			} else if v < 0 {
				sb.WriteString(" - ")
				v = -v
			}
			if j == 0 || v != 1 {
				fmt.Fprintf(&sb, "%d", v)
				if j != 0 {
					sb.WriteString("*")
				}
			}
			if j != 0 {
				sb.WriteString(names[j])
			}
			first = false
		}
		if first {
			sb.WriteString("0")
		}
		if c.Eq {
			sb.WriteString(" = 0")
		} else {
			sb.WriteString(" >= 0")
		}
	}
	sb.WriteString(" }")
	return sb.String()
}

func allZero(vs []int64) bool {
	for _, v := range vs {
		if v != 0 {
			return false
		}
	}
	return true
}

func (b *BasicMap) colNames() []string {
	names := make([]string, b.Cols())
	names[0] = ""
	for i, p := range b.Space.Params {
		names[b.Off(ParamDim)+i] = p
	}
	for i := 0; i < b.Space.In; i++ {
		names[b.Off(InDim)+i] = fmt.Sprintf("i%d", i)
	}
	for i := 0; i < b.Space.Out; i++ {
		names[b.Off(OutDim)+i] = fmt.Sprintf("o%d", i)
	}
	for i := 0; i < b.NDiv; i++ {
		names[b.Off(DivDim)+i] = fmt.Sprintf("e%d", i)
	}
	return names
}

// sortCons orders constraints deterministically (equalities first, then
// lexicographically by row); used only to stabilize hulls and output.
func (b *BasicMap) sortCons() {
	sort.SliceStable(b.Cons, func(i, j int) bool {
		ci, cj := b.Cons[i], b.Cons[j]
		if ci.Eq != cj.Eq {
			return ci.Eq
		}
		for k := range ci.Row {
			if ci.Row[k] != cj.Row[k] {
				return ci.Row[k] < cj.Row[k]
			}
		}
		return false
	})
}
