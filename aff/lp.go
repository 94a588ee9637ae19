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
	"math"
	"math/big"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// LPStatus is the outcome of a linear-programming query over a basic
// relation.
type LPStatus int

const (
	// LPOK: a finite optimum was found.
	LPOK LPStatus = iota
	// LPUnbounded: the objective is unbounded over the relation.
	LPUnbounded
	// LPEmpty: the relation has no point.
	LPEmpty
)

func (s LPStatus) String() string {
	switch s {
	case LPOK:
		return "ok"
	case LPUnbounded:
		return "unbounded"
	case LPEmpty:
		return "empty"
	}
	return "unknown"
}

const lpTol = 1e-9

// solve minimizes obj (a full-width coefficient row, constant in
// column 0) over the rational relaxation of b. All dimensions,
// including existential ones, are free variables. The returned value
// includes the constant term.
//
// The system is presolved with exact integer row operations before the
// floating-point simplex runs, and the surviving columns are scaled to
// unit magnitude: after tiling, coefficients reach tile*grid size and
// the raw tableau is too badly conditioned for the simplex to be
// trusted. When the simplex still fails, exactMin settles the query
// with exact arithmetic; a failure status is never taken at face
// value.
func (b *BasicMap) solve(obj []int64) (float64, LPStatus) {
	assertOp(len(obj) == b.Cols(), "BasicMap.solve", "objective has %d columns, relation has %d", len(obj), b.Cols())

	cons := make([]Constraint, len(b.Cons))
	for i := range b.Cons {
		cons[i] = b.Cons[i].Copy()
	}
	ob := append([]int64(nil), obj...)
	cons, ob, ok := lpPresolve(cons, ob)
	if !ok {
		return 0, LPEmpty
	}
	nv := len(ob) - 1

	objVars := false
	for _, v := range ob[1:] {
		if v != 0 {
			objVars = true
			break
		}
	}
	if len(cons) == 0 {
		if objVars {
			return 0, LPUnbounded
		}
		return float64(ob[0]), LPOK
	}

	var nIneq int
	for _, c := range cons {
		if !c.Eq {
			nIneq++
		}
	}

	// Column scaling: x_j = y_j / m_j leaves the optimum value
	// untouched while keeping every tableau entry at most one.
	scale := make([]float64, nv)
	for j := 0; j < nv; j++ {
		m := abs64(ob[j+1])
		for _, c := range cons {
			if a := abs64(c.Row[j+1]); a > m {
				m = a
			}
		}
		if m == 0 {
			m = 1
		}
		scale[j] = 1 / float64(m)
	}

	// Standard form: x = xp - xn with xp, xn >= 0, one slack per
	// inequality. Equality row: sum c_i x_i = -c_0. Inequality row
	// c_0 + sum c_i x_i >= 0 becomes -sum c_i x_i + s = c_0.
	nStd := 2*nv + nIneq
	rows := len(cons)
	a := mat.NewDense(rows, nStd, nil)
	bvec := make([]float64, rows)
	r := 0
	slack := 0
	for _, c := range cons {
		if !c.Eq {
			continue
		}
		for j := 0; j < nv; j++ {
			v := float64(c.Row[j+1]) * scale[j]
			a.Set(r, j, v)
			a.Set(r, nv+j, -v)
		}
		bvec[r] = -float64(c.Row[0])
		r++
	}
	for _, c := range cons {
		if c.Eq {
			continue
		}
		for j := 0; j < nv; j++ {
			v := float64(c.Row[j+1]) * scale[j]
			a.Set(r, j, -v)
			a.Set(r, nv+j, v)
		}
		a.Set(r, 2*nv+slack, 1)
		bvec[r] = float64(c.Row[0])
		r++
		slack++
	}

	c := make([]float64, nStd)
	for j := 0; j < nv; j++ {
		c[j] = float64(ob[j+1]) * scale[j]
		c[nv+j] = -c[j]
	}

	optF, _, err := lp.Simplex(c, a, bvec, lpTol, nil)
	if err == nil {
		return optF + float64(ob[0]), LPOK
	}
	// Infeasible, unbounded and singular-basis errors are all
	// unreliable on these systems: decide exactly instead.
	return exactMin(cons, ob)
}

// lpPresolve gcd-reduces the rows, drops the ones without variables,
// and substitutes every equality carrying a unit coefficient into the
// remaining rows and the objective. The row operations are exact, so
// the optimum is unchanged; the simplex then never sees the frozen
// dimensions and their large coefficients. Returns ok == false when a
// row is contradictory on its own.
func lpPresolve(cons []Constraint, obj []int64) ([]Constraint, []int64, bool) {
	for {
		var ok bool
		if cons, ok = lpReduce(cons); !ok {
			return nil, nil, false
		}
		pivot, col := -1, 0
		for i, c := range cons {
			if !c.Eq {
				continue
			}
			for j := 1; j < len(c.Row) && pivot < 0; j++ {
				if c.Row[j] == 1 || c.Row[j] == -1 {
					pivot, col = i, j
				}
			}
			if pivot >= 0 {
				break
			}
		}
		if pivot < 0 {
			return cons, obj, true
		}
		eq := cons[pivot].Row
		sign := eq[col]
		if f := obj[col]; f != 0 {
			for j := range obj {
				obj[j] -= sign * f * eq[j]
			}
		}
		for i := range cons {
			if i == pivot {
				continue
			}
			f := cons[i].Row[col]
			if f == 0 {
				continue
			}
			for j := range cons[i].Row {
				cons[i].Row[j] -= sign * f * eq[j]
			}
		}
		cons = append(cons[:pivot], cons[pivot+1:]...)
		for i := range cons {
			cons[i].Row = removeCol(cons[i].Row, col)
		}
		obj = removeCol(obj, col)
	}
}

// lpReduce divides every row by the gcd of its variable coefficients
// and weeds out rows without variables. Inequality constants round
// toward the integer hull, matching normalize. Returns false on a
// contradictory constant row.
func lpReduce(cons []Constraint) ([]Constraint, bool) {
	kept := cons[:0]
	for _, c := range cons {
		g := int64(0)
		for _, v := range c.Row[1:] {
			g = gcd64(g, v)
		}
		if g == 0 {
			if c.Eq && c.Row[0] != 0 {
				return nil, false
			}
			if !c.Eq && c.Row[0] < 0 {
				return nil, false
			}
			continue
		}
		if g > 1 {
			if c.Eq {
				if c.Row[0]%g == 0 {
					for i := range c.Row {
						c.Row[i] /= g
					}
				}
			} else {
				c.Row[0] = floorDiv(c.Row[0], g)
				for i := 1; i < len(c.Row); i++ {
					c.Row[i] /= g
				}
			}
		}
		kept = append(kept, c)
	}
	return kept, true
}

// exactRow is one constraint of the exact eliminator, over the columns
// [const, x1..xn, z].
type exactRow struct {
	eq  bool
	row []*big.Int
}

// exactMin computes the minimum of obj over the rational relaxation of
// cons by exact elimination: a fresh variable z is pinned to the
// objective value, every x column is removed through equality pivoting
// or Fourier-Motzkin, and the bounds that survive on z are read off
// directly. big.Int rows keep the products overflow-free. The systems
// that reach it are small, so the elimination blowup is not a concern.
func exactMin(cons []Constraint, obj []int64) (float64, LPStatus) {
	nv := len(obj) - 1
	z := nv + 1
	newRow := func(eq bool, ints []int64, zc int64) exactRow {
		r := exactRow{eq: eq, row: make([]*big.Int, nv+2)}
		for j, v := range ints {
			r.row[j] = big.NewInt(v)
		}
		r.row[z] = big.NewInt(zc)
		return r
	}
	rows := make([]exactRow, 0, len(cons)+1)
	for _, c := range cons {
		rows = append(rows, newRow(c.Eq, c.Row, 0))
	}
	rows = append(rows, newRow(true, obj, -1))

	for col := 1; col <= nv; col++ {
		rows = exactEliminate(rows, col)
	}

	var lb, ub *big.Rat
	for _, r := range rows {
		cz := r.row[z]
		c0 := r.row[0]
		if cz.Sign() == 0 {
			if r.eq && c0.Sign() != 0 {
				return 0, LPEmpty
			}
			if !r.eq && c0.Sign() < 0 {
				return 0, LPEmpty
			}
			continue
		}
		// c0 + cz*z (= or >=) 0 bounds z at -c0/cz.
		v := new(big.Rat).SetFrac(new(big.Int).Neg(c0), cz)
		if (r.eq || cz.Sign() > 0) && (lb == nil || v.Cmp(lb) > 0) {
			lb = v
		}
		if (r.eq || cz.Sign() < 0) && (ub == nil || v.Cmp(ub) < 0) {
			ub = v
		}
	}
	if lb != nil && ub != nil && lb.Cmp(ub) > 0 {
		return 0, LPEmpty
	}
	if lb == nil {
		return 0, LPUnbounded
	}
	f, _ := lb.Float64()
	return f, LPOK
}

// exactEliminate removes column col from every row: through the
// smallest equality pivot when one exists, otherwise by combining the
// inequality lower and upper bounds.
func exactEliminate(rows []exactRow, col int) []exactRow {
	piv := -1
	for i, r := range rows {
		if !r.eq || r.row[col].Sign() == 0 {
			continue
		}
		if piv < 0 || r.row[col].CmpAbs(rows[piv].row[col]) < 0 {
			piv = i
		}
	}
	if piv >= 0 {
		var out []exactRow
		for i, r := range rows {
			if i == piv {
				continue
			}
			if r.row[col].Sign() == 0 {
				out = append(out, r)
				continue
			}
			out = append(out, exactCombineEq(r, rows[piv], col))
		}
		return out
	}
	var lower, upper, rest []exactRow
	for _, r := range rows {
		switch r.row[col].Sign() {
		case 1:
			lower = append(lower, r)
		case -1:
			upper = append(upper, r)
		default:
			rest = append(rest, r)
		}
	}
	for _, l := range lower {
		for _, u := range upper {
			rest = append(rest, exactCombineFM(l, u, col))
		}
	}
	return rest
}

// exactCombineEq cancels column col of r against the equality eq,
// multiplying r only by a positive factor so inequality direction is
// preserved: |a|*r - sgn(a)*f*eq with a = eq[col], f = r[col].
func exactCombineEq(r, eq exactRow, col int) exactRow {
	am := new(big.Int).Abs(eq.row[col])
	fm := new(big.Int).Set(r.row[col])
	if eq.row[col].Sign() < 0 {
		fm.Neg(fm)
	}
	out := exactRow{eq: r.eq, row: make([]*big.Int, len(r.row))}
	for j := range r.row {
		t := new(big.Int).Mul(am, r.row[j])
		t.Sub(t, new(big.Int).Mul(fm, eq.row[j]))
		out.row[j] = t
	}
	exactReduce(out)
	return out
}

// exactCombineFM combines the lower bound l and upper bound u on
// column col into the inequality that survives its removal.
func exactCombineFM(l, u exactRow, col int) exactRow {
	a := new(big.Int).Neg(u.row[col])
	bb := l.row[col]
	out := exactRow{row: make([]*big.Int, len(l.row))}
	for j := range l.row {
		t := new(big.Int).Mul(a, l.row[j])
		t.Add(t, new(big.Int).Mul(bb, u.row[j]))
		out.row[j] = t
	}
	exactReduce(out)
	return out
}

// exactReduce divides the row by the gcd of all its entries.
func exactReduce(r exactRow) {
	g := new(big.Int)
	for _, v := range r.row {
		g.GCD(nil, nil, g, new(big.Int).Abs(v))
	}
	if g.Sign() == 0 || g.Cmp(big.NewInt(1)) == 0 {
		return
	}
	for _, v := range r.row {
		v.Quo(v, g)
	}
}

// Min returns floor of the minimum of obj over the relation.
func (b *BasicMap) Min(obj []int64) (int64, LPStatus) {
	v, st := b.solve(obj)
	if st != LPOK {
		return 0, st
	}
	return int64(math.Floor(v + lpRound)), LPOK
}

// Max returns floor of the maximum of obj over the relation. For
// relations whose optima lie at integer points (the common case here),
// the result is exact.
func (b *BasicMap) Max(obj []int64) (int64, LPStatus) {
	neg := make([]int64, len(obj))
	for i, v := range obj {
		neg[i] = -v
	}
	v, st := b.solve(neg)
	if st != LPOK {
		return 0, st
	}
	return int64(math.Floor(-v + lpRound)), LPOK
}

const lpRound = 1e-6

// feasible reports whether the rational relaxation has a point.
func (b *BasicMap) feasible() bool {
	if len(b.Cons) == 0 {
		return true
	}
	obj := make([]int64, b.Cols())
	_, st := b.solve(obj)
	return st != LPEmpty
}

// minNonNegative reports whether obj >= 0 everywhere on b: used for
// hull-constraint validity. An empty relation validates everything.
func (b *BasicMap) minNonNegative(obj []int64) bool {
	v, st := b.solve(obj)
	switch st {
	case LPEmpty:
		return true
	case LPUnbounded:
		return false
	}
	return v >= -lpTol*10
}
