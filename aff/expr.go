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
	"strings"
)

// Expr is a quasi-affine expression over the parameters:
// ceil((Cst + Coef·p) / Denom) with Denom >= 1. With Denom == 1 it is
// plainly affine.
type Expr struct {
	Params []string
	Cst    int64
	Coef   []int64
	Denom  int64
}

// ConstExpr returns the constant expression v over params.
func ConstExpr(params []string, v int64) Expr {
	return Expr{Params: params, Cst: v, Coef: make([]int64, len(params)), Denom: 1}
}

// ParamExpr returns the expression reading parameter pos.
func ParamExpr(params []string, pos int) Expr {
	assertOp(pos >= 0 && pos < len(params), "ParamExpr", "parameter %d out of range", pos)
	e := ConstExpr(params, 0)
	e.Coef[pos] = 1
	return e
}

// ExprFromRow builds the expression (row·(1,p))/denom from a
// parameter-only constraint row.
func ExprFromRow(params []string, row []int64, denom int64) Expr {
	assertOp(len(row) == 1+len(params), "ExprFromRow", "row has %d columns, want %d", len(row), 1+len(params))
	assertOp(denom >= 1, "ExprFromRow", "denominator %d", denom)
	e := Expr{Params: params, Cst: row[0], Coef: make([]int64, len(params)), Denom: denom}
	copy(e.Coef, row[1:])
	e.reduce()
	return e
}

func (e *Expr) reduce() {
	if e.Denom == 1 {
		return
	}
	g := e.Denom
	g = gcd64(g, e.Cst)
	for _, v := range e.Coef {
		g = gcd64(g, v)
	}
	if g > 1 {
		e.Cst /= g
		for i := range e.Coef {
			e.Coef[i] /= g
		}
		e.Denom /= g
	}
}

// IsConst reports whether the expression is a constant, and returns it.
func (e Expr) IsConst() (int64, bool) {
	for _, v := range e.Coef {
		if v != 0 {
			return 0, false
		}
	}
	return ceilDiv(e.Cst, e.Denom), true
}

// InvolvesParam reports whether parameter pos occurs with a nonzero
// coefficient.
func (e Expr) InvolvesParam(pos int) bool {
	return pos < len(e.Coef) && e.Coef[pos] != 0
}

// SubstParam returns the expression with parameter pos fixed to val.
func (e Expr) SubstParam(pos int, val int64) Expr {
	ne := e.copy()
	if pos < len(ne.Coef) {
		ne.Cst += ne.Coef[pos] * val
		ne.Coef[pos] = 0
	}
	ne.reduce()
	return ne
}

// Add returns e + o; both must share a parameter list and have
// denominator one.
func (e Expr) Add(o Expr) Expr {
	assertOp(e.Denom == 1 && o.Denom == 1, "Expr.Add", "cannot add quotient expressions")
	assertOp(len(e.Coef) == len(o.Coef), "Expr.Add", "parameter mismatch")
	ne := e.copy()
	ne.Cst += o.Cst
	for i := range ne.Coef {
		ne.Coef[i] += o.Coef[i]
	}
	return ne
}

// AddConst returns e + v applied before the ceiling division.
func (e Expr) AddConst(v int64) Expr {
	ne := e.copy()
	ne.Cst += v * ne.Denom
	ne.reduce()
	return ne
}

// Eval evaluates the expression under the given parameter values.
func (e Expr) Eval(vals []int64) int64 {
	assertOp(len(vals) == len(e.Coef), "Expr.Eval", "got %d values for %d parameters", len(vals), len(e.Coef))
	s := e.Cst
	for i, v := range e.Coef {
		s += v * vals[i]
	}
	return ceilDiv(s, e.Denom)
}

func (e Expr) copy() Expr {
	ne := e
	ne.Coef = make([]int64, len(e.Coef))
	copy(ne.Coef, e.Coef)
	return ne
}

func (e Expr) String() string {
	var sb strings.Builder
	first := true
	if e.Cst != 0 {
		fmt.Fprintf(&sb, "%d", e.Cst)
		first = false
	}
	for i, v := range e.Coef {
		if v == 0 {
			continue
		}
		switch {
		case !first && v > 0:
			sb.WriteString(" + ")
		case v < 0:
			if first {
				sb.WriteString("-")
			} else {
				sb.WriteString(" - ")
			}
			v = -v
		}
		if v != 1 {
			fmt.Fprintf(&sb, "%d*", v)
		}
		sb.WriteString(e.Params[i])
		first = false
	}
	if first {
		sb.WriteString("0")
	}
	if e.Denom != 1 {
		return fmt.Sprintf("ceild(%s, %d)", sb.String(), e.Denom)
	}
	return sb.String()
}
