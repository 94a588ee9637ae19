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

// Constraint is one linear constraint of a basic relation. Row holds
// the coefficients in column order: constant, parameters, input dims,
// output dims, existential dims. An equality constrains Row·(1,x) == 0,
// an inequality constrains Row·(1,x) >= 0.
type Constraint struct {
	Eq  bool
	Row []int64
}

// Copy returns an independent copy of the constraint.
func (c Constraint) Copy() Constraint {
	row := make([]int64, len(c.Row))
	copy(row, c.Row)
	return Constraint{Eq: c.Eq, Row: row}
}

// Term is one coefficient of a constraint under construction, used by
// BasicMap.AddEquality and BasicMap.AddInequality.
type Term struct {
	Kind DimKind
	Pos  int
	Coef int64
}

// T builds a Term; it exists to keep constraint construction compact.
func T(k DimKind, pos int, coef int64) Term {
	return Term{Kind: k, Pos: pos, Coef: coef}
}

func gcd64(a, b int64) int64 {
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

// floorDiv returns floor(a/b) for b > 0.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ceilDiv returns ceil(a/b) for b > 0.
func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}
