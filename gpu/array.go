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

// Array is one array of the source program. Extent is the set of
// elements the program may touch, over the global parameters; Bounds
// holds one parametric size expression per index, derived from Extent.
type Array struct {
	Name   string
	Type   string
	Extent aff.Set

	Bounds []aff.Expr

	refs []*Access
}

// NIndex returns the array's arity.
func (a *Array) NIndex() int { return a.Extent.Space.Out }

// Access is a single tagged array reference of one statement. The
// relation maps the statement's iteration point to an array element.
// Accesses are immutable apart from the group assignment, which is
// rewritten once per kernel.
type Access struct {
	Array *Array
	Stmt  *Statement
	Rel   aff.Map
	Read  bool
	Write bool

	// Group is the index of the reference group this access landed in
	// for the current kernel, or -1.
	Group int
}

// Statement is one statement of the source program, with its iteration
// domain and its band of the common schedule.
type Statement struct {
	Name     string
	Domain   aff.Set
	Schedule aff.Map // Domain -> untiled schedule coordinates
	Accesses []*Access

	// TileLen and NParallel describe the tilable band that starts at
	// the program's TileFirst coordinate: its length and how many of
	// its leading loops are parallel.
	TileLen   int
	NParallel int
}

// Site is one kernel invocation site of the host schedule: the host
// coordinates (the TileFirst outermost schedule dimensions) restricted
// to the iterations this site covers.
type Site struct {
	HostDomain aff.Set
}

// Program is one compilation unit: the scheduled statements, the
// arrays they touch, and the host-level invocation sites.
type Program struct {
	Name   string
	Params []string

	// Context holds extra constraints on the global parameters, valid
	// for the whole compilation.
	Context aff.Set

	Stmts  []*Statement
	Arrays []*Array

	TileFirst  int
	UntiledLen int

	// Sites lists the kernel invocation sites in host-schedule order.
	// Empty means a single site covering the whole host domain.
	Sites []Site
}

// collectReferences fills each array's reference list from the
// statements, in statement then access order.
func (p *Program) collectReferences() {
	for _, arr := range p.Arrays {
		arr.refs = arr.refs[:0]
	}
	for _, stmt := range p.Stmts {
		for _, acc := range stmt.Accesses {
			acc.Group = -1
			acc.Array.refs = append(acc.Array.refs, acc)
		}
	}
}

// computeArrayBounds derives, per array dimension, a parametric size
// expression from the extent: project the extent onto the dimension,
// take its hull, and turn the first upper-bound constraint into
// floor(f(p)/m) + 1 elements.
func (p *Program) computeArrayBounds() {
	for _, arr := range p.Arrays {
		n := arr.NIndex()
		arr.Bounds = make([]aff.Expr, n)
		for i := 0; i < n; i++ {
			ext := arr.Extent
			if !p.Context.IsEmpty() && p.Context.Space.Out == 0 {
				ext = ext.IntersectParams(p.Context)
			}
			arr.Bounds[i] = extentBound(p.Params, ext, i)
		}
	}
}

// extentBound returns a size expression for dimension pos of extent,
// or a zero constant when the dimension has no parametric upper bound.
func extentBound(params []string, extent aff.Set, pos int) aff.Expr {
	n := extent.Space.Out
	dim := extent.ProjectOut(aff.OutDim, pos+1, n-pos-1).ProjectOut(aff.OutDim, 0, pos)
	hull := dim.SimpleHull()
	np := len(params)
	col := 1 + np // the single remaining dimension
	for _, c := range hull.Cons {
		m := -c.Row[col]
		if c.Eq {
			m = abs(c.Row[col])
		}
		if m <= 0 {
			continue
		}
		// m*i <= f(p): the dimension holds floor(f/m) + 1 values,
		// which is ceil((f+1)/m).
		row := make([]int64, 1+np)
		for j := 0; j <= np; j++ {
			v := c.Row[j]
			if c.Row[col] < 0 {
				row[j] = v
			} else {
				row[j] = -v
			}
		}
		row[0]++
		return aff.ExprFromRow(params, row, m)
	}
	return aff.ConstExpr(params, 0)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// localizeBounds specializes the global array bounds to one kernel
// site: parameters fixed by the site's host context are substituted
// into the expressions.
func localizeBounds(params []string, bounds []aff.Expr, host aff.Set) []aff.Expr {
	context := host.ProjectOut(aff.OutDim, 0, host.Space.Out)
	local := make([]aff.Expr, len(bounds))
	copy(local, bounds)
	if context.IsEmpty() || len(context.Pieces) != 1 {
		return local
	}
	for i := 0; i < len(params); i++ {
		v, ok := context.Pieces[0].IsFixed(aff.ParamDim, i)
		if !ok {
			continue
		}
		for j := range local {
			if local[j].InvolvesParam(i) {
				local[j] = local[j].SubstParam(i, v)
			}
		}
	}
	return local
}
