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

// shiftAccess maps each element of an array tile to its position in a
// copy of the tile shifted to the origin: stride-normalize the index
// when a stride is present, then subtract the lower bound. The domain
// is restricted to the given access set.
func shiftAccess(params []string, access aff.Set, bounds []Bound) aff.Map {
	n := access.Space.Out
	contract(len(bounds) == n, "shiftAccess", "%d bounds for %d dims", len(bounds), n)
	m := aff.Universe(aff.NewSpace(params, n, n))
	b := &m.Pieces[0]
	for i := 0; i < n; i++ {
		shiftDim(b, i, bounds[i])
	}
	return m.IntersectDomain(access)
}

// shiftDim adds the constraints tying output dim i to
// (in_i + shift)/stride - lb.
func shiftDim(b *aff.BasicMap, i int, bd Bound) {
	g := bd.Stride
	if g < 1 {
		g = 1
	}
	var shiftCst int64
	var shiftCoef []int64
	if bd.Strided() {
		shiftCst = bd.Shift.Cst
		shiftCoef = bd.Shift.Coef
	} else {
		shiftCoef = make([]int64, len(bd.LB.Coef))
	}

	if bd.LB.Denom == 1 {
		// g*out = in + shift - g*lb
		terms := []aff.Term{aff.T(aff.InDim, i, 1), aff.T(aff.OutDim, i, -g)}
		cst := shiftCst - g*bd.LB.Cst
		for j := range shiftCoef {
			c := shiftCoef[j] - g*bd.LB.Coef[j]
			if c != 0 {
				terms = append(terms, aff.T(aff.ParamDim, j, c))
			}
		}
		b.AddEquality(cst, terms...)
		return
	}

	// The lower bound ceil(f/m) needs a quotient dim d with
	// f <= m*d <= f + m - 1; then g*out = in + shift - g*d.
	d := b.AddDiv()
	mden := bd.LB.Denom
	lo := []aff.Term{aff.T(aff.DivDim, d, mden)}
	hi := []aff.Term{aff.T(aff.DivDim, d, -mden)}
	for j, c := range bd.LB.Coef {
		if c != 0 {
			lo = append(lo, aff.T(aff.ParamDim, j, -c))
			hi = append(hi, aff.T(aff.ParamDim, j, c))
		}
	}
	b.AddInequality(-bd.LB.Cst, lo...)
	b.AddInequality(bd.LB.Cst+mden-1, hi...)

	terms := []aff.Term{aff.T(aff.InDim, i, 1), aff.T(aff.OutDim, i, -g), aff.T(aff.DivDim, d, -g)}
	for j, c := range shiftCoef {
		if c != 0 {
			terms = append(terms, aff.T(aff.ParamDim, j, c))
		}
	}
	b.AddEquality(shiftCst, terms...)
}

// accessSchedule builds the loop nest for copying the group's tile
// between global memory and its local copy: iterate the shifted tile
// with the final loops distributed over the threads. Fixed trailing
// iterators are skipped in favor of tiling earlier ones.
func (k *Kernel) accessSchedule(access aff.Set, g *RefGroup) aff.Map {
	sched := shiftAccess(k.Params, access, g.Bounds())

	nvar := access.Space.Out
	nTile := k.NBlock
	if nTile > nvar {
		sched = sched.InsertDims(aff.OutDim, 0, nTile-nvar)
		for i := 0; i < nTile-nvar; i++ {
			sched = sched.FixDim(aff.OutDim, i, 0)
		}
		nvar = nTile
	}

	first := nvar - nTile
	for ; first > 0; first-- {
		if !mapIsFixed(sched, first+nTile-1) {
			break
		}
	}

	tiling := distribute(k.cfg, k.Params, nvar, first, nTile, k.Block)
	sched = sched.ApplyRange(tiling)
	par := parametrization(k.Params, nvar+nTile, first+nTile, nTile, k.tBase)
	sched = sched.IntersectRange(par)

	if !k.cfg.Wrap && k.cfg.ScaleTileLoops {
		scale := scaleMap(k.Params, nvar+nTile, func(i int) int64 {
			if i >= first && i < first+nTile {
				return k.Block[i-first]
			}
			return 1
		})
		sched = sched.ApplyRange(scale)
	}

	return sched
}

// mapIsFixed reports whether output dimension pos takes one value over
// the whole relation.
func mapIsFixed(m aff.Map, pos int) bool {
	var val int64
	for i := range m.Pieces {
		v, ok := m.Pieces[i].IsFixed(aff.OutDim, pos)
		if !ok {
			return false
		}
		if i > 0 && v != val {
			return false
		}
		val = v
	}
	return len(m.Pieces) > 0
}
