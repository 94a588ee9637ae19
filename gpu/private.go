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

// groupAccessByStmt returns the union of the group's member accesses,
// read and/or write, combined per statement and aligned to the kernel
// parameters.
func (k *Kernel) groupAccessByStmt(g *RefGroup, read, write bool) map[*Statement]aff.Map {
	out := make(map[*Statement]aff.Map)
	for _, ref := range g.Refs {
		if !(read && ref.Read || write && ref.Write) {
			continue
		}
		rel := ref.Rel.AlignParams(k.Params)
		if prev, ok := out[ref.Stmt]; ok {
			rel = prev.Union(rel)
		}
		out[ref.Stmt] = rel
	}
	return out
}

// unionInjective reports whether the union of the per-statement
// relations maps no two iteration points, of any statement, to a
// common array element: each relation must be injective on its own and
// their ranges pairwise disjoint.
func unionInjective(rels map[*Statement]aff.Map) bool {
	stmts := make([]*Statement, 0, len(rels))
	for s := range rels {
		stmts = append(stmts, s)
	}
	for i, s := range stmts {
		if !rels[s].IsInjective() {
			return false
		}
		for _, o := range stmts[:i] {
			if !rels[s].Range().Intersect(rels[o].Range()).IsEmpty() {
				return false
			}
		}
	}
	return true
}

// scheduledUnion applies the per-statement schedule to each relation
// and unions the results, which then all live in one coordinate space.
func scheduledUnion(rels map[*Statement]aff.Map, sched map[*Statement]aff.Map) (aff.Map, bool) {
	var out aff.Map
	have := false
	for s, rel := range rels {
		sm, ok := sched[s]
		if !ok {
			continue
		}
		m := rel.ApplyDomain(sm)
		if !have {
			out = m
			have = true
		} else {
			out = out.Union(m)
		}
	}
	return out, have
}

// accessIsCoalesced reports whether stepping the innermost
// thread-distributed coordinate always steps the innermost array
// coordinate: the pattern global memory serves at full bandwidth.
// Only called for relations without reuse.
func (k *Kernel) accessIsCoalesced(rels map[*Statement]aff.Map) bool {
	access, ok := scheduledUnion(rels, k.tiledByStmt)
	if !ok || access.IsEmpty() {
		return false
	}
	nextThread := nextMap(k.Params, k.TiledLen, k.SharedLen+k.NBlock-1)
	nextElement := nextMap(k.Params, access.Space.Out, access.Space.Out-1)

	step := nextThread.ApplyDomain(access).ApplyRange(access)
	return step.IsSubsetOf(aff.FromBasic(nextElement.Pieces[0]))
}

// checkPrivateGroupAccess decides the final tier of one group.
//
// A group whose full access relation is injective has no reuse; if it
// is moreover coalesced, the scratchpad tile is dropped since global
// memory serves it just as well. Otherwise the access is restricted to
// the shared schedule and tested for bijectivity over the
// thread-distributed coordinates: a bijective group gives each thread
// a disjoint single-valued slice, safe for registers, provided the
// privatized relation still admits a bounded tile.
func (k *Kernel) checkPrivateGroupAccess(g *RefGroup) {
	rels := k.groupAccessByStmt(g, true, true)
	if unionInjective(rels) {
		if g.Shared != nil && k.accessIsCoalesced(rels) {
			g.Shared = nil
		}
		return
	}

	acc, ok := scheduledUnion(rels, k.sharedByStmt)
	if !ok || !acc.IsBijective() {
		return
	}

	priv := acc.ApplyDomain(k.privatization)
	if bounds, tiled := canTile(priv, k.Params, k.FirstShared); tiled {
		g.Private = bounds
	}
}

// setLastShared finds the deepest shared tile loop whose frozen value
// appears in the group's bound offsets or stride shifts. Copies for
// the group must be nested inside that loop.
func (k *Kernel) setLastShared(g *RefGroup) int {
	bounds := g.Bounds()
	if bounds == nil {
		return k.SharedLen - 1
	}
	for j := k.SharedLen - 1; j >= 0; j-- {
		for i := range bounds {
			if bounds[i].LB.InvolvesParam(k.FirstShared + j) {
				return j
			}
			if bounds[i].Strided() && bounds[i].Shift.InvolvesParam(k.FirstShared+j) {
				return j
			}
		}
	}
	return -1
}

// computePrivateSize classifies every group and records, for arrays
// with a single group, the loop level its copies belong at.
func (k *Kernel) computePrivateSize() {
	for _, arr := range k.Program.Arrays {
		gs := k.arrayGroups[arr]
		for _, g := range gs {
			k.checkPrivateGroupAccess(g)
		}
		k.lastShared[arr] = k.SharedLen - 1
		if len(gs) == 1 {
			k.lastShared[arr] = k.setLastShared(gs[0])
		}
	}
}

// interchangeForUnroll moves the parallel loops feeding private
// accesses innermost and records the position of the first one, so the
// renderer can unroll them. The schedule is left alone when any such
// loop is not a point loop of the thread tile.
func (k *Kernel) interchangeForUnroll() {
	k.FirstUnroll = -1

	unroll := make([]bool, k.ThreadTiledLen)
	for _, g := range k.groups {
		if g.Private == nil {
			continue
		}
		for _, ref := range g.Refs {
			sm, ok := k.localByStmt[ref.Stmt]
			if !ok {
				continue
			}
			acc := ref.Rel.AlignParams(k.Params).ApplyDomain(sm)
			markIndexInputs(acc, unroll)
		}
	}

	limit := k.SharedLen + k.nParallel + k.NBlock
	for i := 0; i < k.SharedLen; i++ {
		if unroll[i] {
			return
		}
	}
	first := -1
	for i := k.SharedLen; i < limit; i++ {
		if unroll[i] {
			first = i
			break
		}
	}
	if first < 0 {
		return
	}
	for i := limit; i < k.ThreadTiledLen; i++ {
		if unroll[i] {
			return
		}
	}

	perm := make([]int, k.ThreadTiledLen)
	j := 0
	for i := range perm {
		if !unroll[i] {
			perm[i] = j
			j++
		}
	}
	k.FirstUnroll = j
	for i := 0; i < limit; i++ {
		if unroll[i] {
			perm[i] = j
			j++
		}
	}

	permute := permutationMap(k.Params, perm)
	for i := range k.LocalSched {
		k.LocalSched[i].Rel = k.LocalSched[i].Rel.ApplyRange(permute)
	}
	k.localByStmt = byStmt(k.LocalSched)
}

// markIndexInputs sets unroll[j] for every input dimension involved in
// a defining equality of an output dimension of acc. Input dims that
// are pinned to a parameter by their own equality do not vary inside
// the kernel body and are not marked.
func markIndexInputs(acc aff.Map, unroll []bool) {
	np := acc.Space.NParam()
	nIn := acc.Space.In
	for pi := range acc.Pieces {
		p := &acc.Pieces[pi]
		if p.Empty() {
			continue
		}
		pinned := paramPinnedInputs(p, np, nIn)
		for i := 0; i < acc.Space.Out; i++ {
			for _, c := range p.Cons {
				if !c.Eq || c.Row[1+np+nIn+i] == 0 {
					continue
				}
				for j := 0; j < nIn; j++ {
					if c.Row[1+np+j] != 0 && !pinned[j] {
						unroll[j] = true
					}
				}
				break
			}
		}
	}
}

// paramPinnedInputs reports which input dims some equality fixes to a
// parameter expression alone.
func paramPinnedInputs(p *aff.BasicMap, np, nIn int) []bool {
	pinned := make([]bool, nIn)
	for _, c := range p.Cons {
		if !c.Eq {
			continue
		}
		vars := c.Row[1+np:]
		single := -1
		for j, v := range vars {
			if v == 0 {
				continue
			}
			if single >= 0 || j >= nIn || (v != 1 && v != -1) {
				single = -2
				break
			}
			single = j
		}
		if single >= 0 {
			pinned[single] = true
		}
	}
	return pinned
}
