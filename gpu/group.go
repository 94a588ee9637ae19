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

// RefGroup is a set of references to one array that share a tile and
// an addressing scheme within one kernel. At most one of Shared and
// Private is set; both absent means the group reads and writes global
// memory directly.
type RefGroup struct {
	Array  *Array
	Access aff.Map // union of the members' accesses over the shared schedule
	Write  bool
	Read   bool
	Refs   []*Access

	// Nr disambiguates the group among its array's groups.
	Nr int

	Shared  []Bound
	Private []Bound

	nRef int
}

// Tier returns the memory tier the group was assigned.
func (g *RefGroup) Tier() Tier {
	switch {
	case g.Private != nil:
		return TierPrivate
	case g.Shared != nil:
		return TierShared
	default:
		return TierGlobal
	}
}

// Bounds returns the per-dimension bounds of the chosen tier, or nil
// for global access.
func (g *RefGroup) Bounds() []Bound {
	if g.Private != nil {
		return g.Private
	}
	return g.Shared
}

// populateRefGroups builds one singleton group per reference whose
// access, composed with the shared schedule, is nonempty for this
// kernel. Empty references are dropped for this kernel only.
func (k *Kernel) populateRefGroups(arr *Array) []*RefGroup {
	groups := make([]*RefGroup, 0, len(arr.refs))
	for _, ref := range arr.refs {
		sched, ok := k.sharedAccess[ref.Stmt]
		if !ok {
			continue
		}
		access := ref.Rel.AlignParams(k.Params).ApplyDomain(sched)
		if access.IsEmpty() {
			continue
		}
		groups = append(groups, &RefGroup{
			Array:  arr,
			Access: access,
			Write:  ref.Write,
			Read:   ref.Read,
			Refs:   []*Access{ref},
			nRef:   1,
		})
	}
	return groups
}

// groupOverlappingWrites merges any two groups whose accesses overlap
// when at least one of them writes. leader[i] points at an earlier
// member of i's group, or at i itself for a leader. Returns the number
// of leaders.
func groupOverlappingWrites(groups []*RefGroup, leader []int) int {
	n := len(groups)
	nGroup := n
	for i := 0; i < n; i++ {
		l := i
		for j := i - 1; j >= 0; j-- {
			if leader[j] != j {
				continue
			}
			if !groups[l].Write && !groups[j].Write {
				continue
			}
			if groups[l].Access.Intersect(groups[j].Access).IsEmpty() {
				continue
			}
			groups[j].Access = groups[j].Access.Union(groups[l].Access)
			groups[j].Write = true
			groups[j].Read = groups[j].Read || groups[l].Read
			groups[j].nRef += groups[l].nRef
			leader[l] = j
			l = j
			nGroup--
		}
		leader[i] = l
	}
	return nGroup
}

// groupCommonSharedTile merges two leaders when both hold a scratchpad
// bound and their union still admits one. Ties break towards the
// earliest leader, scanning right to left like the overlap pass.
func (k *Kernel) groupCommonSharedTile(groups []*RefGroup, leader []int, nGroup int) int {
	n := len(groups)
	for i := 0; nGroup > 1 && i < n; i++ {
		l := i
		if leader[i] != i || groups[i].Shared == nil {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if leader[j] != j || groups[j].Shared == nil {
				continue
			}
			if groups[l].Access.Intersect(groups[j].Access).IsEmpty() {
				continue
			}
			union := groups[l].Access.Union(groups[j].Access)
			bounds, ok := canTile(union, k.Params, k.FirstShared)
			if !ok {
				continue
			}
			groups[j].Shared = bounds
			groups[j].Access = union
			groups[j].Read = groups[j].Read || groups[l].Read
			groups[j].Write = groups[j].Write || groups[l].Write
			groups[j].nRef += groups[l].nRef
			leader[l] = j
			l = j
			nGroup--
		}
	}
	return nGroup
}

// extractRefGroups flattens the leader forest, numbers the surviving
// groups and hands every reference to its leader.
func extractRefGroups(groups []*RefGroup, leader []int, nGroup int) []*RefGroup {
	n := len(groups)
	for i := 2; i < n; i++ {
		leader[i] = leader[leader[i]]
	}
	out := make([]*RefGroup, 0, nGroup)
	for i := 0; i < n; i++ {
		if leader[i] != i {
			continue
		}
		g := groups[i]
		g.Nr = len(out)
		refs := make([]*Access, 0, g.nRef)
		for j := i; j < n; j++ {
			if leader[j] == i {
				refs = append(refs, groups[j].Refs[0])
				groups[j].Refs[0].Group = g.Nr
			}
		}
		g.Refs = refs
		out = append(out, g)
	}
	return out
}

// groupArrayReferences partitions one array's references for the
// current kernel: singleton groups, the overlap-with-write merge, a
// scratchpad bound per leader, and the common-tile merge.
func (k *Kernel) groupArrayReferences(arr *Array) []*RefGroup {
	groups := k.populateRefGroups(arr)
	leader := make([]int, len(groups))

	nGroup := groupOverlappingWrites(groups, leader)

	for i, g := range groups {
		if leader[i] != i {
			continue
		}
		if bounds, ok := canTile(g.Access, k.Params, k.FirstShared); ok {
			g.Shared = bounds
		}
	}

	nGroup = k.groupCommonSharedTile(groups, leader, nGroup)

	return extractRefGroups(groups, leader, nGroup)
}

// groupReferences runs reference grouping for every array.
func (k *Kernel) groupReferences() {
	k.sharedAccess = make(map[*Statement]aff.Map, len(k.sharedSched))
	for _, sm := range k.sharedSched {
		k.sharedAccess[sm.Stmt] = sm.Rel.ApplyRange(k.sharedProj)
	}
	k.groups = k.groups[:0]
	for _, arr := range k.Program.Arrays {
		gs := k.groupArrayReferences(arr)
		k.arrayGroups[arr] = gs
		k.groups = append(k.groups, gs...)
	}
}
