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

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arash1902/AutoSA/aff"
)

// Tier is the memory level serving a reference group.
type Tier int

const (
	// TierGlobal leaves the group on the device's main memory.
	TierGlobal Tier = iota
	// TierShared gives the group a scratchpad tile per block.
	TierShared
	// TierPrivate gives each thread its own registers for the group.
	TierPrivate
)

func (t Tier) String() string {
	switch t {
	case TierGlobal:
		return "global"
	case TierShared:
		return "shared"
	case TierPrivate:
		return "private"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Placement is the renderer-facing record for one reference group: the
// tier, the local buffer geometry, and the copy schedules moving the
// tile between global memory and the local copy.
type Placement struct {
	Array *Array
	Group *RefGroup
	Tier  Tier

	// Name is the local buffer identifier; empty for global tier.
	Name string

	// Bounds gives the local buffer extent per array dimension; nil for
	// global tier. LocalBounds is the array's full extent specialized to
	// the kernel site, used when addressing global memory.
	Bounds      []Bound
	LocalBounds []aff.Expr

	// CopyIn and CopyOut schedule the transfers, mapping tile elements
	// to thread-distributed loop coordinates. Zero when the tier or the
	// access direction does not need them.
	CopyIn  aff.Map
	CopyOut aff.Map

	// LastShared is the deepest shared tile loop the copies must nest
	// inside.
	LastShared int
}

var titler = cases.Title(language.English)

// Name returns the kernel's symbol name, derived from the program name.
func (k *Kernel) Name() string {
	base := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '.' {
			return '_'
		}
		return r
	}, k.Program.Name)
	if base == "" {
		base = "kernel"
	}
	return fmt.Sprintf("%s%d", titler.String(base), k.ID)
}

// localName names the buffer backing one group: private buffers are
// per-thread so the array name suffices; scratchpad buffers carry the
// group number when the array has several groups.
func (k *Kernel) localName(g *RefGroup) string {
	switch g.Tier() {
	case TierPrivate:
		return "priv_" + g.Array.Name
	case TierShared:
		if len(k.arrayGroups[g.Array]) > 1 {
			return fmt.Sprintf("shared_%s_%d", g.Array.Name, g.Nr)
		}
		return "shared_" + g.Array.Name
	default:
		return ""
	}
}

// buildPlacements turns the classified groups into placement records,
// in array then group order.
func (k *Kernel) buildPlacements() {
	k.Placements = k.Placements[:0]
	for _, arr := range k.Program.Arrays {
		for _, g := range k.arrayGroups[arr] {
			p := Placement{
				Array:       arr,
				Group:       g,
				Tier:        g.Tier(),
				Name:        k.localName(g),
				Bounds:      g.Bounds(),
				LocalBounds: k.localBounds[arr],
				LastShared:  k.LastShared(arr),
			}
			if p.Tier != TierGlobal {
				sched := k.accessSchedule(g.Access.Range(), g)
				if g.Read {
					p.CopyIn = sched
				}
				if g.Write {
					p.CopyOut = sched
				}
			}
			k.Placements = append(k.Placements, p)
		}
	}
}
