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

// Package gpu maps an affinely scheduled loop program onto a parallel
// hardware hierarchy. Given statements, their array accesses and a
// schedule with a tilable parallel band, it carves the schedule into
// host, grid, block and thread coordinates and decides, per array
// reference group, which memory tier serves it: registers private to
// one thread, a scratchpad tile shared by a block, or global memory.
// The resulting decisions (tiers, tile sizes, lower-bound offsets,
// stride normalizations, copy schedules) are everything a code
// generator needs; the package renders nothing itself.
package gpu

import (
	"fmt"

	"github.com/arash1902/AutoSA/aff"
)

// StmtMap pairs a statement with a relation over its domain.
type StmtMap struct {
	Stmt *Statement
	Rel  aff.Map
}

func byStmt(sms []StmtMap) map[*Statement]aff.Map {
	out := make(map[*Statement]aff.Map, len(sms))
	for _, sm := range sms {
		out[sm.Stmt] = sm.Rel
	}
	return out
}

// Kernel is the placement result for one invocation site: the tiled
// coordinate systems, the classified reference groups and the launch
// geometry.
type Kernel struct {
	ID      int
	Program *Program

	// Params is the full parameter list of every relation owned by
	// the kernel: the program's global parameters followed by the
	// frozen host values (h), block ids (b), thread ids (t) and
	// shared tile loop values (g).
	Params      []string
	FirstShared int

	TileFirst      int
	TileLen        int
	NGrid          int
	NBlock         int
	UntiledLen     int
	TiledLen       int
	SharedLen      int
	ThreadTiledLen int

	// Launch geometry, in schedule order.
	Grid  []int64
	Block []int64

	// TiledSched maps each statement's domain to the tiled coordinate
	// space; LocalSched is the fully thread-tiled schedule the kernel
	// body iterates, possibly permuted for unrolling.
	TiledSched []StmtMap
	LocalSched []StmtMap

	// FirstUnroll is the position of the first loop to unroll in
	// LocalSched, or -1.
	FirstUnroll int

	Placements []Placement

	cfg        Config
	nParallel  int
	hBase      int
	bBase      int
	tBase      int
	sharedSched   []StmtMap
	sharedProj    aff.Map
	privatization aff.Map

	tiledByStmt  map[*Statement]aff.Map
	sharedByStmt map[*Statement]aff.Map
	localByStmt  map[*Statement]aff.Map
	sharedAccess map[*Statement]aff.Map

	groups      []*RefGroup
	arrayGroups map[*Array][]*RefGroup
	lastShared  map[*Array]int
	localBounds map[*Array][]aff.Expr
}

// Compile runs the whole placement pipeline: one kernel per invocation
// site, in host-schedule order. A site whose input violates a
// construction contract yields a CompileError; recoverable placement
// outcomes never fail.
func (p *Program) Compile(cfg Config) ([]*Kernel, error) {
	if len(p.Stmts) == 0 {
		return nil, fmt.Errorf("gpu: program %q has no statements", p.Name)
	}
	p.collectReferences()
	p.computeArrayBounds()

	sites := p.Sites
	if len(sites) == 0 {
		sites = []Site{{HostDomain: aff.UniverseSet(p.Params, p.TileFirst)}}
	}

	kernels := make([]*Kernel, 0, len(sites))
	for id, site := range sites {
		k, err := p.compileSite(id, site, cfg)
		if err != nil {
			return kernels, err
		}
		kernels = append(kernels, k)
	}
	return kernels, nil
}

func (p *Program) compileSite(id int, site Site, cfg Config) (k *Kernel, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*aff.ContractError); ok {
				err = &CompileError{Kernel: id, Op: ce.Op, Err: ce}
				return
			}
			panic(r)
		}
	}()
	k = p.newKernel(id, site, cfg)
	k.tileSchedules(site)
	k.computeSharedSched()
	k.computePrivatization()
	k.groupReferences()
	k.computePrivateSize()
	if cfg.Unroll {
		k.interchangeForUnroll()
	}
	k.finalize(site)
	return k, nil
}

// newKernel fixes the band sizes for one site and declares the frozen
// parameter names.
func (p *Program) newKernel(id int, site Site, cfg Config) *Kernel {
	tileLen := p.Stmts[0].TileLen
	nParallel := p.Stmts[0].NParallel
	for _, s := range p.Stmts {
		contract(s.TileLen == tileLen && s.NParallel == nParallel,
			"Program.Compile", "statement %s disagrees on the tilable band", s.Name)
	}
	contract(tileLen >= 1 && nParallel >= 1 && nParallel <= tileLen,
		"Program.Compile", "tilable band %d with %d parallel loops", tileLen, nParallel)
	contract(p.TileFirst >= 0 && p.TileFirst+tileLen <= p.UntiledLen,
		"Program.Compile", "band [%d,%d) exceeds schedule length %d",
		p.TileFirst, p.TileFirst+tileLen, p.UntiledLen)
	contract(site.HostDomain.Space.In == 0 && site.HostDomain.Space.Out == p.TileFirst,
		"Program.Compile", "host domain has %d dims, want %d",
		site.HostDomain.Space.Out, p.TileFirst)

	nBlock := nParallel
	if nBlock > 3 {
		nBlock = 3
	}
	nGrid := nParallel
	if nGrid > 2 {
		nGrid = 2
	}

	k := &Kernel{
		ID:          id,
		Program:     p,
		TileFirst:   p.TileFirst,
		TileLen:     tileLen,
		NGrid:       nGrid,
		NBlock:      nBlock,
		UntiledLen:  p.UntiledLen,
		cfg:         cfg,
		nParallel:   nParallel,
		FirstUnroll: -1,
		arrayGroups: make(map[*Array][]*RefGroup),
		lastShared:  make(map[*Array]int),
		localBounds: make(map[*Array][]aff.Expr),
	}
	k.TiledLen = k.UntiledLen + tileLen + nGrid
	k.SharedLen = k.TileFirst + tileLen + nGrid
	k.ThreadTiledLen = k.TiledLen + nBlock
	k.Grid = cfg.gridSizes(nGrid)
	k.Block = cfg.blockSizes(nBlock)

	params := append([]string(nil), p.Params...)
	k.hBase = len(params)
	params = appendNumbered(params, "h", k.TileFirst)
	k.bBase = len(params)
	params = appendNumbered(params, "b", nGrid)
	k.tBase = len(params)
	params = appendNumbered(params, "t", nBlock)
	k.FirstShared = len(params)
	params = appendNumbered(params, "g", k.SharedLen)
	k.Params = params

	seen := make(map[string]bool, len(params))
	for _, name := range params {
		contract(!seen[name], "Program.Compile", "parameter %q declared twice", name)
		seen[name] = true
	}
	return k
}

func appendNumbered(params []string, prefix string, n int) []string {
	for i := 0; i < n; i++ {
		params = append(params, fmt.Sprintf("%s%d", prefix, i))
	}
	return params
}

// tileSchedules restricts each statement's schedule to the site, tiles
// the tilable band over the tile sizes and the grid, freezes the host
// and block coordinates as parameters, and tile/wraps the point loops
// over the threads.
func (k *Kernel) tileSchedules(site Site) {
	p := k.Program
	cfg := k.cfg
	tileSize := cfg.tileSizes(k.TileLen)

	host := site.HostDomain.AlignParams(k.Params)
	host = host.InsertDims(aff.OutDim, k.TileFirst, k.UntiledLen-k.TileFirst)

	tiling := tileMap(k.Params, k.UntiledLen, k.TileFirst, k.TileLen, tileSize)
	tiling = tiling.ApplyRange(distribute(cfg, k.Params,
		k.UntiledLen+k.TileLen, k.TileFirst, k.NGrid, k.Grid))

	hPar := parametrization(k.Params, k.TiledLen, 0, k.TileFirst, k.hBase)
	bPar := parametrization(k.Params, k.TiledLen, k.TileFirst+k.NGrid, k.NGrid, k.bBase)

	k.TiledSched = k.TiledSched[:0]
	for _, stmt := range p.Stmts {
		sched := stmt.Schedule.AlignParams(k.Params)
		sched = sched.IntersectDomain(stmt.Domain.AlignParams(k.Params))
		sched = sched.IntersectRange(host)
		sched = sched.ApplyRange(tiling)
		sched = sched.IntersectRange(hPar).IntersectRange(bPar)
		if cfg.ScaleTileLoops {
			sched = sched.ApplyRange(k.tileScale(tileSize))
		}
		k.TiledSched = append(k.TiledSched, StmtMap{Stmt: stmt, Rel: sched})
	}
	k.tiledByStmt = byStmt(k.TiledSched)

	gPar := parametrization(k.Params, k.TiledLen, 0, k.SharedLen, k.FirstShared)
	threadTiling := distribute(cfg, k.Params, k.TiledLen, k.SharedLen, k.NBlock, k.Block)
	tPar := parametrization(k.Params, k.ThreadTiledLen, k.SharedLen+k.NBlock, k.NBlock, k.tBase)

	k.LocalSched = k.LocalSched[:0]
	for _, sm := range k.TiledSched {
		sched := sm.Rel.IntersectRange(gPar)
		sched = sched.ApplyRange(threadTiling)
		sched = sched.IntersectRange(tPar)
		if !cfg.Wrap && cfg.ScaleTileLoops {
			sched = sched.ApplyRange(scaleMap(k.Params, k.ThreadTiledLen, func(i int) int64 {
				if i >= k.SharedLen && i < k.SharedLen+k.NBlock {
					return k.Block[i-k.SharedLen]
				}
				return 1
			}))
		}
		k.LocalSched = append(k.LocalSched, StmtMap{Stmt: sm.Stmt, Rel: sched})
	}
	k.localByStmt = byStmt(k.LocalSched)
}

// tileScale scales the grid quotient loops by tile (and, for blocked
// distribution, grid) factors and the remaining tile loops by the tile
// size, so their values step over original iterations.
func (k *Kernel) tileScale(tileSize []int64) aff.Map {
	return scaleMap(k.Params, k.TiledLen, func(i int) int64 {
		switch {
		case i >= k.TileFirst && i < k.TileFirst+k.NGrid:
			f := tileSize[i-k.TileFirst]
			if !k.cfg.Wrap {
				f *= k.Grid[i-k.TileFirst]
			}
			return f
		case i >= k.TileFirst+k.NGrid && i < k.TileFirst+k.NGrid+k.TileLen:
			return tileSize[i-(k.TileFirst+k.NGrid)]
		default:
			return 1
		}
	})
}

// computeSharedSched projects the tiled schedule onto the shared tile
// loops plus the thread-distributed point loops, freezing the former
// as g parameters. sharedProj further drops the point loops.
func (k *Kernel) computeSharedSched() {
	proj := projection(k.Params, k.TiledLen, k.SharedLen+k.NBlock)
	gPar := parametrization(k.Params, k.SharedLen+k.NBlock, 0, k.SharedLen, k.FirstShared)

	k.sharedSched = k.sharedSched[:0]
	for _, sm := range k.TiledSched {
		sched := sm.Rel.ApplyRange(proj).IntersectRange(gPar)
		k.sharedSched = append(k.sharedSched, StmtMap{Stmt: sm.Stmt, Rel: sched})
	}
	k.sharedByStmt = byStmt(k.sharedSched)
	k.sharedProj = projection(k.Params, k.SharedLen+k.NBlock, k.SharedLen)
}

// computePrivatization ties the thread-distributed point loops to the
// thread id parameters and projects them away, leaving a relation from
// (shared loops, point loops) to the shared loops alone that carries
// the thread ownership constraint.
func (k *Kernel) computePrivatization() {
	priv := distribute(k.cfg, k.Params, k.SharedLen+k.NBlock, k.SharedLen, k.NBlock, k.Block)
	par := parametrization(k.Params, k.SharedLen+2*k.NBlock, k.SharedLen+k.NBlock, k.NBlock, k.tBase)
	priv = priv.IntersectRange(par)
	priv = priv.ApplyRange(projection(k.Params, k.SharedLen+2*k.NBlock, k.SharedLen))
	k.privatization = priv
}

// finalize derives the renderer-facing outputs.
func (k *Kernel) finalize(site Site) {
	for _, arr := range k.Program.Arrays {
		k.localBounds[arr] = localizeBounds(k.Params, alignBounds(arr.Bounds, k.Params),
			site.HostDomain.AlignParams(k.Params))
	}
	k.buildPlacements()
}

func alignBounds(bounds []aff.Expr, params []string) []aff.Expr {
	out := make([]aff.Expr, len(bounds))
	for i, e := range bounds {
		ne := e
		ne.Params = params
		coef := make([]int64, len(params))
		copy(coef, e.Coef)
		ne.Coef = coef
		out[i] = ne
	}
	return out
}

// LastShared returns the deepest shared tile loop whose value affects
// the array's tile offset, or SharedLen-1 when unknown.
func (k *Kernel) LastShared(arr *Array) int {
	if v, ok := k.lastShared[arr]; ok {
		return v
	}
	return k.SharedLen - 1
}

// Groups returns the reference groups of one array for this kernel.
func (k *Kernel) Groups(arr *Array) []*RefGroup {
	return k.arrayGroups[arr]
}

// RequiresSync reports whether the kernel needs cross-thread
// synchronization: some group keeps a scratchpad tile that is both
// read and written.
func (k *Kernel) RequiresSync() bool {
	for _, g := range k.groups {
		if g.Tier() == TierShared && g.Read && g.Write {
			return true
		}
	}
	return false
}
