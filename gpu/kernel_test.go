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
	"errors"
	"testing"

	"github.com/arash1902/AutoSA/aff"
)

// boxSet builds { (x0, ..) : lo_i <= x_i <= hi_i }.
func boxSet(bounds ...[2]int64) aff.Set {
	s := aff.Universe(aff.SetSpace(nil, len(bounds)))
	b := &s.Pieces[0]
	for i, lh := range bounds {
		b.AddInequality(-lh[0], aff.T(aff.OutDim, i, 1))
		b.AddInequality(lh[1], aff.T(aff.OutDim, i, -1))
	}
	return s
}

// identSched maps an n-dimensional iteration point to itself.
func identSched(n int) aff.Map {
	m := aff.Universe(aff.NewSpace(nil, n, n))
	for i := 0; i < n; i++ {
		m.Pieces[0].AddEquality(0, aff.T(aff.InDim, i, 1), aff.T(aff.OutDim, i, -1))
	}
	return m
}

// indexAccess maps (i_0, .., i_{n-1}) to the elements picked by dims,
// offset per dimension: dims {0, 2} with offs {0, -1} reads X[i0][i2-1].
func indexAccess(n int, dims []int, offs []int64) aff.Map {
	m := aff.Universe(aff.NewSpace(nil, n, len(dims)))
	for o, d := range dims {
		var off int64
		if offs != nil {
			off = offs[o]
		}
		m.Pieces[0].AddEquality(off, aff.T(aff.InDim, d, 1), aff.T(aff.OutDim, o, -1))
	}
	return m
}

func placementFor(t *testing.T, k *Kernel, name string) Placement {
	t.Helper()
	for _, p := range k.Placements {
		if p.Array.Name == name {
			return p
		}
	}
	t.Fatalf("no placement for array %s", name)
	return Placement{}
}

// elementwiseProgram scales a 128x128 array in place: both parallel
// loops map threads straight onto distinct elements.
func elementwiseProgram() *Program {
	a := &Array{Name: "A", Type: "float", Extent: boxSet([2]int64{0, 127}, [2]int64{0, 127})}
	st := &Statement{
		Name:      "S",
		Domain:    boxSet([2]int64{0, 127}, [2]int64{0, 127}),
		Schedule:  identSched(2),
		TileLen:   2,
		NParallel: 2,
	}
	st.Accesses = []*Access{
		{Array: a, Stmt: st, Rel: indexAccess(2, []int{0, 1}, nil), Read: true, Write: true},
	}
	return &Program{
		Name:       "scale",
		Stmts:      []*Statement{st},
		Arrays:     []*Array{a},
		UntiledLen: 2,
	}
}

func TestCompileElementwiseStaysGlobal(t *testing.T) {
	kernels, err := elementwiseProgram().Compile(DefaultConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(kernels) != 1 {
		t.Fatalf("got %d kernels, want 1", len(kernels))
	}
	k := kernels[0]
	if len(k.Placements) != 1 {
		t.Fatalf("got %d placements, want 1", len(k.Placements))
	}
	p := k.Placements[0]
	if p.Tier != TierGlobal {
		t.Errorf("tier = %v, want global", p.Tier)
	}
	if p.Name != "" || p.Bounds != nil {
		t.Errorf("global placement carries a local buffer %q %v", p.Name, p.Bounds)
	}
	if !p.CopyIn.IsEmpty() || !p.CopyOut.IsEmpty() {
		t.Errorf("global placement carries copy schedules")
	}
	if k.RequiresSync() {
		t.Errorf("elementwise kernel requires sync")
	}
}

// stencilProgram computes A[i] from B[i-1], B[i] and B[i+1] with tile
// and block size 64.
func stencilProgram() *Program {
	a := &Array{Name: "A", Type: "float", Extent: boxSet([2]int64{0, 1023})}
	bArr := &Array{Name: "B", Type: "float", Extent: boxSet([2]int64{0, 1023})}
	st := &Statement{
		Name:      "S",
		Domain:    boxSet([2]int64{1, 1022}),
		Schedule:  identSched(1),
		TileLen:   1,
		NParallel: 1,
	}
	st.Accesses = []*Access{
		{Array: a, Stmt: st, Rel: indexAccess(1, []int{0}, nil), Write: true},
		{Array: bArr, Stmt: st, Rel: indexAccess(1, []int{0}, []int64{-1}), Read: true},
		{Array: bArr, Stmt: st, Rel: indexAccess(1, []int{0}, nil), Read: true},
		{Array: bArr, Stmt: st, Rel: indexAccess(1, []int{0}, []int64{1}), Read: true},
	}
	return &Program{
		Name:       "stencil",
		Stmts:      []*Statement{st},
		Arrays:     []*Array{a, bArr},
		UntiledLen: 1,
	}
}

func stencilConfig() Config {
	cfg := DefaultConfig()
	cfg.Tile = []int64{64}
	cfg.Block = []int64{64}
	return cfg
}

func TestCompileStencil(t *testing.T) {
	kernels, err := stencilProgram().Compile(stencilConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	k := kernels[0]

	// The three reads overlap pairwise and share a tile: one group.
	pb := placementFor(t, k, "B")
	if pb.Tier != TierShared {
		t.Fatalf("B tier = %v, want shared", pb.Tier)
	}
	if pb.Name != "shared_B" {
		t.Errorf("B buffer name = %q, want shared_B", pb.Name)
	}
	if len(pb.Group.Refs) != 3 {
		t.Errorf("B group holds %d refs, want 3", len(pb.Group.Refs))
	}
	if len(pb.Bounds) != 1 {
		t.Fatalf("B bounds = %v, want 1 dim", pb.Bounds)
	}
	bd := pb.Bounds[0]
	if bd.Size != 66 {
		t.Errorf("B tile size = %d, want 66", bd.Size)
	}
	// The tile starts one element before the tile origin
	// 64*(65536*g0 + g1).
	if bd.LB.Cst != -1 || bd.LB.Denom != 1 {
		t.Errorf("B tile lb = %v, want origin - 1", bd.LB)
	}
	if bd.LB.Coef[k.FirstShared+1] != 64 {
		t.Errorf("B tile lb g1 coefficient = %d, want 64", bd.LB.Coef[k.FirstShared+1])
	}
	if pb.CopyIn.IsEmpty() {
		t.Errorf("read-only scratchpad group has no copy-in")
	}
	if !pb.CopyOut.IsEmpty() {
		t.Errorf("read-only scratchpad group has a copy-out")
	}
	// The lb depends on the innermost shared loop: copies nest there.
	if pb.LastShared != 1 {
		t.Errorf("B last shared loop = %d, want 1", pb.LastShared)
	}

	// The write to A is injective and coalesced: no local copy.
	pa := placementFor(t, k, "A")
	if pa.Tier != TierGlobal {
		t.Errorf("A tier = %v, want global", pa.Tier)
	}

	if k.RequiresSync() {
		t.Errorf("read-only scratchpad forces sync")
	}
}

func TestCompileStencilGroupingOrderInvariant(t *testing.T) {
	base, err := stencilProgram().Compile(stencilConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// Reversing the read order must not change the partition.
	prog := stencilProgram()
	acc := prog.Stmts[0].Accesses
	acc[1], acc[3] = acc[3], acc[1]
	kernels, err := prog.Compile(stencilConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	pb := placementFor(t, kernels[0], "B")
	pbBase := placementFor(t, base[0], "B")
	if pb.Tier != TierShared || pbBase.Tier != TierShared {
		t.Fatalf("B tiers = %v and %v, want shared", pb.Tier, pbBase.Tier)
	}
	if len(pb.Group.Refs) != len(pbBase.Group.Refs) {
		t.Errorf("got %d refs, want %d", len(pb.Group.Refs), len(pbBase.Group.Refs))
	}
	if pb.Bounds[0].Size != pbBase.Bounds[0].Size {
		t.Errorf("tile size %d differs from %d", pb.Bounds[0].Size, pbBase.Bounds[0].Size)
	}
}

func TestCompileTwiceIsIdempotent(t *testing.T) {
	prog := stencilProgram()
	cfg := stencilConfig()
	first, err := prog.Compile(cfg)
	if err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	second, err := prog.Compile(cfg)
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	pf := placementFor(t, first[0], "B")
	ps := placementFor(t, second[0], "B")
	if pf.Tier != TierShared || ps.Tier != TierShared {
		t.Fatalf("B tiers = %v and %v, want shared", pf.Tier, ps.Tier)
	}
	if pf.Tier != ps.Tier || pf.Bounds[0].Size != ps.Bounds[0].Size {
		t.Errorf("recompilation changed the placement: %v/%d vs %v/%d",
			pf.Tier, pf.Bounds[0].Size, ps.Tier, ps.Bounds[0].Size)
	}
}

// inPlaceStencilProgram updates X from its own neighbors, forcing the
// write into the same group as the reads.
func inPlaceStencilProgram() *Program {
	x := &Array{Name: "X", Type: "float", Extent: boxSet([2]int64{0, 1023})}
	st := &Statement{
		Name:      "S",
		Domain:    boxSet([2]int64{1, 1022}),
		Schedule:  identSched(1),
		TileLen:   1,
		NParallel: 1,
	}
	st.Accesses = []*Access{
		{Array: x, Stmt: st, Rel: indexAccess(1, []int{0}, nil), Write: true},
		{Array: x, Stmt: st, Rel: indexAccess(1, []int{0}, []int64{-1}), Read: true},
		{Array: x, Stmt: st, Rel: indexAccess(1, []int{0}, nil), Read: true},
		{Array: x, Stmt: st, Rel: indexAccess(1, []int{0}, []int64{1}), Read: true},
	}
	return &Program{
		Name:       "blur",
		Stmts:      []*Statement{st},
		Arrays:     []*Array{x},
		UntiledLen: 1,
	}
}

func TestCompileInPlaceStencilSyncs(t *testing.T) {
	kernels, err := inPlaceStencilProgram().Compile(stencilConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	k := kernels[0]
	px := placementFor(t, k, "X")
	if px.Tier != TierShared {
		t.Fatalf("X tier = %v, want shared", px.Tier)
	}
	if !px.Group.Read || !px.Group.Write {
		t.Errorf("merged group read/write = %v/%v, want true/true", px.Group.Read, px.Group.Write)
	}
	if len(px.Group.Refs) != 4 {
		t.Errorf("X group holds %d refs, want 4", len(px.Group.Refs))
	}
	if px.CopyIn.IsEmpty() || px.CopyOut.IsEmpty() {
		t.Errorf("read-write scratchpad group lacks a copy direction")
	}
	if !k.RequiresSync() {
		t.Errorf("read-write scratchpad does not force sync")
	}
}

// matmulProgram is the classic C[i][j] += A[i][k] * B[k][j] over
// 64x64x64, with i and j parallel.
func matmulProgram() *Program {
	a := &Array{Name: "A", Type: "float", Extent: boxSet([2]int64{0, 63}, [2]int64{0, 63})}
	bArr := &Array{Name: "B", Type: "float", Extent: boxSet([2]int64{0, 63}, [2]int64{0, 63})}
	c := &Array{Name: "C", Type: "float", Extent: boxSet([2]int64{0, 63}, [2]int64{0, 63})}
	st := &Statement{
		Name:      "S",
		Domain:    boxSet([2]int64{0, 63}, [2]int64{0, 63}, [2]int64{0, 63}),
		Schedule:  identSched(3),
		TileLen:   3,
		NParallel: 2,
	}
	st.Accesses = []*Access{
		{Array: c, Stmt: st, Rel: indexAccess(3, []int{0, 1}, nil), Read: true, Write: true},
		{Array: a, Stmt: st, Rel: indexAccess(3, []int{0, 2}, nil), Read: true},
		{Array: bArr, Stmt: st, Rel: indexAccess(3, []int{2, 1}, nil), Read: true},
	}
	return &Program{
		Name:       "matmul",
		Stmts:      []*Statement{st},
		Arrays:     []*Array{a, bArr, c},
		UntiledLen: 3,
	}
}

func TestCompileMatmul(t *testing.T) {
	kernels, err := matmulProgram().Compile(DefaultConfig())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	k := kernels[0]
	if k.Name() != "Matmul0" {
		t.Errorf("kernel name = %q, want Matmul0", k.Name())
	}
	if len(k.Grid) != 2 || len(k.Block) != 2 {
		t.Fatalf("launch geometry %v / %v, want two dims each", k.Grid, k.Block)
	}
	if k.Block[0] != 16 || k.Block[1] != 32 {
		t.Errorf("block = %v, want [16 32]", k.Block)
	}

	// A and B have reuse across threads but no per-thread ownership:
	// one 32x32 scratchpad tile each.
	for _, name := range []string{"A", "B"} {
		p := placementFor(t, k, name)
		if p.Tier != TierShared {
			t.Errorf("%s tier = %v, want shared", name, p.Tier)
			continue
		}
		for d, bd := range p.Bounds {
			if bd.Size != 32 {
				t.Errorf("%s dim %d tile size = %d, want 32", name, d, bd.Size)
			}
		}
	}

	// Each thread owns a fixed slice of C: registers, strided by the
	// block extent over the row dimension.
	pc := placementFor(t, k, "C")
	if pc.Tier != TierPrivate {
		t.Fatalf("C tier = %v, want private", pc.Tier)
	}
	if pc.Name != "priv_C" {
		t.Errorf("C buffer name = %q, want priv_C", pc.Name)
	}
	if got := []int64{pc.Bounds[0].Size, pc.Bounds[1].Size}; got[0] != 2 || got[1] != 1 {
		t.Errorf("C private sizes = %v, want [2 1]", got)
	}
	if pc.Bounds[0].Stride != 16 {
		t.Errorf("C row stride = %d, want 16", pc.Bounds[0].Stride)
	}
}

func TestCompileMatmulUnroll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unroll = true
	kernels, err := matmulProgram().Compile(cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	k := kernels[0]
	// The two register-index loops move innermost; everything else
	// (5 shared loops, 2 thread ids, the k point loop) stays in front.
	if k.FirstUnroll != 8 {
		t.Errorf("first unroll = %d, want 8", k.FirstUnroll)
	}
}

func TestCompileBandMismatch(t *testing.T) {
	prog := stencilProgram()
	other := &Statement{
		Name:      "T",
		Domain:    boxSet([2]int64{0, 7}),
		Schedule:  identSched(1),
		TileLen:   1,
		NParallel: 1,
	}
	other.TileLen = 0
	prog.Stmts = append(prog.Stmts, other)

	_, err := prog.Compile(stencilConfig())
	if err == nil {
		t.Fatalf("mismatched bands compiled")
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Errorf("error %T is not a CompileError", err)
	}
}

func TestCompileEmptyProgram(t *testing.T) {
	if _, err := (&Program{Name: "void"}).Compile(DefaultConfig()); err == nil {
		t.Errorf("empty program compiled")
	}
}
