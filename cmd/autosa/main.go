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

// Command autosa runs the hardware-hierarchy placement pipeline on one
// of the built-in scenarios and prints the decisions a code generator
// would consume: the launch geometry and, per array reference group,
// the memory tier, local buffer shape and copy nesting level.
//
// Usage:
//
//	autosa [-sizes file] [-wrap] [-unroll] [scenario]
//
// Scenarios: matmul (default), stencil, scale.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/arash1902/AutoSA/aff"
	"github.com/arash1902/AutoSA/gpu"
)

var (
	sizesFile = flag.String("sizes", "", "file with tile/grid/block size overrides")
	wrap      = flag.Bool("wrap", false, "distribute iterations round-robin instead of in chunks")
	unroll    = flag.Bool("unroll", false, "move register-index loops innermost for unrolling")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("autosa: ")
	flag.Parse()

	scenario := "matmul"
	if flag.NArg() > 0 {
		scenario = flag.Arg(0)
	}
	prog, ok := scenarios[scenario]
	if !ok {
		log.Fatalf("unknown scenario %q (have matmul, stencil, scale)", scenario)
	}

	cfg := gpu.DefaultConfig()
	cfg.Wrap = *wrap
	cfg.Unroll = *unroll
	if *sizesFile != "" {
		f, err := os.Open(*sizesFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg, err = gpu.ParseSizes(f, cfg)
		f.Close()
		if err != nil {
			log.Fatal(err)
		}
	}

	kernels, err := prog().Compile(cfg)
	if err != nil {
		log.Fatal(err)
	}
	for _, k := range kernels {
		report(k)
	}
}

func report(k *gpu.Kernel) {
	fmt.Printf("kernel %s: grid %v block %v", k.Name(), k.Grid, k.Block)
	if k.RequiresSync() {
		fmt.Printf(" sync")
	}
	if k.FirstUnroll >= 0 {
		fmt.Printf(" unroll@%d", k.FirstUnroll)
	}
	fmt.Println()
	for _, p := range k.Placements {
		fmt.Printf("  %-8s %-7s", p.Array.Name, p.Tier)
		if p.Tier == gpu.TierGlobal {
			fmt.Println()
			continue
		}
		dims := make([]string, len(p.Bounds))
		for i, b := range p.Bounds {
			dims[i] = fmt.Sprintf("%d", b.Size)
			if b.Strided() {
				dims[i] += fmt.Sprintf("/%d", b.Stride)
			}
		}
		lbs := make([]string, len(p.Bounds))
		for i, b := range p.Bounds {
			lbs[i] = b.LB.String()
		}
		fmt.Printf(" %s[%s] lb (%s) copies@%d\n",
			p.Name, strings.Join(dims, "]["), strings.Join(lbs, ", "), p.LastShared)
	}
}

var scenarios = map[string]func() *gpu.Program{
	"matmul":  matmul,
	"stencil": stencil,
	"scale":   scale,
}

func box(bounds ...[2]int64) aff.Set {
	s := aff.Universe(aff.SetSpace(nil, len(bounds)))
	for i, lh := range bounds {
		s.Pieces[0].AddInequality(-lh[0], aff.T(aff.OutDim, i, 1))
		s.Pieces[0].AddInequality(lh[1], aff.T(aff.OutDim, i, -1))
	}
	return s
}

func identity(n int) aff.Map {
	m := aff.Universe(aff.NewSpace(nil, n, n))
	for i := 0; i < n; i++ {
		m.Pieces[0].AddEquality(0, aff.T(aff.InDim, i, 1), aff.T(aff.OutDim, i, -1))
	}
	return m
}

// access maps iteration dims to array indices with a constant offset
// each: access(3, []int{0, 2}, 0, -1) is X[i0][i2-1].
func access(n int, dims []int, offs ...int64) aff.Map {
	m := aff.Universe(aff.NewSpace(nil, n, len(dims)))
	for o, d := range dims {
		var off int64
		if o < len(offs) {
			off = offs[o]
		}
		m.Pieces[0].AddEquality(off, aff.T(aff.InDim, d, 1), aff.T(aff.OutDim, o, -1))
	}
	return m
}

// matmul is C[i][j] += A[i][k] * B[k][j] over 1024^3 with i, j parallel.
func matmul() *gpu.Program {
	n := int64(1023)
	a := &gpu.Array{Name: "A", Type: "float", Extent: box([2]int64{0, n}, [2]int64{0, n})}
	b := &gpu.Array{Name: "B", Type: "float", Extent: box([2]int64{0, n}, [2]int64{0, n})}
	c := &gpu.Array{Name: "C", Type: "float", Extent: box([2]int64{0, n}, [2]int64{0, n})}
	st := &gpu.Statement{
		Name:      "S",
		Domain:    box([2]int64{0, n}, [2]int64{0, n}, [2]int64{0, n}),
		Schedule:  identity(3),
		TileLen:   3,
		NParallel: 2,
	}
	st.Accesses = []*gpu.Access{
		{Array: c, Stmt: st, Rel: access(3, []int{0, 1}), Read: true, Write: true},
		{Array: a, Stmt: st, Rel: access(3, []int{0, 2}), Read: true},
		{Array: b, Stmt: st, Rel: access(3, []int{2, 1}), Read: true},
	}
	return &gpu.Program{
		Name:       "matmul",
		Stmts:      []*gpu.Statement{st},
		Arrays:     []*gpu.Array{a, b, c},
		UntiledLen: 3,
	}
}

// stencil is A[i] = f(B[i-1], B[i], B[i+1]) over a million elements.
func stencil() *gpu.Program {
	n := int64(1 << 20)
	a := &gpu.Array{Name: "A", Type: "float", Extent: box([2]int64{0, n - 1})}
	b := &gpu.Array{Name: "B", Type: "float", Extent: box([2]int64{0, n - 1})}
	st := &gpu.Statement{
		Name:      "S",
		Domain:    box([2]int64{1, n - 2}),
		Schedule:  identity(1),
		TileLen:   1,
		NParallel: 1,
	}
	st.Accesses = []*gpu.Access{
		{Array: a, Stmt: st, Rel: access(1, []int{0}), Write: true},
		{Array: b, Stmt: st, Rel: access(1, []int{0}, -1), Read: true},
		{Array: b, Stmt: st, Rel: access(1, []int{0}), Read: true},
		{Array: b, Stmt: st, Rel: access(1, []int{0}, 1), Read: true},
	}
	return &gpu.Program{
		Name:       "stencil",
		Stmts:      []*gpu.Statement{st},
		Arrays:     []*gpu.Array{a, b},
		UntiledLen: 1,
	}
}

// scale multiplies a 4096x4096 array in place: every element is touched
// by exactly one thread, so nothing leaves global memory.
func scale() *gpu.Program {
	n := int64(4095)
	a := &gpu.Array{Name: "A", Type: "float", Extent: box([2]int64{0, n}, [2]int64{0, n})}
	st := &gpu.Statement{
		Name:      "S",
		Domain:    box([2]int64{0, n}, [2]int64{0, n}),
		Schedule:  identity(2),
		TileLen:   2,
		NParallel: 2,
	}
	st.Accesses = []*gpu.Access{
		{Array: a, Stmt: st, Rel: access(2, []int{0, 1}), Read: true, Write: true},
	}
	return &gpu.Program{
		Name:       "scale",
		Stmts:      []*gpu.Statement{st},
		Arrays:     []*gpu.Array{a},
		UntiledLen: 2,
	}
}
