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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Default sizes used when the configuration leaves them unset.
const (
	DefaultTileSize = 32

	defaultBlock1D = 512
	defaultGrid1D  = 65536
	defaultGrid2D  = 256
)

// Config selects the hardware-hierarchy mapping policy. Sizes are in
// schedule order (outermost first).
type Config struct {
	// TileSize is the default tile size for every tiled loop; Tile
	// overrides it per position when non-empty.
	TileSize int64
	Tile     []int64

	// Grid and Block give the per-dimension extent of the block grid
	// and of the threads within a block. Empty entries fall back to
	// the defaults of DefaultConfig.
	Grid  []int64
	Block []int64

	// Wrap distributes iterations round-robin across parallel units
	// instead of in contiguous chunks.
	Wrap bool

	// ScaleTileLoops multiplies tile-loop coordinates by their tile
	// (and, without Wrap, grid/block) factor so that generated loops
	// step over the original iteration values.
	ScaleTileLoops bool

	// Unroll requests that loops feeding private accesses be moved
	// innermost and marked for unrolling.
	Unroll bool
}

// DefaultConfig mirrors the historical defaults of the CUDA backend.
func DefaultConfig() Config {
	return Config{TileSize: DefaultTileSize}
}

// tileSizes returns the per-loop tile sizes for a band of tileLen loops.
func (c Config) tileSizes(tileLen int) []int64 {
	sizes := make([]int64, tileLen)
	for i := range sizes {
		sizes[i] = c.TileSize
		if sizes[i] <= 0 {
			sizes[i] = DefaultTileSize
		}
		if i < len(c.Tile) && c.Tile[i] > 0 {
			sizes[i] = c.Tile[i]
		}
	}
	return sizes
}

// blockSizes returns the thread-block extents for nBlock distributed
// dimensions.
func (c Config) blockSizes(nBlock int) []int64 {
	sizes := make([]int64, nBlock)
	var def []int64
	switch nBlock {
	case 0:
	case 1:
		def = []int64{defaultBlock1D}
	case 2:
		def = []int64{16, 32}
	default:
		def = []int64{4, 4, 32}
	}
	for i := range sizes {
		sizes[i] = def[i]
		if i < len(c.Block) && c.Block[i] > 0 {
			sizes[i] = c.Block[i]
		}
	}
	return sizes
}

// gridSizes returns the grid extents for nGrid distributed dimensions.
func (c Config) gridSizes(nGrid int) []int64 {
	sizes := make([]int64, nGrid)
	for i := range sizes {
		if nGrid == 1 {
			sizes[i] = defaultGrid1D
		} else {
			sizes[i] = defaultGrid2D
		}
		if i < len(c.Grid) && c.Grid[i] > 0 {
			sizes[i] = c.Grid[i]
		}
	}
	return sizes
}

// ParseSizes reads a sizes file and overlays it on cfg. Each line is a
// keyword followed by integer sizes in schedule order:
//
//	tile 32 32
//	grid 256 256
//	block 16 16
//
// Blank lines and lines starting with '#' are skipped.
func ParseSizes(r io.Reader, cfg Config) (Config, error) {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		sizes := make([]int64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil || v <= 0 {
				return cfg, fmt.Errorf("gpu: sizes line %d: bad size %q", line, f)
			}
			sizes = append(sizes, v)
		}
		switch fields[0] {
		case "tile":
			cfg.Tile = sizes
		case "grid":
			cfg.Grid = sizes
		case "block":
			cfg.Block = sizes
		default:
			return cfg, fmt.Errorf("gpu: sizes line %d: unknown keyword %q", line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("gpu: reading sizes: %w", err)
	}
	return cfg, nil
}
