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
	"reflect"
	"strings"
	"testing"
)

func TestDefaultSizes(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.tileSizes(3); !reflect.DeepEqual(got, []int64{32, 32, 32}) {
		t.Errorf("tileSizes(3) = %v", got)
	}
	if got := cfg.blockSizes(1); !reflect.DeepEqual(got, []int64{512}) {
		t.Errorf("blockSizes(1) = %v", got)
	}
	if got := cfg.blockSizes(2); !reflect.DeepEqual(got, []int64{16, 32}) {
		t.Errorf("blockSizes(2) = %v", got)
	}
	if got := cfg.blockSizes(3); !reflect.DeepEqual(got, []int64{4, 4, 32}) {
		t.Errorf("blockSizes(3) = %v", got)
	}
	if got := cfg.gridSizes(1); !reflect.DeepEqual(got, []int64{65536}) {
		t.Errorf("gridSizes(1) = %v", got)
	}
	if got := cfg.gridSizes(2); !reflect.DeepEqual(got, []int64{256, 256}) {
		t.Errorf("gridSizes(2) = %v", got)
	}
}

func TestSizeOverrides(t *testing.T) {
	cfg := Config{TileSize: 8, Tile: []int64{64}, Block: []int64{128}}
	if got := cfg.tileSizes(2); !reflect.DeepEqual(got, []int64{64, 8}) {
		t.Errorf("tileSizes(2) = %v, want [64 8]", got)
	}
	if got := cfg.blockSizes(2); !reflect.DeepEqual(got, []int64{128, 32}) {
		t.Errorf("blockSizes(2) = %v, want [128 32]", got)
	}
}

func TestParseSizes(t *testing.T) {
	in := `# tuned for the 1d stencil
tile 64

grid 1024
block 64
`
	cfg, err := ParseSizes(strings.NewReader(in), DefaultConfig())
	if err != nil {
		t.Fatalf("ParseSizes: %v", err)
	}
	if !reflect.DeepEqual(cfg.Tile, []int64{64}) {
		t.Errorf("tile = %v, want [64]", cfg.Tile)
	}
	if !reflect.DeepEqual(cfg.Grid, []int64{1024}) {
		t.Errorf("grid = %v, want [1024]", cfg.Grid)
	}
	if !reflect.DeepEqual(cfg.Block, []int64{64}) {
		t.Errorf("block = %v, want [64]", cfg.Block)
	}
}

func TestParseSizesRejectsBadInput(t *testing.T) {
	for _, in := range []string{
		"tile 0",
		"tile -4",
		"tile x",
		"warp 32",
	} {
		if _, err := ParseSizes(strings.NewReader(in), DefaultConfig()); err == nil {
			t.Errorf("ParseSizes(%q) accepted", in)
		}
	}
}
