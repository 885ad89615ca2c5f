// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spadflow/spadflow/dims"
)

func TestTiledTensorIndexBijection(t *testing.T) {
	// 2 batch tiles x 4 row tiles x 1 x 1.
	in := dims.Make(64, 64, 32, 8)
	out := dims.Make(32, 32, 32, 8)
	inT, _, err := PlanNHC(2, in, out, testProfile)
	require.NoError(t, err)

	n, h, w, c := inT.AxisTiles()
	require.Equal(t, n*h*w*c, inT.TileCount())

	// Every linear index in [0, TileCount) is produced by exactly one
	// coordinate tuple within the per-axis bounds.
	seen := make(map[int]int)
	for ni := 0; ni < n; ni++ {
		for hi := 0; hi < h; hi++ {
			for wi := 0; wi < w; wi++ {
				for ci := 0; ci < c; ci++ {
					idx := inT.Index(ni, hi, wi, ci)
					require.GreaterOrEqual(t, idx, 0)
					require.Less(t, idx, inT.TileCount())
					seen[idx]++
				}
			}
		}
	}
	require.Len(t, seen, inT.TileCount())
	for idx, count := range seen {
		require.Equal(t, 1, count, "index %d", idx)
	}

	require.Panics(t, func() { inT.Index(n, 0, 0, 0) })
	require.Panics(t, func() { inT.Index(0, -1, 0, 0) })
}

func TestTiledTensorCoverage(t *testing.T) {
	in := dims.Make(2, 4096, 16, 8)
	out := dims.Make(1, 2048, 16, 8)
	inT, _, err := PlanNHC(1, in, out, testProfile)
	require.NoError(t, err)

	// The tiles cover the channel axis exactly, with no gaps or overlaps.
	covered := make([]bool, in.Channels)
	for _, tile := range inT.Tiles() {
		for ch := tile.ChannelOffset; ch < tile.ChannelOffset+tile.Channels; ch++ {
			require.False(t, covered[ch], "channel %d covered twice", ch)
			covered[ch] = true
		}
	}
	for ch, ok := range covered {
		require.True(t, ok, "channel %d not covered", ch)
	}
}

func TestTiledTensorGatherScatter(t *testing.T) {
	in := dims.Make(2, 4096, 16, 8)
	out := dims.Make(1, 2048, 16, 8)
	inT, _, err := PlanNHC(1, in, out, testProfile)
	require.NoError(t, err)

	host := make([]float32, in.PaddedSize())
	for i := range host {
		host[i] = float32(i)
	}

	// Gathering every tile and scattering it back into a fresh buffer
	// reconstructs the original exactly.
	rebuilt := make([]float32, len(host))
	stage := make([]float32, testProfile.SpadElems())
	for i := 0; i < inT.TileCount(); i++ {
		n := inT.Gather(host, i, stage)
		require.Equal(t, inT.Tile(i).Elems(), n)
		require.Equal(t, n, inT.Scatter(stage, i, rebuilt))
	}
	require.Equal(t, host, rebuilt)

	// The first element of tile 1 is the start of its channel range.
	tile := inT.Tile(1)
	inT.Gather(host, 1, stage)
	require.Equal(t, host[in.Offset(0, tile.ChannelOffset, 0, 0)], stage[0])

	require.Panics(t, func() { inT.Gather(host, 0, make([]float32, 1)) })
}
