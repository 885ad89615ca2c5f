// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/spadflow/spadflow/dims"
)

// Tile is a sub-region of a parent tensor along one or more axes. Dims
// holds the tile's own extents; the offsets locate it inside the parent.
//
// The tiles of one tensor, in order, exactly cover the parent extents along
// the tiled axes with no gaps or overlaps.
type Tile struct {
	dims.Dims

	// Images is the batch span of the tile (1 for channel-wise plans).
	Images int

	ImageOffset   int
	RowOffset     int
	ChannelOffset int
}

// Elems returns the element count of the tile across its batch span.
func (t Tile) Elems() int { return t.Images * t.PaddedSize() }

// String pretty-prints the tile with its offsets.
func (t Tile) String() string {
	return fmt.Sprintf("%dx%s@(n=%d,h=%d,c=%d)",
		t.Images, t.Dims, t.ImageOffset, t.RowOffset, t.ChannelOffset)
}

// TiledTensor is the ordered tile decomposition of one tensor, plus the
// pure coordinate→linear-index function over the per-axis tile counts.
//
// Tile counts are fixed once planned and never change during iteration.
type TiledTensor struct {
	parent dims.Dims
	batch  int

	// counts are the tile counts along batch, row, column and channel.
	// Column tiling is never produced, so counts[2] == 1.
	counts [4]int

	tiles []Tile
}

// Parent returns the extents of the tensor that was tiled.
func (t *TiledTensor) Parent() dims.Dims { return t.parent }

// Batch returns the batch size of the tiled tensor.
func (t *TiledTensor) Batch() int { return t.batch }

// TileCount returns the total number of tiles.
func (t *TiledTensor) TileCount() int { return len(t.tiles) }

// AxisTiles returns the tile counts along (batch, row, column, channel).
func (t *TiledTensor) AxisTiles() (n, h, w, c int) {
	return t.counts[0], t.counts[1], t.counts[2], t.counts[3]
}

// Index maps a tile coordinate to its linear tile index. It is a bijection
// onto [0, TileCount): every linear index is produced by exactly one
// coordinate tuple within the per-axis tile counts. It panics on
// out-of-bounds coordinates.
func (t *TiledTensor) Index(n, h, w, c int) int {
	if n < 0 || n >= t.counts[0] || h < 0 || h >= t.counts[1] ||
		w < 0 || w >= t.counts[2] || c < 0 || c >= t.counts[3] {
		exceptions.Panicf("plan.TiledTensor.Index(%d, %d, %d, %d): out of bounds for tile counts %v",
			n, h, w, c, t.counts)
	}
	return ((n*t.counts[1]+h)*t.counts[2]+w)*t.counts[3] + c
}

// Tile returns the descriptor of the tile with the given linear index.
func (t *TiledTensor) Tile(i int) Tile {
	if i < 0 || i >= len(t.tiles) {
		exceptions.Panicf("plan.TiledTensor.Tile(%d): out of range [0, %d)", i, len(t.tiles))
	}
	return t.tiles[i]
}

// Tiles returns all tile descriptors in linear-index order.
func (t *TiledTensor) Tiles() []Tile { return t.tiles }

// Gather materializes tile i's data from the parent host buffer into dst,
// packed contiguously (image-major, then channel, then row). dst must hold
// at least Tile(i).Elems() elements. It returns the element count copied.
func (t *TiledTensor) Gather(host []float32, i int, dst []float32) int {
	tile := t.Tile(i)
	if len(dst) < tile.Elems() {
		exceptions.Panicf("plan.TiledTensor.Gather: dst holds %d elements, tile %s needs %d",
			len(dst), tile, tile.Elems())
	}
	n := 0
	rowLen := tile.PaddedCols()
	for img := 0; img < tile.Images; img++ {
		for ch := 0; ch < tile.Channels; ch++ {
			for row := 0; row < tile.Rows; row++ {
				src := t.parent.Offset(tile.ImageOffset+img, tile.ChannelOffset+ch, tile.RowOffset+row, 0)
				copy(dst[n:n+rowLen], host[src:src+rowLen])
				n += rowLen
			}
		}
	}
	return n
}

// Scatter writes tile i's packed data from src back into the parent host
// buffer, the inverse of Gather. It returns the element count copied.
func (t *TiledTensor) Scatter(src []float32, i int, host []float32) int {
	tile := t.Tile(i)
	if len(src) < tile.Elems() {
		exceptions.Panicf("plan.TiledTensor.Scatter: src holds %d elements, tile %s needs %d",
			len(src), tile, tile.Elems())
	}
	n := 0
	rowLen := tile.PaddedCols()
	for img := 0; img < tile.Images; img++ {
		for ch := 0; ch < tile.Channels; ch++ {
			for row := 0; row < tile.Rows; row++ {
				dst := t.parent.Offset(tile.ImageOffset+img, tile.ChannelOffset+ch, tile.RowOffset+row, 0)
				copy(host[dst:dst+rowLen], src[n:n+rowLen])
				n += rowLen
			}
		}
	}
	return n
}
