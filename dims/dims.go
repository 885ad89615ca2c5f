// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package dims defines Dims, the extents descriptor used for every tensor
// handled by the planner: layer inputs, outputs, weights and the tiles they
// are split into.
//
// A Dims describes a channels × rows × cols region plus the alignment
// padding appended to each row so that rows start on the accelerator's
// vector boundary. All sizes derive from it: PlaneSize is one channel's 2D
// plane, PaddedSize the whole region, ByteSize the same in bytes.
//
// Dims also provides the strided offset helpers (RowStride, ChannelStride,
// ImageStride, Offset) used to address sub-regions of a host buffer laid
// out as image × channel × row × padded-row. All host indexing in this
// repository goes through these helpers.
//
// ## Glossary
//
//   - Channels: the depth of the region. For weights this is the kernel
//     depth, for activations the feature-map count.
//   - AlignPad: elements appended to each row so (Cols+AlignPad) is a
//     multiple of the configured alignment unit.
//   - Plane: the rows × padded-cols extent of a single channel.
package dims

import (
	"fmt"

	"github.com/gomlx/exceptions"
)

// Dims describes the extents of a tensor region: rows, columns, channel
// count and per-row alignment padding.
//
// Use Make to build one with the padding derived from an alignment unit.
type Dims struct {
	Rows, Cols, Channels int

	// AlignPad is the number of zero elements appended to each row.
	// Invariant: AlignPad >= 0 and (Cols+AlignPad) is a multiple of the
	// alignment unit the Dims was created with.
	AlignPad int
}

// CalcPadding returns the padding needed to round cols up to a multiple of
// the alignment unit. An alignment of 0 or 1 means no padding.
func CalcPadding(cols, alignment int) int {
	if alignment <= 1 {
		return 0
	}
	if rem := cols % alignment; rem != 0 {
		return alignment - rem
	}
	return 0
}

// Make returns a Dims with AlignPad derived from the alignment unit.
// It panics if any extent is not positive.
func Make(rows, cols, channels, alignment int) Dims {
	if rows <= 0 || cols <= 0 || channels <= 0 {
		exceptions.Panicf("dims.Make(%d, %d, %d, alignment=%d): extents must be > 0",
			rows, cols, channels, alignment)
	}
	return Dims{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		AlignPad: CalcPadding(cols, alignment),
	}
}

// PaddedCols returns Cols+AlignPad, the stride of one stored row.
func (d Dims) PaddedCols() int { return d.Cols + d.AlignPad }

// PlaneSize returns the element count of one channel's 2D plane,
// including row padding.
func (d Dims) PlaneSize() int { return d.Rows * d.PaddedCols() }

// PaddedSize returns the total element count of the region:
// Channels × Rows × (Cols+AlignPad).
func (d Dims) PaddedSize() int { return d.Channels * d.PlaneSize() }

// ByteSize returns PaddedSize in bytes for the given element width.
func (d Dims) ByteSize(elemBytes int) int { return d.PaddedSize() * elemBytes }

// PlaneByteSize returns PlaneSize in bytes for the given element width.
func (d Dims) PlaneByteSize(elemBytes int) int { return d.PlaneSize() * elemBytes }

// RowStride returns the element distance between consecutive rows.
func (d Dims) RowStride() int { return d.PaddedCols() }

// ChannelStride returns the element distance between consecutive channels.
func (d Dims) ChannelStride() int { return d.PlaneSize() }

// ImageStride returns the element distance between consecutive images of a
// batch stored back to back.
func (d Dims) ImageStride() int { return d.PaddedSize() }

// Offset returns the linear element offset of (img, ch, row, col) in a host
// buffer holding a batch of regions with these extents. It panics on
// out-of-bounds coordinates, like a slice index would.
func (d Dims) Offset(img, ch, row, col int) int {
	if ch < 0 || ch >= d.Channels || row < 0 || row >= d.Rows ||
		col < 0 || col >= d.PaddedCols() || img < 0 {
		exceptions.Panicf("dims.Offset(%d, %d, %d, %d) out-of-bounds for %s",
			img, ch, row, col, d)
	}
	return img*d.ImageStride() + ch*d.ChannelStride() + row*d.RowStride() + col
}

// WithChannels returns a copy of d spanning only the given channel count.
// Rows, Cols and AlignPad are unchanged.
func (d Dims) WithChannels(channels int) Dims {
	if channels <= 0 || channels > d.Channels {
		exceptions.Panicf("dims.WithChannels(%d): out of range for %s", channels, d)
	}
	d.Channels = channels
	return d
}

// Equal compares all four extents.
func (d Dims) Equal(o Dims) bool { return d == o }

// String implements fmt.Stringer, pretty-prints the extents.
func (d Dims) String() string {
	if d.AlignPad == 0 {
		return fmt.Sprintf("[%dx%dx%d]", d.Channels, d.Rows, d.Cols)
	}
	return fmt.Sprintf("[%dx%dx%d+%d]", d.Channels, d.Rows, d.Cols, d.AlignPad)
}
