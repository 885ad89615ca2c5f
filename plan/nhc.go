// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package plan

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/accel"
	"github.com/spadflow/spadflow/dims"
	"github.com/spadflow/spadflow/internal/mathx"
)

// span is a contiguous range along one axis.
type span struct {
	off, n int
}

// greedySplit covers total with spans of up to max units; only the last
// span may be smaller.
func greedySplit(total, max int) []span {
	splits := make([]span, 0, mathx.CeilDiv(total, max))
	for off := 0; off < total; off += max {
		splits = append(splits, span{off: off, n: mathx.Min(max, total-off)})
	}
	return splits
}

// balancedSplit covers total with exactly parts spans whose sizes differ by
// at most one. Requires total >= parts.
func balancedSplit(total, parts int) []span {
	splits := make([]span, 0, parts)
	base, rem := total/parts, total%parts
	off := 0
	for i := 0; i < parts; i++ {
		n := base
		if i < rem {
			n++
		}
		splits = append(splits, span{off: off, n: n})
		off += n
	}
	return splits
}

// tensorSplit is the per-axis decomposition of one tensor before tiles are
// laid out: batch groups, row spans and channel spans.
type tensorSplit struct {
	batches []span
	rows    []span
	chans   []span
}

func (s tensorSplit) counts() [4]int {
	return [4]int{len(s.batches), len(s.rows), 1, len(s.chans)}
}

// splitInput decomposes the input tensor along batch, then rows, then
// channels, in that order, so that one tile fits a scratchpad. Columns are
// never split.
func splitInput(batch int, d dims.Dims, p accel.MemoryProfile) (tensorSplit, error) {
	imageBytes := d.ByteSize(p.ElemBytes)
	if imageBytes > p.UmemBytes {
		return tensorSplit{}, errors.Wrapf(ErrCapacityExceeded,
			"single input image %s (%s) exceeds the unified memory (%s)",
			d, humanize.IBytes(uint64(imageBytes)), humanize.IBytes(uint64(p.UmemBytes)))
	}

	wholeRows := []span{{0, d.Rows}}
	wholeChans := []span{{0, d.Channels}}

	// Batch axis first: group as many whole images as fit.
	if imageBytes <= p.SpadBytes {
		return tensorSplit{
			batches: greedySplit(batch, p.SpadBytes/imageBytes),
			rows:    wholeRows,
			chans:   wholeChans,
		}, nil
	}

	// One image per tile; try row tiling with full channel depth.
	singleImages := greedySplit(batch, 1)
	rowStripBytes := d.Channels * d.PaddedCols() * p.ElemBytes
	if rowStripBytes <= p.SpadBytes {
		return tensorSplit{
			batches: singleImages,
			rows:    greedySplit(d.Rows, p.SpadBytes/rowStripBytes),
			chans:   wholeChans,
		}, nil
	}

	// Channel tiling with full rows per channel.
	chanPlaneBytes := d.PlaneByteSize(p.ElemBytes)
	if chanPlaneBytes <= p.SpadBytes {
		return tensorSplit{
			batches: singleImages,
			rows:    wholeRows,
			chans:   greedySplit(d.Channels, p.SpadBytes/chanPlaneBytes),
		}, nil
	}

	// A single channel's 2D plane does not fit; column tiling would be
	// needed, which is not supported.
	return tensorSplit{}, errors.Wrapf(ErrUnsupportedTiling,
		"single channel plane of %s (%s) exceeds the scratchpad (%s); column tiling is not supported",
		d, humanize.IBytes(uint64(chanPlaneBytes)), humanize.IBytes(uint64(p.SpadBytes)))
}

// splitOutput derives the output decomposition from the input's: batch and
// row tile counts must match tile for tile, so the iteration cursors of the
// scheduler line up. Channel granularities may diverge only when the output
// needs no channel tiling at all.
func splitOutput(in tensorSplit, inDims, outDims dims.Dims, p accel.MemoryProfile) (tensorSplit, error) {
	out := tensorSplit{batches: in.batches}

	hTiles := len(in.rows)
	if hTiles == 1 {
		out.rows = []span{{0, outDims.Rows}}
	} else {
		if outDims.Rows < hTiles {
			return tensorSplit{}, errors.Wrapf(ErrUnsupportedTiling,
				"output has %d rows but the input needs %d row tiles", outDims.Rows, hTiles)
		}
		out.rows = balancedSplit(outDims.Rows, hTiles)
	}

	// Largest batch/row span the output tiles must cover.
	maxImages, maxRows := 0, 0
	for _, b := range out.batches {
		if b.n > maxImages {
			maxImages = b.n
		}
	}
	for _, r := range out.rows {
		if r.n > maxRows {
			maxRows = r.n
		}
	}

	wholeBytes := maxImages * maxRows * outDims.PaddedCols() * outDims.Channels * p.ElemBytes
	if wholeBytes <= p.SpadBytes {
		// No output channel tiling needed; the input may still be finer.
		out.chans = []span{{0, outDims.Channels}}
		return out, nil
	}

	if len(in.chans) > 1 && outDims.Channels == inDims.Channels {
		// Reuse the input's channel split so the cursors advance in
		// lockstep.
		out.chans = append([]span(nil), in.chans...)
		maxChans := 0
		for _, c := range out.chans {
			if c.n > maxChans {
				maxChans = c.n
			}
		}
		tileBytes := maxImages * maxRows * outDims.PaddedCols() * maxChans * p.ElemBytes
		if tileBytes > p.SpadBytes {
			return tensorSplit{}, errors.Wrapf(ErrUnsupportedTiling,
				"output tile (%s) exceeds the scratchpad even with the input's channel split",
				humanize.IBytes(uint64(tileBytes)))
		}
		return out, nil
	}

	return tensorSplit{}, errors.Wrapf(ErrUnsupportedTiling,
		"output needs channel tiling (%s per tile) but cannot share the input's channel granularity",
		humanize.IBytes(uint64(wholeBytes)))
}

// layout materializes a tensorSplit into the ordered tile sequence of a
// TiledTensor, batch-major, then rows, then channels.
func layout(d dims.Dims, batch int, s tensorSplit) *TiledTensor {
	t := &TiledTensor{
		parent: d,
		batch:  batch,
		counts: s.counts(),
	}
	t.tiles = make([]Tile, 0, len(s.batches)*len(s.rows)*len(s.chans))
	for _, b := range s.batches {
		for _, r := range s.rows {
			for _, c := range s.chans {
				t.tiles = append(t.tiles, Tile{
					Dims: dims.Dims{
						Rows:     r.n,
						Cols:     d.Cols,
						Channels: c.n,
						AlignPad: d.AlignPad,
					},
					Images:        b.n,
					ImageOffset:   b.off,
					RowOffset:     r.off,
					ChannelOffset: c.off,
				})
			}
		}
	}
	return t
}

// PlanNHC tiles the input and output tensors of a generic tensor operator
// along batch, row and channel axes, in that declared layout order; column
// tiling is never produced.
//
// The returned decompositions have matching batch and row tile counts. The
// channel granularities may differ only when the output requires no channel
// tiling at all; any other divergence fails with ErrUnsupportedTiling.
// A single input image exceeding the unified memory fails with
// ErrCapacityExceeded before any tile is produced.
func PlanNHC(batch int, in, out dims.Dims, p accel.MemoryProfile) (*TiledTensor, *TiledTensor, error) {
	inSplit, err := splitInput(batch, in, p)
	if err != nil {
		return nil, nil, err
	}
	outSplit, err := splitOutput(inSplit, in, out, p)
	if err != nil {
		return nil, nil, err
	}
	inT := layout(in, batch, inSplit)
	outT := layout(out, batch, outSplit)
	klog.V(1).Infof("NHC plan: input %s -> %d tiles %v, output %s -> %d tiles %v",
		in, inT.TileCount(), inT.counts, out, outT.TileCount(), outT.counts)
	return inT, outT, nil
}
