// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package plan decomposes a layer's tensors into tiles that fit the
// accelerator's memory budget, and decides how the partial results of a
// tile-decomposed computation are reduced back into one.
//
// Two planners are provided: PlanChannelwise splits a convolution-like
// problem along input channels, PlanNHC tiles a generic tensor operator
// along batch, row and channel axes (columns are never tiled). Both fail
// fast with the sentinel errors of this package when no supported plan
// exists; no partial or degraded plan is ever returned.
package plan

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/accel"
	"github.com/spadflow/spadflow/dims"
	"github.com/spadflow/spadflow/internal/mathx"
	"github.com/spadflow/spadflow/layers"
)

// ChannelPlan is an ordered sequence of channel-wise iterations for one
// convolution-like layer. Each iteration covers a contiguous channel range
// of the input; together they cover the full channel depth exactly once.
type ChannelPlan struct {
	// Iterations are the per-iteration tile extents, in execution order.
	// Only the last tile may span fewer than MaxChannelsPerIter channels.
	Iterations []Tile

	maxChannelsPerIter int
}

// PlanChannelwise divides a convolution-like layer's work along input
// channels so that the unreduced output of one output unit fits a
// scratchpad.
//
// It fails with ErrCapacityExceeded when a single input image exceeds the
// unified memory, and with ErrUnsupportedTiling when not even two channels
// of unreduced output fit a scratchpad (splitting a single channel's 2D
// plane is not supported).
func PlanChannelwise(layer layers.Layer, p accel.MemoryProfile) (*ChannelPlan, error) {
	inputBytes := layer.Inputs.ByteSize(p.ElemBytes)
	if inputBytes > p.UmemBytes {
		return nil, errors.Wrapf(ErrCapacityExceeded,
			"single input image %s (%s) exceeds the unified memory (%s)",
			layer.Inputs, humanize.IBytes(uint64(inputBytes)), humanize.IBytes(uint64(p.UmemBytes)))
	}

	// Unreduced output for a single output unit: one 2D plane per input
	// channel.
	channels := layer.Inputs.Channels
	unreducedBytes := layer.Outputs.PlaneByteSize(p.ElemBytes) * channels
	if unreducedBytes <= p.SpadBytes {
		klog.V(1).Infof("channelwise plan %s: entire problem fits into local memory", layer.Inputs)
		return &ChannelPlan{
			Iterations: []Tile{{
				Dims:   dims.Make(layer.Inputs.Rows, layer.Inputs.Cols, channels, p.Alignment),
				Images: 1,
			}},
			maxChannelsPerIter: channels,
		}, nil
	}

	unitBytes := layer.Outputs.PlaneByteSize(p.ElemBytes)
	maxChannelsPerIter := p.SpadBytes / unitBytes
	if maxChannelsPerIter < 2 {
		// A single channel at a time leaves nothing to reduce on the
		// accelerator; that would require splitting the 2D plane itself.
		return nil, errors.Wrapf(ErrUnsupportedTiling,
			"unreduced channel unit (%s) leaves room for %d channel(s) per scratchpad pass",
			humanize.IBytes(uint64(unitBytes)), maxChannelsPerIter)
	}

	numIterations := mathx.CeilDiv(channels, maxChannelsPerIter)
	klog.V(1).Infof("channelwise plan %s: %d iterations of up to %d channels",
		layer.Inputs, numIterations, maxChannelsPerIter)
	cfg := &ChannelPlan{
		Iterations:         make([]Tile, 0, numIterations),
		maxChannelsPerIter: maxChannelsPerIter,
	}
	remaining := channels
	offset := 0
	for i := 0; i < numIterations; i++ {
		take := mathx.Min(remaining, maxChannelsPerIter)
		cfg.Iterations = append(cfg.Iterations, Tile{
			Dims:          dims.Make(layer.Inputs.Rows, layer.Inputs.Cols, take, p.Alignment),
			Images:        1,
			ChannelOffset: offset,
		})
		remaining -= take
		offset += take
	}
	return cfg, nil
}

// NumIterations returns the number of channel-wise iterations.
func (c *ChannelPlan) NumIterations() int { return len(c.Iterations) }

// MaxChannelsPerIter returns the per-iteration channel budget.
func (c *ChannelPlan) MaxChannelsPerIter() int { return c.maxChannelsPerIter }

// TotalChannels returns the sum of per-iteration channel counts.
func (c *ChannelPlan) TotalChannels() int {
	total := 0
	for _, it := range c.Iterations {
		total += it.Channels
	}
	return total
}

// FinalReduction describes the single extra pass combining per-iteration
// partial results into the final output of one output unit.
type FinalReduction struct {
	// Rounds is always 1; more than one round is unsupported.
	Rounds int
	// ResultChannels is how many partial entries the round folds together.
	ResultChannels int
}

// PlanFinalReduction validates that the per-iteration partial results for
// one output unit (resultUnitBytes each) can be combined in a single extra
// scratchpad pass. It fails with ErrUnsupportedReduction otherwise.
//
// When the plan has a single iteration no finalization is needed and the
// returned Rounds is 0.
func (c *ChannelPlan) PlanFinalReduction(resultUnitBytes int, p accel.MemoryProfile) (FinalReduction, error) {
	if c.NumIterations() <= 1 {
		return FinalReduction{}, nil
	}
	totalBytes := resultUnitBytes * c.NumIterations()
	rounds := mathx.CeilDiv(totalBytes, p.SpadBytes)
	if rounds > 1 {
		return FinalReduction{}, errors.Wrapf(ErrUnsupportedReduction,
			"combining %d partial results (%s) needs %d scratchpad passes, only 1 is supported",
			c.NumIterations(), humanize.IBytes(uint64(totalBytes)), rounds)
	}
	return FinalReduction{
		Rounds:         1,
		ResultChannels: mathx.Min(c.NumIterations(), p.SpadBytes/resultUnitBytes),
	}, nil
}
