// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package sched

import (
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
)

// RunConvolution executes one convolution layer tile by tile.
//
// The iteration nests (image, output unit, tile iteration), in that order.
// Each iteration invokes the convolution kernel on its planned channel
// range and immediately reduces the unreduced planes into one entry of a
// per-output-unit partial buffer. When more than one iteration ran, a
// single finalization round folds the partial entries into the final
// result; the planner has already verified that round fits one scratchpad
// pass.
//
// All planning failures surface before any data movement for the layer.
func (s *Scheduler) RunConvolution(net *layers.Network, lnum int, hostIn, hostWeights, hostOut []float32) error {
	layer := net.Layers[lnum]
	p := s.cfg.Profile

	cfg, err := plan.PlanChannelwise(layer, p)
	if err != nil {
		return err
	}
	resultUnit := layer.Outputs.PlaneSize()
	resultUnitBytes := layer.Outputs.PlaneByteSize(p.ElemBytes)
	final, err := cfg.PlanFinalReduction(resultUnitBytes, p)
	if err != nil {
		return err
	}
	klog.V(1).Infof("conv layer %d: %d iteration(s), result unit %d elements",
		lnum, cfg.NumIterations(), resultUnit)

	// Partial buffer holding one unreduced result entry per iteration,
	// owned by this call for the duration of the layer.
	partials := make([]float32, resultUnit*cfg.NumIterations())

	weightsBase := net.WeightsOffset(lnum)
	numKernels := layer.Outputs.Channels
	for img := 0; img < net.Batch; img++ {
		for kern := 0; kern < numKernels; kern++ {
			for it, tile := range cfg.Iterations {
				resultLoc := partials[it*resultUnit : (it+1)*resultUnit]

				// Per-iteration layer description: only this channel
				// range participates, and the activation is deferred to
				// the finalization unless a single iteration covers
				// everything.
				partial := layer
				partial.Inputs.Channels = tile.Channels
				partial.Outputs.Channels = tile.Channels
				partial.Weights.Channels = tile.Channels
				if cfg.NumIterations() > 1 {
					partial.Activation = layers.ActivationNone
				}

				s.port.MapBuffer(s.cfg.ReductionHw, "host_result", resultUnitBytes)
				s.port.Invoke(s.cfg.ConvolutionHw, func() {
					// Only the current channel range's weights move.
					wOff := weightsBase + layer.Weights.Offset(kern, tile.ChannelOffset, 0, 0)
					s.port.Load(s.mem.Spad0, hostWeights[wOff:], partial.Weights.ByteSize(p.ElemBytes))
					if layer.NeedsInputLoad {
						aOff := layer.Inputs.Offset(img, tile.ChannelOffset, 0, 0)
						s.port.Load(s.mem.Umem, hostIn[aOff:], partial.Inputs.ByteSize(p.ElemBytes))
					}
					s.kernels.Convolve(partial, s.mem.Umem, s.mem.Spad0, s.mem.Spad1)
				})
				s.port.Invoke(s.cfg.ReductionHw, func() {
					s.kernels.Reduce(partial, s.mem.Spad1, s.mem.Umem)
					s.port.Store(resultLoc, s.mem.Umem, resultUnitBytes)
				})
			}

			if cfg.NumIterations() > 1 {
				// Finalization: fold the per-iteration entries into one.
				partial := layer
				partial.Inputs.Channels = final.ResultChannels
				partial.Outputs.Channels = 1
				s.port.MapBuffer(s.cfg.ReductionHw, "host_result", resultUnitBytes)
				s.port.Invoke(s.cfg.ReductionHw, func() {
					s.port.Load(s.mem.Spad1, partials, final.ResultChannels*resultUnitBytes)
					s.kernels.Reduce(partial, s.mem.Spad1, s.mem.Umem)
					s.port.Store(partials[:resultUnit], s.mem.Umem, resultUnitBytes)
				})
			}

			dst := layer.Outputs.Offset(img, kern, 0, 0)
			copy(hostOut[dst:dst+resultUnit], partials[:resultUnit])
		}
	}
	return nil
}
