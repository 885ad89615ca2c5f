// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package sched

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
)

// RunPooling executes one pooling layer.
//
// Max pooling takes the accelerated tiled path; average pooling falls back
// to the software kernel over the whole tensor. Any other variant fails
// with ErrUnsupportedOperatorVariant before any transfer happens.
func (s *Scheduler) RunPooling(net *layers.Network, lnum int, hostIn, hostOut []float32) error {
	layer := net.Layers[lnum]
	switch layer.Pool {
	case layers.MaxPooling:
		inputs, outputs, err := plan.PlanNHC(net.Batch, layer.Inputs, layer.Outputs, s.cfg.Profile)
		if err != nil {
			return err
		}
		s.runPoolingNHC(layer, inputs, outputs, hostIn, hostOut)
		return nil
	case layers.AvgPooling:
		// No accelerated path; run the software kernel on the host data.
		klog.V(1).Infof("pooling layer %d: avg pooling software fallback", lnum)
		in := plan.Tile{Dims: layer.Inputs, Images: net.Batch}
		out := plan.Tile{Dims: layer.Outputs, Images: net.Batch}
		s.kernels.Pool(layer, in, out, hostIn, hostOut, 0)
		return nil
	default:
		return errors.Wrapf(plan.ErrUnsupportedOperatorVariant,
			"pooling variant %q has neither an accelerated nor a software path", layer.Pool)
	}
}

// runPoolingNHC iterates the tile duos of a pooled layer: batch-wise tiles,
// then row-wise tiles, then the channel-wise cursors of inputs and outputs
// walked in lockstep.
//
// Both cursors advance together when the channel tile counts match. When
// the outputs need no channel tiling, only the input cursor advances and
// ofmapOffset accumulates each input tile's channel width, placing results
// at the right output channel. Any other divergence violates the planner's
// contract and panics.
func (s *Scheduler) runPoolingNHC(layer layers.Layer, inputs, outputs *plan.TiledTensor, hostIn, hostOut []float32) {
	inN, inH, _, inC := inputs.AxisTiles()
	_, _, _, outC := outputs.AxisTiles()
	p := s.cfg.Profile

	inStage := make([]float32, p.SpadElems())
	outStage := make([]float32, p.SpadElems())
	for n := 0; n < inN; n++ {
		for h := 0; h < inH; h++ {
			iC, oC := 0, 0
			// Tracks the channel offset of the outputs when the input
			// tiling is finer than the output tiling.
			ofmapOffset := 0
			for iC < inC && oC < outC {
				inIdx := inputs.Index(n, h, 0, iC)
				outIdx := outputs.Index(n, h, 0, oC)
				inTile := inputs.Tile(inIdx)
				outTile := outputs.Tile(outIdx)

				s.port.MapBuffer(s.cfg.PoolingHw, "host_inputs", inTile.Elems()*p.ElemBytes)
				s.port.MapBuffer(s.cfg.PoolingHw, "host_results", outTile.Elems()*p.ElemBytes)

				// If the input and output tiles belong to the same channel
				// group their data loads together and results start at the
				// beginning of the tile; otherwise results continue where
				// the previous input tile left off.
				ofmapStart := 0
				if iC != oC {
					ofmapStart = ofmapOffset
				}
				klog.V(2).Infof("pooling tile duo: input %d, output %d, ofmapStart %d",
					inIdx, outIdx, ofmapStart)

				inputs.Gather(hostIn, inIdx, inStage)
				outputs.Gather(hostOut, outIdx, outStage)
				s.port.Invoke(s.cfg.PoolingHw, func() {
					s.port.Load(s.mem.Spad0, inStage, inTile.Elems()*p.ElemBytes)
					s.kernels.Pool(layer, inTile, outTile, s.mem.Spad0, s.mem.Spad1, ofmapStart)
					s.port.Store(outStage, s.mem.Spad1, outTile.Elems()*p.ElemBytes)
				})
				outputs.Scatter(outStage, outIdx, hostOut)

				ofmapOffset += inTile.Channels
				switch {
				case inC == outC:
					iC++
					oC++
				case outC == 1:
					iC++
				default:
					exceptions.Panicf("pooling tiles: input has %d channel tiles, output %d; "+
						"counts may differ only when the output needs no channel tiling", inC, outC)
				}
			}
		}
	}
}
