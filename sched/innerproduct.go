// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package sched

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/dataflow"
	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
)

// RunInnerProduct executes one fully-connected layer.
//
// The destination scratchpad comes from advancing the selector, so
// successive layer results ping-pong between the two scratchpads without a
// copy in between. Weights are always loaded into the unified memory; the
// input is only reloaded when the producing layer evicted its output, and
// the result is only stored when this layer's flags require it.
//
// It returns the advanced selector, which the caller must thread into the
// next layer of the pass.
func (s *Scheduler) RunInnerProduct(net *layers.Network, lnum int, hostIn, hostWeights, hostOut []float32, sel dataflow.Spad) (dataflow.Spad, error) {
	layer := net.Layers[lnum]
	p := s.cfg.Profile

	weightsBytes := layer.Weights.ByteSize(p.ElemBytes)
	if err := s.mem.CheckUmemFits("inner-product weights", weightsBytes); err != nil {
		return sel, errors.WithMessage(plan.ErrCapacityExceeded, err.Error())
	}
	inputBytes := net.Batch * layer.Inputs.ByteSize(p.ElemBytes)
	if err := s.mem.CheckSpadFits("inner-product activations", inputBytes); err != nil {
		return sel, errors.WithMessage(plan.ErrCapacityExceeded, err.Error())
	}
	outputBytes := net.Batch * layer.Outputs.ByteSize(p.ElemBytes)
	if err := s.mem.CheckSpadFits("inner-product result", outputBytes); err != nil {
		return sel, errors.WithMessage(plan.ErrCapacityExceeded, err.Error())
	}

	sel = sel.Next()
	dst, src := s.mem.Spad0, s.mem.Spad1
	if sel == dataflow.Spad1 {
		dst, src = s.mem.Spad1, s.mem.Spad0
	}
	klog.V(1).Infof("inner-product layer %d: result -> %s", lnum, sel)

	s.port.MapBuffer(s.cfg.InnerProductHw, "host_activations", inputBytes)
	s.port.MapBuffer(s.cfg.InnerProductHw, "host_weights", weightsBytes)
	s.port.MapBuffer(s.cfg.InnerProductHw, "host_result", outputBytes)

	weightsOff := net.WeightsOffset(lnum)
	s.port.Invoke(s.cfg.InnerProductHw, func() {
		s.port.Load(s.mem.Umem, hostWeights[weightsOff:], weightsBytes)
		if layer.NeedsInputLoad {
			s.port.Load(src, hostIn, inputBytes)
		}
		s.kernels.MatMul(layer, net.Batch, src, s.mem.Umem, dst)
		if layer.NeedsOutputStore {
			s.port.Store(hostOut, dst, outputBytes)
		}
	})
	return sel, nil
}
