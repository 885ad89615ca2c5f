// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package sched

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/dataflow"
	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
)

// Forward runs a whole forward pass over the network.
//
// The input batch lives in hostActivations and is staged (mapped) once
// before the pass begins. Layer results alternate between the activations
// and result host regions so no matrix is ever copied between layers; the
// scratchpad selector is threaded sequentially through the whole sequence.
// After the pass, the last layer's ResultInTemp records whether the final
// result sits in the result region, and the classification output is
// stored back to the host.
func (s *Scheduler) Forward(net *layers.Network, hostActivations, hostWeights, hostResult []float32) error {
	dataflow.SetTransferRequirements(net)
	p := s.cfg.Profile
	s.port.MapBuffer(s.cfg.ConvolutionHw, "host_activations", len(hostActivations)*p.ElemBytes)

	sel := dataflow.SpadNone
	in, out := hostActivations, hostResult
	resultInTemp := false
	for lnum := range net.Layers {
		layer := &net.Layers[lnum]
		var err error
		produced := true
		switch layer.Type {
		case layers.OpInput:
			// The input batch is already host-resident.
			produced = false
		case layers.OpConv:
			err = s.RunConvolution(net, lnum, in, hostWeights, out)
		case layers.OpInnerProduct:
			sel, err = s.RunInnerProduct(net, lnum, in, hostWeights, out, sel)
		case layers.OpPooling:
			err = s.RunPooling(net, lnum, in, out)
		case layers.OpBatchNorm:
			s.port.Invoke(s.cfg.BatchNormHw, func() {
				s.kernels.Host(*layer, net.Batch, in, out)
			})
		case layers.OpSoftmax:
			s.kernels.Host(*layer, net.Batch, in, out)
		default:
			err = errors.Wrapf(plan.ErrUnsupportedOperatorVariant, "operator %q", layer.Type)
		}
		if err != nil {
			return errors.WithMessagef(err, "layer %d (%s)", lnum, layer.Type)
		}
		if produced {
			in, out = out, in
			resultInTemp = !resultInTemp
		}
	}
	net.Last().ResultInTemp = resultInTemp
	klog.V(1).Infof("forward pass done: result in %s region",
		map[bool]string{true: "result", false: "activations"}[resultInTemp])

	// Flush the classification output back to the host.
	classBytes := net.Batch * net.Last().Outputs.ByteSize(p.ElemBytes)
	s.port.Store(in, in, classBytes)
	return nil
}
