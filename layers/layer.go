// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package layers defines the layer descriptor array that is the boundary
// artifact between the data-movement pass and the per-layer schedulers.
//
// A Network is an ordered []Layer. The dataflow package fills in each
// layer's NeedsInputLoad/NeedsOutputStore flags once before a forward pass;
// they are read-only afterwards.
package layers

import (
	"github.com/gomlx/exceptions"

	"github.com/spadflow/spadflow/dims"
)

// OpType is the operator kind of a layer.
type OpType int

const (
	// OpInput is the pseudo-layer heading every network; its "output" is
	// the host-resident input batch.
	OpInput OpType = iota
	OpConv
	OpInnerProduct
	OpPooling
	OpBatchNorm
	OpSoftmax
)

// String returns the name of the operator kind.
func (t OpType) String() string {
	switch t {
	case OpInput:
		return "input"
	case OpConv:
		return "conv"
	case OpInnerProduct:
		return "inner_product"
	case OpPooling:
		return "pooling"
	case OpBatchNorm:
		return "batch_norm"
	case OpSoftmax:
		return "softmax"
	default:
		return "unknown"
	}
}

// Activation is the activation function fused into a layer.
type Activation int

const (
	ActivationNone Activation = iota
	ActivationReLU
	ActivationSigmoid
	ActivationTanh
)

// NeedsHostLookup reports whether the activation is evaluated with a
// host-side lookup table, which forces the layer's output off-chip.
func (a Activation) NeedsHostLookup() bool {
	return a == ActivationSigmoid || a == ActivationTanh
}

// String returns the name of the activation.
func (a Activation) String() string {
	switch a {
	case ActivationNone:
		return "none"
	case ActivationReLU:
		return "relu"
	case ActivationSigmoid:
		return "sigmoid"
	case ActivationTanh:
		return "tanh"
	default:
		return "unknown"
	}
}

// Pooling is the pooling variant of an OpPooling layer.
type Pooling int

const (
	PoolingNone Pooling = iota
	MaxPooling
	AvgPooling
)

// String returns the name of the pooling variant.
func (p Pooling) String() string {
	switch p {
	case PoolingNone:
		return "none"
	case MaxPooling:
		return "max"
	case AvgPooling:
		return "avg"
	default:
		return "unknown"
	}
}

// Preprocessing is the input transform applied before a layer runs.
type Preprocessing int

const (
	PreprocessNone Preprocessing = iota
	// PreprocessFlatten reshapes a conv output into an inner-product
	// input row. A flattened input cannot stay resident on-chip.
	PreprocessFlatten
)

// Layer describes one network layer: shapes, operator kind and the
// transfer flags computed by the dataflow pass.
type Layer struct {
	Type               OpType
	Activation         Activation
	Pool               Pooling
	InputPreprocessing Preprocessing

	Inputs  dims.Dims
	Outputs dims.Dims
	Weights dims.Dims

	// NeedsInputLoad and NeedsOutputStore are computed once per forward
	// pass by dataflow.SetTransferRequirements, before any tile planning
	// runs, and are read-only afterwards.
	NeedsInputLoad   bool
	NeedsOutputStore bool

	// ResultInTemp marks that the layer's result currently resides in the
	// alternate host region of the ping-pong pair.
	ResultInTemp bool
}

// WeightCount returns the element count of the layer's weights in the
// packed host weight buffer, including row padding. Convolution weights
// hold one kernel per output channel.
func (l Layer) WeightCount() int {
	switch l.Type {
	case OpConv:
		return l.Outputs.Channels * l.Weights.PaddedSize()
	case OpInnerProduct, OpBatchNorm:
		return l.Weights.PaddedSize()
	default:
		return 0
	}
}

// Network is the ordered layer sequence of one model plus the batch size.
type Network struct {
	Layers []Layer
	Batch  int
}

// Depth returns the number of layers, including the input pseudo-layer.
func (n *Network) Depth() int { return len(n.Layers) }

// Last returns the final layer.
func (n *Network) Last() *Layer {
	if len(n.Layers) == 0 {
		exceptions.Panicf("layers.Network.Last: empty network")
	}
	return &n.Layers[len(n.Layers)-1]
}

// WeightsOffset returns the element offset of layer lnum's weights inside
// the packed host weight buffer holding all layers back to back.
func (n *Network) WeightsOffset(lnum int) int {
	if lnum < 0 || lnum >= len(n.Layers) {
		exceptions.Panicf("layers.Network.WeightsOffset(%d): out of range for depth %d",
			lnum, len(n.Layers))
	}
	offset := 0
	for i := 0; i < lnum; i++ {
		offset += n.Layers[i].WeightCount()
	}
	return offset
}
