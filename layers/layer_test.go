// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package layers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spadflow/spadflow/dims"
)

func TestWeightCount(t *testing.T) {
	conv := Layer{
		Type:    OpConv,
		Outputs: dims.Make(16, 16, 4, 8),
		Weights: dims.Make(3, 3, 8, 8),
	}
	// One kernel per output channel, rows padded to the alignment.
	require.Equal(t, 4*8*3*8, conv.WeightCount())

	fc := Layer{
		Type:    OpInnerProduct,
		Weights: dims.Make(64, 10, 1, 8),
	}
	require.Equal(t, 64*16, fc.WeightCount())

	pool := Layer{Type: OpPooling}
	require.Equal(t, 0, pool.WeightCount())
}

func TestWeightsOffset(t *testing.T) {
	net := &Network{Batch: 1, Layers: []Layer{
		{Type: OpInput},
		{Type: OpConv, Outputs: dims.Make(8, 8, 2, 8), Weights: dims.Make(3, 3, 4, 8)},
		{Type: OpPooling},
		{Type: OpInnerProduct, Weights: dims.Make(128, 10, 1, 8)},
	}}
	require.Equal(t, 0, net.WeightsOffset(0))
	require.Equal(t, 0, net.WeightsOffset(1))
	// The zero-weight pooling layer does not advance the packed buffer.
	convCount := net.Layers[1].WeightCount()
	require.Equal(t, convCount, net.WeightsOffset(2))
	require.Equal(t, convCount, net.WeightsOffset(3))

	require.Panics(t, func() { net.WeightsOffset(4) })
	require.Panics(t, func() { net.WeightsOffset(-1) })

	require.Equal(t, 4, net.Depth())
	require.Equal(t, OpInnerProduct, net.Last().Type)
}

func TestNeedsHostLookup(t *testing.T) {
	require.False(t, ActivationNone.NeedsHostLookup())
	require.False(t, ActivationReLU.NeedsHostLookup())
	require.True(t, ActivationSigmoid.NeedsHostLookup())
	require.True(t, ActivationTanh.NeedsHostLookup())
}

func TestEnumStrings(t *testing.T) {
	require.Equal(t, "input", OpInput.String())
	require.Equal(t, "conv", OpConv.String())
	require.Equal(t, "inner_product", OpInnerProduct.String())
	require.Equal(t, "pooling", OpPooling.String())
	require.Equal(t, "batch_norm", OpBatchNorm.String())
	require.Equal(t, "softmax", OpSoftmax.String())
	require.Equal(t, "unknown", OpType(99).String())

	require.Equal(t, "relu", ActivationReLU.String())
	require.Equal(t, "sigmoid", ActivationSigmoid.String())
	require.Equal(t, "max", MaxPooling.String())
	require.Equal(t, "avg", AvgPooling.String())
}
