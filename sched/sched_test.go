// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package sched

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spadflow/spadflow/accel"
	"github.com/spadflow/spadflow/dataflow"
	"github.com/spadflow/spadflow/dims"
	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
)

var testProfile = accel.MemoryProfile{
	SpadBytes: 131072,
	UmemBytes: 3 * 1048576,
	Alignment: 4,
	ElemBytes: 4,
}

var testConfig = accel.Config{
	Profile:        testProfile,
	ConvolutionHw:  3,
	InnerProductHw: 3,
	ReductionHw:    3,
	BatchNormHw:    4,
	PoolingHw:      5,
}

type eventLog struct {
	events []string
}

func (l *eventLog) add(e string) { l.events = append(l.events, e) }

// recordingPort logs every port call; transfers move no data.
type recordingPort struct {
	log *eventLog
}

func (p *recordingPort) MapBuffer(id accel.KernelID, role string, byteCount int) {
	p.log.add("map:" + role)
}

func (p *recordingPort) Invoke(id accel.KernelID, kernel func()) {
	p.log.add(fmt.Sprintf("invoke:%d", id))
	kernel()
}

func (p *recordingPort) Load(dst, src []float32, byteCount int)  { p.log.add("load") }
func (p *recordingPort) Store(dst, src []float32, byteCount int) { p.log.add("store") }

// recordingKernels logs kernel calls and captures the descriptors the
// scheduler hands over.
type recordingKernels struct {
	log *eventLog

	convChannels    []int
	convActivations []layers.Activation
	reducePartials  []layers.Layer
	poolStarts      []int
	poolInTiles     []plan.Tile
	poolOutTiles    []plan.Tile
}

func (k *recordingKernels) Convolve(partial layers.Layer, in, weights, out []float32) {
	k.log.add("conv")
	k.convChannels = append(k.convChannels, partial.Inputs.Channels)
	k.convActivations = append(k.convActivations, partial.Activation)
}

func (k *recordingKernels) Reduce(partial layers.Layer, unreduced, out []float32) {
	k.log.add("reduce")
	k.reducePartials = append(k.reducePartials, partial)
}

func (k *recordingKernels) MatMul(layer layers.Layer, batch int, in, weights, out []float32) {
	k.log.add("matmul")
}

func (k *recordingKernels) Pool(layer layers.Layer, in, out plan.Tile, inData, outData []float32, ofmapStart int) {
	k.log.add("pool")
	k.poolStarts = append(k.poolStarts, ofmapStart)
	k.poolInTiles = append(k.poolInTiles, in)
	k.poolOutTiles = append(k.poolOutTiles, out)
}

func (k *recordingKernels) Host(layer layers.Layer, batch int, in, out []float32) {
	k.log.add("host")
}

func newTestScheduler() (*Scheduler, *eventLog, *recordingKernels) {
	log := &eventLog{}
	kernels := &recordingKernels{log: log}
	s := New(testConfig, accel.NewMemory(testProfile), &recordingPort{log: log}, kernels)
	return s, log, kernels
}

func TestConvolutionTileIteration(t *testing.T) {
	// Channel unit of 20000 bytes with 16 input channels: plan [6, 6, 4].
	conv := layers.Layer{
		Type:           layers.OpConv,
		Activation:     layers.ActivationReLU,
		Inputs:         dims.Make(50, 100, 16, 4),
		Outputs:        dims.Make(50, 100, 2, 4),
		Weights:        dims.Make(5, 5, 16, 4),
		NeedsInputLoad: true,
	}
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: conv.Inputs, Outputs: conv.Inputs},
		conv,
	}}
	s, log, kernels := newTestScheduler()

	hostIn := make([]float32, conv.Inputs.PaddedSize())
	hostWeights := make([]float32, net.WeightsOffset(1)+conv.WeightCount())
	hostOut := make([]float32, conv.Outputs.PaddedSize())
	require.NoError(t, s.RunConvolution(net, 1, hostIn, hostWeights, hostOut))

	// Per output unit: 3 iterations of (map, conv invoke with two loads,
	// reduce invoke with store) plus one finalization round.
	var perKern []string
	for i := 0; i < 3; i++ {
		perKern = append(perKern,
			"map:host_result", "invoke:3", "load", "load", "conv",
			"invoke:3", "reduce", "store")
	}
	perKern = append(perKern, "map:host_result", "invoke:3", "load", "reduce", "store")

	var want []string
	for kern := 0; kern < 2; kern++ {
		want = append(want, perKern...)
	}
	require.Equal(t, want, log.events)

	// The channel ranges walked per unit are [6, 6, 4], and the
	// activation is deferred to the end on multi-iteration plans.
	require.Equal(t, []int{6, 6, 4, 6, 6, 4}, kernels.convChannels)
	for _, act := range kernels.convActivations {
		require.Equal(t, layers.ActivationNone, act)
	}

	// Each finalization folds 3 partial planes into one.
	finals := []layers.Layer{kernels.reducePartials[3], kernels.reducePartials[7]}
	for _, partial := range finals {
		require.Equal(t, 3, partial.Inputs.Channels)
		require.Equal(t, 1, partial.Outputs.Channels)
	}
}

func TestConvolutionSingleIterationKeepsActivation(t *testing.T) {
	conv := layers.Layer{
		Type:       layers.OpConv,
		Activation: layers.ActivationReLU,
		Inputs:     dims.Make(16, 16, 8, 4),
		Outputs:    dims.Make(16, 16, 4, 4),
		Weights:    dims.Make(3, 3, 8, 4),
	}
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: conv.Inputs, Outputs: conv.Inputs},
		conv,
	}}
	s, _, kernels := newTestScheduler()

	hostIn := make([]float32, conv.Inputs.PaddedSize())
	hostWeights := make([]float32, net.WeightsOffset(1)+conv.WeightCount())
	hostOut := make([]float32, conv.Outputs.PaddedSize())
	require.NoError(t, s.RunConvolution(net, 1, hostIn, hostWeights, hostOut))

	require.Len(t, kernels.convChannels, 4)
	for _, act := range kernels.convActivations {
		require.Equal(t, layers.ActivationReLU, act)
	}
	// No finalization on a single-iteration plan.
	for _, partial := range kernels.reducePartials {
		require.Equal(t, 8, partial.Inputs.Channels)
	}
}

func TestConvolutionFailsFastOnUnsupportedReduction(t *testing.T) {
	// Channel unit of 50000 bytes: 2 channels per iteration, 3 iterations,
	// 150000 bytes of partials -- finalization would need 2 passes.
	conv := layers.Layer{
		Type:    layers.OpConv,
		Inputs:  dims.Make(125, 100, 6, 4),
		Outputs: dims.Make(125, 100, 1, 4),
		Weights: dims.Make(3, 3, 6, 4),
	}
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: conv.Inputs, Outputs: conv.Inputs},
		conv,
	}}
	s, log, _ := newTestScheduler()

	err := s.RunConvolution(net, 1, nil, nil, nil)
	require.ErrorIs(t, err, plan.ErrUnsupportedReduction)
	// The failure surfaces before any data movement.
	require.Empty(t, log.events)
}

func TestPoolingCursorWalk(t *testing.T) {
	// Input tiled into 4 channel tiles, output fits one tile: the input
	// cursor walks 0..3 while the output cursor stays at 0 and the output
	// channel offset advances by each input tile's channel width.
	pool := layers.Layer{
		Type:    layers.OpPooling,
		Pool:    layers.MaxPooling,
		Inputs:  dims.Make(2, 4096, 16, 4),
		Outputs: dims.Make(1, 2048, 16, 4),
	}
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: pool.Inputs, Outputs: pool.Inputs},
		pool,
	}}
	s, _, kernels := newTestScheduler()

	hostIn := make([]float32, pool.Inputs.PaddedSize())
	hostOut := make([]float32, pool.Outputs.PaddedSize())
	require.NoError(t, s.RunPooling(net, 1, hostIn, hostOut))

	require.Equal(t, []int{0, 4, 8, 12}, kernels.poolStarts)
	require.Len(t, kernels.poolInTiles, 4)
	for i, tile := range kernels.poolInTiles {
		require.Equal(t, i*4, tile.ChannelOffset)
		require.Equal(t, 4, tile.Channels)
	}
	for _, tile := range kernels.poolOutTiles {
		require.Equal(t, 0, tile.ChannelOffset)
		require.Equal(t, 16, tile.Channels)
	}
}

func TestPoolingAvgSoftwareFallback(t *testing.T) {
	pool := layers.Layer{
		Type:    layers.OpPooling,
		Pool:    layers.AvgPooling,
		Inputs:  dims.Make(8, 8, 4, 4),
		Outputs: dims.Make(4, 4, 4, 4),
	}
	net := &layers.Network{Batch: 2, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: pool.Inputs, Outputs: pool.Inputs},
		pool,
	}}
	s, log, kernels := newTestScheduler()

	hostIn := make([]float32, 2*pool.Inputs.PaddedSize())
	hostOut := make([]float32, 2*pool.Outputs.PaddedSize())
	require.NoError(t, s.RunPooling(net, 1, hostIn, hostOut))

	// One software kernel call over the whole tensor, no port traffic.
	require.Equal(t, []string{"pool"}, log.events)
	require.Equal(t, []int{0}, kernels.poolStarts)
	require.Equal(t, 2, kernels.poolInTiles[0].Images)
}

func TestPoolingUnsupportedVariant(t *testing.T) {
	pool := layers.Layer{
		Type:    layers.OpPooling,
		Pool:    layers.PoolingNone,
		Inputs:  dims.Make(8, 8, 4, 4),
		Outputs: dims.Make(4, 4, 4, 4),
	}
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: pool.Inputs, Outputs: pool.Inputs},
		pool,
	}}
	s, log, _ := newTestScheduler()

	err := s.RunPooling(net, 1, nil, nil)
	require.ErrorIs(t, err, plan.ErrUnsupportedOperatorVariant)
	require.Empty(t, log.events)
}

func TestInnerProductSelectorThreading(t *testing.T) {
	fc := func() layers.Layer {
		return layers.Layer{
			Type:    layers.OpInnerProduct,
			Inputs:  dims.Make(1, 64, 1, 4),
			Outputs: dims.Make(1, 64, 1, 4),
			Weights: dims.Make(64, 64, 1, 4),
		}
	}
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: dims.Make(1, 64, 1, 4), Outputs: dims.Make(1, 64, 1, 4)},
		fc(), fc(), fc(),
	}}
	dataflow.SetTransferRequirements(net)
	s, _, _ := newTestScheduler()

	host := make([]float32, 64)
	weights := make([]float32, net.WeightsOffset(3)+net.Layers[3].WeightCount())

	// The selector strictly alternates across consecutive layers: no two
	// consecutive layers write the same scratchpad.
	sel := dataflow.SpadNone
	var selectors []dataflow.Spad
	for lnum := 1; lnum <= 3; lnum++ {
		var err error
		sel, err = s.RunInnerProduct(net, lnum, host, weights, host, sel)
		require.NoError(t, err)
		selectors = append(selectors, sel)
	}
	require.Equal(t, []dataflow.Spad{dataflow.Spad1, dataflow.Spad0, dataflow.Spad1}, selectors)
}

func TestInnerProductCapacityExceeded(t *testing.T) {
	fc := layers.Layer{
		Type:    layers.OpInnerProduct,
		Inputs:  dims.Make(1, 1024, 1, 4),
		Outputs: dims.Make(1, 1024, 1, 4),
		Weights: dims.Make(1024, 1024, 1, 4),
	}
	net := &layers.Network{Batch: 40, Layers: []layers.Layer{
		{Type: layers.OpInput, Inputs: fc.Inputs, Outputs: fc.Inputs},
		fc,
	}}
	s, log, _ := newTestScheduler()

	// 40 x 1024 x 4B = 160KB of activations exceed one scratchpad.
	_, err := s.RunInnerProduct(net, 1, nil, nil, nil, dataflow.SpadNone)
	require.ErrorIs(t, err, plan.ErrCapacityExceeded)
	require.Empty(t, log.events)
}

func TestForward(t *testing.T) {
	a := testProfile.Alignment
	net := &layers.Network{Batch: 1, Layers: []layers.Layer{
		{
			Type:    layers.OpInput,
			Inputs:  dims.Make(16, 16, 8, a),
			Outputs: dims.Make(16, 16, 8, a),
		},
		{
			Type:       layers.OpConv,
			Activation: layers.ActivationReLU,
			Inputs:     dims.Make(16, 16, 8, a),
			Outputs:    dims.Make(16, 16, 4, a),
			Weights:    dims.Make(3, 3, 8, a),
		},
		{
			Type:    layers.OpPooling,
			Pool:    layers.MaxPooling,
			Inputs:  dims.Make(16, 16, 4, a),
			Outputs: dims.Make(8, 8, 4, a),
		},
		{
			Type:               layers.OpInnerProduct,
			InputPreprocessing: layers.PreprocessFlatten,
			Inputs:             dims.Make(1, 256, 1, a),
			Outputs:            dims.Make(1, 10, 1, a),
			Weights:            dims.Make(256, 10, 1, a),
		},
		{
			Type:    layers.OpSoftmax,
			Inputs:  dims.Make(1, 10, 1, a),
			Outputs: dims.Make(1, 10, 1, a),
		},
	}}
	s, log, _ := newTestScheduler()

	elems := 0
	for _, layer := range net.Layers {
		if n := layer.Inputs.PaddedSize(); n > elems {
			elems = n
		}
		if n := layer.Outputs.PaddedSize(); n > elems {
			elems = n
		}
	}
	activations := make([]float32, elems)
	result := make([]float32, elems)
	weights := make([]float32, net.WeightsOffset(net.Depth()-1)+net.Last().WeightCount())

	require.NoError(t, s.Forward(net, activations, weights, result))

	// Four producing layers toggled the ping-pong an even number of
	// times: the final result sits in the activations region.
	require.False(t, net.Last().ResultInTemp)
	require.Equal(t, "store", log.events[len(log.events)-1])
	require.Contains(t, log.events, "matmul")
	require.Contains(t, log.events, "host")
}
