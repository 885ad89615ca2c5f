// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// spadflow plans and runs the forward pass of a small convolutional
// network on a simulated scratchpad accelerator, printing the tiling and
// data-movement decisions the planner makes for each layer.
package main

import (
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/accel"
	"github.com/spadflow/spadflow/dataflow"
	"github.com/spadflow/spadflow/dims"
	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
	"github.com/spadflow/spadflow/sched"
)

var flagBatch = flag.Int("batch", 1, "batch size of the forward pass")

// noopKernels satisfies sched.Kernels without doing any arithmetic: the
// demo only exercises the planning and data-movement decisions.
type noopKernels struct{}

func (noopKernels) Convolve(layers.Layer, []float32, []float32, []float32)  {}
func (noopKernels) Reduce(layers.Layer, []float32, []float32)               {}
func (noopKernels) MatMul(layers.Layer, int, []float32, []float32, []float32) {}
func (noopKernels) Pool(layers.Layer, plan.Tile, plan.Tile, []float32, []float32, int) {
}
func (noopKernels) Host(layers.Layer, int, []float32, []float32) {}

// buildNetwork returns a LeNet-style network: conv, max pooling, two
// fully-connected layers and a softmax classifier.
func buildNetwork(p accel.MemoryProfile, batch int) *layers.Network {
	a := p.Alignment
	return &layers.Network{
		Batch: batch,
		Layers: []layers.Layer{
			{
				Type:    layers.OpInput,
				Inputs:  dims.Make(32, 32, 3, a),
				Outputs: dims.Make(32, 32, 3, a),
			},
			{
				Type:       layers.OpConv,
				Activation: layers.ActivationReLU,
				Inputs:     dims.Make(32, 32, 3, a),
				Outputs:    dims.Make(32, 32, 16, a),
				Weights:    dims.Make(5, 5, 3, a),
			},
			{
				Type:    layers.OpPooling,
				Pool:    layers.MaxPooling,
				Inputs:  dims.Make(32, 32, 16, a),
				Outputs: dims.Make(16, 16, 16, a),
			},
			{
				Type:               layers.OpInnerProduct,
				Activation:         layers.ActivationReLU,
				InputPreprocessing: layers.PreprocessFlatten,
				Inputs:             dims.Make(1, 16*16*16, 1, a),
				Outputs:            dims.Make(1, 128, 1, a),
				Weights:            dims.Make(16*16*16, 128, 1, a),
			},
			{
				Type:       layers.OpInnerProduct,
				Activation: layers.ActivationSigmoid,
				Inputs:     dims.Make(1, 128, 1, a),
				Outputs:    dims.Make(1, 10, 1, a),
				Weights:    dims.Make(128, 10, 1, a),
			},
			{
				Type:    layers.OpSoftmax,
				Inputs:  dims.Make(1, 10, 1, a),
				Outputs: dims.Make(1, 10, 1, a),
			},
		},
	}
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg := accel.DefaultConfig
	p := cfg.Profile
	net := buildNetwork(p, *flagBatch)

	fmt.Printf("accelerator: 2 scratchpads of %s, unified memory %s\n",
		humanize.IBytes(uint64(p.SpadBytes)), humanize.IBytes(uint64(p.UmemBytes)))

	dataflow.SetTransferRequirements(net)
	bar := progressbar.Default(int64(net.Depth()), "planning")
	for i, layer := range net.Layers {
		fmt.Printf("layer %d %-13s load=%-5t store=%-5t", i, layer.Type, layer.NeedsInputLoad, layer.NeedsOutputStore)
		switch layer.Type {
		case layers.OpConv:
			cp := must.M1(plan.PlanChannelwise(layer, p))
			fmt.Printf("  %d channel iteration(s), up to %d channels each",
				cp.NumIterations(), cp.MaxChannelsPerIter())
		case layers.OpPooling:
			in, out := must.M2(plan.PlanNHC(net.Batch, layer.Inputs, layer.Outputs, p))
			fmt.Printf("  %d input tile(s), %d output tile(s)", in.TileCount(), out.TileCount())
		}
		fmt.Println()
		must.M(bar.Add(1))
	}

	// Run the whole pass with no-op kernels on the simulated port.
	mem := accel.NewMemory(p)
	port := accel.NewSimPort(p)
	scheduler := sched.New(cfg, mem, port, noopKernels{})

	elems := 0
	for _, layer := range net.Layers {
		if n := net.Batch * layer.Inputs.PaddedSize(); n > elems {
			elems = n
		}
		if n := net.Batch * layer.Outputs.PaddedSize(); n > elems {
			elems = n
		}
	}
	activations := make([]float32, elems)
	result := make([]float32, elems)
	weights := make([]float32, net.WeightsOffset(net.Depth()-1)+net.Last().WeightCount())

	must.M(scheduler.Forward(net, activations, weights, result))
	fmt.Printf("forward pass complete; final result in temp region: %t\n", net.Last().ResultInTemp)
}
