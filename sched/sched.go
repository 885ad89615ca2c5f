// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package sched drives the tile iteration of a planned layer sequence: it
// invokes the external kernels once per tile through the accelerator port,
// schedules the partial-reduction passes that combine tile-local outputs,
// and threads the scratchpad selector across layers.
//
// Control flow is single-threaded and synchronous. A tile's load completes
// before its kernel is invoked, a kernel's result is available before the
// following reduction reads it, and the scratchpad selector only advances
// after the previous layer recorded its destination. There is no parallel
// execution of tiles or layers; whatever concurrency exists lives inside
// the external kernels.
package sched

import (
	"github.com/spadflow/spadflow/accel"
	"github.com/spadflow/spadflow/layers"
	"github.com/spadflow/spadflow/plan"
)

// Kernels is the numeric-kernel collaborator. Implementations write their
// output into the supplied destination and return synchronously; the
// scheduler never inspects the computation itself.
type Kernels interface {
	// Convolve runs one convolution tile described by the partial layer,
	// reading activations from in and weights, writing the unreduced
	// partial output to out.
	Convolve(partial layers.Layer, in, weights, out []float32)

	// Reduce folds the unreduced partial planes described by the partial
	// layer into out.
	Reduce(partial layers.Layer, unreduced, out []float32)

	// MatMul runs a full inner-product layer for the whole batch.
	MatMul(layer layers.Layer, batch int, in, weights, out []float32)

	// Pool runs one pooling tile duo. ofmapStart is the output channel at
	// which the input tile's results are placed.
	Pool(layer layers.Layer, in, out plan.Tile, inData, outData []float32, ofmapStart int)

	// Host runs a host-side operator (batch norm, softmax) over the whole
	// batch.
	Host(layer layers.Layer, batch int, in, out []float32)
}

// Scheduler executes planned layers on one accelerator instance.
type Scheduler struct {
	cfg     accel.Config
	mem     *accel.Memory
	port    accel.Port
	kernels Kernels
}

// New returns a Scheduler for the given accelerator instance.
func New(cfg accel.Config, mem *accel.Memory, port accel.Port, kernels Kernels) *Scheduler {
	return &Scheduler{cfg: cfg, mem: mem, port: port, kernels: kernels}
}
