// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package dataflow decides, per layer boundary, whether data has to move
// between host and accelerator memory, and tracks which scratchpad holds
// the current intermediate result across a layer sequence.
//
// Since the accelerator blocks share the scratchpads, a transfer is only
// needed when data must go back to the host: once a layer is forced to
// store its output, the next layer is forced to load its input, but both
// may independently stay on-chip when neither's local conditions force an
// eviction.
package dataflow

import (
	"k8s.io/klog/v2"

	"github.com/spadflow/spadflow/layers"
)

// SetTransferRequirements runs a single left-to-right pass over the layer
// sequence and fills in each layer's NeedsInputLoad and NeedsOutputStore
// flags. It must run once per forward pass, before any tile planning.
//
// A layer must store its output when it is the last layer, its activation
// needs a host-side lookup table, its operator is pooling or convolution
// (neither keeps results resident for the next stage), its input undergoes
// a flatten transform, or the next layer is pooling or the final
// classifier. A layer must load its input exactly when the producing layer
// stored its output. The first layer's input is always already
// host-resident, staged once before the pass begins.
func SetTransferRequirements(net *layers.Network) {
	for i := range net.Layers {
		layer := &net.Layers[i]
		if i == 0 {
			layer.NeedsInputLoad = false
			layer.NeedsOutputStore = true
			continue
		}

		last := i == net.Depth()-1
		store := last ||
			layer.Activation.NeedsHostLookup() ||
			layer.Type == layers.OpPooling ||
			layer.Type == layers.OpConv ||
			layer.InputPreprocessing == layers.PreprocessFlatten
		if !last {
			next := net.Layers[i+1]
			store = store || next.Type == layers.OpPooling || next.Type == layers.OpSoftmax
		}
		layer.NeedsOutputStore = store
		layer.NeedsInputLoad = net.Layers[i-1].NeedsOutputStore
	}

	if klog.V(1).Enabled() {
		for i := range net.Layers {
			klog.V(1).Infof("layer %d (%s): load=%t store=%t", i, net.Layers[i].Type,
				net.Layers[i].NeedsInputLoad, net.Layers[i].NeedsOutputStore)
		}
	}
}
