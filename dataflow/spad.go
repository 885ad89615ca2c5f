// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

// Spad selects which of the two physical scratchpads holds the current
// intermediate result. The zero value SpadNone is the start-of-pass
// sentinel.
//
// The selector is threaded as a value through the layer-sequence driver:
// it is not re-derivable from any other state and must not be reset
// mid-pass. Successive layers strictly alternate destinations, so results
// ping-pong between the two buffers without an extra copy.
type Spad int

const (
	SpadNone Spad = iota
	Spad0
	Spad1
)

// Next returns the destination scratchpad for the next layer: the one the
// previous layer did not write. From the sentinel, the first destination
// is Spad1.
func (s Spad) Next() Spad {
	if s == Spad1 {
		return Spad0
	}
	return Spad1
}

// Other returns the opposite scratchpad. It is only meaningful after the
// sentinel has been consumed by Next.
func (s Spad) Other() Spad {
	if s == Spad0 {
		return Spad1
	}
	return Spad0
}

// String returns the scratchpad name.
func (s Spad) String() string {
	switch s {
	case Spad0:
		return "spad0"
	case Spad1:
		return "spad1"
	default:
		return "none"
	}
}
