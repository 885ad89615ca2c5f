// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package accel describes the accelerator the planner targets: its fixed
// memory budget, its per-instance kernel identifiers, and the Port through
// which kernels are invoked and data is moved.
//
// The planner never computes anything itself -- numeric kernels and the
// transfer primitives are external collaborators reached through Port. The
// package only fixes the capacities the planner must respect and the
// map-buffer/invoke protocol every kernel call follows.
package accel

// KernelID identifies one hardware block of an accelerator instance.
// Blocks sharing an ID share the instance's scratchpads.
type KernelID uint32

// MemoryProfile holds the fixed on-chip capacities of one accelerator
// instance, in bytes. Profiles are supplied at configuration time and are
// never mutated by the planner.
type MemoryProfile struct {
	// SpadBytes is the capacity of each of the two scratchpads.
	SpadBytes int
	// UmemBytes is the capacity of the unified memory region that stages a
	// full input or weight set before tiling.
	UmemBytes int
	// Alignment is the row alignment unit, in elements.
	Alignment int
	// ElemBytes is the width of one element as staged on the host side.
	ElemBytes int
}

// DefaultProfile models an accelerator with two 64KB scratchpads of 16-bit
// elements. The simulation stages 32-bit data, so the per-scratchpad byte
// size is doubled to fit the same inputs. The unified memory is 3 blocks of
// 1MB each.
var DefaultProfile = MemoryProfile{
	SpadBytes: 131072,
	UmemBytes: 3 * 1048576,
	Alignment: 8,
	ElemBytes: 4,
}

// SpadElems returns the scratchpad capacity in elements.
func (p MemoryProfile) SpadElems() int { return p.SpadBytes / p.ElemBytes }

// UmemElems returns the unified memory capacity in elements.
func (p MemoryProfile) UmemElems() int { return p.UmemBytes / p.ElemBytes }

// Config is the per-instance configuration handed to the scheduler: the
// memory profile plus the kernel ID of each hardware block. IDs are plain
// values so multiple accelerator instances can be modeled independently.
type Config struct {
	Profile MemoryProfile

	ConvolutionHw  KernelID
	InnerProductHw KernelID
	ReductionHw    KernelID
	BatchNormHw    KernelID
	PoolingHw      KernelID
}

// DefaultConfig uses one shared ID for the convolution, inner-product and
// reduction blocks, so they model a single datapath that shares the
// scratchpads and can hand intermediate results to each other without a
// round trip through host memory.
var DefaultConfig = Config{
	Profile:        DefaultProfile,
	ConvolutionHw:  0x0003,
	InnerProductHw: 0x0003,
	ReductionHw:    0x0003,
	BatchNormHw:    0x0004,
	PoolingHw:      0x0005,
}

// Port is the capability interface to one accelerator instance. It is an
// external collaborator: the planner decides when, how much and in what
// order to call it, never how the calls execute.
//
// Calls are synchronous and single-threaded. A Load must complete before
// the kernel that reads it is invoked, and an Invoke returns only after the
// kernel has written its outputs, so the planner may read them immediately.
type Port interface {
	// MapBuffer declares, ahead of an Invoke, a host region the kernel
	// will touch, identified by its role name.
	MapBuffer(id KernelID, role string, byteCount int)

	// Invoke runs one kernel on the block identified by id and returns
	// after it completes.
	Invoke(id KernelID, kernel func())

	// Load transfers byteCount bytes of host data into on-chip memory.
	Load(dst, src []float32, byteCount int)

	// Store transfers byteCount bytes of on-chip data back to the host.
	Store(dst, src []float32, byteCount int)
}
