// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package accel

import (
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// SimPort is a software model of Port: transfers are plain copies and
// Invoke runs the kernel inline.
//
// When RoundToFloat16 is set, every transferred value is rounded through
// IEEE binary16 on the way in, modeling the 16-bit datapath of the real
// hardware while the host still stages 32-bit data.
type SimPort struct {
	Profile MemoryProfile

	// RoundToFloat16 models the accelerator's 16-bit wire format.
	RoundToFloat16 bool

	// Mapped records the most recent MapBuffer byte count per kernel/role.
	Mapped map[KernelID]map[string]int
}

// NewSimPort returns a SimPort for the given profile.
func NewSimPort(profile MemoryProfile) *SimPort {
	return &SimPort{
		Profile: profile,
		Mapped:  make(map[KernelID]map[string]int),
	}
}

// MapBuffer implements Port.
func (p *SimPort) MapBuffer(id KernelID, role string, byteCount int) {
	roles, ok := p.Mapped[id]
	if !ok {
		roles = make(map[string]int)
		p.Mapped[id] = roles
	}
	roles[role] = byteCount
	klog.V(2).Infof("map kernel=%#04x role=%q bytes=%d", uint32(id), role, byteCount)
}

// Invoke implements Port: the kernel runs inline, synchronously.
func (p *SimPort) Invoke(id KernelID, kernel func()) {
	klog.V(2).Infof("invoke kernel=%#04x", uint32(id))
	kernel()
}

// Load implements Port.
func (p *SimPort) Load(dst, src []float32, byteCount int) {
	p.transfer("load", dst, src, byteCount)
}

// Store implements Port.
func (p *SimPort) Store(dst, src []float32, byteCount int) {
	p.transfer("store", dst, src, byteCount)
}

func (p *SimPort) transfer(what string, dst, src []float32, byteCount int) {
	n := byteCount / p.Profile.ElemBytes
	if n > len(dst) || n > len(src) {
		exceptions.Panicf("accel.SimPort: %s of %d elements overruns dst(%d)/src(%d)",
			what, n, len(dst), len(src))
	}
	klog.V(2).Infof("%s %d bytes", what, byteCount)
	if !p.RoundToFloat16 {
		copy(dst[:n], src[:n])
		return
	}
	for i := 0; i < n; i++ {
		dst[i] = float16.Fromfloat32(src[i]).Float32()
	}
}
