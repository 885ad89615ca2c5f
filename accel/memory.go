// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package accel

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Memory holds the three on-chip regions of one accelerator instance: the
// unified memory and the two scratchpads used as ping-pong storage.
//
// The regions are singletons for the whole layer sequence. Exclusivity is
// guaranteed by the strictly sequential execution order, not by locking:
// there is exactly one logical thread of control.
type Memory struct {
	Umem  []float32
	Spad0 []float32
	Spad1 []float32

	profile MemoryProfile
}

// NewMemory allocates the on-chip regions for the given profile.
func NewMemory(profile MemoryProfile) *Memory {
	return &Memory{
		Umem:    make([]float32, profile.UmemElems()),
		Spad0:   make([]float32, profile.SpadElems()),
		Spad1:   make([]float32, profile.SpadElems()),
		profile: profile,
	}
}

// Profile returns the profile the memory was sized from.
func (m *Memory) Profile() MemoryProfile { return m.profile }

// CheckSpadFits returns an error when byteCount exceeds one scratchpad.
func (m *Memory) CheckSpadFits(what string, byteCount int) error {
	if byteCount > m.profile.SpadBytes {
		return errors.Errorf("%s (%s) exceeds the scratchpad capacity (%s)",
			what, humanize.IBytes(uint64(byteCount)), humanize.IBytes(uint64(m.profile.SpadBytes)))
	}
	return nil
}

// CheckUmemFits returns an error when byteCount exceeds the unified memory.
func (m *Memory) CheckUmemFits(what string, byteCount int) error {
	if byteCount > m.profile.UmemBytes {
		return errors.Errorf("%s (%s) exceeds the unified memory capacity (%s)",
			what, humanize.IBytes(uint64(byteCount)), humanize.IBytes(uint64(m.profile.UmemBytes)))
	}
	return nil
}
