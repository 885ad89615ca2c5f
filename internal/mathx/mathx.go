// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

// Package mathx has small integer helpers shared by the planning packages.
package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns a/b rounded towards +infinity. b must be > 0.
func CeilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}

// Min returns the smaller of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}
