// Copyright 2026 The Spadflow Authors. SPDX-License-Identifier: Apache-2.0

package plan

import "github.com/pkg/errors"

// Planning failures are fail-fast: they are surfaced before any data
// movement begins for the offending layer, never retried and never
// downgraded to a partial plan. Call sites wrap these sentinels with
// context; match with errors.Is.
var (
	// ErrCapacityExceeded indicates a single indivisible unit (one input
	// image) does not fit the unified memory. No finer tiling can help.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrUnsupportedTiling indicates the plan would have to subdivide a
	// single channel's 2D plane, which is not supported.
	ErrUnsupportedTiling = errors.New("unsupported tiling")

	// ErrUnsupportedReduction indicates the finalization of partial
	// results would need more than one scratchpad pass.
	ErrUnsupportedReduction = errors.New("unsupported reduction")

	// ErrUnsupportedOperatorVariant indicates an operator variant with
	// neither an accelerated nor a software path.
	ErrUnsupportedOperatorVariant = errors.New("unsupported operator variant")
)
