// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import "github.com/cpmech/gosl/chk"

// Ordering selects a fill-reducing node ordering algorithm
type Ordering int

const (
	// Natural keeps the existing numbering
	Natural Ordering = iota

	// RCMOrder uses reverse Cuthill-McKee
	RCMOrder

	// AMDOrder uses minimum degree
	AMDOrder

	// NDOrder uses nested dissection
	NDOrder

	// CoupledAMDOrder uses minimum degree with coupling nodes ordered last
	CoupledAMDOrder
)

// String returns the name of the ordering
func (o Ordering) String() string {
	switch o {
	case Natural:
		return "natural"
	case RCMOrder:
		return "rcm"
	case AMDOrder:
		return "amd"
	case NDOrder:
		return "nd"
	case CoupledAMDOrder:
		return "coupled-amd"
	}
	return "unknown"
}

// NoDiagonal tells whether the ordering requires a CSR built without the
// diagonal entry
func (o Ordering) NoDiagonal() bool {
	return o == NDOrder
}

// Compute computes a fill-reducing permutation of an undirected graph in CSR
// form. The returned permutation satisfies perm[k] = old index of the node
// placed at position k. The coupling flags are consulted only by
// CoupledAMDOrder; pass nil otherwise.
func Compute(kind Ordering, n int, rowp, cols []int, coupling []bool) (perm []int, err error) {
	switch kind {
	case Natural:
		perm = make([]int, n)
		for i := range perm {
			perm[i] = i
		}
	case RCMOrder:
		perm = RCM(n, rowp, cols)
	case AMDOrder:
		perm = AMD(n, rowp, cols)
	case NDOrder:
		perm = ND(n, rowp, cols)
	case CoupledAMDOrder:
		perm = AMDCoupling(n, rowp, cols, coupling)
	default:
		return nil, chk.Err("unknown ordering kind %d", kind)
	}
	return
}
