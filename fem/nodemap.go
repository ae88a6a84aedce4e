// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package fem implements a distributed-memory finite-element assembler:
// node ownership and ghost exchange, dependent-node (multi-point constraint)
// elimination, fill-reducing node reordering, and the thread-parallel
// element loop building global residual vectors and Jacobian matrices
package fem

import (
	"sort"

	"github.com/cpmech/gosl/mpi"
)

// SpatialDim is the number of coordinates stored per node
const SpatialDim = 3

// NodeMap holds the contiguous global-node ownership ranges of all
// processes. Process r owns the global ids [ranges[r], ranges[r+1]).
type NodeMap struct {
	comm   *mpi.Communicator
	mrank  int
	msize  int
	ranges []int // length msize+1
}

// NewNodeMap collectively builds the ownership ranges from the number of
// nodes owned by this process. Construction always succeeds given
// consistent local counts. A nil communicator means serial execution.
func NewNodeMap(comm *mpi.Communicator, numOwned int) (o *NodeMap) {
	o = &NodeMap{comm: comm, mrank: commRank(comm), msize: commSize(comm)}
	o.ranges = make([]int, o.msize+1)
	if o.msize == 1 {
		o.ranges[1] = numOwned
		return
	}
	mine := make([]int, o.msize)
	counts := make([]int, o.msize)
	mine[o.mrank] = numOwned
	comm.AllReduceMaxI(counts, mine)
	for r := 0; r < o.msize; r++ {
		o.ranges[r+1] = o.ranges[r] + counts[r]
	}
	return
}

// Rank returns this process's rank
func (o *NodeMap) Rank() int { return o.mrank }

// Size returns the number of processes
func (o *NodeMap) Size() int { return o.msize }

// NumOwned returns the number of nodes owned by this process
func (o *NodeMap) NumOwned() int { return o.ranges[o.mrank+1] - o.ranges[o.mrank] }

// Offset returns the first global id owned by this process
func (o *NodeMap) Offset() int { return o.ranges[o.mrank] }

// TotalNodes returns the global number of (independent) nodes
func (o *NodeMap) TotalNodes() int { return o.ranges[o.msize] }

// Ranges returns the ownership boundaries (length Size()+1)
func (o *NodeMap) Ranges() []int { return o.ranges }

// Owns tells whether this process owns global node id
func (o *NodeMap) Owns(node int) bool {
	return node >= o.ranges[o.mrank] && node < o.ranges[o.mrank+1]
}

// Owner returns the rank owning global node id, or -1 if id is out of range
func (o *NodeMap) Owner(node int) int {
	if node < 0 || node >= o.ranges[o.msize] {
		return -1
	}
	// first r with ranges[r+1] > node
	return sort.Search(o.msize, func(r int) bool { return o.ranges[r+1] > node })
}
