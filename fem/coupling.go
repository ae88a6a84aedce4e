// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import "github.com/C-Perron/tacs/graph"

// computeCouplingNodes returns the sorted local slots shared with other
// processes: every ghost slot plus every owned node referenced by a remote
// process. The discovery is collective: ghost lists are matched against the
// ownership intervals and exchanged so each owner learns who references its
// nodes.
func (o *Assembler) computeCouplingNodes() (coupling []int, err error) {
	if err = o.ensureExtNodes(); err != nil {
		return
	}
	if o.msize == 1 {
		return
	}

	// ship the per-owner ghost lists
	extPtr := graph.MatchIntervals(o.nm.Ranges(), o.ext)
	send := make([][]int, o.msize)
	for r := 0; r < o.msize; r++ {
		send[r] = o.ext[extPtr[r]:extPtr[r+1]]
	}
	recv := exchangeInts(o.comm, send)

	// ghost slots plus owned slots requested by the other processes
	for slot := 0; slot < o.transfer.NumLocal(); slot++ {
		if !o.transfer.OwnedSlot(slot) {
			coupling = append(coupling, slot)
		}
	}
	for r := 0; r < o.msize; r++ {
		if r == o.mrank {
			continue
		}
		for _, g := range recv[r] {
			if !o.nm.Owns(g) {
				return nil, chkErrRank(o.mrank, "process %d referenced node %d which is not owned here", r, g)
			}
			coupling = append(coupling, o.transfer.LocalOf(g))
		}
	}
	coupling = graph.UniqueSort(coupling)
	return
}
