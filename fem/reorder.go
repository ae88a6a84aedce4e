// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sort"

	"github.com/cpmech/gosl/io"

	"github.com/C-Perron/tacs/graph"
)

// MatStrategy selects how the reordering classifies nodes for the matrix
// partition across processes
type MatStrategy int

const (
	// AdditiveSchwarz reorders each process's nodes independently with no
	// special treatment of shared nodes
	AdditiveSchwarz MatStrategy = iota

	// ApproximateSchur marks the shared nodes and everything graph-adjacent
	// to them as coupling, ordered after the interior block
	ApproximateSchur

	// DirectSchur marks exactly the shared nodes as coupling
	DirectSchur
)

func (o MatStrategy) String() string {
	switch o {
	case AdditiveSchwarz:
		return "additive-schwarz"
	case ApproximateSchur:
		return "approximate-schur"
	}
	return "direct-schur"
}

// ComputeReordering renumbers the global nodes with a fill-reducing ordering
// and applies the new numbering in place to the element connectivity, the
// dependent-node table, the boundary conditions and the ghost list. Each
// process assigns the new ids of its owned nodes within its unchanged
// ownership range: interior nodes first, coupling nodes (per the strategy)
// appended after them; ghost ids are then exchanged with their owners.
// One-shot: a second call is rejected and the first ordering is kept.
func (o *Assembler) ComputeReordering(kind graph.Ordering, strat MatStrategy) (err error) {
	if o.state != stateConfiguring {
		return chkErrRank(o.mrank, "cannot reorder the nodes when %v", o.state)
	}
	if o.connPtr == nil {
		return chkErrRank(o.mrank, "the element connectivity must be set before reordering")
	}
	if err = o.ensureExtNodes(); err != nil {
		return
	}
	if o.showMsg() {
		io.Pf("computing %v reordering (%v partition)\n", kind, strat)
	}

	numOwned := o.nm.NumOwned()
	offset := o.nm.Offset()
	ownedNew := make([]int, numOwned) // old owned offset -> new global id

	if o.msize == 1 {

		// order the whole graph in one pass
		var rowp, cols []int
		var n int
		if n, rowp, cols, err = o.nodeToNodeCSR(nil, kind.NoDiagonal()); err != nil {
			return
		}
		var perm []int
		if perm, err = graph.Compute(kind, n, rowp, cols, nil); err != nil {
			return
		}
		for k, old := range perm {
			ownedNew[old] = k
		}

	} else {

		// classify owned slots as interior or coupling
		var coupling []int
		if coupling, err = o.computeCouplingNodes(); err != nil {
			return
		}
		nslots := o.transfer.NumLocal()
		isCoupling := make([]bool, nslots)
		for _, slot := range coupling {
			isCoupling[slot] = true
		}
		if strat == AdditiveSchwarz {
			for slot := range isCoupling {
				isCoupling[slot] = false
			}
		} else if strat == ApproximateSchur {
			// the cascade: owned neighbours of coupling nodes join the
			// coupling set
			var rowp, cols []int
			if _, rowp, cols, err = o.nodeToNodeCSR(nil, false); err != nil {
				return
			}
			grow := make([]bool, nslots)
			for _, slot := range coupling {
				for _, s := range cols[rowp[slot]:rowp[slot+1]] {
					grow[s] = true
				}
			}
			for slot := 0; slot < nslots; slot++ {
				if grow[slot] {
					isCoupling[slot] = true
				}
			}
		}

		// order the owned interior nodes first, then the owned coupling nodes
		assigned := make([]bool, numOwned)
		next := 0
		orderSubset := func(pick func(slot int) bool) (err error) {
			rnodes := make([]int, nslots)
			slots := make([]int, 0, numOwned)
			for slot := range rnodes {
				rnodes[slot] = -1
			}
			for slot := 0; slot < nslots; slot++ {
				if o.transfer.OwnedSlot(slot) && pick(slot) {
					rnodes[slot] = len(slots)
					slots = append(slots, slot)
				}
			}
			if len(slots) == 0 {
				return
			}
			var n int
			var rowp, cols []int
			if n, rowp, cols, err = o.nodeToNodeCSR(rnodes, kind.NoDiagonal()); err != nil {
				return
			}
			var perm []int
			if perm, err = graph.Compute(kind, n, rowp, cols, nil); err != nil {
				return
			}
			eo := o.transfer.ExtOffset()
			for _, p := range perm {
				off := slots[p] - eo
				ownedNew[off] = offset + next
				assigned[off] = true
				next++
			}
			return
		}
		if err = orderSubset(func(slot int) bool { return !isCoupling[slot] }); err != nil {
			return
		}
		if err = orderSubset(func(slot int) bool { return isCoupling[slot] }); err != nil {
			return
		}
		for off := 0; off < numOwned; off++ {
			if !assigned[off] {
				return chkErrRank(o.mrank, "node %d was left out of the %v reordering", offset+off, strat)
			}
		}
	}

	// fetch the new ids of the ghost nodes from their owners
	extNew := make([]int, len(o.ext))
	if o.msize > 1 {
		extPtr := o.transfer.extPtr
		req := make([][]int, o.msize)
		for r := 0; r < o.msize; r++ {
			req[r] = o.ext[extPtr[r]:extPtr[r+1]]
		}
		got := exchangeInts(o.comm, req)
		reply := make([][]int, o.msize)
		for r := 0; r < o.msize; r++ {
			reply[r] = make([]int, len(got[r]))
			for i, g := range got[r] {
				if !o.nm.Owns(g) {
					return chkErrRank(o.mrank, "process %d requested the new id of node %d which is not owned here", r, g)
				}
				reply[r][i] = ownedNew[g-offset]
			}
		}
		ans := exchangeInts(o.comm, reply)
		for r := 0; r < o.msize; r++ {
			copy(extNew[extPtr[r]:extPtr[r+1]], ans[r])
		}
	}

	// old global id -> new global id for every locally known node
	extOld := append([]int(nil), o.ext...)
	newGlobal := func(old int) int {
		if o.nm.Owns(old) {
			return ownedNew[old-offset]
		}
		pos := sort.SearchInts(extOld, old)
		if pos == len(extOld) || extOld[pos] != old {
			chkPanicRank(o.mrank, "cannot renumber unregistered node %d", old)
		}
		return extNew[pos]
	}

	// apply to connectivity (dependent encodings pass through), dependent
	// table and boundary conditions
	for i, id := range o.conn {
		if ref := RefOf(id); !ref.Dep {
			o.conn[i] = newGlobal(ref.Index)
		}
	}
	o.dep.Renumber(newGlobal)
	o.bcs.Renumber(newGlobal)

	// rebuild the sorted ghost list with the new numbering
	o.ext = graph.UniqueSort(extNew)
	o.extOffset = graph.MatchIntervals(o.nm.Ranges(), o.ext)[o.mrank]
	if o.transfer, err = newTransferIndex(o.comm, o.nm, o.ext); err != nil {
		return
	}

	o.ownedNew = ownedNew
	o.state = stateOrdered
	return
}

// GetReordering copies the saved permutation into out: out[i] is the new
// global id of the node this process originally owned at offset i. Returns
// false when ComputeReordering has not run.
func (o *Assembler) GetReordering(out []int) bool {
	if o.ownedNew == nil {
		return false
	}
	copy(out, o.ownedNew)
	return true
}

// ReorderVec permutes the owned blocks of a vector from the original
// numbering into the reordered numbering; a no-op when ComputeReordering has
// not run
func (o *Assembler) ReorderVec(v *Vec) {
	if o.ownedNew == nil {
		return
	}
	b := v.BlockSize()
	offset := o.nm.Offset()
	tmp := make([]float64, len(v.owned))
	copy(tmp, v.owned)
	for i := 0; i < o.nm.NumOwned(); i++ {
		k := o.ownedNew[i] - offset
		copy(v.owned[k*b:(k+1)*b], tmp[i*b:(i+1)*b])
	}
}

// computeSchurOrdering computes and caches the local interior/coupling
// permutation shared by every SchurMat: interior nodes lead, coupling nodes
// trail, both ordered by the given algorithm (CoupledAMDOrder runs on the
// whole local graph with the coupling constraint; the other orderings run on
// the two subsets separately)
func (o *Assembler) computeSchurOrdering(kind graph.Ordering) (err error) {
	var coupling []int
	if coupling, err = o.computeCouplingNodes(); err != nil {
		return
	}
	nslots := o.transfer.NumLocal()
	isCoupling := make([]bool, nslots)
	for _, slot := range coupling {
		isCoupling[slot] = true
	}
	o.schurNlocal = nslots - len(coupling)
	o.schurPerm = make([]int, nslots)

	if kind == graph.CoupledAMDOrder {
		var n int
		var rowp, cols []int
		if n, rowp, cols, err = o.nodeToNodeCSR(nil, false); err != nil {
			return
		}
		var perm []int
		if perm, err = graph.Compute(kind, n, rowp, cols, isCoupling); err != nil {
			return
		}
		for k, slot := range perm {
			o.schurPerm[slot] = k
		}
		return
	}

	// order the two subsets separately
	next := 0
	orderSubset := func(pick func(slot int) bool) (err error) {
		rnodes := make([]int, nslots)
		slots := make([]int, 0, nslots)
		for slot := range rnodes {
			rnodes[slot] = -1
		}
		for slot := 0; slot < nslots; slot++ {
			if pick(slot) {
				rnodes[slot] = len(slots)
				slots = append(slots, slot)
			}
		}
		if len(slots) == 0 {
			return
		}
		var n int
		var rowp, cols []int
		if n, rowp, cols, err = o.nodeToNodeCSR(rnodes, kind.NoDiagonal()); err != nil {
			return
		}
		var perm []int
		if perm, err = graph.Compute(kind, n, rowp, cols, nil); err != nil {
			return
		}
		for _, p := range perm {
			o.schurPerm[slots[p]] = next
			next++
		}
		return
	}
	if err = orderSubset(func(slot int) bool { return !isCoupling[slot] }); err != nil {
		return
	}
	return orderSubset(func(slot int) bool { return isCoupling[slot] })
}
