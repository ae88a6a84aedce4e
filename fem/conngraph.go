// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import "github.com/C-Perron/tacs/graph"

// expandRefToSlots appends the local slots of a connectivity reference to
// out: an independent node contributes one slot, a dependent node the slots
// of all its independent nodes
func (o *Assembler) expandRefToSlots(id int, out []int) ([]int, error) {
	ref := RefOf(id)
	if ref.Dep {
		dn, _ := o.dep.Row(ref.Index)
		for _, g := range dn {
			slot := o.transfer.LocalOf(g)
			if slot < 0 {
				return out, chkErrRank(o.mrank, "dependent node %d references unregistered node %d", ref.Index, g)
			}
			out = append(out, slot)
		}
		return out, nil
	}
	slot := o.transfer.LocalOf(ref.Index)
	if slot < 0 {
		return out, chkErrRank(o.mrank, "connectivity references unregistered node %d", ref.Index)
	}
	return append(out, slot), nil
}

// nodeToElemCSR builds the node-to-element graph: for each local node slot,
// the sorted duplicate-free list of local element indices touching it, with
// dependent nodes expanded to their independent sets
func (o *Assembler) nodeToElemCSR() (ptr, elems []int, err error) {
	n := o.transfer.NumLocal()
	count := make([]int, n+1)
	scratch := make([]int, 0, 64)
	for e := 0; e < o.numElements; e++ {
		scratch = scratch[:0]
		for _, id := range o.conn[o.connPtr[e]:o.connPtr[e+1]] {
			if scratch, err = o.expandRefToSlots(id, scratch); err != nil {
				return
			}
		}
		for _, slot := range scratch {
			count[slot+1]++
		}
	}
	ptr = make([]int, n+1)
	for i := 0; i < n; i++ {
		ptr[i+1] = ptr[i] + count[i+1]
	}
	elems = make([]int, ptr[n])
	pos := append([]int(nil), ptr[:n]...)
	for e := 0; e < o.numElements; e++ {
		scratch = scratch[:0]
		for _, id := range o.conn[o.connPtr[e]:o.connPtr[e+1]] {
			if scratch, err = o.expandRefToSlots(id, scratch); err != nil {
				return
			}
		}
		for _, slot := range scratch {
			elems[pos[slot]] = e
			pos[slot]++
		}
	}
	ptr, elems = graph.SortUniquifyCSR(n, ptr, elems, false)
	return
}

// nodeToNodeCSR builds the node adjacency graph over local node slots by
// composing the node-to-element and element-to-node maps. Rows are sorted
// and duplicate-free and include the diagonal unless noDiag is true.
//
// When rnodes is non-nil, only slots with rnodes[slot] >= 0 participate:
// rows and columns are renumbered densely by the values stored in rnodes and
// n is the number of participating slots.
func (o *Assembler) nodeToNodeCSR(rnodes []int, noDiag bool) (n int, rowp, cols []int, err error) {
	nslots := o.transfer.NumLocal()
	nePtr, neElems, err := o.nodeToElemCSR()
	if err != nil {
		return
	}

	// expanded slots of every element, concatenated
	ePtr := make([]int, o.numElements+1)
	var eSlots []int
	for e := 0; e < o.numElements; e++ {
		for _, id := range o.conn[o.connPtr[e]:o.connPtr[e+1]] {
			if eSlots, err = o.expandRefToSlots(id, eSlots); err != nil {
				return
			}
		}
		ePtr[e+1] = len(eSlots)
	}

	n = nslots
	renum := func(slot int) int { return slot }
	if rnodes != nil {
		n = 0
		for _, r := range rnodes {
			if r >= 0 {
				n++
			}
		}
		renum = func(slot int) int { return rnodes[slot] }
	}

	// count, fill, then sort and uniquify
	rowp = make([]int, n+1)
	for slot := 0; slot < nslots; slot++ {
		row := renum(slot)
		if row < 0 {
			continue
		}
		cnt := 1 // diagonal
		for _, e := range neElems[nePtr[slot]:nePtr[slot+1]] {
			for _, s := range eSlots[ePtr[e]:ePtr[e+1]] {
				if renum(s) >= 0 {
					cnt++
				}
			}
		}
		rowp[row+1] = cnt
	}
	for i := 0; i < n; i++ {
		rowp[i+1] += rowp[i]
	}
	cols = make([]int, rowp[n])
	pos := append([]int(nil), rowp[:n]...)
	for slot := 0; slot < nslots; slot++ {
		row := renum(slot)
		if row < 0 {
			continue
		}
		cols[pos[row]] = row
		pos[row]++
		for _, e := range neElems[nePtr[slot]:nePtr[slot+1]] {
			for _, s := range eSlots[ePtr[e]:ePtr[e+1]] {
				if c := renum(s); c >= 0 {
					cols[pos[row]] = c
					pos[row]++
				}
			}
		}
	}
	rowp, cols = graph.SortUniquifyCSR(n, rowp, cols, noDiag)
	return
}
