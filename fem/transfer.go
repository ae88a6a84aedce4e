// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sort"
	"sync"

	"github.com/cpmech/gosl/mpi"

	"github.com/C-Perron/tacs/graph"
)

// Transfer is the distributed index and scatter map. It binds the sorted
// list of externally-referenced (ghost) global node ids to the node
// ownership map, translates between global ids and local node slots, and
// moves vector values between a node's owner and its ghost copies.
//
// Local node slots form three contiguous bands: ghosts with global id below
// the owned range, the owned nodes, then ghosts above the owned range. Both
// ghost bands stay sorted by global id so translation is a binary search.
type Transfer struct {
	comm      *mpi.Communicator
	nm        *NodeMap
	ext       []int   // sorted ghost global ids
	extOffset int     // number of ghosts below the owned range
	extPtr    []int   // per-owner ranges into ext (length size+1)
	sendIdx   [][]int // per-rank owned offsets shipped on distribute
	mu        sync.Mutex
}

// newTransferIndex builds the translation (non-collective) part of the
// scatter map from the sorted, duplicate-free list of ghost global ids
func newTransferIndex(comm *mpi.Communicator, nm *NodeMap, ext []int) (o *Transfer, err error) {
	o = &Transfer{comm: comm, nm: nm, ext: ext}
	o.extOffset = sort.SearchInts(ext, nm.Offset())
	o.extPtr = graph.MatchIntervals(nm.Ranges(), ext)
	o.sendIdx = make([][]int, nm.Size())
	if nm.Size() == 1 && len(ext) > 0 {
		return nil, chkErrRank(nm.Rank(), "serial run cannot reference external nodes (%d found)", len(ext))
	}
	return
}

// setUpExchange completes the scatter map (collective): every owner learns
// which of its nodes the other processes reference
func (o *Transfer) setUpExchange() (err error) {
	size := o.nm.Size()
	if size == 1 {
		return
	}

	// tell each owner which of its nodes we reference
	req := make([][]int, size)
	for r := 0; r < size; r++ {
		req[r] = o.ext[o.extPtr[r]:o.extPtr[r+1]]
	}
	got := exchangeInts(o.comm, req)
	offset := o.nm.Offset()
	for r := 0; r < size; r++ {
		o.sendIdx[r] = make([]int, len(got[r]))
		for i, g := range got[r] {
			if !o.nm.Owns(g) {
				return chkErrRank(o.nm.Rank(), "process %d requested node %d which is not owned here", r, g)
			}
			o.sendIdx[r][i] = g - offset
		}
	}
	return
}

// NewTransfer builds the complete scatter map (collective)
func NewTransfer(comm *mpi.Communicator, nm *NodeMap, ext []int) (o *Transfer, err error) {
	if o, err = newTransferIndex(comm, nm, ext); err != nil {
		return
	}
	err = o.setUpExchange()
	return
}

// NumOwned returns the number of owned node slots
func (o *Transfer) NumOwned() int { return o.nm.NumOwned() }

// NumExt returns the number of ghost node slots
func (o *Transfer) NumExt() int { return len(o.ext) }

// NumLocal returns the total number of local node slots (owned + ghost)
func (o *Transfer) NumLocal() int { return o.nm.NumOwned() + len(o.ext) }

// ExtOffset returns the number of ghosts with global id below the owned range
func (o *Transfer) ExtOffset() int { return o.extOffset }

// LocalOf translates a global node id into a local node slot, returning -1
// when the node is neither owned nor a registered ghost (a configuration
// error in the caller's connectivity)
func (o *Transfer) LocalOf(global int) int {
	if o.nm.Owns(global) {
		return o.extOffset + global - o.nm.Offset()
	}
	pos := sort.SearchInts(o.ext, global)
	if pos == len(o.ext) || o.ext[pos] != global {
		return -1
	}
	if pos < o.extOffset {
		return pos
	}
	return o.nm.NumOwned() + pos
}

// GlobalOf translates a local node slot into a global node id; defined for
// every valid slot
func (o *Transfer) GlobalOf(slot int) int {
	if slot < o.extOffset {
		return o.ext[slot]
	}
	numOwned := o.nm.NumOwned()
	if slot < o.extOffset+numOwned {
		return o.nm.Offset() + slot - o.extOffset
	}
	return o.ext[slot-numOwned]
}

// OwnedSlot tells whether a local slot belongs to the owned band
func (o *Transfer) OwnedSlot(slot int) bool {
	return slot >= o.extOffset && slot < o.extOffset+o.nm.NumOwned()
}

// Distribute pushes authoritative owned values out to the ghost copies held
// by other processes: owned is this process's block data (blockSize values
// per owned node) and ext receives the ghost blocks in ghost order.
// Concurrent calls for distinct vectors are serialized internally.
func (o *Transfer) Distribute(blockSize int, owned, ext []float64) {
	size := o.nm.Size()
	if size == 1 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	send := make([][]float64, size)
	for r := 0; r < size; r++ {
		send[r] = packBlocks(blockSize, owned, o.sendIdx[r])
	}
	recv := exchangeFloats(o.comm, send)
	for r := 0; r < size; r++ {
		copy(ext[o.extPtr[r]*blockSize:o.extPtr[r+1]*blockSize], recv[r])
	}
}

// Reduce accumulates ghost contributions back into the owning process's
// authoritative entries: ext blocks are shipped to their owners and summed
// into owned. The ghost data is left untouched (stale until the next
// Distribute).
func (o *Transfer) Reduce(blockSize int, owned, ext []float64) {
	size := o.nm.Size()
	if size == 1 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	send := make([][]float64, size)
	for r := 0; r < size; r++ {
		send[r] = ext[o.extPtr[r]*blockSize : o.extPtr[r+1]*blockSize]
	}
	recv := exchangeFloats(o.comm, send)
	for r := 0; r < size; r++ {
		for i, off := range o.sendIdx[r] {
			for q := 0; q < blockSize; q++ {
				owned[off*blockSize+q] += recv[r][i*blockSize+q]
			}
		}
	}
}

// packBlocks gathers blocks at the given node offsets into one flat buffer
func packBlocks(blockSize int, data []float64, offsets []int) (buf []float64) {
	buf = make([]float64, len(offsets)*blockSize)
	for i, off := range offsets {
		copy(buf[i*blockSize:(i+1)*blockSize], data[off*blockSize:(off+1)*blockSize])
	}
	return
}
