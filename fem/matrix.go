// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sort"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/la"

	"github.com/C-Perron/tacs/graph"
)

// Matrix is the target of Jacobian assembly. Row and column indices given to
// AddBlock are local node slots; each (row, col) pair addresses one dense
// blockSize x blockSize block.
type Matrix interface {

	// BlockSize returns the number of scalars per node
	BlockSize() int

	// ZeroEntries zeroes all stored values
	ZeroEntries()

	// AddBlock adds scale times the blockSize x blockSize sub-block of the
	// dense row-major element matrix elemMat (leading dimension ld, origin
	// row ri, origin column ci) into block (i, j); transpose reads the
	// sub-block transposed
	AddBlock(i, j int, scale float64, elemMat []float64, ld, ri, ci int, transpose bool)

	// BeginAssembly / EndAssembly bracket the cross-process exchange of
	// contributions accumulated into rows owned elsewhere
	BeginAssembly()
	EndAssembly()

	// ApplyBCs zeroes boundary-condition rows and columns and sets unit
	// diagonal entries at owned constrained dofs
	ApplyBCs()

	// ToTriplet exports the owned rows in global numbering for external
	// sparse solvers
	ToTriplet() *la.Triplet
}

// DistMat is a distributed block-row sparse matrix: this process stores the
// rows of every local node slot; rows of ghost slots accumulate off-process
// contributions that EndAssembly ships to their owners. Column indices are
// kept global so remote contributions merge without translation.
type DistMat struct {
	bsize    int
	transfer *Transfer
	bcs      *BcSet
	rowp     []int
	cols     []int // global ids, sorted per row
	vals     []float64
}

// newDistMat builds the matrix from the local node-to-node CSR (rows and
// cols in local slots, diagonal included). The construction is collective:
// ghost-row sparsity patterns are shipped to their owners once so every
// remote contribution finds its entry during EndAssembly.
func newDistMat(bsize int, t *Transfer, bcs *BcSet, rowp, cols []int) (o *DistMat, err error) {
	n := t.NumLocal()
	gcols := make([]int, len(cols))
	for i, c := range cols {
		gcols[i] = t.GlobalOf(c)
	}

	// ship ghost-row patterns to the owners
	size := t.nm.Size()
	if size > 1 {
		send := make([][]int, size)
		for slot := 0; slot < n; slot++ {
			if t.OwnedSlot(slot) {
				continue
			}
			r := t.nm.Owner(t.GlobalOf(slot))
			for _, g := range gcols[rowp[slot]:rowp[slot+1]] {
				send[r] = append(send[r], t.GlobalOf(slot), g)
			}
		}
		recv := exchangeInts(t.comm, send)

		// merge the received (row, col) pairs into the owned rows
		extra := make(map[int][]int)
		for r := 0; r < size; r++ {
			if r == t.nm.Rank() {
				continue
			}
			for k := 0; k < len(recv[r]); k += 2 {
				slot := t.LocalOf(recv[r][k])
				if slot < 0 || !t.OwnedSlot(slot) {
					return nil, chkErrRank(t.nm.Rank(), "received matrix row for node %d which is not owned here", recv[r][k])
				}
				extra[slot] = append(extra[slot], recv[r][k+1])
			}
		}
		if len(extra) > 0 {
			rowp, gcols = mergeRows(n, rowp, gcols, extra)
		}
	}

	// sort and uniquify rows of global column ids
	rowp, gcols = graph.SortUniquifyCSR(n, rowp, gcols, false)
	o = &DistMat{
		bsize:    bsize,
		transfer: t,
		bcs:      bcs,
		rowp:     rowp,
		cols:     gcols,
		vals:     make([]float64, len(gcols)*bsize*bsize),
	}
	return
}

// mergeRows appends extra column entries to selected rows of a CSR structure
func mergeRows(n int, rowp, cols []int, extra map[int][]int) ([]int, []int) {
	nrowp := make([]int, n+1)
	for i := 0; i < n; i++ {
		nrowp[i+1] = nrowp[i] + rowp[i+1] - rowp[i] + len(extra[i])
	}
	ncols := make([]int, nrowp[n])
	for i := 0; i < n; i++ {
		pos := nrowp[i]
		pos += copy(ncols[pos:], cols[rowp[i]:rowp[i+1]])
		copy(ncols[pos:], extra[i])
	}
	return nrowp, ncols
}

// BlockSize returns the number of scalars per node
func (o *DistMat) BlockSize() int { return o.bsize }

// ZeroEntries zeroes all stored values
func (o *DistMat) ZeroEntries() {
	for i := range o.vals {
		o.vals[i] = 0
	}
}

// find locates the value offset of block (slot, globalCol), or -1
func (o *DistMat) find(slot, globalCol int) int {
	row := o.cols[o.rowp[slot]:o.rowp[slot+1]]
	k := sort.SearchInts(row, globalCol)
	if k == len(row) || row[k] != globalCol {
		return -1
	}
	return o.rowp[slot] + k
}

// AddBlock implements Matrix. Referencing a block outside the sparsity
// pattern indicates inconsistent connectivity and is fatal.
func (o *DistMat) AddBlock(i, j int, scale float64, elemMat []float64, ld, ri, ci int, transpose bool) {
	idx := o.find(i, o.transfer.GlobalOf(j))
	if idx < 0 {
		chk.Panic("rank %d: matrix block (%d,%d) is outside the sparsity pattern", o.transfer.nm.Rank(), i, j)
	}
	b := o.bsize
	blk := o.vals[idx*b*b : (idx+1)*b*b]
	if transpose {
		for p := 0; p < b; p++ {
			for q := 0; q < b; q++ {
				blk[p*b+q] += scale * elemMat[(ri+q)*ld+ci+p]
			}
		}
		return
	}
	for p := 0; p < b; p++ {
		for q := 0; q < b; q++ {
			blk[p*b+q] += scale * elemMat[(ri+p)*ld+ci+q]
		}
	}
}

// BeginAssembly implements Matrix (the exchange is performed in EndAssembly)
func (o *DistMat) BeginAssembly() {}

// EndAssembly ships the values accumulated into ghost rows to their owners
// and adds them there; ghost rows are zeroed afterwards. Constrained columns
// are masked before shipping: a merged column may name a node the row's
// owner does not store, so its ApplyBCs could never zero the entry.
func (o *DistMat) EndAssembly() {
	size := o.transfer.nm.Size()
	if size == 1 {
		return
	}
	b := o.bsize
	colMask := make(map[int][]int)
	for i := 0; i < o.bcs.Len(); i++ {
		e := o.bcs.Entry(i)
		if o.transfer.LocalOf(e.Node) >= 0 {
			colMask[e.Node] = e.Dofs
		}
	}
	b2 := b * b
	sendIdx := make([][]int, size)
	sendVal := make([][]float64, size)
	n := o.transfer.NumLocal()
	for slot := 0; slot < n; slot++ {
		if o.transfer.OwnedSlot(slot) {
			continue
		}
		r := o.transfer.nm.Owner(o.transfer.GlobalOf(slot))
		for k := o.rowp[slot]; k < o.rowp[slot+1]; k++ {
			if dofs, ok := colMask[o.cols[k]]; ok {
				blk := o.vals[k*b2 : (k+1)*b2]
				for _, d := range dofs {
					for p := 0; p < b; p++ {
						blk[p*b+d] = 0
					}
				}
			}
			sendIdx[r] = append(sendIdx[r], o.transfer.GlobalOf(slot), o.cols[k])
			sendVal[r] = append(sendVal[r], o.vals[k*b2:(k+1)*b2]...)
			for q := k * b2; q < (k+1)*b2; q++ {
				o.vals[q] = 0
			}
		}
	}
	recvIdx := exchangeInts(o.transfer.comm, sendIdx)
	recvVal := exchangeFloats(o.transfer.comm, sendVal)
	for r := 0; r < size; r++ {
		if r == o.transfer.nm.Rank() {
			continue
		}
		for k := 0; k*2 < len(recvIdx[r]); k++ {
			slot := o.transfer.LocalOf(recvIdx[r][2*k])
			idx := o.find(slot, recvIdx[r][2*k+1])
			if slot < 0 || idx < 0 {
				chk.Panic("rank %d: remote matrix contribution (%d,%d) does not match the local sparsity",
					o.transfer.nm.Rank(), recvIdx[r][2*k], recvIdx[r][2*k+1])
			}
			blk := o.vals[idx*b2 : (idx+1)*b2]
			for q := 0; q < b2; q++ {
				blk[q] += recvVal[r][k*b2+q]
			}
		}
	}
}

// ApplyBCs implements Matrix: constrained dof rows and columns are zeroed
// for every locally stored constrained node, then unit diagonal entries are
// set at owned constrained dofs
func (o *DistMat) ApplyBCs() {
	ident := func(slot int) int { return slot }
	applyMatBCs(o.bcs, o.transfer, o.bsize, o.rowp, o.cols, o.vals, ident, o.transfer.GlobalOf)
}

// ToTriplet exports the owned rows in global numbering
func (o *DistMat) ToTriplet() *la.Triplet {
	b := o.bsize
	m := o.transfer.nm.TotalNodes() * b
	nnz := 0
	n := o.transfer.NumLocal()
	for slot := 0; slot < n; slot++ {
		if o.transfer.OwnedSlot(slot) {
			nnz += o.rowp[slot+1] - o.rowp[slot]
		}
	}
	tt := new(la.Triplet)
	tt.Init(m, m, nnz*b*b)
	for slot := 0; slot < n; slot++ {
		if !o.transfer.OwnedSlot(slot) {
			continue
		}
		gi := o.transfer.GlobalOf(slot)
		for k := o.rowp[slot]; k < o.rowp[slot+1]; k++ {
			gj := o.cols[k]
			blk := o.vals[k*b*b : (k+1)*b*b]
			for p := 0; p < b; p++ {
				for q := 0; q < b; q++ {
					tt.Put(gi*b+p, gj*b+q, blk[p*b+q])
				}
			}
		}
	}
	return tt
}

// Dense returns the owned rows as a dense matrix in global numbering
// (testing and debugging aid; zero rows for nodes owned elsewhere)
func (o *DistMat) Dense() (a [][]float64) {
	b := o.bsize
	m := o.transfer.nm.TotalNodes() * b
	a = make([][]float64, m)
	for i := range a {
		a[i] = make([]float64, m)
	}
	n := o.transfer.NumLocal()
	for slot := 0; slot < n; slot++ {
		if !o.transfer.OwnedSlot(slot) {
			continue
		}
		gi := o.transfer.GlobalOf(slot)
		for k := o.rowp[slot]; k < o.rowp[slot+1]; k++ {
			gj := o.cols[k]
			blk := o.vals[k*b*b : (k+1)*b*b]
			for p := 0; p < b; p++ {
				for q := 0; q < b; q++ {
					a[gi*b+p][gj*b+q] = blk[p*b+q]
				}
			}
		}
	}
	return
}

// applyMatBCs zeroes constrained rows/columns and sets owned unit diagonals
// on a CSR block structure. rowOf maps a local node slot to its row index
// and colKey maps a local node slot to its stored column id (global ids for
// DistMat, permuted indices for SchurMat).
func applyMatBCs(bcs *BcSet, t *Transfer, b int, rowp, cols []int, vals []float64, rowOf, colKey func(slot int) int) {
	if bcs == nil || bcs.Len() == 0 {
		return
	}

	// constrained dofs keyed by row index and by stored column id
	rowMask := make(map[int][]int)
	colMask := make(map[int][]int)
	for i := 0; i < bcs.Len(); i++ {
		e := bcs.Entry(i)
		slot := t.LocalOf(e.Node)
		if slot < 0 {
			continue
		}
		rowMask[rowOf(slot)] = e.Dofs
		colMask[colKey(slot)] = e.Dofs
	}

	n := len(rowp) - 1
	for row := 0; row < n; row++ {
		dofs, isBC := rowMask[row]
		for k := rowp[row]; k < rowp[row+1]; k++ {
			blk := vals[k*b*b : (k+1)*b*b]

			// zero constrained rows
			if isBC {
				for _, d := range dofs {
					for q := 0; q < b; q++ {
						blk[d*b+q] = 0
					}
				}
			}

			// zero constrained columns
			if cdofs, ok := colMask[cols[k]]; ok {
				for _, d := range cdofs {
					for p := 0; p < b; p++ {
						blk[p*b+d] = 0
					}
				}
			}
		}
	}

	// unit diagonals at owned constrained dofs
	for i := 0; i < bcs.Len(); i++ {
		e := bcs.Entry(i)
		slot := t.LocalOf(e.Node)
		if slot < 0 || !t.OwnedSlot(slot) {
			continue
		}
		row, diag := rowOf(slot), colKey(slot)
		for k := rowp[row]; k < rowp[row+1]; k++ {
			if cols[k] == diag {
				blk := vals[k*b*b : (k+1)*b*b]
				for _, d := range e.Dofs {
					blk[d*b+d] = 1
				}
				break
			}
		}
	}
}
