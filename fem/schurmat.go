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

// SchurMat is a process-local sparse matrix reordered into a two-block
// structure: the interior (purely local) nodes come first, the coupling
// nodes shared with other processes last. It is the layout consumed by
// Schur-complement solvers: each process factors its interior block and the
// interface system couples only the trailing blocks. Contributions stay on
// the assembling process; there is no cross-process value exchange.
//
// The permutation is computed once by the assembler and cached, so every
// SchurMat created afterwards shares an identical non-zero structure and the
// matrices can be combined linearly (e.g. K - lambda*M).
type SchurMat struct {
	bsize    int
	transfer *Transfer
	bcs      *BcSet
	perm     []int // local slot -> permuted index
	nlocal   int   // number of interior (leading) nodes
	rowp     []int // CSR over permuted indices
	cols     []int
	vals     []float64
}

// newSchurMat builds the matrix from the local node-to-node CSR (rows and
// cols in local slots, diagonal included) and the cached permutation
func newSchurMat(bsize int, t *Transfer, bcs *BcSet, perm []int, nlocal int, rowp, cols []int) *SchurMat {
	n := t.NumLocal()
	prowp := make([]int, n+1)
	for slot := 0; slot < n; slot++ {
		prowp[perm[slot]+1] = rowp[slot+1] - rowp[slot]
	}
	for i := 0; i < n; i++ {
		prowp[i+1] += prowp[i]
	}
	pcols := make([]int, len(cols))
	for slot := 0; slot < n; slot++ {
		pos := prowp[perm[slot]]
		for _, c := range cols[rowp[slot]:rowp[slot+1]] {
			pcols[pos] = perm[c]
			pos++
		}
	}
	prowp, pcols = graph.SortUniquifyCSR(n, prowp, pcols, false)
	return &SchurMat{
		bsize:    bsize,
		transfer: t,
		bcs:      bcs,
		perm:     perm,
		nlocal:   nlocal,
		rowp:     prowp,
		cols:     pcols,
		vals:     make([]float64, len(pcols)*bsize*bsize),
	}
}

// BlockSize returns the number of scalars per node
func (o *SchurMat) BlockSize() int { return o.bsize }

// NumInterior returns the number of leading interior nodes
func (o *SchurMat) NumInterior() int { return o.nlocal }

// NumCoupling returns the number of trailing coupling nodes
func (o *SchurMat) NumCoupling() int { return o.transfer.NumLocal() - o.nlocal }

// ZeroEntries zeroes all stored values
func (o *SchurMat) ZeroEntries() {
	for i := range o.vals {
		o.vals[i] = 0
	}
}

func (o *SchurMat) find(pi, pj int) int {
	row := o.cols[o.rowp[pi]:o.rowp[pi+1]]
	k := sort.SearchInts(row, pj)
	if k == len(row) || row[k] != pj {
		return -1
	}
	return o.rowp[pi] + k
}

// AddBlock implements Matrix; i and j are local node slots
func (o *SchurMat) AddBlock(i, j int, scale float64, elemMat []float64, ld, ri, ci int, transpose bool) {
	idx := o.find(o.perm[i], o.perm[j])
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

// BeginAssembly implements Matrix; contributions are process-local
func (o *SchurMat) BeginAssembly() {}

// EndAssembly implements Matrix; contributions are process-local
func (o *SchurMat) EndAssembly() {}

// ApplyBCs implements Matrix
func (o *SchurMat) ApplyBCs() {
	permOf := func(slot int) int { return o.perm[slot] }
	applyMatBCs(o.bcs, o.transfer, o.bsize, o.rowp, o.cols, o.vals, permOf, permOf)
}

// ToTriplet exports the matrix in the permuted local numbering
func (o *SchurMat) ToTriplet() *la.Triplet {
	b := o.bsize
	m := o.transfer.NumLocal() * b
	tt := new(la.Triplet)
	tt.Init(m, m, len(o.cols)*b*b)
	for pi := 0; pi < o.transfer.NumLocal(); pi++ {
		for k := o.rowp[pi]; k < o.rowp[pi+1]; k++ {
			pj := o.cols[k]
			blk := o.vals[k*b*b : (k+1)*b*b]
			for p := 0; p < b; p++ {
				for q := 0; q < b; q++ {
					tt.Put(pi*b+p, pj*b+q, blk[p*b+q])
				}
			}
		}
	}
	return tt
}

// Dense returns the matrix as a dense array in the permuted local numbering
// (testing and debugging aid)
func (o *SchurMat) Dense() (a [][]float64) {
	b := o.bsize
	m := o.transfer.NumLocal() * b
	a = make([]([]float64), m)
	for i := range a {
		a[i] = make([]float64, m)
	}
	for pi := 0; pi < o.transfer.NumLocal(); pi++ {
		for k := o.rowp[pi]; k < o.rowp[pi+1]; k++ {
			pj := o.cols[k]
			blk := o.vals[k*b*b : (k+1)*b*b]
			for p := 0; p < b; p++ {
				for q := 0; q < b; q++ {
					a[pi*b+p][pj*b+q] = blk[p*b+q]
				}
			}
		}
	}
	return
}
