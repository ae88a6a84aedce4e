// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"math"

	"github.com/cpmech/gosl/la"
)

// AssembleOp selects how SetValues treats existing entries
type AssembleOp int

const (
	// Insert overwrites entries
	Insert AssembleOp = iota

	// Add accumulates into entries
	Add
)

// Vec is a distributed block vector: one fixed-size block of scalars per
// local node slot. The owned band is authoritative; ghost blocks are cached
// copies refreshed only by an explicit distribute step, and ghost
// contributions reach their owner only through an explicit reduce step.
type Vec struct {
	bsize    int
	transfer *Transfer
	dep      *DepNodes
	bcs      *BcSet
	owned    la.Vector
	ext      la.Vector
	pending  chan struct{}
}

func newVec(bsize int, t *Transfer, dep *DepNodes, bcs *BcSet) *Vec {
	return &Vec{
		bsize:    bsize,
		transfer: t,
		dep:      dep,
		bcs:      bcs,
		owned:    la.NewVector(bsize * t.NumOwned()),
		ext:      la.NewVector(bsize * t.NumExt()),
	}
}

// BlockSize returns the number of scalars per node
func (o *Vec) BlockSize() int { return o.bsize }

// NumOwned returns the number of owned nodes
func (o *Vec) NumOwned() int { return o.transfer.NumOwned() }

// Values returns the authoritative owned storage (bsize values per owned
// node, in owned-band order)
func (o *Vec) Values() la.Vector { return o.owned }

// Zero fills owned and ghost storage with zeros
func (o *Vec) Zero() {
	o.owned.Fill(0)
	o.ext.Fill(0)
}

// CopyFrom copies another vector of identical shape
func (o *Vec) CopyFrom(v *Vec) {
	copy(o.owned, v.owned)
	copy(o.ext, v.ext)
}

// Axpy adds a*x to this vector (owned and ghost storage)
func (o *Vec) Axpy(a float64, x *Vec) {
	for i := range o.owned {
		o.owned[i] += a * x.owned[i]
	}
	for i := range o.ext {
		o.ext[i] += a * x.ext[i]
	}
}

// Scale multiplies this vector by a
func (o *Vec) Scale(a float64) {
	for i := range o.owned {
		o.owned[i] *= a
	}
	for i := range o.ext {
		o.ext[i] *= a
	}
}

// Dot returns the global dot product over owned entries
func (o *Vec) Dot(v *Vec) float64 {
	sum := la.VecDot(o.owned, v.owned)
	if commSize(o.transfer.comm) > 1 {
		res := make([]float64, 1)
		o.transfer.comm.AllReduceSum(res, []float64{sum})
		return res[0]
	}
	return sum
}

// Norm returns the global Euclidean norm
func (o *Vec) Norm() float64 {
	return math.Sqrt(o.Dot(o))
}

// blockAt returns a view of the block stored at a local node slot
func (o *Vec) blockAt(slot int) []float64 {
	b := o.bsize
	eo := o.transfer.ExtOffset()
	if slot < eo {
		return o.ext[slot*b : (slot+1)*b]
	}
	no := o.transfer.NumOwned()
	if slot < eo+no {
		k := slot - eo
		return o.owned[k*b : (k+1)*b]
	}
	k := slot - no
	return o.ext[k*b : (k+1)*b]
}

// SetValues writes or accumulates blocks at the given node ids. Dependent
// references (encoded -(k+1)) are accepted in Add mode, where the block is
// distributed to the independent nodes scaled by the constraint weights;
// Insert mode skips them (a dependent node has no storage of its own).
// Nodes not stored locally are silently skipped, matching the distributed
// assembly convention that every process sets only what it stores.
func (o *Vec) SetValues(nodes []int, vals []float64, op AssembleOp) (err error) {
	b := o.bsize
	for i, id := range nodes {
		v := vals[i*b : (i+1)*b]
		ref := RefOf(id)
		if ref.Dep {
			if op == Insert {
				continue
			}
			if ref.Index >= o.dep.Num() {
				return chkErrRank(o.transfer.nm.Rank(), "dependent node index %d is out of range [0,%d)", ref.Index, o.dep.Num())
			}
			dn, dw := o.dep.Row(ref.Index)
			for k, g := range dn {
				slot := o.transfer.LocalOf(g)
				if slot < 0 {
					continue
				}
				blk := o.blockAt(slot)
				for q := 0; q < b; q++ {
					blk[q] += dw[k] * v[q]
				}
			}
			continue
		}
		slot := o.transfer.LocalOf(ref.Index)
		if slot < 0 {
			continue
		}
		blk := o.blockAt(slot)
		if op == Insert {
			copy(blk, v)
		} else {
			for q := 0; q < b; q++ {
				blk[q] += v[q]
			}
		}
	}
	return
}

// GetValues reads blocks at the given node ids into out. Dependent
// references evaluate the weighted combination of their independent nodes
// (ghost copies must be fresh). Referencing a node not stored locally is a
// fatal lookup error.
func (o *Vec) GetValues(nodes []int, out []float64) (err error) {
	b := o.bsize
	for i, id := range nodes {
		v := out[i*b : (i+1)*b]
		ref := RefOf(id)
		if ref.Dep {
			if ref.Index >= o.dep.Num() {
				return chkErrRank(o.transfer.nm.Rank(), "dependent node index %d is out of range [0,%d)", ref.Index, o.dep.Num())
			}
			for q := 0; q < b; q++ {
				v[q] = 0
			}
			dn, dw := o.dep.Row(ref.Index)
			for k, g := range dn {
				slot := o.transfer.LocalOf(g)
				if slot < 0 {
					return chkErrRank(o.transfer.nm.Rank(), "dependent node %d references unregistered node %d", ref.Index, g)
				}
				blk := o.blockAt(slot)
				for q := 0; q < b; q++ {
					v[q] += dw[k] * blk[q]
				}
			}
			continue
		}
		slot := o.transfer.LocalOf(ref.Index)
		if slot < 0 {
			return chkErrRank(o.transfer.nm.Rank(), "node %d is neither owned nor a registered ghost", ref.Index)
		}
		copy(v, o.blockAt(slot))
	}
	return
}

// BeginDistribute starts pushing owned values to the ghost copies on other
// processes; EndDistribute must be called before the ghost data is read.
// Distinct vectors may have transfers in flight simultaneously.
func (o *Vec) BeginDistribute() {
	done := make(chan struct{})
	o.pending = done
	go func() {
		o.transfer.Distribute(o.bsize, o.owned, o.ext)
		close(done)
	}()
}

// EndDistribute waits for a distribute started by BeginDistribute
func (o *Vec) EndDistribute() {
	if o.pending != nil {
		<-o.pending
		o.pending = nil
	}
}

// BeginReduce starts summing ghost contributions into the owners'
// authoritative entries; EndReduce must be called before owned data is read.
// Ghost entries are stale afterwards until the next distribute.
func (o *Vec) BeginReduce() {
	done := make(chan struct{})
	o.pending = done
	go func() {
		o.transfer.Reduce(o.bsize, o.owned, o.ext)
		close(done)
	}()
}

// EndReduce waits for a reduce started by BeginReduce
func (o *Vec) EndReduce() {
	if o.pending != nil {
		<-o.pending
		o.pending = nil
	}
}

// Distribute runs a full (blocking) distribute
func (o *Vec) Distribute() {
	o.BeginDistribute()
	o.EndDistribute()
}

// Reduce runs a full (blocking) reduce
func (o *Vec) Reduce() {
	o.BeginReduce()
	o.EndReduce()
}

// ApplyBCs zeroes the constrained dofs of every locally stored node,
// enforcing the Dirichlet-zero convention used for residual and update
// vectors (consistent with matrix ApplyBCs, which zeroes the same rows and
// columns and sets unit diagonal entries)
func (o *Vec) ApplyBCs() {
	if o.bcs == nil {
		return
	}
	for i := 0; i < o.bcs.Len(); i++ {
		e := o.bcs.Entry(i)
		slot := o.transfer.LocalOf(e.Node)
		if slot < 0 {
			continue
		}
		blk := o.blockAt(slot)
		for _, d := range e.Dofs {
			if d < o.bsize {
				blk[d] = 0
			}
		}
	}
}

// addAtSlot accumulates scale*blk into the block at a local slot
func (o *Vec) addAtSlot(slot int, scale float64, blk []float64) {
	dst := o.blockAt(slot)
	for q := 0; q < o.bsize; q++ {
		dst[q] += scale * blk[q]
	}
}
