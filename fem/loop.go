// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sync"
	"sync/atomic"

	"github.com/C-Perron/tacs/ele"
)

// Orientation selects whether element matrices are scattered as-is or
// transposed
type Orientation int

const (
	// Normal keeps the element matrix orientation
	Normal Orientation = iota

	// Transpose scatters the transposed element matrix
	Transpose
)

// arena holds one worker's scratch storage, sized once at initialization
// from the worst-case element so the element loop performs no allocation
type arena struct {
	slots   []int     // expanded local slots
	weights []float64 // expansion weights, aligned with slots
	varp    []int     // element node -> range in slots/weights
	xpts    []float64
	vars    []float64
	dvars   []float64
	ddvars  []float64
	res     []float64
	mat     []float64
	adj     []float64 // gathered adjoint values
	sens    []float64 // per-element design or coordinate sensitivities
}

func (o *Assembler) newArena() *arena {
	ni, nn, ns := o.maxElemIndep, o.maxElemNodes, o.maxElemSize
	nsens := SpatialDim * nn
	if ns > nsens {
		nsens = ns
	}
	return &arena{
		slots:   make([]int, ni),
		weights: make([]float64, ni),
		varp:    make([]int, nn+1),
		xpts:    make([]float64, SpatialDim*nn),
		vars:    make([]float64, ns),
		dvars:   make([]float64, ns),
		ddvars:  make([]float64, ns),
		res:     make([]float64, ns),
		mat:     make([]float64, ns*ns),
		adj:     make([]float64, ns),
		sens:    make([]float64, nsens),
	}
}

// expandElement decodes element e's connectivity into the arena: varp[i]
// delimits the (slot, weight) expansion of element node i (a single unit
// weight for independent nodes, the constraint row for dependent nodes).
// Returns the number of element nodes.
func (o *Assembler) expandElement(e int, ar *arena) (nnodes int, err error) {
	conn := o.conn[o.connPtr[e]:o.connPtr[e+1]]
	nnodes = len(conn)
	pos := 0
	ar.varp[0] = 0
	for i, id := range conn {
		ref := RefOf(id)
		if ref.Dep {
			dn, dw := o.dep.Row(ref.Index)
			for k, g := range dn {
				slot := o.transfer.LocalOf(g)
				if slot < 0 {
					return 0, chkErrRank(o.mrank, "dependent node %d references unregistered node %d", ref.Index, g)
				}
				ar.slots[pos] = slot
				ar.weights[pos] = dw[k]
				pos++
			}
		} else {
			slot := o.transfer.LocalOf(ref.Index)
			if slot < 0 {
				return 0, chkErrRank(o.mrank, "element %d references unregistered node %d", e, ref.Index)
			}
			ar.slots[pos] = slot
			ar.weights[pos] = 1.0
			pos++
		}
		ar.varp[i+1] = pos
	}
	return
}

// gatherElement fills the arena with element e's coordinates and state,
// evaluating dependent nodes as the weighted sum of their independent nodes
// (ghost copies must be fresh)
func (o *Assembler) gatherElement(e, nnodes int, ar *arena) {
	b := o.varsPerNode
	for i := 0; i < nnodes; i++ {
		for q := 0; q < SpatialDim; q++ {
			ar.xpts[i*SpatialDim+q] = 0
		}
		for q := 0; q < b; q++ {
			ar.vars[i*b+q] = 0
			ar.dvars[i*b+q] = 0
			ar.ddvars[i*b+q] = 0
		}
		for k := ar.varp[i]; k < ar.varp[i+1]; k++ {
			slot, w := ar.slots[k], ar.weights[k]
			xb := o.xpts.blockAt(slot)
			for q := 0; q < SpatialDim; q++ {
				ar.xpts[i*SpatialDim+q] += w * xb[q]
			}
			vb := o.vars.blockAt(slot)
			db := o.dvars.blockAt(slot)
			ab := o.ddvars.blockAt(slot)
			for q := 0; q < b; q++ {
				ar.vars[i*b+q] += w * vb[q]
				ar.dvars[i*b+q] += w * db[q]
				ar.ddvars[i*b+q] += w * ab[q]
			}
		}
	}
}

// scatterResidual adds the element residual into the global vector,
// distributing dependent-node rows to their independent nodes scaled by the
// constraint weights. The caller must hold the assembly lock.
func (o *Assembler) scatterResidual(res *Vec, nnodes int, ar *arena) {
	b := o.varsPerNode
	for i := 0; i < nnodes; i++ {
		blk := ar.res[i*b : (i+1)*b]
		for k := ar.varp[i]; k < ar.varp[i+1]; k++ {
			res.addAtSlot(ar.slots[k], ar.weights[k], blk)
		}
	}
}

// scatterMatrix adds the dense element matrix into the global matrix. Each
// (element row i, element column j) block lands on every pair of expanded
// independent slots, scaled by the product of the two constraint weights, so
// dependent rows and columns are algebraically eliminated by substitution.
// The caller must hold the assembly lock.
func (o *Assembler) scatterMatrix(a Matrix, nnodes int, ar *arena, or Orientation) {
	b := o.varsPerNode
	ld := nnodes * b
	for i := 0; i < nnodes; i++ {
		for j := 0; j < nnodes; j++ {
			ri, ci := i*b, j*b
			tr := false
			if or == Transpose {
				ri, ci = j*b, i*b
				tr = true
			}
			for ki := ar.varp[i]; ki < ar.varp[i+1]; ki++ {
				for kj := ar.varp[j]; kj < ar.varp[j+1]; kj++ {
					a.AddBlock(ar.slots[ki], ar.slots[kj], ar.weights[ki]*ar.weights[kj],
						ar.mat, ld, ri, ci, tr)
				}
			}
		}
	}
}

// elementLoop runs kernel over every local element. With more than one
// worker, elements are claimed dynamically from a shared counter and each
// worker uses a private scratch arena; the call returns only after all
// workers have joined. The kernel must take the assembly lock around
// scatter-adds into shared outputs.
func (o *Assembler) elementLoop(kernel func(e int, ar *arena) error) (err error) {
	if o.nworkers <= 1 {
		ar := o.newArena()
		for e := 0; e < o.numElements; e++ {
			if err = kernel(e, ar); err != nil {
				return
			}
		}
		return
	}
	var next int64
	var wg sync.WaitGroup
	errs := make([]error, o.nworkers)
	for w := 0; w < o.nworkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ar := o.newArena()
			for {
				e := int(atomic.AddInt64(&next, 1)) - 1
				if e >= o.numElements {
					return
				}
				if err := kernel(e, ar); err != nil {
					errs[w] = err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return
}

// zeroArenaRes zeroes the residual scratch
func zeroArenaRes(ar *arena, n int) {
	for i := 0; i < n; i++ {
		ar.res[i] = 0
	}
}

// zeroArenaMat zeroes the matrix scratch
func zeroArenaMat(ar *arena, n int) {
	for i := 0; i < n*n; i++ {
		ar.mat[i] = 0
	}
}

// AssembleResidual assembles the global residual at the current state:
// zeroes res, runs the element loop (auxiliary contributions merged per
// element), sums ghost contributions into their owners and applies the
// boundary conditions
func (o *Assembler) AssembleResidual(res *Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AssembleResidual requires an initialized assembler")
	}
	res.Zero()
	err = o.elementLoop(func(e int, ar *arena) (err error) {
		nnodes, err := o.expandElement(e, ar)
		if err != nil {
			return
		}
		el := o.elements[e]
		nv := el.NumVars()
		o.gatherElement(e, nnodes, ar)
		zeroArenaRes(ar, nv)
		if err = el.AddResidual(o.time, ar.res, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
			return
		}
		for _, ax := range o.aux.Get(e) {
			if ax.Elem.NumVars() != nv {
				return chkErrRank(o.mrank, "auxiliary element at %d has %d variables; the primary element has %d", e, ax.Elem.NumVars(), nv)
			}
			if err = ax.Elem.AddResidual(o.time, ar.res, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
				return
			}
		}
		o.mu.Lock()
		o.scatterResidual(res, nnodes, ar)
		o.mu.Unlock()
		return
	})
	if err != nil {
		return
	}
	res.BeginReduce()
	res.EndReduce()
	res.ApplyBCs()
	return
}

// AssembleJacobian assembles the residual (if res is non-nil) and the
// Jacobian alpha*dR/du + beta*dR/dudot + gamma*dR/duddot in one element
// loop, then completes the cross-process exchanges and applies the boundary
// conditions to both outputs
func (o *Assembler) AssembleJacobian(alpha, beta, gamma float64, res *Vec, a Matrix, or Orientation) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AssembleJacobian requires an initialized assembler")
	}
	if res != nil {
		res.Zero()
	}
	a.ZeroEntries()
	err = o.elementLoop(func(e int, ar *arena) (err error) {
		nnodes, err := o.expandElement(e, ar)
		if err != nil {
			return
		}
		el := o.elements[e]
		nv := el.NumVars()
		o.gatherElement(e, nnodes, ar)
		zeroArenaRes(ar, nv)
		zeroArenaMat(ar, nv)
		if err = el.AddResidual(o.time, ar.res, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
			return
		}
		if err = el.AddJacobian(o.time, ar.mat, alpha, beta, gamma, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
			return
		}
		for _, ax := range o.aux.Get(e) {
			if ax.Elem.NumVars() != nv {
				return chkErrRank(o.mrank, "auxiliary element at %d has %d variables; the primary element has %d", e, ax.Elem.NumVars(), nv)
			}
			if err = ax.Elem.AddResidual(o.time, ar.res, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
				return
			}
			if err = ax.Elem.AddJacobian(o.time, ar.mat, alpha, beta, gamma, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
				return
			}
		}
		o.mu.Lock()
		if res != nil {
			o.scatterResidual(res, nnodes, ar)
		}
		o.scatterMatrix(a, nnodes, ar, or)
		o.mu.Unlock()
		return
	})
	if err != nil {
		return
	}
	a.BeginAssembly()
	a.EndAssembly()
	a.ApplyBCs()
	if res != nil {
		res.BeginReduce()
		res.EndReduce()
		res.ApplyBCs()
	}
	return
}

// AssembleMatrixType assembles a single matrix of the given type (stiffness,
// mass, geometric stiffness) from elements implementing ele.WithMatType;
// elements without the capability contribute nothing
func (o *Assembler) AssembleMatrixType(mtype ele.MatrixType, a Matrix, or Orientation) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AssembleMatrixType requires an initialized assembler")
	}
	a.ZeroEntries()
	err = o.elementLoop(func(e int, ar *arena) (err error) {
		el, ok := o.elements[e].(ele.WithMatType)
		if !ok {
			return
		}
		nnodes, err := o.expandElement(e, ar)
		if err != nil {
			return
		}
		nv := o.elements[e].NumVars()
		o.gatherElement(e, nnodes, ar)
		zeroArenaMat(ar, nv)
		if err = el.GetMatType(mtype, ar.mat, ar.xpts, ar.vars); err != nil {
			return
		}
		o.mu.Lock()
		o.scatterMatrix(a, nnodes, ar, or)
		o.mu.Unlock()
		return
	})
	if err != nil {
		return
	}
	a.BeginAssembly()
	a.EndAssembly()
	a.ApplyBCs()
	return
}

// AddJacobianVecProduct adds scale times the product of the Jacobian
// alpha*dR/du + beta*dR/dudot + gamma*dR/duddot with x into y, matrix-free:
// each element's dense Jacobian multiplies the gathered x values and the
// result is scattered like a residual, reduced across processes and
// BC-zeroed so constrained dofs agree with a product by the assembled
// Jacobian. x must have fresh ghost copies.
func (o *Assembler) AddJacobianVecProduct(scale, alpha, beta, gamma float64, x, y *Vec, or Orientation) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AddJacobianVecProduct requires an initialized assembler")
	}
	x.Distribute()
	b := o.varsPerNode
	err = o.elementLoop(func(e int, ar *arena) (err error) {
		nnodes, err := o.expandElement(e, ar)
		if err != nil {
			return
		}
		el := o.elements[e]
		nv := el.NumVars()
		o.gatherElement(e, nnodes, ar)
		zeroArenaMat(ar, nv)
		if err = el.AddJacobian(o.time, ar.mat, alpha, beta, gamma, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
			return
		}

		// gather element x values into the sens scratch (reused as xe)
		xe := ar.sens[:nv]
		for i := range xe {
			xe[i] = 0
		}
		for i := 0; i < nnodes; i++ {
			for k := ar.varp[i]; k < ar.varp[i+1]; k++ {
				blk := x.blockAt(ar.slots[k])
				for q := 0; q < b; q++ {
					xe[i*b+q] += ar.weights[k] * blk[q]
				}
			}
		}

		// res = scale * J * xe (or J^T for the transpose orientation)
		zeroArenaRes(ar, nv)
		for i := 0; i < nv; i++ {
			sum := 0.0
			for j := 0; j < nv; j++ {
				if or == Transpose {
					sum += ar.mat[j*nv+i] * xe[j]
				} else {
					sum += ar.mat[i*nv+j] * xe[j]
				}
			}
			ar.res[i] = scale * sum
		}
		o.mu.Lock()
		o.scatterResidual(y, nnodes, ar)
		o.mu.Unlock()
		return
	})
	if err != nil {
		return
	}
	y.BeginReduce()
	y.EndReduce()
	y.ApplyBCs()
	return
}
