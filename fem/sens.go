// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"github.com/cpmech/gosl/utl"

	"github.com/C-Perron/tacs/ele"
)

// domainOf resolves a function's element subset (nil means all elements)
func (o *Assembler) domainOf(f ele.Function) ([]int, error) {
	dom := f.Domain()
	if dom == nil {
		return utl.IntRange(o.numElements), nil
	}
	for _, e := range dom {
		if e < 0 || e >= o.numElements {
			return nil, chkErrRank(o.mrank, "function domain references element %d outside [0,%d)", e, o.numElements)
		}
	}
	return dom, nil
}

// EvalFunctions evaluates objective/constraint functions over their element
// domains following the bracketed multi-iteration protocol and sums the
// partial values across processes into vals (one entry per function)
func (o *Assembler) EvalFunctions(funcs []ele.Function, vals []float64) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "EvalFunctions requires an initialized assembler")
	}
	ar := o.newArena()
	for i, f := range funcs {
		var dom []int
		if dom, err = o.domainOf(f); err != nil {
			return
		}
		for iter := 0; iter < f.NumIterations(); iter++ {
			f.PreEval(iter)
			for _, e := range dom {
				var nnodes int
				if nnodes, err = o.expandElement(e, ar); err != nil {
					return
				}
				o.gatherElement(e, nnodes, ar)
				if err = f.ElemEval(iter, e, o.elements[e], o.time, ar.xpts, ar.vars, ar.dvars, ar.ddvars); err != nil {
					return
				}
			}
			f.PostEval(iter)
		}
		vals[i] = f.Value()
	}
	if o.msize > 1 {
		local := append([]float64(nil), vals[:len(funcs)]...)
		o.comm.AllReduceSum(vals[:len(funcs)], local)
	}
	return
}

// AddSVSens accumulates the state-variable gradients df/du of each function
// into the corresponding vector, reducing ghost contributions and applying
// the boundary conditions. Functions must implement ele.FuncWithSVSens.
func (o *Assembler) AddSVSens(funcs []ele.Function, dfdu []*Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AddSVSens requires an initialized assembler")
	}
	ar := o.newArena()
	for i, f := range funcs {
		fs, ok := f.(ele.FuncWithSVSens)
		if !ok {
			return chkErrRank(o.mrank, "function %d does not expose state-variable sensitivities", i)
		}
		var dom []int
		if dom, err = o.domainOf(f); err != nil {
			return
		}
		for _, e := range dom {
			var nnodes int
			if nnodes, err = o.expandElement(e, ar); err != nil {
				return
			}
			el := o.elements[e]
			o.gatherElement(e, nnodes, ar)
			zeroArenaRes(ar, el.NumVars())
			fs.ElemSVSens(e, el, o.time, ar.res, ar.xpts, ar.vars, ar.dvars, ar.ddvars)
			o.scatterResidual(dfdu[i], nnodes, ar)
		}
		dfdu[i].BeginReduce()
		dfdu[i].EndReduce()
		dfdu[i].ApplyBCs()
	}
	return
}

// gatherAdjoint fills ar.adj with the element values of an adjoint vector
func (o *Assembler) gatherAdjoint(psi *Vec, nnodes int, ar *arena) {
	b := o.varsPerNode
	for i := 0; i < nnodes; i++ {
		for q := 0; q < b; q++ {
			ar.adj[i*b+q] = 0
		}
		for k := ar.varp[i]; k < ar.varp[i+1]; k++ {
			blk := psi.blockAt(ar.slots[k])
			for q := 0; q < b; q++ {
				ar.adj[i*b+q] += ar.weights[k] * blk[q]
			}
		}
	}
}

// AddAdjointResProducts accumulates scale * psi^T * dR/dx for each adjoint
// vector into the aligned design-variable arrays. Elements without
// sensitivity support contribute nothing. The adjoint ghost copies are
// refreshed before the loop; the caller owns any cross-process reduction of
// the design arrays (design variables are replicated in this convention).
func (o *Assembler) AddAdjointResProducts(scale float64, psi []*Vec, dvSens [][]float64) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AddAdjointResProducts requires an initialized assembler")
	}
	for _, p := range psi {
		p.BeginDistribute()
	}
	for _, p := range psi {
		p.EndDistribute()
	}
	ar := o.newArena()
	for k, p := range psi {
		for e := 0; e < o.numElements; e++ {
			el, ok := o.elements[e].(ele.WithSens)
			if !ok {
				continue
			}
			var nnodes int
			if nnodes, err = o.expandElement(e, ar); err != nil {
				return
			}
			o.gatherElement(e, nnodes, ar)
			o.gatherAdjoint(p, nnodes, ar)
			el.AddAdjResProduct(o.time, scale, dvSens[k], ar.adj, ar.xpts, ar.vars, ar.dvars, ar.ddvars)
		}
	}
	return
}

// scatterNodeSens adds per-node coordinate sensitivities (SpatialDim values
// per element node) into a node vector at the expanded slots
func (o *Assembler) scatterNodeSens(v *Vec, nnodes int, ar *arena) {
	for i := 0; i < nnodes; i++ {
		blk := ar.sens[i*SpatialDim : (i+1)*SpatialDim]
		for k := ar.varp[i]; k < ar.varp[i+1]; k++ {
			v.addAtSlot(ar.slots[k], ar.weights[k], blk)
		}
	}
}

// AddXptSens accumulates the nodal-coordinate gradients df/dX of each
// function into the corresponding node vector (SpatialDim values per node),
// reducing ghost contributions. Functions must implement ele.FuncWithXptSens.
func (o *Assembler) AddXptSens(funcs []ele.Function, fXptSens []*Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AddXptSens requires an initialized assembler")
	}
	ar := o.newArena()
	for i, f := range funcs {
		fx, ok := f.(ele.FuncWithXptSens)
		if !ok {
			return chkErrRank(o.mrank, "function %d does not expose coordinate sensitivities", i)
		}
		var dom []int
		if dom, err = o.domainOf(f); err != nil {
			return
		}
		for _, e := range dom {
			var nnodes int
			if nnodes, err = o.expandElement(e, ar); err != nil {
				return
			}
			o.gatherElement(e, nnodes, ar)
			for q := 0; q < SpatialDim*nnodes; q++ {
				ar.sens[q] = 0
			}
			fx.ElemXptSens(e, o.elements[e], o.time, ar.sens, ar.xpts, ar.vars, ar.dvars, ar.ddvars)
			o.scatterNodeSens(fXptSens[i], nnodes, ar)
		}
		fXptSens[i].BeginReduce()
		fXptSens[i].EndReduce()
	}
	return
}

// AddAdjointResXptProducts accumulates psi^T * dR/dX for each adjoint vector
// into the aligned node vectors (SpatialDim values per node), reducing ghost
// contributions. Elements without sensitivity support contribute nothing.
func (o *Assembler) AddAdjointResXptProducts(psi []*Vec, products []*Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "AddAdjointResXptProducts requires an initialized assembler")
	}
	for _, p := range psi {
		p.BeginDistribute()
	}
	for _, p := range psi {
		p.EndDistribute()
	}
	ar := o.newArena()
	for k, p := range psi {
		for e := 0; e < o.numElements; e++ {
			el, ok := o.elements[e].(ele.WithSens)
			if !ok {
				continue
			}
			var nnodes int
			if nnodes, err = o.expandElement(e, ar); err != nil {
				return
			}
			o.gatherElement(e, nnodes, ar)
			o.gatherAdjoint(p, nnodes, ar)
			for q := 0; q < SpatialDim*nnodes; q++ {
				ar.sens[q] = 0
			}
			el.AddAdjResXptProduct(o.time, ar.sens, ar.adj, ar.xpts, ar.vars, ar.dvars, ar.ddvars)
			o.scatterNodeSens(products[k], nnodes, ar)
		}
		products[k].BeginReduce()
		products[k].EndReduce()
	}
	return
}
