// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

// Function defines an objective or constraint evaluated over a set of
// elements, following a bracketed multi-iteration protocol: for each
// iteration, PreEval is called once, ElemEval once per element of the
// domain, and PostEval once. Partial values are summed across processes by
// the assembler after the last iteration.
type Function interface {

	// Domain returns the indices of the elements this function integrates
	// over, or nil for the entire domain
	Domain() []int

	// NumIterations returns the number of evaluation iterations required
	// (e.g. 2 for functions needing a global maximum before integrating)
	NumIterations() int

	PreEval(iter int)
	ElemEval(iter, elemIndex int, elem Element, time float64, xpts, vars, dvars, ddvars []float64) (err error)
	PostEval(iter int)

	// Value returns this process's partial value after the last iteration
	Value() float64
}

// FuncWithSVSens defines functions exposing the state-variable gradient
type FuncWithSVSens interface {

	// ElemSVSens adds df/du of this element's contribution into sens
	// (NumVars values)
	ElemSVSens(elemIndex int, elem Element, time float64, sens, xpts, vars, dvars, ddvars []float64)
}

// FuncWithXptSens defines functions exposing the nodal-coordinate gradient
type FuncWithXptSens interface {

	// ElemXptSens adds df/dX of this element's contribution into sens
	// (3 values per node)
	ElemXptSens(elemIndex int, elem Element, time float64, sens, xpts, vars, dvars, ddvars []float64)
}

// StateNorm is a simple Function: the sum over its domain of the squared
// element state variables. Shared nodes are counted once per touching
// element.
type StateNorm struct {
	Elems []int // subset of elements; nil => entire domain
	val   float64
}

// Domain returns the element subset
func (o *StateNorm) Domain() []int { return o.Elems }

// NumIterations returns 1
func (o *StateNorm) NumIterations() int { return 1 }

// PreEval resets the accumulated value
func (o *StateNorm) PreEval(iter int) { o.val = 0 }

// ElemEval accumulates the squared state variables of one element
func (o *StateNorm) ElemEval(iter, elemIndex int, elem Element, time float64, xpts, vars, dvars, ddvars []float64) (err error) {
	for _, u := range vars[:elem.NumVars()] {
		o.val += u * u
	}
	return
}

// PostEval does nothing
func (o *StateNorm) PostEval(iter int) {}

// Value returns the partial sum
func (o *StateNorm) Value() float64 { return o.val }

// ElemSVSens adds the gradient 2*u of this element's contribution
func (o *StateNorm) ElemSVSens(elemIndex int, elem Element, time float64, sens, xpts, vars, dvars, ddvars []float64) {
	for i := 0; i < elem.NumVars(); i++ {
		sens[i] += 2.0 * vars[i]
	}
}
