// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

// unitSquare returns the coordinates of a unit square element
func unitSquare() []float64 {
	return []float64{
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	}
}

func Test_quad401(tst *testing.T) {

	//verbose()
	chk.PrintTitle("quad401. zero state gives zero residual")

	e := NewQuad4(2, 1.5, 0.8)
	chk.Int(tst, "NumNodes", e.NumNodes(), 4)
	chk.Int(tst, "NumVars", e.NumVars(), 8)

	res := make([]float64, e.NumVars())
	zero := make([]float64, e.NumVars())
	err := e.AddResidual(0, res, unitSquare(), zero, zero, zero)
	if err != nil {
		tst.Errorf("%v\n", err)
		return
	}
	chk.Array(tst, "res", 1e-17, res, make([]float64, e.NumVars()))
}

func Test_quad402(tst *testing.T) {

	//verbose()
	chk.PrintTitle("quad402. residual matches jacobian-vector product")

	e := NewQuad4(1, 2.0, 0.0)
	nv := e.NumVars()
	u := []float64{0.3, -1.2, 0.7, 2.1}
	zero := make([]float64, nv)

	res := make([]float64, nv)
	err := e.AddResidual(0, res, unitSquare(), u, zero, zero)
	if err != nil {
		tst.Errorf("%v\n", err)
		return
	}

	// R is linear in u, so R(u) = (dR/du) * u
	jac := make([]float64, nv*nv)
	err = e.AddJacobian(0, jac, 1, 0, 0, unitSquare(), u, zero, zero)
	if err != nil {
		tst.Errorf("%v\n", err)
		return
	}
	ju := make([]float64, nv)
	for i := 0; i < nv; i++ {
		for j := 0; j < nv; j++ {
			ju[i] += jac[i*nv+j] * u[j]
		}
	}
	chk.Array(tst, "K*u", 1e-14, res, ju)
}

func Test_quad403(tst *testing.T) {

	//verbose()
	chk.PrintTitle("quad403. stiffness rows sum to zero and mass integrates the area")

	e := NewQuad4(1, 1.0, 1.0)
	nv := e.NumVars()
	K := make([]float64, nv*nv)
	M := make([]float64, nv*nv)
	u := make([]float64, nv)
	err := e.GetMatType(StiffnessMatrix, K, unitSquare(), u)
	if err != nil {
		tst.Errorf("%v\n", err)
		return
	}
	err = e.GetMatType(MassMatrix, M, unitSquare(), u)
	if err != nil {
		tst.Errorf("%v\n", err)
		return
	}

	// constant fields produce no flux; total mass equals the area
	mass := 0.0
	for i := 0; i < nv; i++ {
		rowK := 0.0
		for j := 0; j < nv; j++ {
			rowK += K[i*nv+j]
			mass += M[i*nv+j]
			if K[i*nv+j] != K[j*nv+i] {
				tst.Errorf("K is not symmetric at (%d,%d)\n", i, j)
				return
			}
		}
		chk.Float64(tst, "sum(K row)", 1e-14, rowK, 0)
	}
	chk.Float64(tst, "total mass", 1e-14, mass, 1.0)
}

func Test_quad404(tst *testing.T) {

	//verbose()
	chk.PrintTitle("quad404. adjoint-residual design product")

	e := NewQuad4(1, 3.0, 0.0)
	nv := e.NumVars()
	u := []float64{1.0, 0.5, -0.25, 2.0}
	psi := []float64{0.1, -0.2, 0.3, 0.4}
	zero := make([]float64, nv)

	// dR/dKcond = K0*u = R/Kcond for this linear kernel
	res := make([]float64, nv)
	err := e.AddResidual(0, res, unitSquare(), u, zero, zero)
	if err != nil {
		tst.Errorf("%v\n", err)
		return
	}
	want := 0.0
	for i := 0; i < nv; i++ {
		want += psi[i] * res[i] / e.Kcond
	}

	dv := make([]float64, 1)
	e.AddAdjResProduct(0, 1.0, dv, psi, unitSquare(), u, zero, zero)
	chk.Float64(tst, "dvSens", 1e-14, dv[0], want)
}

func Test_aux01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("aux01. sorted auxiliary element lookup")

	var aux AuxElems
	e := NewQuad4(1, 1, 0)
	aux.Add(4, e)
	aux.Add(1, e)
	aux.Add(4, e)
	aux.Sort()

	chk.Int(tst, "Len", aux.Len(), 3)
	chk.Int(tst, "len(Get(4))", len(aux.Get(4)), 2)
	chk.Int(tst, "len(Get(1))", len(aux.Get(1)), 1)
	chk.Int(tst, "len(Get(0))", len(aux.Get(0)), 0)
	chk.Int(tst, "len(Get(7))", len(aux.Get(7)), 0)
}
