// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/C-Perron/tacs/graph"
)

func Test_reorder01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("reorder01. one-shot RCM reordering")

	o := quadGrid(tst, 2, 2, 1)
	if o == nil {
		return
	}

	perm := make([]int, 9)
	if o.GetReordering(perm) {
		tst.Errorf("GetReordering must return false before ComputeReordering")
		return
	}

	if err := o.ComputeReordering(graph.RCMOrder, AdditiveSchwarz); err != nil {
		tst.Errorf("ComputeReordering failed:\n%v", err)
		return
	}
	if !o.GetReordering(perm) {
		tst.Errorf("GetReordering must return true after ComputeReordering")
		return
	}
	if !graph.IsPerm(perm) {
		tst.Errorf("reordering is not a permutation: %v", perm)
		return
	}

	// second call is rejected, the first ordering is kept
	if err := o.ComputeReordering(graph.AMDOrder, AdditiveSchwarz); err == nil {
		tst.Errorf("ComputeReordering must be one-shot")
		return
	}
	keep := make([]int, 9)
	o.GetReordering(keep)
	chk.Ints(tst, "kept ordering", keep, perm)

	// assembly still works on the renumbered mesh: Laplacian row sums vanish
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 2, 2) // integer grid; any positive geometry will do
	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	if err = o.AssembleJacobian(1, 0, 0, nil, a, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}
	for _, row := range a.Dense() {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		chk.Float64(tst, "row sum", 1e-13, sum, 0)
	}
}

func Test_reorder02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("reorder02. all orderings produce bijections")

	for _, kind := range []graph.Ordering{graph.Natural, graph.RCMOrder, graph.AMDOrder, graph.NDOrder} {
		o := quadGrid(tst, 3, 3, 1)
		if o == nil {
			return
		}
		if err := o.ComputeReordering(kind, AdditiveSchwarz); err != nil {
			tst.Errorf("ComputeReordering(%v) failed:\n%v", kind, err)
			return
		}
		perm := make([]int, 16)
		o.GetReordering(perm)
		if !graph.IsPerm(perm) {
			tst.Errorf("%v ordering is not a permutation: %v", kind, perm)
			return
		}
	}
}

func Test_reorder03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("reorder03. vector permutation after reordering")

	o := quadGrid(tst, 2, 2, 1)
	if o == nil {
		return
	}
	if err := o.ComputeReordering(graph.RCMOrder, AdditiveSchwarz); err != nil {
		tst.Errorf("ComputeReordering failed:\n%v", err)
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}

	perm := make([]int, 9)
	o.GetReordering(perm)

	v := o.CreateVec()
	for i := range v.Values() {
		v.Values()[i] = float64(i)
	}
	o.ReorderVec(v)
	for i := 0; i < 9; i++ {
		chk.Float64(tst, "permuted entry", 1e-17, v.Values()[perm[i]], float64(i))
	}
}

func Test_reorder04(tst *testing.T) {

	//verbose()
	chk.PrintTitle("reorder04. reordered local matrix structure")

	o := quadGrid(tst, 2, 2, 1)
	if o == nil {
		return
	}
	if err := o.AddBCs([]int{0}, nil); err != nil {
		tst.Errorf("AddBCs failed:\n%v", err)
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 2, 2)

	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	s, err := o.CreateSchurMat(graph.AMDOrder)
	if err != nil {
		tst.Errorf("CreateSchurMat failed:\n%v", err)
		return
	}

	// in serial no nodes couple: the interior block is everything
	chk.Int(tst, "NumInterior", s.NumInterior(), 9)
	chk.Int(tst, "NumCoupling", s.NumCoupling(), 0)

	if err = o.AssembleJacobian(1, 0, 0, nil, a, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}
	if err = o.AssembleJacobian(1, 0, 0, nil, s, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}

	// the reordered matrix is the symmetric permutation of the global one
	da, ds := a.Dense(), s.Dense()
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			chk.Float64(tst, "permuted block", 1e-14, ds[o.schurPerm[i]][o.schurPerm[j]], da[i][j])
		}
	}

	// later calls reuse the cached permutation regardless of the ordering
	s2, err := o.CreateSchurMat(graph.RCMOrder)
	if err != nil {
		tst.Errorf("CreateSchurMat failed:\n%v", err)
		return
	}
	chk.Int(tst, "NumInterior cached", s2.NumInterior(), 9)
}
