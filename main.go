// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/mpi"

	"github.com/C-Perron/tacs/ele"
	"github.com/C-Perron/tacs/fem"
	"github.com/C-Perron/tacs/graph"
)

// assembles a structured nx x ny grid of Quad4 elements, striped by rank,
// and reports residual and Jacobian statistics. Run serially or with
// mpirun -np N.
func main() {

	// catch errors
	defer func() {
		if err := recover(); err != nil {
			io.PfRed("\nERROR: %v\n", err)
			chk.Verbose = true
			chk.CallerInfo(3)
		}
		mpi.Stop()
	}()
	mpi.Start()

	// read input parameters
	nx := io.ArgToInt(0, 10)
	ny := io.ArgToInt(1, 10)
	ndof := io.ArgToInt(2, 1)
	reorder := io.ArgToBool(3, true)
	verbose := io.ArgToBool(4, true)

	var comm *mpi.Communicator
	rank, size := 0, 1
	if mpi.IsOn() && mpi.WorldSize() > 1 {
		comm = mpi.NewCommunicator(nil)
		rank, size = comm.Rank(), comm.Size()
	}

	// message
	if rank == 0 && verbose {
		io.PfWhite("\nTacs -- Parallel Finite Element Assembly\n")
		io.Pf("\n%v\n", io.ArgsTable("INPUT ARGUMENTS",
			"number of elements along x", "nx", nx,
			"number of elements along y", "ny", ny,
			"degrees of freedom per node", "ndof", ndof,
			"apply RCM reordering", "reorder", reorder,
			"show messages", "verbose", verbose,
		))
	}

	// stripe the node rows: rank r owns node rows [rowOf(r), rowOf(r+1))
	rowOf := func(r int) int { return r * (ny + 1) / size }
	j0, j1 := rowOf(rank), rowOf(rank+1)
	numOwned := (j1 - j0) * (nx + 1)

	// elements of row j live with the owner of node row j
	e0, e1 := j0, j1
	if e1 > ny {
		e1 = ny
	}
	nelems := (e1 - e0) * nx

	a, err := fem.NewAssembler(comm, ndof, numOwned, nelems, 0)
	if err != nil {
		chk.Panic("cannot allocate assembler:\n%v", err)
	}
	a.Verbose = verbose

	// local connectivity with global node ids
	ptr := make([]int, nelems+1)
	conn := make([]int, 0, 4*nelems)
	elems := make([]ele.Element, 0, nelems)
	for j := e0; j < e1; j++ {
		for i := 0; i < nx; i++ {
			n0 := j*(nx+1) + i
			conn = append(conn, n0, n0+1, n0+nx+2, n0+nx+1)
			ptr[len(elems)+1] = len(conn)
			elems = append(elems, ele.NewQuad4(ndof, 1, 1))
		}
	}
	if err = a.SetElementConnectivity(ptr, conn); err != nil {
		chk.Panic("cannot set connectivity:\n%v", err)
	}
	if err = a.SetElements(elems); err != nil {
		chk.Panic("cannot set elements:\n%v", err)
	}

	// clamp the left edge
	var fixed []int
	for j := j0; j < j1; j++ {
		fixed = append(fixed, j*(nx+1))
	}
	if err = a.AddBCs(fixed, nil); err != nil {
		chk.Panic("cannot add boundary conditions:\n%v", err)
	}

	// fill-reducing reordering before initialization
	if reorder {
		if err = a.ComputeReordering(graph.RCMOrder, fem.ApproximateSchur); err != nil {
			chk.Panic("cannot reorder:\n%v", err)
		}
	}
	if err = a.Initialize(); err != nil {
		chk.Panic("cannot initialize:\n%v", err)
	}

	// nodal coordinates and a smooth state, addressed by the current ids
	perm := make([]int, numOwned)
	if !a.GetReordering(perm) {
		for i := range perm {
			perm[i] = a.NodeMap().Offset() + i
		}
	}
	x := a.CreateNodeVec()
	q := a.CreateVec()
	node := make([]int, 1)
	xyz := make([]float64, 3)
	uu := make([]float64, ndof)
	for i := 0; i < numOwned; i++ {
		old := a.NodeMap().Offset() + i
		gi, gj := old%(nx+1), old/(nx+1)
		node[0] = perm[i]
		xyz[0], xyz[1] = float64(gi), float64(gj)
		if err = x.SetValues(node, xyz, fem.Insert); err != nil {
			chk.Panic("cannot set coordinates:\n%v", err)
		}
		for d := range uu {
			uu[d] = float64(gi*gi+gj) / float64(nx*nx+ny)
		}
		if err = q.SetValues(node, uu, fem.Insert); err != nil {
			chk.Panic("cannot set state:\n%v", err)
		}
	}
	if err = a.SetNodes(x); err != nil {
		chk.Panic("cannot set nodes:\n%v", err)
	}
	if err = a.SetVariables(q, nil, nil); err != nil {
		chk.Panic("cannot set variables:\n%v", err)
	}

	// assemble the residual and the Jacobian
	res := a.CreateVec()
	jac, err := a.CreateMat()
	if err != nil {
		chk.Panic("cannot create matrix:\n%v", err)
	}
	if err = a.AssembleJacobian(1, 0, 0, res, jac, fem.Normal); err != nil {
		chk.Panic("cannot assemble:\n%v", err)
	}

	// reordered local/coupling matrix
	schur, err := a.CreateSchurMat(graph.CoupledAMDOrder)
	if err != nil {
		chk.Panic("cannot create reordered matrix:\n%v", err)
	}
	if err = a.AssembleJacobian(1, 0, 0, nil, schur, fem.Normal); err != nil {
		chk.Panic("cannot assemble reordered matrix:\n%v", err)
	}

	// report (the norm is collective)
	norm := res.Norm()
	if rank == 0 && verbose {
		io.Pf("\n%v\n", io.ArgsTable("RESULTS",
			"global nodes", "nnodes", (nx+1)*(ny+1),
			"global elements", "nelems", nx*ny,
			"residual norm", "norm", io.Sf("%.6e", norm),
			"interior nodes (local)", "interior", schur.NumInterior(),
			"coupling nodes (local)", "coupling", schur.NumCoupling(),
		))
	}
}
