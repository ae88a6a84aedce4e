// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"os"
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/mpi"
	"github.com/cpmech/gosl/utl"

	"github.com/C-Perron/tacs/ele"
	"github.com/C-Perron/tacs/graph"
)

// TestMain brackets the run with MPI when requested:
//
//	TACS_MPI=1 mpirun -np 2 go test -run mpi
func TestMain(m *testing.M) {
	if os.Getenv("TACS_MPI") == "1" {
		mpi.Start()
		code := m.Run()
		mpi.Stop()
		os.Exit(code)
	}
	os.Exit(m.Run())
}

func Test_mpi01(tst *testing.T) {

	//verbose()
	if !mpi.IsOn() {
		tst.Skip("this test requires MPI: TACS_MPI=1 mpirun -np 2 go test -run mpi01")
	}
	chk.PrintTitle("mpi01. two-process strip matches the serial assembly")

	comm := mpi.NewCommunicator(nil)
	if comm.Size() != 2 {
		tst.Skip("this test requires exactly 2 processes")
	}
	rank := comm.Rank()

	// a 2x1 strip of unit quads: rank 0 owns nodes 0-2 and the left quad,
	// rank 1 owns nodes 3-5 and the right quad
	o, err := NewAssembler(comm, 1, 3, 1, 0)
	if err != nil {
		tst.Errorf("NewAssembler failed:\n%v", err)
		return
	}
	conn := []int{0, 1, 4, 3}
	if rank == 1 {
		conn = []int{1, 2, 5, 4}
	}
	if err = o.SetElementConnectivity([]int{0, 4}, conn); err != nil {
		tst.Errorf("SetElementConnectivity failed:\n%v", err)
		return
	}
	if err = o.SetElements([]ele.Element{ele.NewQuad4(1, 1, 1)}); err != nil {
		tst.Errorf("SetElements failed:\n%v", err)
		return
	}

	// rank 1 constrains a node owned by rank 0 (the exchange must deliver
	// it) and node 5, which rank 0 never stores: column 5 of rank 0's row 1
	// exists only through the merged remote pattern, so it must arrive
	// already masked
	if rank == 1 {
		if err = o.AddBCs([]int{2, 5}, nil); err != nil {
			tst.Errorf("AddBCs failed:\n%v", err)
			return
		}
	}
	if err = o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}

	nodes := utl.IntRange(6)
	xyz := []float64{0, 0, 0, 1, 0, 0, 2, 0, 0, 0, 1, 0, 1, 1, 0, 2, 1, 0}
	u := []float64{1, 2, 3, 4, 5, 6}
	x := o.CreateNodeVec()
	if err = x.SetValues(nodes, xyz, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}
	if err = o.SetNodes(x); err != nil {
		tst.Errorf("SetNodes failed:\n%v", err)
		return
	}
	q := o.CreateVec()
	if err = q.SetValues(nodes, u, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}
	if err = o.SetVariables(q, nil, nil); err != nil {
		tst.Errorf("SetVariables failed:\n%v", err)
		return
	}

	res := o.CreateVec()
	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	if err = o.AssembleJacobian(1, 0, 0, res, a, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}

	// serial reference over the full mesh
	ref, err := NewAssembler(nil, 1, 6, 2, 0)
	if err != nil {
		tst.Errorf("NewAssembler failed:\n%v", err)
		return
	}
	if err = ref.SetElementConnectivity([]int{0, 4, 8}, []int{0, 1, 4, 3, 1, 2, 5, 4}); err != nil {
		tst.Errorf("SetElementConnectivity failed:\n%v", err)
		return
	}
	if err = ref.SetElements([]ele.Element{ele.NewQuad4(1, 1, 1), ele.NewQuad4(1, 1, 1)}); err != nil {
		tst.Errorf("SetElements failed:\n%v", err)
		return
	}
	if err = ref.AddBCs([]int{2, 5}, nil); err != nil {
		tst.Errorf("AddBCs failed:\n%v", err)
		return
	}
	if err = ref.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	rx := ref.CreateNodeVec()
	rx.SetValues(nodes, xyz, Insert)
	ref.SetNodes(rx)
	rq := ref.CreateVec()
	rq.SetValues(nodes, u, Insert)
	ref.SetVariables(rq, nil, nil)
	rres := ref.CreateVec()
	ra, err := ref.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	if err = ref.AssembleJacobian(1, 0, 0, rres, ra, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}

	// owned residual entries and matrix rows match the serial run
	off := 3 * rank
	chk.Array(tst, "owned residual", 1e-13, res.Values(), rres.Values()[off:off+3])
	da, dr := a.Dense(), ra.Dense()
	for i := 0; i < 3; i++ {
		chk.Array(tst, "owned matrix row", 1e-13, da[off+i], dr[off+i])
	}
}

func Test_mpi02(tst *testing.T) {

	//verbose()
	if !mpi.IsOn() {
		tst.Skip("this test requires MPI: TACS_MPI=1 mpirun -np 2 go test -run mpi02")
	}
	chk.PrintTitle("mpi02. reordered ids of shared nodes agree across processes")

	comm := mpi.NewCommunicator(nil)
	if comm.Size() != 2 {
		tst.Skip("this test requires exactly 2 processes")
	}
	rank := comm.Rank()

	// same 2x1 strip as mpi01
	o, err := NewAssembler(comm, 1, 3, 1, 0)
	if err != nil {
		tst.Errorf("NewAssembler failed:\n%v", err)
		return
	}
	conn := []int{0, 1, 4, 3}
	if rank == 1 {
		conn = []int{1, 2, 5, 4}
	}
	if err = o.SetElementConnectivity([]int{0, 4}, conn); err != nil {
		tst.Errorf("SetElementConnectivity failed:\n%v", err)
		return
	}
	if err = o.SetElements([]ele.Element{ele.NewQuad4(1, 1, 1)}); err != nil {
		tst.Errorf("SetElements failed:\n%v", err)
		return
	}
	if err = o.ComputeReordering(graph.RCMOrder, AdditiveSchwarz); err != nil {
		tst.Errorf("ComputeReordering failed:\n%v", err)
		return
	}

	// the combined new-id sets form a bijection over the global range
	perm := make([]int, 3)
	if !o.GetReordering(perm) {
		tst.Errorf("GetReordering must succeed after ComputeReordering")
		return
	}
	all := make([]int, 6)
	other := 1 - rank
	if rank == 0 {
		comm.SendI(perm, other)
		comm.RecvI(all[3:], other)
	} else {
		comm.RecvI(all[:3], other)
		comm.SendI(perm, other)
	}
	copy(all[3*rank:3*rank+3], perm)
	if !graph.IsPerm(all) {
		tst.Errorf("combined reordering is not a bijection: %v", all)
		return
	}

	// the interface nodes (old 1 and 2 owned by rank 0, old 4 owned by
	// rank 1) must carry the same new id in the ghost's renumbered
	// connectivity as in the owner's permutation
	if rank == 0 {
		comm.SendI([]int{perm[1], perm[2]}, other)
		got := make([]int, 1)
		comm.RecvI(got, other)
		chk.Ints(tst, "new id of old node 4", []int{o.conn[2]}, got)
	} else {
		got := make([]int, 2)
		comm.RecvI(got, other)
		chk.Ints(tst, "new ids of old nodes 1 and 2", []int{o.conn[0], o.conn[1]}, got)
		comm.SendI([]int{perm[1]}, other)
	}

	// one-shot: a second reordering is rejected on every process
	if err = o.ComputeReordering(graph.RCMOrder, AdditiveSchwarz); err == nil {
		tst.Errorf("ComputeReordering must be one-shot")
	}
}
