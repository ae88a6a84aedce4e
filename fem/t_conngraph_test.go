// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sort"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/C-Perron/tacs/ele"
)

// checkGraph verifies rows are sorted, duplicate-free and symmetric
func checkGraph(tst *testing.T, n int, rowp, cols []int) {
	for i := 0; i < n; i++ {
		row := cols[rowp[i]:rowp[i+1]]
		if !sort.IntsAreSorted(row) {
			tst.Errorf("row %d is not sorted: %v", i, row)
			return
		}
		for k := 1; k < len(row); k++ {
			if row[k] == row[k-1] {
				tst.Errorf("row %d has duplicates: %v", i, row)
				return
			}
		}
		for _, j := range row {
			back := cols[rowp[j]:rowp[j+1]]
			p := sort.SearchInts(back, i)
			if p == len(back) || back[p] != i {
				tst.Errorf("edge (%d,%d) has no mirror", i, j)
				return
			}
		}
	}
}

func Test_conngraph01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("conngraph01. node-to-element and node-to-node graphs")

	o := quadGrid(tst, 2, 1, 1)
	if o == nil {
		return
	}
	if err := o.ensureExtNodes(); err != nil {
		tst.Errorf("ensureExtNodes failed:\n%v", err)
		return
	}

	ptr, elems, err := o.nodeToElemCSR()
	if err != nil {
		tst.Errorf("nodeToElemCSR failed:\n%v", err)
		return
	}
	chk.Ints(tst, "ptr", ptr, []int{0, 1, 3, 4, 5, 7, 8})
	chk.Ints(tst, "elems", elems, []int{0, 0, 1, 1, 0, 0, 1, 1})

	n, rowp, cols, err := o.nodeToNodeCSR(nil, false)
	if err != nil {
		tst.Errorf("nodeToNodeCSR failed:\n%v", err)
		return
	}
	chk.Int(tst, "n", n, 6)
	checkGraph(tst, n, rowp, cols)
	chk.Ints(tst, "row0", cols[rowp[0]:rowp[1]], []int{0, 1, 3, 4})
	chk.Ints(tst, "row1", cols[rowp[1]:rowp[2]], []int{0, 1, 2, 3, 4, 5})
	chk.Ints(tst, "row2", cols[rowp[2]:rowp[3]], []int{1, 2, 4, 5})

	// without the diagonal
	n, rowp, cols, err = o.nodeToNodeCSR(nil, true)
	if err != nil {
		tst.Errorf("nodeToNodeCSR failed:\n%v", err)
		return
	}
	for i := 0; i < n; i++ {
		row := cols[rowp[i]:rowp[i+1]]
		p := sort.SearchInts(row, i)
		if p < len(row) && row[p] == i {
			tst.Errorf("row %d keeps its diagonal: %v", i, row)
			return
		}
	}
}

func Test_conngraph02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("conngraph02. dependent nodes expand in the graph")

	// one quad over nodes {0,1,2} and a dependent combining 0 and 2: the
	// expanded element couples all three nodes
	o, err := NewAssembler(nil, 1, 3, 1, 1)
	if err != nil {
		tst.Errorf("NewAssembler failed:\n%v", err)
		return
	}
	if err = o.SetDependentNodes([]int{0, 2}, []int{0, 2}, []float64{0.5, 0.5}); err != nil {
		tst.Errorf("SetDependentNodes failed:\n%v", err)
		return
	}
	if err = o.SetElementConnectivity([]int{0, 4}, []int{0, 1, 2, NodeRef{Dep: true, Index: 0}.Encode()}); err != nil {
		tst.Errorf("SetElementConnectivity failed:\n%v", err)
		return
	}
	if err = o.SetElements([]ele.Element{ele.NewQuad4(1, 1, 1)}); err != nil {
		tst.Errorf("SetElements failed:\n%v", err)
		return
	}
	if err = o.ensureExtNodes(); err != nil {
		tst.Errorf("ensureExtNodes failed:\n%v", err)
		return
	}

	n, rowp, cols, err := o.nodeToNodeCSR(nil, false)
	if err != nil {
		tst.Errorf("nodeToNodeCSR failed:\n%v", err)
		return
	}
	chk.Int(tst, "n", n, 3)
	checkGraph(tst, n, rowp, cols)
	chk.Ints(tst, "rowp", rowp, []int{0, 3, 6, 9})
	chk.Ints(tst, "cols", cols, []int{0, 1, 2, 0, 1, 2, 0, 1, 2})
}

func Test_conngraph03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("conngraph03. reduced subset with dense renumbering")

	o := quadGrid(tst, 2, 2, 1)
	if o == nil {
		return
	}
	if err := o.ensureExtNodes(); err != nil {
		tst.Errorf("ensureExtNodes failed:\n%v", err)
		return
	}

	// keep only the bottom row of nodes 0,1,2 -> 0,1,2
	rnodes := make([]int, 9)
	for i := range rnodes {
		rnodes[i] = -1
	}
	rnodes[0], rnodes[1], rnodes[2] = 0, 1, 2

	n, rowp, cols, err := o.nodeToNodeCSR(rnodes, false)
	if err != nil {
		tst.Errorf("nodeToNodeCSR failed:\n%v", err)
		return
	}
	chk.Int(tst, "n", n, 3)
	checkGraph(tst, n, rowp, cols)

	// nodes 0 and 2 share no element, so the path graph remains
	chk.Ints(tst, "row0", cols[rowp[0]:rowp[1]], []int{0, 1})
	chk.Ints(tst, "row1", cols[rowp[1]:rowp[2]], []int{0, 1, 2})
	chk.Ints(tst, "row2", cols[rowp[2]:rowp[3]], []int{1, 2})
}
