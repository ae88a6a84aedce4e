// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sort"

	"github.com/cpmech/gosl/chk"
)

// BCent holds the boundary conditions of one node: the constrained local
// dof indices and the prescribed values, aligned one-to-one
type BCent struct {
	Node int       // global node id
	Dofs []int     // constrained dof indices, 0 <= dof < varsPerNode
	Vals []float64 // prescribed values, one per entry of Dofs
}

// BcSet is a sparse, growable set of boundary conditions keyed by node.
// It is mutable until the assembler is initialized; initialization exchanges
// entries across processes so every process holds the conditions of all
// nodes it stores locally (owned and ghost).
type BcSet struct {
	vpn  int // dofs per node
	ents []*BCent
}

// NewBcSet returns an empty set for varsPerNode dofs per node
func NewBcSet(varsPerNode int) *BcSet {
	return &BcSet{vpn: varsPerNode}
}

// Add inserts or overwrites conditions at a node. A nil dofs constrains all
// dofs; a nil vals prescribes zeros. Existing entries for the same (node,
// dof) pair are overwritten; other dofs of the node are kept.
func (o *BcSet) Add(node int, dofs []int, vals []float64) (err error) {
	if node < 0 {
		return chk.Err("cannot constrain dependent or negative node %d", node)
	}
	if dofs == nil {
		dofs = make([]int, o.vpn)
		for i := range dofs {
			dofs[i] = i
		}
	}
	if vals == nil {
		vals = make([]float64, len(dofs))
	}
	if len(vals) != len(dofs) {
		return chk.Err("number of values (%d) does not match number of dofs (%d) at node %d", len(vals), len(dofs), node)
	}
	for _, d := range dofs {
		if d < 0 || d >= o.vpn {
			return chk.Err("dof index %d at node %d is out of range [0,%d)", d, node, o.vpn)
		}
	}
	ent := o.find(node)
	if ent == nil {
		ent = &BCent{Node: node}
		o.ents = append(o.ents, ent)
	}
	for i, d := range dofs {
		replaced := false
		for k, dOld := range ent.Dofs {
			if dOld == d {
				ent.Vals[k] = vals[i]
				replaced = true
				break
			}
		}
		if !replaced {
			ent.Dofs = append(ent.Dofs, d)
			ent.Vals = append(ent.Vals, vals[i])
		}
	}
	return
}

// Len returns the number of constrained nodes
func (o *BcSet) Len() int {
	if o == nil {
		return 0
	}
	return len(o.ents)
}

// Entry returns the i-th entry (stable after Sort)
func (o *BcSet) Entry(i int) *BCent { return o.ents[i] }

// Sort orders entries by node id so all processes see the same order
func (o *BcSet) Sort() {
	sort.Slice(o.ents, func(i, j int) bool { return o.ents[i].Node < o.ents[j].Node })
	for _, e := range o.ents {
		sortDofs(e)
	}
}

// Renumber applies a global-id mapping to the constrained nodes
func (o *BcSet) Renumber(f func(old int) int) {
	for _, e := range o.ents {
		e.Node = f(e.Node)
	}
}

// find returns the entry of a node, or nil
func (o *BcSet) find(node int) *BCent {
	for _, e := range o.ents {
		if e.Node == node {
			return e
		}
	}
	return nil
}

func sortDofs(e *BCent) {
	sort.Sort(&dofSorter{e.Dofs, e.Vals})
}

type dofSorter struct {
	dofs []int
	vals []float64
}

func (o *dofSorter) Len() int           { return len(o.dofs) }
func (o *dofSorter) Less(i, j int) bool { return o.dofs[i] < o.dofs[j] }
func (o *dofSorter) Swap(i, j int) {
	o.dofs[i], o.dofs[j] = o.dofs[j], o.dofs[i]
	o.vals[i], o.vals[j] = o.vals[j], o.vals[i]
}
