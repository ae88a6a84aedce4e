// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import "github.com/cpmech/gosl/chk"

// NodeRef is a decoded node reference from an element connectivity: either
// an independent global node id or an index into the dependent-node table.
// Dependent nodes are stored in connectivities with the compact encoding
// id = -(k+1); RefOf decodes it once so no other routine repeats the
// off-by-one arithmetic.
type NodeRef struct {
	Dep   bool // true for a dependent (multi-point constraint) node
	Index int  // global node id, or dependent-node table index
}

// RefOf decodes a connectivity entry
func RefOf(id int) NodeRef {
	if id < 0 {
		return NodeRef{Dep: true, Index: -id - 1}
	}
	return NodeRef{Dep: false, Index: id}
}

// Encode returns the connectivity encoding of the reference
func (o NodeRef) Encode() int {
	if o.Dep {
		return -o.Index - 1
	}
	return o.Index
}

// DepNodes is the immutable dependent-node table: dependent node k takes the
// value sum_i weights[i] * value(conn[i]) over i in [ptr[k], ptr[k+1]).
type DepNodes struct {
	ptr     []int
	conn    []int
	weights []float64
}

// NewDepNodes validates and stores the table. Every independent id must be a
// valid non-negative global node id below totalNodes: dependent nodes may
// not reference other dependent nodes.
func NewDepNodes(ptr, conn []int, weights []float64, totalNodes int) (o *DepNodes, err error) {
	num := len(ptr) - 1
	if num < 0 || ptr[0] != 0 {
		return nil, chk.Err("dependent-node pointer must start at zero and have one entry per node plus one")
	}
	if len(weights) != len(conn) {
		return nil, chk.Err("dependent-node weights (%d) do not match the connectivity length (%d)", len(weights), len(conn))
	}
	for k := 0; k < num; k++ {
		if ptr[k+1] < ptr[k] {
			return nil, chk.Err("dependent-node pointer is not non-decreasing at entry %d", k)
		}
	}
	if ptr[num] != len(conn) {
		return nil, chk.Err("dependent-node pointer end (%d) does not match the connectivity length (%d)", ptr[num], len(conn))
	}
	for i, id := range conn {
		if id < 0 || id >= totalNodes {
			return nil, chk.Err("dependent-node connectivity entry %d references invalid node %d (total = %d)", i, id, totalNodes)
		}
	}
	return &DepNodes{ptr: ptr, conn: conn, weights: weights}, nil
}

// Num returns the number of dependent nodes
func (o *DepNodes) Num() int {
	if o == nil {
		return 0
	}
	return len(o.ptr) - 1
}

// Row returns views of the independent node ids and weights defining
// dependent node k
func (o *DepNodes) Row(k int) (nodes []int, weights []float64) {
	return o.conn[o.ptr[k]:o.ptr[k+1]], o.weights[o.ptr[k]:o.ptr[k+1]]
}

// RowLen returns the number of independent nodes defining dependent node k;
// for a nil table every reference expands to one node
func (o *DepNodes) RowLen(k int) int {
	return o.ptr[k+1] - o.ptr[k]
}

// MaxRowLen returns the largest expansion of any dependent node
func (o *DepNodes) MaxRowLen() (m int) {
	if o == nil {
		return 0
	}
	for k := 0; k < o.Num(); k++ {
		if n := o.RowLen(k); n > m {
			m = n
		}
	}
	return
}

// Renumber applies a global-id mapping to the independent node ids
func (o *DepNodes) Renumber(f func(old int) int) {
	if o == nil {
		return
	}
	for i, id := range o.conn {
		o.conn[i] = f(id)
	}
}
