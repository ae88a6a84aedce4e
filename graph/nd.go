// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

// ndLeafSize is the subgraph size below which nested dissection switches to
// minimum degree
const ndLeafSize = 32

// ND computes a nested-dissection ordering of an undirected graph in CSR
// form. The graph must not contain self-loops (build the CSR with the
// diagonal excluded). The returned permutation satisfies perm[k] = old index
// of the node placed at position k: the two halves of each bisection are
// ordered first and the separator last.
func ND(n int, rowp, cols []int) (perm []int) {
	nodes := make([]int, n)
	for i := range nodes {
		nodes[i] = i
	}
	perm = make([]int, 0, n)
	return dissect(nodes, rowp, cols, perm)
}

// dissect orders the subgraph induced by nodes, appending to perm
func dissect(nodes []int, rowp, cols []int, perm []int) []int {

	if len(nodes) <= ndLeafSize {
		srowp, scols := subgraph(nodes, rowp, cols)
		sub := AMD(len(nodes), srowp, scols)
		for _, k := range sub {
			perm = append(perm, nodes[k])
		}
		return perm
	}

	srowp, scols := subgraph(nodes, rowp, cols)
	left, right, sep := bisect(len(nodes), srowp, scols)
	perm = mapAppend(nodes, left, rowp, cols, perm)
	perm = mapAppend(nodes, right, rowp, cols, perm)
	for _, k := range sep {
		perm = append(perm, nodes[k])
	}
	return perm
}

func mapAppend(nodes, part []int, rowp, cols []int, perm []int) []int {
	sub := make([]int, len(part))
	for i, k := range part {
		sub[i] = nodes[k]
	}
	return dissect(sub, rowp, cols, perm)
}

// bisect splits a connected-or-not subgraph into two halves and a vertex
// separator using the middle level of a BFS level structure
func bisect(n int, rowp, cols []int) (left, right, sep []int) {

	// BFS levels from node 0; unreached nodes join the left half
	lev := make([]int, n)
	for i := range lev {
		lev[i] = -1
	}
	queue := []int{0}
	lev[0] = 0
	maxLev := 0
	for head := 0; head < len(queue); head++ {
		v := queue[head]
		for _, w := range cols[rowp[v]:rowp[v+1]] {
			if lev[w] < 0 {
				lev[w] = lev[v] + 1
				if lev[w] > maxLev {
					maxLev = lev[w]
				}
				queue = append(queue, w)
			}
		}
	}

	mid := maxLev / 2
	for i := 0; i < n; i++ {
		switch {
		case lev[i] < 0 || lev[i] < mid:
			left = append(left, i)
		case lev[i] == mid:
			sep = append(sep, i)
		default:
			right = append(right, i)
		}
	}

	// degenerate level structures (e.g. cliques) still need a split
	if len(left) == 0 && len(right) == 0 {
		half := len(sep) / 2
		left, sep = sep[:half], sep[half:]
	}
	return
}

// subgraph extracts the CSR of the subgraph induced by nodes, renumbered
// densely in the order given
func subgraph(nodes []int, rowp, cols []int) (srowp, scols []int) {
	local := make(map[int]int, len(nodes))
	for i, v := range nodes {
		local[v] = i
	}
	srowp = make([]int, len(nodes)+1)
	for i, v := range nodes {
		cnt := 0
		for _, w := range cols[rowp[v]:rowp[v+1]] {
			if _, ok := local[w]; ok && w != v {
				cnt++
			}
		}
		srowp[i+1] = srowp[i] + cnt
	}
	scols = make([]int, srowp[len(nodes)])
	pos := 0
	for _, v := range nodes {
		for _, w := range cols[rowp[v]:rowp[v+1]] {
			if lw, ok := local[w]; ok && w != v {
				scols[pos] = lw
				pos++
			}
		}
	}
	return
}
