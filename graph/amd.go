// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

// AMD computes a minimum-degree ordering of an undirected graph in CSR form,
// updating the elimination graph explicitly after each pivot. The returned
// permutation satisfies perm[k] = old index of the node placed at position k.
func AMD(n int, rowp, cols []int) (perm []int) {
	return minDegree(n, rowp, cols, nil)
}

// AMDCoupling computes a minimum-degree ordering constrained so that the
// nodes flagged in coupling are ordered last, after every unflagged node.
// Within each group the usual minimum-degree selection applies.
func AMDCoupling(n int, rowp, cols []int, coupling []bool) (perm []int) {
	return minDegree(n, rowp, cols, coupling)
}

func minDegree(n int, rowp, cols []int, coupling []bool) (perm []int) {

	// adjacency sets of the elimination graph (diagonal excluded)
	adj := make([]map[int]bool, n)
	for i := 0; i < n; i++ {
		adj[i] = make(map[int]bool, rowp[i+1]-rowp[i])
		for _, j := range cols[rowp[i]:rowp[i+1]] {
			if j != i {
				adj[i][j] = true
			}
		}
	}

	perm = make([]int, 0, n)
	done := make([]bool, n)
	numFree := n // nodes not flagged as coupling
	if coupling != nil {
		numFree = 0
		for i := 0; i < n; i++ {
			if !coupling[i] {
				numFree++
			}
		}
	}

	for len(perm) < n {

		// pivot: minimum external degree among eligible nodes
		pivot := -1
		for i := 0; i < n; i++ {
			if done[i] {
				continue
			}
			if coupling != nil && coupling[i] && len(perm) < numFree {
				continue // coupling nodes wait until all free nodes are placed
			}
			if pivot < 0 || len(adj[i]) < len(adj[pivot]) {
				pivot = i
			}
		}

		// eliminate: neighbours of the pivot become a clique
		nbrs := make([]int, 0, len(adj[pivot]))
		for w := range adj[pivot] {
			nbrs = append(nbrs, w)
		}
		for _, u := range nbrs {
			delete(adj[u], pivot)
			for _, w := range nbrs {
				if w != u {
					adj[u][w] = true
				}
			}
		}
		adj[pivot] = nil
		done[pivot] = true
		perm = append(perm, pivot)
	}
	return
}
