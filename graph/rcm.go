// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import "sort"

// RCM computes a reverse Cuthill-McKee ordering of an undirected graph in
// CSR form. The returned permutation satisfies perm[k] = old index of the
// node placed at position k. Disconnected components are handled by
// restarting the search from an unvisited node of minimum degree.
func RCM(n int, rowp, cols []int) (perm []int) {
	perm = make([]int, 0, n)
	level := make([]int, 0, n)
	visited := make([]bool, n)
	deg := func(i int) int { return rowp[i+1] - rowp[i] }

	for len(perm) < n {

		// root: unvisited node of minimum degree
		root := -1
		for i := 0; i < n; i++ {
			if !visited[i] && (root < 0 || deg(i) < deg(root)) {
				root = i
			}
		}

		// one iteration towards a pseudo-peripheral root: BFS, restart
		// from a minimum-degree node of the last level
		level = levelSet(root, rowp, cols, visited, level[:0])
		if len(level) > 1 {
			last := level[len(level)-1]
			for _, v := range level {
				visited[v] = false
			}
			root = last
			level = levelSet(root, rowp, cols, visited, level[:0])
		}
		perm = append(perm, level...)
	}

	// reverse for the RCM profile
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		perm[i], perm[j] = perm[j], perm[i]
	}
	return
}

// levelSet runs a breadth-first traversal from root, appending visited nodes
// to out in BFS order with neighbours sorted by increasing degree
func levelSet(root int, rowp, cols []int, visited []bool, out []int) []int {
	deg := func(i int) int { return rowp[i+1] - rowp[i] }
	out = append(out, root)
	visited[root] = true
	for head := len(out) - 1; head < len(out); head++ {
		v := out[head]
		start := len(out)
		for _, w := range cols[rowp[v]:rowp[v+1]] {
			if !visited[w] {
				visited[w] = true
				out = append(out, w)
			}
		}
		nbrs := out[start:]
		sort.Slice(nbrs, func(a, b int) bool { return deg(nbrs[a]) < deg(nbrs[b]) })
	}
	return out
}
