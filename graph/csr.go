// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package graph implements serial graph utilities for sparse assembly:
// CSR row manipulation and fill-reducing node orderings
package graph

import "sort"

// UniqueSort sorts a in place and removes duplicates, returning the
// shortened slice (which shares storage with a)
func UniqueSort(a []int) []int {
	if len(a) < 2 {
		return a
	}
	sort.Ints(a)
	n := 1
	for i := 1; i < len(a); i++ {
		if a[i] != a[n-1] {
			a[n] = a[i]
			n++
		}
	}
	return a[:n]
}

// SortUniquifyCSR sorts each row of a CSR structure, removes duplicate
// column entries and, if noDiag is true, removes the diagonal entry as well.
// The cols slice is compacted in place. Returns the new row pointer and the
// shortened cols slice.
//  nrows -- number of rows
//  rowp  -- row pointer (length nrows+1)
//  cols  -- column indices (length rowp[nrows])
func SortUniquifyCSR(nrows int, rowp, cols []int, noDiag bool) (newRowp, newCols []int) {
	newRowp = make([]int, nrows+1)
	pos := 0
	for i := 0; i < nrows; i++ {
		row := cols[rowp[i]:rowp[i+1]]
		sort.Ints(row)
		start := pos
		for k, c := range row {
			if noDiag && c == i {
				continue
			}
			if k > 0 && c == row[k-1] {
				continue
			}
			cols[pos] = c
			pos++
		}
		newRowp[i] = start
	}
	newRowp[nrows] = pos
	return newRowp, cols[:pos]
}

// MatchIntervals locates a sorted list of values within contiguous intervals.
// Given interval boundaries rng (length n+1, non-decreasing) and sorted
// values, returns ptr (length n+1) such that values[ptr[i]:ptr[i+1]] are the
// values v with rng[i] <= v < rng[i+1].
func MatchIntervals(rng []int, values []int) (ptr []int) {
	ptr = make([]int, len(rng))
	for i, r := range rng {
		ptr[i] = sort.SearchInts(values, r)
	}
	return
}

// Inverse returns the inverse of a permutation: inv[perm[k]] = k
func Inverse(perm []int) (inv []int) {
	inv = make([]int, len(perm))
	for k, p := range perm {
		inv[p] = k
	}
	return
}

// IsPerm checks whether perm is a bijection over [0,len(perm))
func IsPerm(perm []int) bool {
	seen := make([]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
