// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

import (
	"sort"

	"github.com/cpmech/gosl/chk"
)

// AuxElem attaches an extra element contribution (e.g. a surface traction)
// to the primary element with index Num
type AuxElem struct {
	Num  int     // index of the primary element
	Elem Element // the auxiliary contribution
}

// AuxElems holds auxiliary elements sorted by primary element index so the
// assembler can merge them into the element loop
type AuxElems struct {
	data   []*AuxElem
	sorted bool
}

// Add appends an auxiliary element for primary element num
func (o *AuxElems) Add(num int, e Element) {
	o.data = append(o.data, &AuxElem{num, e})
	o.sorted = false
}

// Len returns the number of auxiliary elements
func (o *AuxElems) Len() int {
	if o == nil {
		return 0
	}
	return len(o.data)
}

// Sort sorts the list by primary element index; Add order is preserved
// within one index
func (o *AuxElems) Sort() {
	if o == nil || o.sorted {
		return
	}
	sort.SliceStable(o.data, func(i, j int) bool { return o.data[i].Num < o.data[j].Num })
	o.sorted = true
}

// Get returns the auxiliary elements attached to primary element num.
// The list must be sorted.
func (o *AuxElems) Get(num int) []*AuxElem {
	if o == nil || len(o.data) == 0 {
		return nil
	}
	if !o.sorted {
		chk.Panic("auxiliary elements must be sorted before lookup")
	}
	lo := sort.Search(len(o.data), func(i int) bool { return o.data[i].Num >= num })
	hi := lo
	for hi < len(o.data) && o.data[hi].Num == num {
		hi++
	}
	if lo == hi {
		return nil
	}
	return o.data[lo:hi]
}
