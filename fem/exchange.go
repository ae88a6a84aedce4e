// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/mpi"
)

// chkErrRank builds an error message tagged with the process rank
func chkErrRank(rank int, msg string, args ...interface{}) error {
	return chk.Err("rank %d: "+msg, append([]interface{}{rank}, args...)...)
}

// chkPanicRank panics with a message tagged with the process rank
func chkPanicRank(rank int, msg string, args ...interface{}) {
	chk.Panic("rank %d: "+msg, append([]interface{}{rank}, args...)...)
}

// commRank returns the rank of this process; a nil communicator means serial
func commRank(comm *mpi.Communicator) int {
	if comm == nil {
		return 0
	}
	return comm.Rank()
}

// commSize returns the number of processes; a nil communicator means serial
func commSize(comm *mpi.Communicator) int {
	if comm == nil {
		return 1
	}
	return comm.Size()
}

// The exchange helpers below emulate an all-to-all-v with pairwise blocking
// messages. Every process walks its partners in increasing rank order and,
// within each pair, the lower rank sends first; this gives a deadlock-free
// total order. Message counts are exchanged ahead of the payload so every
// receive is sized before it is posted.

// exchangeCounts swaps one integer with every other process:
// recv[r] receives send[r] from process r
func exchangeCounts(comm *mpi.Communicator, send []int) (recv []int) {
	size := commSize(comm)
	rank := commRank(comm)
	recv = make([]int, size)
	recv[rank] = send[rank]
	for r := 0; r < size; r++ {
		if r == rank {
			continue
		}
		if rank < r {
			comm.SendOneI(send[r], r)
			recv[r] = comm.RecvOneI(r)
		} else {
			recv[r] = comm.RecvOneI(r)
			comm.SendOneI(send[r], r)
		}
	}
	return
}

// exchangeInts sends send[r] to process r and collects the slices received
// from every process. Counts are exchanged first.
func exchangeInts(comm *mpi.Communicator, send [][]int) (recv [][]int) {
	size := commSize(comm)
	rank := commRank(comm)
	counts := make([]int, size)
	for r := range send {
		counts[r] = len(send[r])
	}
	rcounts := exchangeCounts(comm, counts)
	recv = make([][]int, size)
	recv[rank] = append([]int(nil), send[rank]...)
	for r := 0; r < size; r++ {
		if r == rank {
			continue
		}
		recv[r] = make([]int, rcounts[r])
		if rank < r {
			if len(send[r]) > 0 {
				comm.SendI(send[r], r)
			}
			if rcounts[r] > 0 {
				comm.RecvI(recv[r], r)
			}
		} else {
			if rcounts[r] > 0 {
				comm.RecvI(recv[r], r)
			}
			if len(send[r]) > 0 {
				comm.SendI(send[r], r)
			}
		}
	}
	return
}

// exchangeFloats sends send[r] to process r and collects the slices received
// from every process. Counts are exchanged first.
func exchangeFloats(comm *mpi.Communicator, send [][]float64) (recv [][]float64) {
	size := commSize(comm)
	rank := commRank(comm)
	counts := make([]int, size)
	for r := range send {
		counts[r] = len(send[r])
	}
	rcounts := exchangeCounts(comm, counts)
	recv = make([][]float64, size)
	recv[rank] = append([]float64(nil), send[rank]...)
	for r := 0; r < size; r++ {
		if r == rank {
			continue
		}
		recv[r] = make([]float64, rcounts[r])
		if rank < r {
			if len(send[r]) > 0 {
				comm.Send(send[r], r)
			}
			if rcounts[r] > 0 {
				comm.Recv(recv[r], r)
			}
		} else {
			if rcounts[r] > 0 {
				comm.Recv(recv[r], r)
			}
			if len(send[r]) > 0 {
				comm.Send(send[r], r)
			}
		}
	}
	return
}
