// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"sync"

	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/mpi"

	"github.com/C-Perron/tacs/ele"
	"github.com/C-Perron/tacs/graph"
)

// runState tracks the assembler's one-shot configuration protocol
type runState int

const (
	// stateConfiguring accepts connectivity, elements, dependent nodes and BCs
	stateConfiguring runState = iota

	// stateOrdered follows ComputeReordering; configuration is frozen
	stateOrdered

	// stateReady follows Initialize; assembly operations are available
	stateReady
)

func (o runState) String() string {
	switch o {
	case stateConfiguring:
		return "configuring"
	case stateOrdered:
		return "ordered"
	}
	return "ready"
}

// Assembler owns the distributed mesh description (node ownership, element
// connectivity, dependent nodes, boundary conditions) and drives the
// parallel assembly of residual vectors and Jacobian matrices.
//
// Lifecycle: setters run first, then optionally ComputeReordering (one-shot),
// then Initialize (one-shot), after which the assembly operations may be
// called repeatedly.
type Assembler struct {

	// constants
	Verbose bool // verbose messages (printed by rank 0 only)

	comm  *mpi.Communicator
	mrank int
	msize int

	varsPerNode int
	numElements int

	state runState

	// mesh description
	nm       *NodeMap
	connPtr  []int
	conn     []int
	elements []ele.Element
	aux      *ele.AuxElems
	dep      *DepNodes
	bcs      *BcSet

	// ghost index (computed lazily from connectivity)
	ext       []int
	extOffset int
	transfer  *Transfer

	// saved reordering: new global id per old owned offset
	ownedNew []int

	// state vectors
	time   float64
	vars   *Vec
	dvars  *Vec
	ddvars *Vec
	xpts   *Vec

	// worst-case element sizes for the scratch arenas
	maxElemNodes int // nodes per element
	maxElemSize  int // state variables per element
	maxElemIndep int // independent nodes after dependent expansion

	// element loop
	nworkers int
	mu       sync.Mutex

	// cached reordered-matrix structure
	schurPerm   []int
	schurNlocal int
}

// NewAssembler creates an assembler for numOwnedNodes nodes owned by this
// process, numElements local elements and numDepNodes dependent nodes, with
// varsPerNode state variables per node. The call is collective (the node
// ownership ranges are reduced across processes). A nil communicator means
// serial execution.
func NewAssembler(comm *mpi.Communicator, varsPerNode, numOwnedNodes, numElements, numDepNodes int) (o *Assembler, err error) {
	if varsPerNode < 1 || numOwnedNodes < 0 || numElements < 0 || numDepNodes < 0 {
		return nil, chkErrRank(commRank(comm), "invalid assembler sizes: varsPerNode=%d numOwnedNodes=%d numElements=%d numDepNodes=%d",
			varsPerNode, numOwnedNodes, numElements, numDepNodes)
	}
	o = &Assembler{
		comm:        comm,
		mrank:       commRank(comm),
		msize:       commSize(comm),
		varsPerNode: varsPerNode,
		numElements: numElements,
		nm:          NewNodeMap(comm, numOwnedNodes),
		bcs:         NewBcSet(varsPerNode),
		nworkers:    1,
	}
	if numDepNodes > 0 {
		// a placeholder until SetDependentNodes runs
		o.dep = &DepNodes{ptr: make([]int, numDepNodes+1)}
	}
	return
}

// NumOwnedNodes returns the number of nodes owned by this process
func (o *Assembler) NumOwnedNodes() int { return o.nm.NumOwned() }

// NumElements returns the number of local elements
func (o *Assembler) NumElements() int { return o.numElements }

// NumDepNodes returns the number of dependent nodes
func (o *Assembler) NumDepNodes() int { return o.dep.Num() }

// VarsPerNode returns the number of state variables per node
func (o *Assembler) VarsPerNode() int { return o.varsPerNode }

// NodeMap returns the node ownership map
func (o *Assembler) NodeMap() *NodeMap { return o.nm }

// SetNumWorkers sets the number of goroutines cooperating on the element
// loop (default 1)
func (o *Assembler) SetNumWorkers(n int) {
	if n < 1 {
		n = 1
	}
	o.nworkers = n
}

// showMsg tells whether verbose messages should be printed
func (o *Assembler) showMsg() bool { return o.Verbose && o.mrank == 0 }

// SetElementConnectivity sets the element-to-node connectivity in CSR form:
// element e references the global node ids conn[ptr[e]:ptr[e+1]]. Dependent
// nodes use the encoding -(k+1). Must be called before ComputeReordering and
// Initialize.
func (o *Assembler) SetElementConnectivity(ptr, conn []int) (err error) {
	if o.state != stateConfiguring {
		return chkErrRank(o.mrank, "cannot set the element connectivity when %v", o.state)
	}
	if len(ptr) != o.numElements+1 || ptr[0] != 0 || ptr[o.numElements] != len(conn) {
		return chkErrRank(o.mrank, "element connectivity pointer is inconsistent (%d entries for %d elements)", len(ptr), o.numElements)
	}
	total := o.nm.TotalNodes()
	ndep := o.dep.Num()
	for e := 0; e < o.numElements; e++ {
		if ptr[e+1] < ptr[e] {
			return chkErrRank(o.mrank, "element connectivity pointer is not non-decreasing at element %d", e)
		}
		for _, id := range conn[ptr[e]:ptr[e+1]] {
			ref := RefOf(id)
			if ref.Dep {
				if ref.Index >= ndep {
					return chkErrRank(o.mrank, "element %d references dependent node %d but only %d are declared", e, ref.Index, ndep)
				}
			} else if ref.Index >= total {
				return chkErrRank(o.mrank, "element %d references node %d outside the global range [0,%d)", e, ref.Index, total)
			}
		}
	}
	o.connPtr = ptr
	o.conn = conn
	o.ext = nil // ghost list must be recomputed
	return
}

// SetElements sets the element implementations, one per connectivity entry.
// Every element must agree on the number of variables per node and match its
// connectivity length.
func (o *Assembler) SetElements(elements []ele.Element) (err error) {
	if o.state == stateReady {
		return chkErrRank(o.mrank, "cannot set the elements when %v", o.state)
	}
	if len(elements) != o.numElements {
		return chkErrRank(o.mrank, "wrong number of elements: %d given, %d expected", len(elements), o.numElements)
	}
	for e, el := range elements {
		if el.NumVarsPerNode() != o.varsPerNode {
			return chkErrRank(o.mrank, "element %d has %d variables per node; the assembler was built for %d", e, el.NumVarsPerNode(), o.varsPerNode)
		}
		if o.connPtr != nil {
			if n := o.connPtr[e+1] - o.connPtr[e]; n != el.NumNodes() {
				return chkErrRank(o.mrank, "element %d declares %d nodes but its connectivity has %d", e, el.NumNodes(), n)
			}
		}
	}
	o.elements = elements
	return
}

// SetDependentNodes sets the dependent-node (multi-point constraint) table:
// dependent node k is the weighted sum of the independent global nodes
// conn[ptr[k]:ptr[k+1]] with the aligned weights. Must be called before
// ComputeReordering and Initialize.
func (o *Assembler) SetDependentNodes(ptr, conn []int, weights []float64) (err error) {
	if o.state != stateConfiguring {
		return chkErrRank(o.mrank, "cannot set the dependent nodes when %v", o.state)
	}
	if len(ptr)-1 != o.dep.Num() {
		return chkErrRank(o.mrank, "wrong number of dependent nodes: %d given, %d expected", len(ptr)-1, o.dep.Num())
	}
	dep, err := NewDepNodes(ptr, conn, weights, o.nm.TotalNodes())
	if err != nil {
		return chkErrRank(o.mrank, "cannot set the dependent nodes:\n%v", err)
	}
	o.dep = dep
	o.ext = nil
	return
}

// AddBCs adds homogeneous boundary conditions at the given global nodes:
// nil dofs constrains all dofs. Nodes owned by other processes are allowed;
// Initialize ships them to their owners and ghost copies.
func (o *Assembler) AddBCs(nodes []int, dofs []int) (err error) {
	return o.AddBCValues(nodes, dofs, nil)
}

// AddBCValues adds boundary conditions with prescribed values (one value per
// dof entry), applied to every node in the list
func (o *Assembler) AddBCValues(nodes []int, dofs []int, vals []float64) (err error) {
	if o.state == stateReady {
		return chkErrRank(o.mrank, "cannot add boundary conditions when %v", o.state)
	}
	for _, n := range nodes {
		if n < 0 || n >= o.nm.TotalNodes() {
			return chkErrRank(o.mrank, "cannot constrain node %d outside the global range [0,%d)", n, o.nm.TotalNodes())
		}
		if err = o.bcs.Add(n, dofs, vals); err != nil {
			return chkErrRank(o.mrank, "cannot add boundary condition:\n%v", err)
		}
	}
	return
}

// GetBCs returns the boundary conditions held by this process in a stable
// node order: parallel slices of constrained nodes, their dof indices and the
// prescribed values. After Initialize this covers every locally stored
// constrained node, owned and ghost.
func (o *Assembler) GetBCs() (nodes []int, dofs [][]int, vals [][]float64) {
	o.bcs.Sort()
	for i := 0; i < o.bcs.Len(); i++ {
		e := o.bcs.Entry(i)
		nodes = append(nodes, e.Node)
		dofs = append(dofs, e.Dofs)
		vals = append(vals, e.Vals)
	}
	return
}

// SetBCValues writes the prescribed boundary values into a state vector at
// every locally stored constrained dof. This is the value-imposition
// companion of Vec.ApplyBCs, which zeroes the same dofs of residual and
// update vectors.
func (o *Assembler) SetBCValues(v *Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "SetBCValues requires an initialized assembler")
	}
	for i := 0; i < o.bcs.Len(); i++ {
		e := o.bcs.Entry(i)
		slot := o.transfer.LocalOf(e.Node)
		if slot < 0 {
			continue
		}
		blk := v.blockAt(slot)
		for k, d := range e.Dofs {
			if d < v.bsize {
				blk[d] = e.Vals[k]
			}
		}
	}
	return
}

// SetAuxElements attaches auxiliary element contributions; may be replaced
// between assembly calls
func (o *Assembler) SetAuxElements(aux *ele.AuxElems) {
	if aux != nil {
		aux.Sort()
	}
	o.aux = aux
}

// ensureExtNodes computes the sorted ghost list from the connectivity and
// dependent-node table
func (o *Assembler) ensureExtNodes() (err error) {
	if o.ext != nil {
		return
	}
	if o.connPtr == nil {
		return chkErrRank(o.mrank, "the element connectivity must be set first")
	}
	var ext []int
	seen := make(map[int]bool)
	add := func(g int) {
		if !o.nm.Owns(g) && !seen[g] {
			seen[g] = true
			ext = append(ext, g)
		}
	}
	for _, id := range o.conn {
		ref := RefOf(id)
		if ref.Dep {
			dn, _ := o.dep.Row(ref.Index)
			for _, g := range dn {
				add(g)
			}
			continue
		}
		add(ref.Index)
	}
	if o.dep.Num() > 0 {
		for k := 0; k < o.dep.Num(); k++ {
			dn, _ := o.dep.Row(k)
			for _, g := range dn {
				add(g)
			}
		}
	}
	o.ext = graph.UniqueSort(ext)
	o.extOffset = graph.MatchIntervals(o.nm.Ranges(), o.ext)[o.mrank]
	o.transfer, err = newTransferIndex(o.comm, o.nm, o.ext)
	return
}

// Initialize finalizes the configuration: builds the ghost scatter map,
// exchanges boundary conditions so every process holds the conditions of all
// nodes it stores, sizes the per-worker scratch arenas from the worst-case
// element, and allocates the internal state vectors. One-shot.
func (o *Assembler) Initialize() (err error) {
	if o.state == stateReady {
		return chkErrRank(o.mrank, "cannot initialize the assembler twice")
	}
	if o.connPtr == nil || o.elements == nil {
		return chkErrRank(o.mrank, "the element connectivity and the elements must be set before initialization")
	}
	if err = o.ensureExtNodes(); err != nil {
		return
	}
	if err = o.transfer.setUpExchange(); err != nil {
		return chkErrRank(o.mrank, "cannot build the scatter map:\n%v", err)
	}
	if err = o.exchangeBCs(); err != nil {
		return chkErrRank(o.mrank, "cannot exchange boundary conditions:\n%v", err)
	}

	// worst-case element sizes
	for e := 0; e < o.numElements; e++ {
		nn := o.connPtr[e+1] - o.connPtr[e]
		if nn > o.maxElemNodes {
			o.maxElemNodes = nn
		}
		if nv := o.elements[e].NumVars(); nv > o.maxElemSize {
			o.maxElemSize = nv
		}
		nindep := 0
		for _, id := range o.conn[o.connPtr[e]:o.connPtr[e+1]] {
			ref := RefOf(id)
			if ref.Dep {
				nindep += o.dep.RowLen(ref.Index)
			} else {
				nindep++
			}
		}
		if nindep > o.maxElemIndep {
			o.maxElemIndep = nindep
		}
	}

	// internal state
	o.state = stateReady
	o.vars = o.CreateVec()
	o.dvars = o.CreateVec()
	o.ddvars = o.CreateVec()
	o.xpts = o.CreateNodeVec()

	if o.showMsg() {
		io.Pf("assembler initialized: %d global nodes, %d local elements, %d ghosts, %d dependent nodes\n",
			o.nm.TotalNodes(), o.numElements, len(o.ext), o.dep.Num())
	}
	return
}

// exchangeBCs ships boundary conditions of non-owned nodes to their owners
// and then re-collects, for every process, the conditions of all nodes it
// stores locally (owned and ghost)
func (o *Assembler) exchangeBCs() (err error) {
	if o.msize == 1 {
		o.bcs.Sort()
		return
	}

	// pack (node, dof, value) entries per owner for non-owned nodes
	sendIdx := make([][]int, o.msize)
	sendVal := make([][]float64, o.msize)
	pack := func(r int, e *BCent) {
		for k, d := range e.Dofs {
			sendIdx[r] = append(sendIdx[r], e.Node, d)
			sendVal[r] = append(sendVal[r], e.Vals[k])
		}
	}
	for i := 0; i < o.bcs.Len(); i++ {
		e := o.bcs.Entry(i)
		if !o.nm.Owns(e.Node) {
			pack(o.nm.Owner(e.Node), e)
		}
	}
	recvIdx := exchangeInts(o.comm, sendIdx)
	recvVal := exchangeFloats(o.comm, sendVal)

	// owners merge the received entries
	merged := NewBcSet(o.varsPerNode)
	for i := 0; i < o.bcs.Len(); i++ {
		e := o.bcs.Entry(i)
		if o.nm.Owns(e.Node) {
			if err = merged.Add(e.Node, e.Dofs, e.Vals); err != nil {
				return
			}
		}
	}
	for r := 0; r < o.msize; r++ {
		if r == o.mrank {
			continue
		}
		for k := 0; 2*k < len(recvIdx[r]); k++ {
			node, dof := recvIdx[r][2*k], recvIdx[r][2*k+1]
			if err = merged.Add(node, []int{dof}, []float64{recvVal[r][k]}); err != nil {
				return
			}
		}
	}

	// owners publish conditions of nodes the other processes hold as ghosts
	for r := range sendIdx {
		sendIdx[r] = sendIdx[r][:0]
		sendVal[r] = sendVal[r][:0]
	}
	for r := 0; r < o.msize; r++ {
		if r == o.mrank {
			continue
		}
		for _, off := range o.transfer.sendIdx[r] {
			if e := merged.find(o.nm.Offset() + off); e != nil {
				for k, d := range e.Dofs {
					sendIdx[r] = append(sendIdx[r], e.Node, d)
					sendVal[r] = append(sendVal[r], e.Vals[k])
				}
			}
		}
	}
	recvIdx = exchangeInts(o.comm, sendIdx)
	recvVal = exchangeFloats(o.comm, sendVal)
	for r := 0; r < o.msize; r++ {
		if r == o.mrank {
			continue
		}
		for k := 0; 2*k < len(recvIdx[r]); k++ {
			node, dof := recvIdx[r][2*k], recvIdx[r][2*k+1]
			if err = merged.Add(node, []int{dof}, []float64{recvVal[r][k]}); err != nil {
				return
			}
		}
	}

	merged.Sort()
	o.bcs = merged
	return
}

// factories ////////////////////////////////////////////////////////////////

// CreateVec returns a new zeroed distributed state vector compatible with
// the current node map, ghost index, boundary conditions and dependent-node
// table. Requires Initialize.
func (o *Assembler) CreateVec() *Vec {
	if o.state != stateReady {
		chkPanicRank(o.mrank, "CreateVec requires an initialized assembler")
	}
	return newVec(o.varsPerNode, o.transfer, o.dep, o.bcs)
}

// CreateNodeVec returns a new zeroed nodal-coordinate vector (SpatialDim
// values per node). Requires Initialize.
func (o *Assembler) CreateNodeVec() *Vec {
	if o.state != stateReady {
		chkPanicRank(o.mrank, "CreateNodeVec requires an initialized assembler")
	}
	return newVec(SpatialDim, o.transfer, o.dep, nil)
}

// CreateMat returns a new zeroed distributed block-row matrix whose sparsity
// follows the current node-to-node graph. Requires Initialize.
func (o *Assembler) CreateMat() (a *DistMat, err error) {
	if o.state != stateReady {
		return nil, chkErrRank(o.mrank, "CreateMat requires an initialized assembler")
	}
	_, rowp, cols, err := o.nodeToNodeCSR(nil, false)
	if err != nil {
		return
	}
	return newDistMat(o.varsPerNode, o.transfer, o.bcs, rowp, cols)
}

// CreateSchurMat returns a new zeroed reordered local/coupling matrix. The
// interior/coupling permutation is computed with the given ordering on the
// first call and cached: later calls (any ordering) reuse it so all matrices
// share the same structure. Natural ordering is rejected: the two-block
// layout requires a fill-reducing pass.
func (o *Assembler) CreateSchurMat(kind graph.Ordering) (a *SchurMat, err error) {
	if o.state != stateReady {
		return nil, chkErrRank(o.mrank, "CreateSchurMat requires an initialized assembler")
	}
	if o.schurPerm == nil {
		if kind == graph.Natural {
			kind = graph.CoupledAMDOrder
			if o.showMsg() {
				io.Pf("natural ordering cannot build the local/coupling structure; using %v\n", kind)
			}
		}
		if err = o.computeSchurOrdering(kind); err != nil {
			return
		}
	}
	_, rowp, cols, err := o.nodeToNodeCSR(nil, false)
	if err != nil {
		return
	}
	return newSchurMat(o.varsPerNode, o.transfer, o.bcs, o.schurPerm, o.schurNlocal, rowp, cols), nil
}

// state access ///////////////////////////////////////////////////////////

// SetSimulationTime sets the time handed to the element callbacks
func (o *Assembler) SetSimulationTime(t float64) { o.time = t }

// GetSimulationTime returns the current simulation time
func (o *Assembler) GetSimulationTime() float64 { return o.time }

// SetVariables copies the given state, velocity and acceleration (any may be
// nil to keep the current values) and refreshes the ghost copies
func (o *Assembler) SetVariables(q, qdot, qddot *Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "SetVariables requires an initialized assembler")
	}
	pairs := [][2]*Vec{{o.vars, q}, {o.dvars, qdot}, {o.ddvars, qddot}}
	for _, p := range pairs {
		if p[1] != nil {
			p[0].CopyFrom(p[1])
			p[0].BeginDistribute()
		}
	}
	for _, p := range pairs {
		if p[1] != nil {
			p[0].EndDistribute()
		}
	}
	return
}

// GetVariables copies the current state, velocity and acceleration into the
// given vectors (any may be nil)
func (o *Assembler) GetVariables(q, qdot, qddot *Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "GetVariables requires an initialized assembler")
	}
	if q != nil {
		q.CopyFrom(o.vars)
	}
	if qdot != nil {
		qdot.CopyFrom(o.dvars)
	}
	if qddot != nil {
		qddot.CopyFrom(o.ddvars)
	}
	return
}

// SetNodes copies the nodal coordinates (SpatialDim per node) and refreshes
// the ghost copies
func (o *Assembler) SetNodes(x *Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "SetNodes requires an initialized assembler")
	}
	o.xpts.CopyFrom(x)
	o.xpts.Distribute()
	return
}

// GetNodes copies the current nodal coordinates into x
func (o *Assembler) GetNodes(x *Vec) (err error) {
	if o.state != stateReady {
		return chkErrRank(o.mrank, "GetNodes requires an initialized assembler")
	}
	x.CopyFrom(o.xpts)
	return
}
