// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fem

import (
	"testing"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/utl"

	"github.com/C-Perron/tacs/ele"
)

// quadGrid builds a serial assembler over an nx by ny structured grid of unit
// Quad4 elements (connectivity and elements set; not initialized)
func quadGrid(tst *testing.T, nx, ny, ndof int) (o *Assembler) {
	nnodes := (nx + 1) * (ny + 1)
	nelems := nx * ny
	o, err := NewAssembler(nil, ndof, nnodes, nelems, 0)
	if err != nil {
		tst.Errorf("NewAssembler failed:\n%v", err)
		return nil
	}
	ptr := make([]int, nelems+1)
	conn := make([]int, 0, 4*nelems)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			n0 := j*(nx+1) + i
			conn = append(conn, n0, n0+1, n0+nx+2, n0+nx+1)
			ptr[j*nx+i+1] = len(conn)
		}
	}
	if err = o.SetElementConnectivity(ptr, conn); err != nil {
		tst.Errorf("SetElementConnectivity failed:\n%v", err)
		return nil
	}
	elems := make([]ele.Element, nelems)
	for e := range elems {
		elems[e] = ele.NewQuad4(ndof, 1, 1)
	}
	if err = o.SetElements(elems); err != nil {
		tst.Errorf("SetElements failed:\n%v", err)
		return nil
	}
	return
}

// setGridNodes places the grid nodes at integer coordinates (initialized
// assembler required)
func setGridNodes(tst *testing.T, o *Assembler, nx, ny int) {
	x := o.CreateNodeVec()
	n := (nx + 1) * (ny + 1)
	nodes := utl.IntRange(n)
	xyz := make([]float64, 3*n)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			node := j*(nx+1) + i
			xyz[3*node] = float64(i)
			xyz[3*node+1] = float64(j)
		}
	}
	if err := x.SetValues(nodes, xyz, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}
	if err := o.SetNodes(x); err != nil {
		tst.Errorf("SetNodes failed:\n%v", err)
	}
}

// setState copies per-node scalar state values into the assembler (ndof=1)
func setState(tst *testing.T, o *Assembler, u []float64) {
	q := o.CreateVec()
	nodes := utl.IntRange(len(u))
	if err := q.SetValues(nodes, u, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}
	if err := o.SetVariables(q, nil, nil); err != nil {
		tst.Errorf("SetVariables failed:\n%v", err)
	}
}

func Test_asm01(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm01. zero state gives zero residual")

	o := quadGrid(tst, 1, 1, 2)
	if o == nil {
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 1, 1)

	res := o.CreateVec()
	if err := o.AssembleResidual(res); err != nil {
		tst.Errorf("AssembleResidual failed:\n%v", err)
		return
	}
	chk.Float64(tst, "||R||", 1e-15, res.Norm(), 0)
}

func Test_asm02(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm02. Jacobian with boundary conditions")

	o := quadGrid(tst, 1, 1, 1)
	if o == nil {
		return
	}
	if err := o.AddBCs([]int{0}, nil); err != nil {
		tst.Errorf("AddBCs failed:\n%v", err)
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 1, 1)

	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	res := o.CreateVec()
	if err = o.AssembleJacobian(1, 0, 0, res, a, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}
	d := a.Dense()

	// constrained row and column are zeroed with a unit diagonal
	chk.Float64(tst, "K[0][0]", 1e-15, d[0][0], 1)
	for k := 1; k < 4; k++ {
		chk.Float64(tst, "K[0][k]", 1e-15, d[0][k], 0)
		chk.Float64(tst, "K[k][0]", 1e-15, d[k][0], 0)
	}

	// the free block matches the element stiffness (element-node order is
	// 0,1,3,2 counter-clockwise)
	el := ele.NewQuad4(1, 1, 1)
	je := make([]float64, 16)
	xe := []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}
	ue := make([]float64, 4)
	if err = el.AddJacobian(0, je, 1, 0, 0, xe, ue, ue, ue); err != nil {
		tst.Errorf("AddJacobian failed:\n%v", err)
		return
	}
	pos := []int{0, 1, 3, 2} // global node -> element node
	for i := 1; i < 4; i++ {
		for j := 1; j < 4; j++ {
			chk.Float64(tst, "K free block", 1e-14, d[i][j], je[pos[i]*4+pos[j]])
		}
	}
}

func Test_asm03(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm03. dependent node elimination")

	// one quad whose fourth node is 0.5*n0 + 0.5*n2
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
	el := ele.NewQuad4(1, 1, 1)
	if err = o.SetElements([]ele.Element{el}); err != nil {
		tst.Errorf("SetElements failed:\n%v", err)
		return
	}
	if err = o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}

	// independent node coordinates chosen so the quad stays convex
	x := o.CreateNodeVec()
	xyz := []float64{
		0, 0, 0,
		1, 0, 0,
		0.5, 1.5, 0,
	}
	if err = x.SetValues([]int{0, 1, 2}, xyz, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}
	if err = o.SetNodes(x); err != nil {
		tst.Errorf("SetNodes failed:\n%v", err)
		return
	}

	u := []float64{1, 2, 3}
	setState(tst, o, u)

	// reference: the element matrix condensed through T (4x3)
	T := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.5, 0, 0.5},
	}
	xe := []float64{0, 0, 0, 1, 0, 0, 0.5, 1.5, 0, 0.25, 0.75, 0}
	ue := make([]float64, 4)
	for i := 0; i < 4; i++ {
		for a := 0; a < 3; a++ {
			ue[i] += T[i][a] * u[a]
		}
	}
	je := make([]float64, 16)
	zz := make([]float64, 4)
	if err = el.AddJacobian(0, je, 1, 0, 0, xe, ue, zz, zz); err != nil {
		tst.Errorf("AddJacobian failed:\n%v", err)
		return
	}
	kref := make([][]float64, 3)
	for a := 0; a < 3; a++ {
		kref[a] = make([]float64, 3)
		for b := 0; b < 3; b++ {
			for i := 0; i < 4; i++ {
				for j := 0; j < 4; j++ {
					kref[a][b] += T[i][a] * je[i*4+j] * T[j][b]
				}
			}
		}
	}

	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	res := o.CreateVec()
	if err = o.AssembleJacobian(1, 0, 0, res, a, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}
	chk.Deep2(tst, "T^t Je T", 1e-13, a.Dense(), kref)

	// the residual is condensed the same way: R = T^t Je ue
	rref := make([]float64, 3)
	for p := 0; p < 3; p++ {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				rref[p] += T[i][p] * je[i*4+j] * ue[j]
			}
		}
	}
	chk.Array(tst, "T^t R", 1e-13, res.Values(), rref)
}

func Test_asm04(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm04. auxiliary element contributions")

	o := quadGrid(tst, 1, 1, 1)
	if o == nil {
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 1, 1)
	setState(tst, o, []float64{1, 2, 3, 4})

	res1 := o.CreateVec()
	if err := o.AssembleResidual(res1); err != nil {
		tst.Errorf("AssembleResidual failed:\n%v", err)
		return
	}

	// the auxiliary element doubles the stiffness: R2 = 3*R1
	aux := new(ele.AuxElems)
	aux.Add(0, ele.NewQuad4(1, 2, 2))
	o.SetAuxElements(aux)

	res2 := o.CreateVec()
	if err := o.AssembleResidual(res2); err != nil {
		tst.Errorf("AssembleResidual failed:\n%v", err)
		return
	}
	res2.Axpy(-3, res1)
	chk.Float64(tst, "||R2 - 3 R1||", 1e-13, res2.Norm(), 0)
}

func Test_asm05(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm05. function evaluation and state gradient")

	o := quadGrid(tst, 1, 1, 1)
	if o == nil {
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 1, 1)
	setState(tst, o, []float64{1, 2, 3, 4})

	funcs := []ele.Function{&ele.StateNorm{}}
	vals := make([]float64, 1)
	if err := o.EvalFunctions(funcs, vals); err != nil {
		tst.Errorf("EvalFunctions failed:\n%v", err)
		return
	}
	chk.Float64(tst, "sum u^2", 1e-14, vals[0], 30)

	dfdu := []*Vec{o.CreateVec()}
	if err := o.AddSVSens(funcs, dfdu); err != nil {
		tst.Errorf("AddSVSens failed:\n%v", err)
		return
	}
	chk.Array(tst, "2u", 1e-14, dfdu[0].Values(), []float64{2, 4, 6, 8})
}

func Test_asm06(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm06. matrix-free Jacobian-vector product")

	o := quadGrid(tst, 2, 2, 1)
	if o == nil {
		return
	}
	if err := o.AddBCs([]int{0}, nil); err != nil {
		tst.Errorf("AddBCs failed:\n%v", err)
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 2, 2)

	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	alpha, gamma := 1.0, 0.5
	if err = o.AssembleJacobian(alpha, 0, gamma, nil, a, Normal); err != nil {
		tst.Errorf("AssembleJacobian failed:\n%v", err)
		return
	}
	d := a.Dense()

	// x respects the constraint so the matrix-free product (BC-zeroed)
	// matches a product by the assembled Jacobian (BC rows zeroed, unit
	// diagonal)
	n := 9
	x := o.CreateVec()
	xv := make([]float64, n)
	nodes := utl.IntRange(n)
	for i := 1; i < n; i++ {
		xv[i] = float64(i*i%7) - 3
	}
	if err = x.SetValues(nodes, xv, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}

	scale := 2.0
	y := o.CreateVec()
	if err = o.AddJacobianVecProduct(scale, alpha, 0, gamma, x, y, Normal); err != nil {
		tst.Errorf("AddJacobianVecProduct failed:\n%v", err)
		return
	}

	yref := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			yref[i] += scale * d[i][j] * xv[j]
		}
	}
	chk.Array(tst, "y = 2 J x", 1e-12, y.Values(), yref)
	chk.Float64(tst, "y at constrained dof", 1e-15, y.Values()[0], 0)
}

func Test_asm07(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm07. isolated mass matrix")

	o := quadGrid(tst, 2, 2, 1)
	if o == nil {
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 2, 2)

	a, err := o.CreateMat()
	if err != nil {
		tst.Errorf("CreateMat failed:\n%v", err)
		return
	}
	if err = o.AssembleMatrixType(ele.MassMatrix, a, Normal); err != nil {
		tst.Errorf("AssembleMatrixType failed:\n%v", err)
		return
	}

	// the consistent mass matrix entries sum to the total mass (area 4)
	sum := 0.0
	for _, row := range a.Dense() {
		for _, v := range row {
			sum += v
		}
	}
	chk.Float64(tst, "total mass", 1e-13, sum, 4)
}

func Test_asm08(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm08. adjoint-residual products")

	o := quadGrid(tst, 1, 1, 1)
	if o == nil {
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}
	setGridNodes(tst, o, 1, 1)
	u := []float64{1, -1, 2, 0.5}
	setState(tst, o, u)

	psi := o.CreateVec()
	pv := []float64{0.5, 1, -2, 3}
	nodes := []int{0, 1, 2, 3}
	if err := psi.SetValues(nodes, pv, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}

	// design-variable product: dvSens[0] = psi^t K0 u for the Quad4 kernel
	el := ele.NewQuad4(1, 1, 1)
	k0 := make([]float64, 16)
	xe := []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}
	if err := el.GetMatType(ele.StiffnessMatrix, k0, xe, u); err != nil {
		tst.Errorf("GetMatType failed:\n%v", err)
		return
	}
	ref := 0.0
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			ref += pv[i] * k0[i*4+j] * u[j]
		}
	}
	dvSens := [][]float64{{0}}
	if err := o.AddAdjointResProducts(1, []*Vec{psi}, dvSens); err != nil {
		tst.Errorf("AddAdjointResProducts failed:\n%v", err)
		return
	}
	chk.Float64(tst, "psi^t dR/dk", 1e-13, dvSens[0][0], ref)

	// coordinate product: matches the element's own xpt sensitivity
	zz := make([]float64, 4)
	xs := make([]float64, 12)
	el.AddAdjResXptProduct(0, xs, pv, xe, u, zz, zz)
	prod := []*Vec{o.CreateNodeVec()}
	if err := o.AddAdjointResXptProducts([]*Vec{psi}, prod); err != nil {
		tst.Errorf("AddAdjointResXptProducts failed:\n%v", err)
		return
	}
	chk.Array(tst, "psi^t dR/dX", 1e-8, prod[0].Values(), xs)

	// functions without coordinate sensitivities are rejected
	if err := o.AddXptSens([]ele.Function{&ele.StateNorm{}}, prod); err == nil {
		tst.Errorf("AddXptSens must reject functions without coordinate sensitivities")
		return
	}
}

func Test_asm09(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm09. one-shot lifecycle guards")

	o := quadGrid(tst, 1, 1, 1)
	if o == nil {
		return
	}

	// assembly before initialization is rejected
	if err := o.AssembleResidual(&Vec{}); err == nil {
		tst.Errorf("AssembleResidual before Initialize must fail")
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}

	// configuration after initialization is rejected
	if err := o.Initialize(); err == nil {
		tst.Errorf("Initialize must be one-shot")
		return
	}
	if err := o.SetElementConnectivity([]int{0, 4}, []int{0, 1, 3, 2}); err == nil {
		tst.Errorf("SetElementConnectivity after Initialize must fail")
		return
	}
	if err := o.AddBCs([]int{0}, nil); err == nil {
		tst.Errorf("AddBCs after Initialize must fail")
		return
	}
}

func Test_asm10(tst *testing.T) {

	//verbose()
	chk.PrintTitle("asm10. prescribed boundary values")

	o := quadGrid(tst, 1, 1, 2)
	if o == nil {
		return
	}
	if err := o.AddBCValues([]int{0}, []int{0, 1}, []float64{1.5, -2}); err != nil {
		tst.Errorf("AddBCValues failed:\n%v", err)
		return
	}
	if err := o.AddBCs([]int{2}, []int{1}); err != nil {
		tst.Errorf("AddBCs failed:\n%v", err)
		return
	}

	// values are imposed only once the assembler is ready
	if err := o.SetBCValues(&Vec{}); err == nil {
		tst.Errorf("SetBCValues before Initialize must fail")
		return
	}
	if err := o.Initialize(); err != nil {
		tst.Errorf("Initialize failed:\n%v", err)
		return
	}

	// the merged set comes back in node order
	nodes, dofs, vals := o.GetBCs()
	chk.Ints(tst, "bc nodes", nodes, []int{0, 2})
	chk.Ints(tst, "bc dofs node 0", dofs[0], []int{0, 1})
	chk.Ints(tst, "bc dofs node 2", dofs[1], []int{1})
	chk.Array(tst, "bc values node 0", 1e-15, vals[0], []float64{1.5, -2})
	chk.Array(tst, "bc values node 2", 1e-15, vals[1], []float64{0})

	// SetBCValues writes the prescribed values, leaving free dofs untouched
	q := o.CreateVec()
	all := utl.IntRange(4)
	uv := []float64{10, 11, 20, 21, 30, 31, 40, 41}
	if err := q.SetValues(all, uv, Insert); err != nil {
		tst.Errorf("SetValues failed:\n%v", err)
		return
	}
	if err := o.SetBCValues(q); err != nil {
		tst.Errorf("SetBCValues failed:\n%v", err)
		return
	}
	chk.Array(tst, "q with imposed values", 1e-15, q.Values(),
		[]float64{1.5, -2, 20, 21, 30, 0, 40, 41})

	// ApplyBCs keeps the Dirichlet-zero convention for residual vectors
	q.ApplyBCs()
	chk.Array(tst, "q zeroed at constraints", 1e-15, q.Values(),
		[]float64{0, 0, 20, 21, 30, 0, 40, 41})
}
