// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ele

import (
	"github.com/cpmech/gosl/chk"
	"gonum.org/v1/gonum/mat"
)

// Quad4 is a bilinear 4-node quadrilateral with a diffusion-type kernel
// applied independently to each degree of freedom:
//
//	R(u, uddot) = Kcond * K0 * u + Rho * M0 * uddot
//
// where K0 is the Laplacian stiffness and M0 the consistent mass matrix of
// the bilinear interpolation, both integrated with 2x2 Gauss quadrature.
// The residual is exactly zero for zero state and zero acceleration, and the
// Jacobian is alpha*Kcond*K0 + gamma*Rho*M0 (no damping term).
//
// The element lives in the xy plane; the z coordinate of xpts is ignored.
type Quad4 struct {
	Ndof  int     // degrees of freedom per node
	Kcond float64 // stiffness (conductivity) coefficient; design variable 0
	Rho   float64 // mass density
}

// NewQuad4 returns a new element with ndof variables per node
func NewQuad4(ndof int, kcond, rho float64) *Quad4 {
	if ndof < 1 {
		chk.Panic("Quad4 needs at least one dof per node (%d given)", ndof)
	}
	return &Quad4{Ndof: ndof, Kcond: kcond, Rho: rho}
}

// NumNodes returns 4
func (o *Quad4) NumNodes() int { return 4 }

// NumVarsPerNode returns the number of dofs per node
func (o *Quad4) NumVarsPerNode() int { return o.Ndof }

// NumVars returns the total number of state variables
func (o *Quad4) NumVars() int { return 4 * o.Ndof }

// gauss holds the 2x2 Gauss abscissa
const gauss = 0.577350269189625764509148780502 // 1/sqrt(3)

// shapeDerivs evaluates the shape functions and their natural derivatives
// at (xi, eta)
func shapeDerivs(xi, eta float64) (nn [4]float64, dn *mat.Dense) {
	nn = [4]float64{
		0.25 * (1 - xi) * (1 - eta),
		0.25 * (1 + xi) * (1 - eta),
		0.25 * (1 + xi) * (1 + eta),
		0.25 * (1 - xi) * (1 + eta),
	}
	dn = mat.NewDense(2, 4, []float64{
		-0.25 * (1 - eta), 0.25 * (1 - eta), 0.25 * (1 + eta), -0.25 * (1 + eta),
		-0.25 * (1 - xi), -0.25 * (1 + xi), 0.25 * (1 + xi), 0.25 * (1 - xi),
	})
	return
}

// matrices integrates the 4x4 Laplacian stiffness K0 and consistent mass M0
// from the nodal coordinates
func (o *Quad4) matrices(xpts []float64, K0, M0 *mat.Dense) (err error) {
	K0.Zero()
	M0.Zero()
	X := mat.NewDense(4, 2, nil)
	for i := 0; i < 4; i++ {
		X.Set(i, 0, xpts[3*i])
		X.Set(i, 1, xpts[3*i+1])
	}
	var jac, inv, dx, kgp mat.Dense
	for _, xi := range []float64{-gauss, gauss} {
		for _, eta := range []float64{-gauss, gauss} {
			nn, dn := shapeDerivs(xi, eta)
			jac.Mul(dn, X)
			det := mat.Det(&jac)
			if det <= 0 {
				return chk.Err("Quad4: non-positive Jacobian determinant (%g)", det)
			}
			if err = inv.Inverse(&jac); err != nil {
				return chk.Err("Quad4: cannot invert Jacobian:\n%v", err)
			}
			dx.Mul(&inv, dn)        // physical gradients, 2x4
			kgp.Mul(dx.T(), &dx)    // 4x4
			kgp.Scale(det, &kgp)    // unit Gauss weights
			K0.Add(K0, &kgp)
			for i := 0; i < 4; i++ {
				for j := 0; j < 4; j++ {
					M0.Set(i, j, M0.At(i, j)+det*nn[i]*nn[j])
				}
			}
		}
	}
	return
}

// AddResidual adds Kcond*K0*u + Rho*M0*uddot to res
func (o *Quad4) AddResidual(time float64, res, xpts, vars, dvars, ddvars []float64) (err error) {
	K0 := mat.NewDense(4, 4, nil)
	M0 := mat.NewDense(4, 4, nil)
	if err = o.matrices(xpts, K0, M0); err != nil {
		return
	}
	nd := o.Ndof
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			k := o.Kcond * K0.At(i, j)
			m := o.Rho * M0.At(i, j)
			for p := 0; p < nd; p++ {
				res[i*nd+p] += k*vars[j*nd+p] + m*ddvars[j*nd+p]
			}
		}
	}
	return
}

// AddJacobian adds alpha*Kcond*K0 + gamma*Rho*M0 to jac (row-major,
// NumVars x NumVars)
func (o *Quad4) AddJacobian(time float64, jac []float64, alpha, beta, gamma float64, xpts, vars, dvars, ddvars []float64) (err error) {
	K0 := mat.NewDense(4, 4, nil)
	M0 := mat.NewDense(4, 4, nil)
	if err = o.matrices(xpts, K0, M0); err != nil {
		return
	}
	nd := o.Ndof
	nv := o.NumVars()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := alpha*o.Kcond*K0.At(i, j) + gamma*o.Rho*M0.At(i, j)
			for p := 0; p < nd; p++ {
				jac[(i*nd+p)*nv+j*nd+p] += v
			}
		}
	}
	return
}

// GetMatType computes an isolated element matrix (row-major,
// NumVars x NumVars). The geometric stiffness of this kernel is zero.
func (o *Quad4) GetMatType(mtype MatrixType, m, xpts, vars []float64) (err error) {
	K0 := mat.NewDense(4, 4, nil)
	M0 := mat.NewDense(4, 4, nil)
	if err = o.matrices(xpts, K0, M0); err != nil {
		return
	}
	nd := o.Ndof
	nv := o.NumVars()
	for i := range m[:nv*nv] {
		m[i] = 0
	}
	switch mtype {
	case StiffnessMatrix:
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				for p := 0; p < nd; p++ {
					m[(i*nd+p)*nv+j*nd+p] = o.Kcond * K0.At(i, j)
				}
			}
		}
	case MassMatrix:
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				for p := 0; p < nd; p++ {
					m[(i*nd+p)*nv+j*nd+p] = o.Rho * M0.At(i, j)
				}
			}
		}
	case GeometricStiffnessMatrix:
		// zero
	default:
		return chk.Err("Quad4: unknown matrix type %d", mtype)
	}
	return
}

// NumDesignVars returns 1: the stiffness coefficient Kcond
func (o *Quad4) NumDesignVars() int { return 1 }

// AddAdjResProduct adds scale * psi^T * dR/dKcond = scale * psi^T * (K0*u)
// to dvSens[0]
func (o *Quad4) AddAdjResProduct(time, scale float64, dvSens, psi, xpts, vars, dvars, ddvars []float64) {
	K0 := mat.NewDense(4, 4, nil)
	M0 := mat.NewDense(4, 4, nil)
	if err := o.matrices(xpts, K0, M0); err != nil {
		chk.Panic("%v", err)
	}
	nd := o.Ndof
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			k := K0.At(i, j)
			for p := 0; p < nd; p++ {
				dvSens[0] += scale * psi[i*nd+p] * k * vars[j*nd+p]
			}
		}
	}
}

// AddAdjResXptProduct adds psi^T * dR/dX to xptSens via central differences
// on the in-plane coordinates
func (o *Quad4) AddAdjResXptProduct(time float64, xptSens, psi, xpts, vars, dvars, ddvars []float64) {
	h := 1e-6
	nv := o.NumVars()
	xp := make([]float64, len(xpts))
	rp := make([]float64, nv)
	rm := make([]float64, nv)
	copy(xp, xpts)
	for i := 0; i < 4; i++ {
		for d := 0; d < 2; d++ { // z has no influence
			c := 3*i + d
			for k := range rp {
				rp[k], rm[k] = 0, 0
			}
			xp[c] = xpts[c] + h
			if err := o.AddResidual(time, rp, xp, vars, dvars, ddvars); err != nil {
				chk.Panic("%v", err)
			}
			xp[c] = xpts[c] - h
			if err := o.AddResidual(time, rm, xp, vars, dvars, ddvars); err != nil {
				chk.Panic("%v", err)
			}
			xp[c] = xpts[c]
			sum := 0.0
			for k := 0; k < nv; k++ {
				sum += psi[k] * (rp[k] - rm[k]) / (2 * h)
			}
			xptSens[c] += sum
		}
	}
}
