// Copyright 2025 The Tacs Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package ele defines the element interface consumed by the assembler and
// implements reference elements
package ele

// MatrixType selects which element matrix GetMatType computes
type MatrixType int

const (
	// StiffnessMatrix is the tangent stiffness matrix
	StiffnessMatrix MatrixType = iota

	// MassMatrix is the consistent mass matrix
	MassMatrix

	// GeometricStiffnessMatrix is the stress-dependent stiffness matrix
	GeometricStiffnessMatrix
)

// Element defines what all elements must implement. Elements own no nodal
// data: state and coordinates are gathered by the assembler and lent to the
// element through the slices below.
//  xpts          -- nodal coordinates; 3 values per node
//  vars/dvars/ddvars -- state, first and second time derivative; NumVarsPerNode values per node
type Element interface {

	// information
	NumNodes() int       // number of nodes
	NumVarsPerNode() int // number of state variables per node
	NumVars() int        // total number of state variables = NumNodes * NumVarsPerNode

	// called for each iteration
	AddResidual(time float64, res, xpts, vars, dvars, ddvars []float64) (err error)

	// AddJacobian adds alpha*dR/du + beta*dR/dudot + gamma*dR/duddot to the
	// dense row-major matrix jac of size NumVars x NumVars
	AddJacobian(time float64, jac []float64, alpha, beta, gamma float64, xpts, vars, dvars, ddvars []float64) (err error)
}

// WithMatType defines elements that can compute isolated matrices such as
// the mass matrix for eigenvalue or modal analyses
type WithMatType interface {
	GetMatType(mtype MatrixType, mat, xpts, vars []float64) (err error)
}

// WithSens defines elements exposing design-sensitivity products for
// adjoint-based optimization
type WithSens interface {

	// NumDesignVars returns the number of design variables of this element
	NumDesignVars() int

	// AddAdjResProduct adds scale * psi^T * dR/dx to dvSens, where x are the
	// element design variables and psi is the adjoint state
	AddAdjResProduct(time, scale float64, dvSens, psi, xpts, vars, dvars, ddvars []float64)

	// AddAdjResXptProduct adds psi^T * dR/dX to xptSens, where X are the
	// nodal coordinates (3 values per node)
	AddAdjResXptProduct(time float64, xptSens, psi, xpts, vars, dvars, ddvars []float64)
}
