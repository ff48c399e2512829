package pem

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dimasad/go-pem/matrix"
)

// Model is a discrete-time nonlinear stochastic state-space model
//
//	x[k+1] = f(k, x[k]) + w[k],  w[k] ~ N(0, Q(k, x[k]))
//	y[k]   = h(k, x[k]) + v[k],  v[k] ~ N(0, R)
//
// All functions must be pure for a fixed (k, x): the filter evaluates them
// repeatedly at sigma points and relies on repeatable results.
type Model interface {
	// SystemDims returns the state, parameter and measurement dimensions
	SystemDims() (nx, nq, ny int)
	// F returns the state propagation (drift) function value at (k, x)
	F(k int, x mat.Vector) mat.Vector
	// ProcessNoiseCov returns the process noise covariance at (k, x)
	ProcessNoiseCov(k int, x mat.Vector) mat.Symmetric
	// H returns the measurement function value at (k, x)
	H(k int, x mat.Vector) mat.Vector
	// MeasurementNoiseCov returns the measurement noise covariance
	MeasurementNoiseCov() mat.Symmetric
}

// DiffModel is a Model which also provides the partial derivatives of its
// functions with respect to the state and the unknown parameter vector.
// The first index of every derivative quantity is the differentiation
// variable: FDiffQ(k, x).At(a, j) is the derivative of the j-th component
// of f with respect to the a-th parameter.
type DiffModel interface {
	Model
	// FDiffQ returns df/dq at (k, x), an nq×nx matrix
	FDiffQ(k int, x mat.Vector) *mat.Dense
	// FDiffX returns df/dx at (k, x), an nx×nx matrix
	FDiffX(k int, x mat.Vector) *mat.Dense
	// QDiffQ returns dQ/dq at (k, x), a batch of nq matrices nx×nx
	QDiffQ(k int, x mat.Vector) matrix.Batch
	// QDiffX returns dQ/dx at (k, x), a batch of nx matrices nx×nx
	QDiffX(k int, x mat.Vector) matrix.Batch
	// HDiffQ returns dh/dq at (k, x), an nq×ny matrix
	HDiffQ(k int, x mat.Vector) *mat.Dense
	// HDiffX returns dh/dx at (k, x), an nx×ny matrix
	HDiffX(k int, x mat.Vector) *mat.Dense
	// RDiffQ returns dR/dq, a batch of nq matrices ny×ny
	RDiffQ() matrix.Batch
}

// ParametrizedModel builds immutable model instances from a parameter
// vector. It is the bridge between the filter and an external optimizer:
// each candidate parameter vector yields a fresh model for one filter run.
type ParametrizedModel interface {
	// NumParams returns the length of the parameter vector
	NumParams() int
	// ModelAt returns the model evaluated at the given parameter vector
	ModelAt(q []float64) (DiffModel, error)
}

// InitCond is the initial state condition of a filter run
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is a filtered state estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset()
}
