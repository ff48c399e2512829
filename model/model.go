package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
)

// InitCond implements pem.InitCond
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond from the initial state mean and
// covariance.
// It returns error wrapping pem.ErrShapeMismatch if the dimensions
// disagree.
func NewInitCond(state mat.Vector, cov mat.Symmetric) (*InitCond, error) {
	if state.Len() != cov.Symmetric() {
		return nil, fmt.Errorf("state length %d, covariance dimension %d: %w", state.Len(), cov.Symmetric(), pem.ErrShapeMismatch)
	}

	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.Symmetric(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}, nil
}

// State returns initial state
func (c *InitCond) State() mat.Vector {
	state := mat.NewVecDense(c.state.Len(), nil)
	state.CopyVec(c.state)

	return state
}

// Cov returns initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.Symmetric(), nil)
	cov.CopySym(c.cov)

	return cov
}

// Linear is a time-invariant linear-Gaussian state-space model
//
//	x[k+1] = A*x[k] + w[k],  w[k] ~ N(0, Q)
//	y[k]   = C*x[k] + v[k],  v[k] ~ N(0, R)
//
// It has no free parameters and implements pem.Model; it is a reference
// model for simulation and for validating the filter against the
// closed-form Kalman recursion, which is exact for it.
type Linear struct {
	// A is the state propagation matrix
	A *mat.Dense
	// C is the observation matrix
	C *mat.Dense
	// Q is the process noise covariance
	Q *mat.SymDense
	// R is the measurement noise covariance
	R *mat.SymDense
}

// NewLinear creates a linear-Gaussian model from its matrices.
// It returns error wrapping pem.ErrShapeMismatch if the dimensions are
// inconsistent.
func NewLinear(a, c *mat.Dense, q, r *mat.SymDense) (*Linear, error) {
	nx, ca := a.Dims()
	if nx != ca {
		return nil, fmt.Errorf("propagation matrix is %d×%d: %w", nx, ca, pem.ErrShapeMismatch)
	}

	ny, cc := c.Dims()
	if cc != nx {
		return nil, fmt.Errorf("observation matrix is %d×%d, state dimension %d: %w", ny, cc, nx, pem.ErrShapeMismatch)
	}

	if q.Symmetric() != nx {
		return nil, fmt.Errorf("process noise covariance dimension %d, state dimension %d: %w", q.Symmetric(), nx, pem.ErrShapeMismatch)
	}

	if r.Symmetric() != ny {
		return nil, fmt.Errorf("measurement noise covariance dimension %d, output dimension %d: %w", r.Symmetric(), ny, pem.ErrShapeMismatch)
	}

	return &Linear{A: a, C: c, Q: q, R: r}, nil
}

// SystemDims returns the state, parameter and measurement dimensions
func (l *Linear) SystemDims() (nx, nq, ny int) {
	nx, _ = l.A.Dims()
	ny, _ = l.C.Dims()

	return nx, 0, ny
}

// F returns A*x
func (l *Linear) F(k int, x mat.Vector) mat.Vector {
	nx, _ := l.A.Dims()
	out := mat.NewVecDense(nx, nil)
	out.MulVec(l.A, x)

	return out
}

// ProcessNoiseCov returns the process noise covariance
func (l *Linear) ProcessNoiseCov(k int, x mat.Vector) mat.Symmetric {
	return l.Q
}

// H returns C*x
func (l *Linear) H(k int, x mat.Vector) mat.Vector {
	ny, _ := l.C.Dims()
	out := mat.NewVecDense(ny, nil)
	out.MulVec(l.C, x)

	return out
}

// MeasurementNoiseCov returns the measurement noise covariance
func (l *Linear) MeasurementNoiseCov() mat.Symmetric {
	return l.R
}
