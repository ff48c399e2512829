package estimate

import (
	"fmt"

	pem "github.com/dimasad/go-pem"

	"gonum.org/v1/gonum/mat"
)

// Base is a filtered state estimate: a mean vector with its covariance.
// The filter trajectory is a sequence of Base values, one per time step.
type Base struct {
	// val is estimated state mean
	val *mat.VecDense
	// cov is estimated state covariance
	cov *mat.SymDense
}

// NewBase returns an estimate with the given mean and zero covariance
func NewBase(val mat.Vector) (*Base, error) {
	v := &mat.VecDense{}
	if val != nil {
		v.CloneFromVec(val)
	}

	c := mat.NewSymDense(v.Len(), nil)

	return &Base{
		val: v,
		cov: c,
	}, nil
}

// NewBaseWithCov returns an estimate with the given mean and covariance.
// It returns error wrapping pem.ErrShapeMismatch if the dimensions
// disagree.
func NewBaseWithCov(val mat.Vector, cov mat.Symmetric) (*Base, error) {
	rv := val.Len()
	rc := cov.Symmetric()

	if rv != rc {
		return nil, fmt.Errorf("mean length %d, covariance dimension %d: %w", rv, rc, pem.ErrShapeMismatch)
	}

	v := &mat.VecDense{}
	v.CloneFromVec(val)

	c := mat.NewSymDense(rc, nil)
	c.CopySym(cov)

	return &Base{
		val: v,
		cov: c,
	}, nil
}

// Val returns estimated state mean
func (b *Base) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(b.val)

	return v
}

// Cov returns estimated state covariance
func (b *Base) Cov() mat.Symmetric {
	cov := mat.NewSymDense(b.cov.Symmetric(), nil)
	cov.CopySym(b.cov)

	return cov
}
