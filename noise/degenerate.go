package noise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/dimasad/go-pem/rand"
)

// Degenerate is zero-mean gaussian noise whose covariance may be singular,
// sampled through an SVD square root instead of a normal distribution
// object. Process noise obtained by discretizing an SDE with fewer noise
// channels than states is of this kind.
type Degenerate struct {
	// cov is the noise covariance
	cov *mat.SymDense
}

// NewDegenerate creates new possibly singular gaussian noise with the
// given covariance.
// It returns error if a sample cannot be drawn from cov.
func NewDegenerate(cov mat.Symmetric) (*Degenerate, error) {
	c := mat.NewSymDense(cov.Symmetric(), nil)
	c.CopySym(cov)

	// draw once up front so construction fails on unusable covariances
	if _, err := rand.WithCovN(c, 1); err != nil {
		return nil, fmt.Errorf("failed to sample covariance: %v", err)
	}

	return &Degenerate{cov: c}, nil
}

// Sample generates a sample of the noise and returns it.
func (d *Degenerate) Sample() mat.Vector {
	s, err := rand.WithCovN(d.cov, 1)
	if err != nil {
		return mat.NewVecDense(d.cov.Symmetric(), nil)
	}

	return s.ColView(0)
}

// Cov returns covariance matrix of the noise.
func (d *Degenerate) Cov() mat.Symmetric {
	cov := mat.NewSymDense(d.cov.Symmetric(), nil)
	cov.CopySym(d.cov)

	return cov
}

// Mean returns the zero noise mean.
func (d *Degenerate) Mean() []float64 {
	return make([]float64, d.cov.Symmetric())
}

// Reset does nothing: the underlying sampler is stateless.
func (d *Degenerate) Reset() {}

// String implements the Stringer interface.
func (d *Degenerate) String() string {
	return fmt.Sprintf("Degenerate{\nCov=%v\n}", mat.Formatted(d.cov, mat.Prefix("    "), mat.Squeeze()))
}
