package ut

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dimasad/go-pem/chol"
)

// Work is the per-call working set of an unscented transform. It retains
// the sigma points, deviations and square root factor between the value
// calls and the matching derivative calls, which must reuse the same Work.
type Work struct {
	// In is the input mean
	In *mat.VecDense
	// InCov is the input covariance
	InCov *mat.SymDense

	// Chol is the factorization working set of the Cholesky square root
	Chol chol.Work

	// S is the square root of the scaled input covariance; its rows are
	// the positive sigma point deviations
	S *mat.Dense

	// ISigma and IDev hold the sigma points and their deviations from
	// the input mean, one point per row
	ISigma, IDev *mat.Dense

	// OSigma and ODev hold the propagated sigma points and their
	// deviations from the output mean, one point per row
	OSigma, ODev *mat.Dense

	// O is the output mean
	O *mat.VecDense
	// OCov is the output covariance
	OCov *mat.SymDense

	// per sigma point derivatives, each nq×n or nq×no, with rows
	// indexing the parameter direction
	IDevDiff, ISigmaDiff, ODevDiff []*mat.Dense
}

// NewWork creates a transform working set for the input distribution
// (mean, cov).
func NewWork(mean mat.Vector, cov mat.Symmetric) *Work {
	m := &mat.VecDense{}
	m.CloneFromVec(mean)

	c := mat.NewSymDense(cov.Symmetric(), nil)
	c.CopySym(cov)

	return &Work{
		In:    m,
		InCov: c,
	}
}
