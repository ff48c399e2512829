package ukf

import (
	"gonum.org/v1/gonum/mat"

	"github.com/dimasad/go-pem/chol"
	"github.com/dimasad/go-pem/matrix"
	"github.com/dimasad/go-pem/ut"
)

// stage tracks which value call the work context is positioned after. The
// derivative and likelihood calls are only valid immediately following
// their paired value call for the same step; the tag makes that
// precondition checkable instead of an implicit convention.
type stage int

const (
	stageNone stage = iota
	stagePredicted
	stageCorrected
)

// Work is the mutable per-run state of a filter. It is created once per
// run from the initial condition, mutated in place by every predict and
// correct call and discarded after the outputs are extracted. A Work is
// exclusively owned by one run and must not be shared.
type Work struct {
	// K is the current time step
	K int
	// X is the current state mean
	X *mat.VecDense
	// Px is the current state covariance
	Px *mat.SymDense

	// DxDq is the nq×nx derivative of the state mean with respect to
	// the model parameters; nil unless gradients are enabled
	DxDq *mat.Dense
	// DPxDq is the batch of nq state covariance derivatives
	DPxDq matrix.Batch

	// LogLik is the accumulated measurement log-likelihood
	LogLik float64
	// DLogLikDq is the accumulated log-likelihood gradient
	DLogLikDq []float64

	stage      stage
	corrDiffed bool

	// previous distribution, retained by the value calls for the
	// matching derivative calls
	prevX  *mat.VecDense
	prevPx *mat.SymDense

	// transform working sets of the last predict and correct calls
	predUT *ut.Work
	corrUT *ut.Work

	// correction working set
	active  []int
	skipped bool
	e       *mat.VecDense
	gain    *mat.Dense
	pxh     *mat.Dense
	py      *mat.SymDense
	pyI     *mat.Dense
	pyC     *mat.TriDense
	pyChol  *chol.Work

	// correction derivative working set, retained for the likelihood
	// derivative call
	deDq   *mat.Dense
	dPyDq  matrix.Batch
	dPyIDq matrix.Batch
}

// LastCorrectionSkipped reports whether the last correction degraded to an
// identity step because every measurement entry was missing.
func (w *Work) LastCorrectionSkipped() bool {
	return w.skipped
}

// State returns the current state mean
func (w *Work) State() mat.Vector {
	x := &mat.VecDense{}
	x.CloneFromVec(w.X)

	return x
}

// Cov returns the current state covariance
func (w *Work) Cov() mat.Symmetric {
	p := mat.NewSymDense(w.Px.Symmetric(), nil)
	p.CopySym(w.Px)

	return p
}

// Gradient returns the accumulated log-likelihood gradient.
// It returns nil if gradients are not enabled.
func (w *Work) Gradient() []float64 {
	if w.DLogLikDq == nil {
		return nil
	}

	g := make([]float64, len(w.DLogLikDq))
	copy(g, w.DLogLikDq)

	return g
}
