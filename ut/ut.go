// Package ut implements the unscented transform: deterministic sigma-point
// propagation of a mean/covariance pair through a nonlinear map, with exact
// propagation of the first derivatives of all transformed quantities with
// respect to a parameter vector.
package ut

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/matrix"
)

// Square root method names accepted by Config.Sqrt.
const (
	CholeskySqrt = "cholesky"
	SVDSqrt      = "svd"
)

// Config contains unscented transform configuration parameters
type Config struct {
	// Sqrt selects the matrix square root method, "cholesky" (default)
	// or "svd". Only the Cholesky square root supports derivative
	// propagation.
	Sqrt string
	// Kappa is the weight parameter of the center sigma point. When zero
	// there is no center point and the transform uses 2n sigma points.
	Kappa float64
}

// Transform is an unscented transform of fixed input dimension
type Transform struct {
	// n is the number of inputs
	n int
	// kappa is the center sigma point weight parameter
	kappa float64
	// nsigma is the number of sigma points, 2n plus the center point
	nsigma int
	// weights are the sigma point weights, summing to one
	weights []float64
	// sq is the square root method
	sq sqrter
}

// New creates a new unscented transform with input dimension n.
// It returns error wrapping pem.ErrInvalidConfiguration if n is not
// positive, n+kappa is zero, or the square root method name is unknown.
func New(n int, c *Config) (*Transform, error) {
	if c == nil {
		c = &Config{}
	}

	if n <= 0 {
		return nil, fmt.Errorf("invalid input dimension %d: %w", n, pem.ErrInvalidConfiguration)
	}

	if float64(n)+c.Kappa == 0 {
		return nil, fmt.Errorf("n+kappa must be nonzero: %w", pem.ErrInvalidConfiguration)
	}

	var sq sqrter
	switch c.Sqrt {
	case CholeskySqrt, "":
		sq = choleskySqrt{}
	case SVDSqrt:
		sq = svdSqrt{}
	default:
		return nil, fmt.Errorf("unknown square root method %q: %w", c.Sqrt, pem.ErrInvalidConfiguration)
	}

	nsigma := 2 * n
	if c.Kappa != 0 {
		nsigma++
	}

	weights := make([]float64, nsigma)
	for i := range weights {
		weights[i] = 0.5 / (float64(n) + c.Kappa)
	}
	if c.Kappa != 0 {
		weights[nsigma-1] = c.Kappa / (float64(n) + c.Kappa)
	}

	return &Transform{
		n:       n,
		kappa:   c.Kappa,
		nsigma:  nsigma,
		weights: weights,
		sq:      sq,
	}, nil
}

// NSigma returns the number of sigma points
func (t *Transform) NSigma() int {
	return t.nsigma
}

// Weights returns the sigma point weights
func (t *Transform) Weights() []float64 {
	w := make([]float64, len(t.weights))
	copy(w, t.weights)

	return w
}

// SupportsDiff reports whether the square root method propagates factor
// derivatives.
func (t *Transform) SupportsDiff() bool {
	_, ok := t.sq.(choleskySqrt)
	return ok
}

// SigmaPoints generates the sigma points around the input distribution of
// w and returns them as the rows of a matrix, storing the points and their
// deviations on w for the transform calls.
// It returns error if the scaled covariance square root fails.
func (t *Transform) SigmaPoints(w *Work) (*mat.Dense, error) {
	n := t.n
	if w.In.Len() != n {
		return nil, fmt.Errorf("input mean length %d, transform dimension %d: %w", w.In.Len(), n, pem.ErrShapeMismatch)
	}

	scaled := matrix.ScaledSym(float64(n)+t.kappa, w.InCov)
	s, err := t.sq.sqrt(w, scaled)
	if err != nil {
		return nil, err
	}
	w.S = s

	iDev := mat.NewDense(t.nsigma, n, nil)
	iSigma := mat.NewDense(t.nsigma, n, nil)
	for k := 0; k < t.nsigma; k++ {
		for j := 0; j < n; j++ {
			var d float64
			switch {
			case k < n:
				d = s.At(k, j)
			case k < 2*n:
				d = -s.At(k-n, j)
			}
			iDev.Set(k, j, d)
			iSigma.Set(k, j, d+w.In.AtVec(j))
		}
	}

	w.IDev = iDev
	w.ISigma = iSigma

	return iSigma, nil
}

// Apply propagates the input distribution of w through f and returns the
// output mean and covariance, retaining the sigma-point working set on w
// for cross-covariance and derivative calls.
// It returns error if sigma point generation fails or f returns vectors of
// inconsistent lengths.
func (t *Transform) Apply(w *Work, f func(mat.Vector) mat.Vector) (*mat.VecDense, *mat.SymDense, error) {
	iSigma, err := t.SigmaPoints(w)
	if err != nil {
		return nil, nil, err
	}

	var oSigma *mat.Dense
	var no int
	for k := 0; k < t.nsigma; k++ {
		ok := f(iSigma.RowView(k))
		if oSigma == nil {
			no = ok.Len()
			oSigma = mat.NewDense(t.nsigma, no, nil)
		}
		if ok.Len() != no {
			return nil, nil, fmt.Errorf("map output length changed from %d to %d across sigma points: %w", no, ok.Len(), pem.ErrShapeMismatch)
		}
		for j := 0; j < no; j++ {
			oSigma.Set(k, j, ok.AtVec(j))
		}
	}

	o := mat.NewVecDense(no, nil)
	for k := 0; k < t.nsigma; k++ {
		o.AddScaledVec(o, t.weights[k], oSigma.RowView(k))
	}

	oDev := mat.NewDense(t.nsigma, no, nil)
	for k := 0; k < t.nsigma; k++ {
		for j := 0; j < no; j++ {
			oDev.Set(k, j, oSigma.At(k, j)-o.AtVec(j))
		}
	}

	oCov := mat.NewSymDense(no, nil)
	for k := 0; k < t.nsigma; k++ {
		matrix.AddScaledOuterSym(oCov, t.weights[k], oDev.RowView(k))
	}

	w.OSigma = oSigma
	w.ODev = oDev
	w.O = o
	w.OCov = oCov

	return o, oCov, nil
}

// CrossCov returns the weighted cross-covariance between the input and
// output deviations of the last Apply call on w.
func (t *Transform) CrossCov(w *Work) *mat.Dense {
	_, no := w.ODev.Dims()
	pio := mat.NewDense(t.n, no, nil)
	for k := 0; k < t.nsigma; k++ {
		matrix.AddScaledOuter(pio, t.weights[k], w.IDev.RowView(k), w.ODev.RowView(k))
	}

	return pio
}

// SigmaPointsDiff propagates derivatives of the input distribution to the
// sigma points. dIn is the nq×n derivative of the input mean and dInCov a
// batch of nq derivatives of the input covariance. The resulting per-point
// derivatives, each nq×n, are stored on w and returned.
// It must be called after SigmaPoints (or Apply) on the same w.
func (t *Transform) SigmaPointsDiff(w *Work, dIn *mat.Dense, dInCov matrix.Batch) ([]*mat.Dense, error) {
	n := t.n
	nq := len(dInCov)

	scaled := dInCov.Clone()
	scaled.Scale(float64(n) + t.kappa)
	dS, err := t.sq.sqrtDiff(w, scaled)
	if err != nil {
		return nil, err
	}

	iDevDiff := make([]*mat.Dense, t.nsigma)
	iSigmaDiff := make([]*mat.Dense, t.nsigma)
	for k := 0; k < t.nsigma; k++ {
		dDev := mat.NewDense(nq, n, nil)
		for a := 0; a < nq; a++ {
			for j := 0; j < n; j++ {
				var d float64
				switch {
				case k < n:
					d = dS[a].At(k, j)
				case k < 2*n:
					d = -dS[a].At(k-n, j)
				}
				dDev.Set(a, j, d)
			}
		}

		dSigma := mat.NewDense(nq, n, nil)
		dSigma.Add(dDev, dIn)

		iDevDiff[k] = dDev
		iSigmaDiff[k] = dSigma
	}

	w.IDevDiff = iDevDiff
	w.ISigmaDiff = iSigmaDiff

	return iSigmaDiff, nil
}

// ApplyDiff propagates derivatives of the input distribution and of the
// map through the transform, mirroring the weighted-sum and outer-product
// structure of Apply applied to the derivative quantities. dfq(x) is the
// nq×no derivative of the map with respect to the parameters at x and
// dfx(x) the n×no derivative with respect to the input. It returns the
// nq×no derivative of the output mean and a batch of nq derivatives of the
// output covariance, retaining the per-point output deviation derivatives
// on w for CrossCovDiff.
// It must be called after Apply on the same w.
func (t *Transform) ApplyDiff(w *Work, dfq, dfx func(x mat.Vector) *mat.Dense, dIn *mat.Dense, dInCov matrix.Batch) (*mat.Dense, matrix.Batch, error) {
	if w.ODev == nil {
		return nil, nil, fmt.Errorf("transform derivative requested before transform: %w", pem.ErrInvalidConfiguration)
	}

	iSigmaDiff, err := t.SigmaPointsDiff(w, dIn, dInCov)
	if err != nil {
		return nil, nil, err
	}

	nq := len(dInCov)
	_, no := w.ODev.Dims()

	// total derivative of every propagated sigma point
	oSigmaDiff := make([]*mat.Dense, t.nsigma)
	oDiff := mat.NewDense(nq, no, nil)
	var chain mat.Dense
	for k := 0; k < t.nsigma; k++ {
		xk := w.ISigma.RowView(k)
		d := &mat.Dense{}
		d.CloneFrom(dfq(xk))
		chain.Mul(iSigmaDiff[k], dfx(xk))
		d.Add(d, &chain)

		oSigmaDiff[k] = d

		var scaled mat.Dense
		scaled.Scale(t.weights[k], d)
		oDiff.Add(oDiff, &scaled)
	}

	oDevDiff := make([]*mat.Dense, t.nsigma)
	for k := 0; k < t.nsigma; k++ {
		dDev := mat.NewDense(nq, no, nil)
		dDev.Sub(oSigmaDiff[k], oDiff)
		oDevDiff[k] = dDev
	}

	oCovDiff := matrix.NewBatch(nq, no, no)
	for a := 0; a < nq; a++ {
		for k := 0; k < t.nsigma; k++ {
			matrix.AddScaledOuter(oCovDiff[a], t.weights[k], w.ODev.RowView(k), oDevDiff[k].RowView(a))
		}
	}
	oCovDiff.AddTranspose()

	w.ODevDiff = oDevDiff

	return oDiff, oCovDiff, nil
}

// CrossCovDiff returns the derivative of the input/output cross-covariance
// from the working sets of the last Apply and ApplyDiff calls on w.
func (t *Transform) CrossCovDiff(w *Work) matrix.Batch {
	nq, _ := w.ODevDiff[0].Dims()
	_, no := w.ODev.Dims()

	dPio := matrix.NewBatch(nq, t.n, no)
	for a := 0; a < nq; a++ {
		for k := 0; k < t.nsigma; k++ {
			matrix.AddScaledOuter(dPio[a], t.weights[k], w.IDevDiff[k].RowView(a), w.ODev.RowView(k))
			matrix.AddScaledOuter(dPio[a], t.weights[k], w.IDev.RowView(k), w.ODevDiff[k].RowView(a))
		}
	}

	return dPio
}
