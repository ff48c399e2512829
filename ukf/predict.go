package ukf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/estimate"
	"github.com/dimasad/go-pem/matrix"
	"github.com/dimasad/go-pem/ut"
)

// Predict propagates the state distribution of w to the next time step
// through the model drift and adds the process noise covariance. It
// advances the time index, mutates the distribution in place and retains
// the transform working set for PredictionDiff.
// It returns error if the sigma point square root fails.
func (f *UKF) Predict(w *Work) (pem.Estimate, error) {
	k := w.K

	w.predUT = ut.NewWork(w.X, w.Px)
	fMean, fCov, err := f.predUT.Apply(w.predUT, func(x mat.Vector) mat.Vector {
		return f.m.F(k, x)
	})
	if err != nil {
		return nil, fmt.Errorf("drift transform failed: %w", err)
	}

	q := f.m.ProcessNoiseCov(k, w.X)
	if q.Symmetric() != f.nx {
		return nil, fmt.Errorf("process noise covariance dimension %d, state dimension %d: %w", q.Symmetric(), f.nx, pem.ErrShapeMismatch)
	}

	w.prevX = w.X
	w.prevPx = w.Px
	w.K = k + 1
	w.X = fMean
	w.Px = matrix.AddSymDense(fCov, q)
	w.stage = stagePredicted

	return estimate.NewBaseWithCov(w.X, w.Px)
}

// PredictionDiff propagates the parameter derivatives of the state
// distribution through the prediction, using the working set retained by
// the matching Predict call. The process noise contribution includes the
// chain rule term through the state derivative, since the noise covariance
// is evaluated at the previous mean.
// It returns error if it is not called immediately after Predict.
func (f *UKF) PredictionDiff(w *Work) error {
	if w.stage != stagePredicted {
		return fmt.Errorf("prediction derivative without matching prediction: %w", pem.ErrInvalidConfiguration)
	}

	k := w.K - 1
	x := w.prevX

	dfDq, dPfDq, err := f.predUT.ApplyDiff(w.predUT,
		func(xs mat.Vector) *mat.Dense { return f.dm.FDiffQ(k, xs) },
		func(xs mat.Vector) *mat.Dense { return f.dm.FDiffX(k, xs) },
		w.DxDq, w.DPxDq,
	)
	if err != nil {
		return fmt.Errorf("drift transform derivative failed: %w", err)
	}

	// total process noise derivative: explicit parameter dependence plus
	// the dependence through the previous state mean
	dQDq := f.dm.QDiffQ(k, x).Clone()
	dQDx := f.dm.QDiffX(k, x)
	for a := 0; a < f.nq; a++ {
		for j := 0; j < f.nx; j++ {
			var scaled mat.Dense
			scaled.Scale(w.DxDq.At(a, j), dQDx[j])
			dQDq[a].Add(dQDq[a], &scaled)
		}
	}

	w.DxDq = dfDq
	for a := 0; a < f.nq; a++ {
		w.DPxDq[a].Add(dPfDq[a], dQDq[a])
	}
	w.stage = stageNone

	return nil
}
