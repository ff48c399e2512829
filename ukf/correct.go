package ukf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/chol"
	"github.com/dimasad/go-pem/estimate"
	"github.com/dimasad/go-pem/matrix"
	"github.com/dimasad/go-pem/ut"
)

// Correct updates the state distribution of w with the measurement y.
// Missing entries are excluded from the update entirely: the measurement,
// observation function and measurement noise are restricted to the active
// indices. When every entry is missing the correction is an identity step,
// observable through Work.LastCorrectionSkipped, with no gain and no
// likelihood contribution. The innovation covariance is factorized and
// inverted through its triangular factor; the factor, gain, innovation and
// active set are retained on w for the derivative and likelihood calls.
// It returns error if the measurement length does not match the model or
// the innovation covariance is not positive definite.
func (f *UKF) Correct(w *Work, y *pem.Measurement) (pem.Estimate, error) {
	if y.Len() != f.ny {
		return nil, fmt.Errorf("measurement length %d, model output dimension %d: %w", y.Len(), f.ny, pem.ErrShapeMismatch)
	}

	w.active = y.Active()
	w.skipped = len(w.active) == 0
	w.corrDiffed = false
	w.stage = stageCorrected

	if w.skipped {
		return estimate.NewBaseWithCov(w.X, w.Px)
	}

	k := w.K
	active := w.active
	yv := y.Compress()
	rAct := matrix.SubSym(f.m.MeasurementNoiseCov(), active)

	w.corrUT = ut.NewWork(w.X, w.Px)
	hMean, hCov, err := f.corrUT.Apply(w.corrUT, func(x mat.Vector) mat.Vector {
		return matrix.SubVector(f.m.H(k, x), active)
	})
	if err != nil {
		return nil, fmt.Errorf("observation transform failed: %w", err)
	}

	pxh := f.corrUT.CrossCov(w.corrUT)

	// innovation covariance and its triangular factorization
	py := matrix.AddSymDense(hCov, rAct)
	w.pyChol = &chol.Work{}
	pyC, err := chol.Decompose(w.pyChol, py)
	if err != nil {
		return nil, fmt.Errorf("innovation covariance factorization failed: %w", err)
	}

	na := len(active)
	pyCI := mat.NewTriDense(na, mat.Upper, nil)
	if err := pyCI.InverseTri(pyC); err != nil {
		return nil, fmt.Errorf("innovation covariance factor inversion failed: %w", pem.ErrNotPositiveDefinite)
	}

	// Py^-1 = F^-1 * F^-t through the triangular factor, avoiding a
	// general inverse
	pyI := mat.NewDense(na, na, nil)
	pyI.Mul(pyCI, pyCI.T())

	gain := mat.NewDense(f.nx, na, nil)
	gain.Mul(pxh, pyI)

	e := mat.NewVecDense(na, nil)
	e.SubVec(yv, hMean)

	xCorr := mat.NewVecDense(f.nx, nil)
	xCorr.MulVec(gain, e)
	xCorr.AddVec(w.X, xCorr)

	// Px - K*Py*Kt, symmetrized
	var kp, kpk mat.Dense
	kp.Mul(gain, py)
	kpk.Mul(&kp, gain.T())
	var pxCorr mat.Dense
	pxCorr.Sub(w.Px, &kpk)

	w.prevX = w.X
	w.prevPx = w.Px
	w.X = xCorr
	w.Px = matrix.SymFromDense(&pxCorr)
	w.e = e
	w.gain = gain
	w.pxh = pxh
	w.py = py
	w.pyI = pyI
	w.pyC = pyC

	return estimate.NewBaseWithCov(w.X, w.Px)
}

// CorrectionDiff propagates the parameter derivatives of the state
// distribution through the correction, using the working set retained by
// the matching Correct call, and retains the innovation and gain
// derivatives for LikelihoodDiff. It is a no-op after an identity step.
// It returns error if it is not called immediately after Correct.
func (f *UKF) CorrectionDiff(w *Work) error {
	if w.stage != stageCorrected {
		return fmt.Errorf("correction derivative without matching correction: %w", pem.ErrInvalidConfiguration)
	}

	if w.skipped {
		w.corrDiffed = true
		return nil
	}

	k := w.K
	active := w.active
	na := len(active)

	dhDq, dPhDq, err := f.corrUT.ApplyDiff(w.corrUT,
		func(xs mat.Vector) *mat.Dense { return matrix.SubCols(f.dm.HDiffQ(k, xs), active) },
		func(xs mat.Vector) *mat.Dense { return matrix.SubCols(f.dm.HDiffX(k, xs), active) },
		w.DxDq, w.DPxDq,
	)
	if err != nil {
		return fmt.Errorf("observation transform derivative failed: %w", err)
	}

	dPxhDq := f.corrUT.CrossCovDiff(w.corrUT)

	dRDq := f.dm.RDiffQ()

	// innovation and innovation covariance derivatives
	deDq := mat.NewDense(f.nq, na, nil)
	deDq.Scale(-1, dhDq)

	dPyDq := matrix.NewBatch(f.nq, na, na)
	dPyIDq := matrix.NewBatch(f.nq, na, na)
	dKDq := matrix.NewBatch(f.nq, f.nx, na)
	var tmp, tmp2 mat.Dense
	for a := 0; a < f.nq; a++ {
		dPyDq[a].Add(dPhDq[a], matrix.SubCols(matrix.SubRows(dRDq[a], active), active))

		// dPy^-1 = -Py^-1 dPy Py^-1
		tmp.Mul(dPyDq[a], w.pyI)
		dPyIDq[a].Mul(w.pyI, &tmp)
		dPyIDq[a].Scale(-1, dPyIDq[a])

		// dK = Pxy dPy^-1 + dPxy Py^-1
		dKDq[a].Mul(w.pxh, dPyIDq[a])
		tmp2.Mul(dPxhDq[a], w.pyI)
		dKDq[a].Add(dKDq[a], &tmp2)
	}

	// product rule on x + K*e and Px - K*Py*Kt
	var ke mat.VecDense
	var kp, t1, t2, t3 mat.Dense
	for a := 0; a < f.nq; a++ {
		ke.MulVec(dKDq[a], w.e)
		for j := 0; j < f.nx; j++ {
			var kde float64
			for i := 0; i < na; i++ {
				kde += w.gain.At(j, i) * deDq.At(a, i)
			}
			w.DxDq.Set(a, j, w.DxDq.At(a, j)+ke.AtVec(j)+kde)
		}

		kp.Mul(dKDq[a], w.py)
		t1.Mul(&kp, w.gain.T())

		kp.Mul(w.gain, w.py)
		t2.Mul(&kp, dKDq[a].T())

		kp.Mul(w.gain, dPyDq[a])
		t3.Mul(&kp, w.gain.T())

		w.DPxDq[a].Sub(w.DPxDq[a], &t1)
		w.DPxDq[a].Sub(w.DPxDq[a], &t2)
		w.DPxDq[a].Sub(w.DPxDq[a], &t3)
	}

	w.deDq = deDq
	w.dPyDq = dPyDq
	w.dPyIDq = dPyIDq
	w.corrDiffed = true

	return nil
}

// UpdateLikelihood accumulates the measurement log-likelihood of the last
// correction into w, using the factorized innovation covariance: the log
// determinant term is the sum of the factor's diagonal logarithms. It is a
// no-op after an identity step.
// It returns error if it is not called after Correct for the current step.
func (f *UKF) UpdateLikelihood(w *Work) error {
	if w.stage != stageCorrected {
		return fmt.Errorf("likelihood update without matching correction: %w", pem.ErrInvalidConfiguration)
	}

	if w.skipped {
		return nil
	}

	na := len(w.active)

	var quad float64
	for i := 0; i < na; i++ {
		for j := 0; j < na; j++ {
			quad += w.e.AtVec(i) * w.pyI.At(i, j) * w.e.AtVec(j)
		}
	}

	var logDet float64
	for i := 0; i < na; i++ {
		logDet += math.Log(w.pyC.At(i, i))
	}

	w.LogLik -= 0.5*quad + logDet

	return nil
}

// LikelihoodDiff accumulates the gradient of the measurement
// log-likelihood of the last correction, using the innovation derivatives
// retained by CorrectionDiff and the derivative of the innovation
// covariance factor. It is a no-op after an identity step.
// It returns error if CorrectionDiff has not run for the current step.
func (f *UKF) LikelihoodDiff(w *Work) error {
	if w.stage != stageCorrected || !w.corrDiffed {
		return fmt.Errorf("likelihood derivative without matching correction derivative: %w", pem.ErrInvalidConfiguration)
	}

	if w.skipped {
		return nil
	}

	na := len(w.active)

	dPyCDq, err := chol.Diff(w.pyChol, w.dPyDq)
	if err != nil {
		return fmt.Errorf("innovation covariance factor derivative failed: %w", err)
	}

	for a := 0; a < f.nq; a++ {
		// log determinant term through the factor diagonal
		var dLogDet float64
		for i := 0; i < na; i++ {
			dLogDet += dPyCDq[a].At(i, i) / w.pyC.At(i, i)
		}

		// quadratic term by the product rule
		var dQuad float64
		for i := 0; i < na; i++ {
			for j := 0; j < na; j++ {
				dQuad += w.deDq.At(a, i) * w.pyI.At(i, j) * w.e.AtVec(j)
				dQuad += w.e.AtVec(i) * w.dPyIDq[a].At(i, j) * w.e.AtVec(j)
				dQuad += w.e.AtVec(i) * w.pyI.At(i, j) * w.deDq.At(a, j)
			}
		}

		w.DLogLikDq[a] -= dLogDet + 0.5*dQuad
	}

	return nil
}
