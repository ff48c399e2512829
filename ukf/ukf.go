// Package ukf implements a discrete-time Unscented Kalman Filter with
// exact first-order propagation of the filtered distribution's derivatives
// with respect to the model parameters, for prediction-error-method
// parameter estimation. The predict/correct recursion is strictly
// sequential; derivative calls reuse intermediate quantities retained by
// the matching value call on the same Work.
package ukf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/estimate"
	"github.com/dimasad/go-pem/matrix"
	"github.com/dimasad/go-pem/ut"
)

// Config contains UKF configuration parameters
type Config struct {
	// Sqrt selects the sigma point square root method, "cholesky"
	// (default) or "svd"
	Sqrt string
	// Kappa is the center sigma point weight parameter
	Kappa float64
	// SaveHistory makes Run collect the filtered trajectory
	SaveHistory bool
	// CalculateGradients enables propagation of the filtered
	// distribution and log-likelihood derivatives. It requires a model
	// implementing pem.DiffModel and the Cholesky square root.
	CalculateGradients bool
}

// UKF is an Unscented Kalman Filter over a nonlinear stochastic model
type UKF struct {
	// m is the underlying system model
	m pem.Model
	// dm is the model's derivative capability, nil unless gradients are
	// enabled
	dm pem.DiffModel

	nx, nq, ny int

	// predUT and corrUT are the prediction and correction transforms,
	// both over the state dimension
	predUT *ut.Transform
	corrUT *ut.Transform

	cfg Config
}

// New creates a new UKF for model m.
// It returns error wrapping pem.ErrInvalidConfiguration if the model
// dimensions are invalid, gradients are requested for a model without
// derivative support or with the SVD square root, or the transform
// parameters are invalid.
func New(m pem.Model, c *Config) (*UKF, error) {
	if c == nil {
		c = &Config{}
	}

	nx, nq, ny := m.SystemDims()
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions [%d x %d]: %w", nx, ny, pem.ErrInvalidConfiguration)
	}

	var dm pem.DiffModel
	if c.CalculateGradients {
		var ok bool
		if dm, ok = m.(pem.DiffModel); !ok {
			return nil, fmt.Errorf("model does not provide derivatives: %w", pem.ErrInvalidConfiguration)
		}
		if nq <= 0 {
			return nil, fmt.Errorf("gradients require a positive parameter dimension, got %d: %w", nq, pem.ErrInvalidConfiguration)
		}
	}

	utc := &ut.Config{Sqrt: c.Sqrt, Kappa: c.Kappa}
	predUT, err := ut.New(nx, utc)
	if err != nil {
		return nil, err
	}
	corrUT, err := ut.New(nx, utc)
	if err != nil {
		return nil, err
	}

	if c.CalculateGradients && !predUT.SupportsDiff() {
		return nil, fmt.Errorf("square root method %q does not support gradients: %w", c.Sqrt, pem.ErrInvalidConfiguration)
	}

	return &UKF{
		m:      m,
		dm:     dm,
		nx:     nx,
		nq:     nq,
		ny:     ny,
		predUT: predUT,
		corrUT: corrUT,
		cfg:    *c,
	}, nil
}

// NewWork creates the mutable filter run state from the initial condition.
// It returns error if the initial condition dimensions do not match the
// model.
func (f *UKF) NewWork(init pem.InitCond) (*Work, error) {
	if init.State().Len() != f.nx {
		return nil, fmt.Errorf("initial state length %d, model state dimension %d: %w", init.State().Len(), f.nx, pem.ErrShapeMismatch)
	}
	if init.Cov().Symmetric() != f.nx {
		return nil, fmt.Errorf("initial covariance dimension %d, model state dimension %d: %w", init.Cov().Symmetric(), f.nx, pem.ErrShapeMismatch)
	}

	x := &mat.VecDense{}
	x.CloneFromVec(init.State())

	px := mat.NewSymDense(f.nx, nil)
	px.CopySym(init.Cov())

	w := &Work{
		X:  x,
		Px: px,
	}

	if f.cfg.CalculateGradients {
		// the initial condition does not depend on the parameters
		w.DxDq = mat.NewDense(f.nq, f.nx, nil)
		w.DPxDq = matrix.NewBatch(f.nq, f.nx, f.nx)
		w.DLogLikDq = make([]float64, f.nq)
	}

	return w, nil
}

// Run filters the measurement sequence ys, calling the correction and,
// between steps, the prediction, together with their derivative and
// likelihood updates when gradients are enabled. It returns the filtered
// trajectory when history saving is enabled; the accumulated likelihood
// and gradient are read off w.
// It returns error as soon as any step fails; the run is not recoverable
// past a failed factorization.
func (f *UKF) Run(w *Work, ys []*pem.Measurement) ([]pem.Estimate, error) {
	var history []pem.Estimate
	if f.cfg.SaveHistory {
		history = make([]pem.Estimate, 0, len(ys))
	}

	for k, y := range ys {
		if _, err := f.Correct(w, y); err != nil {
			return nil, fmt.Errorf("correction at step %d failed: %w", k, err)
		}
		if f.cfg.CalculateGradients {
			if err := f.CorrectionDiff(w); err != nil {
				return nil, fmt.Errorf("correction derivative at step %d failed: %w", k, err)
			}
		}
		if err := f.UpdateLikelihood(w); err != nil {
			return nil, fmt.Errorf("likelihood update at step %d failed: %w", k, err)
		}
		if f.cfg.CalculateGradients {
			if err := f.LikelihoodDiff(w); err != nil {
				return nil, fmt.Errorf("likelihood derivative at step %d failed: %w", k, err)
			}
		}

		if f.cfg.SaveHistory {
			est, err := estimate.NewBaseWithCov(w.X, w.Px)
			if err != nil {
				return nil, err
			}
			history = append(history, est)
		}

		if k < len(ys)-1 {
			if _, err := f.Predict(w); err != nil {
				return nil, fmt.Errorf("prediction at step %d failed: %w", k, err)
			}
			if f.cfg.CalculateGradients {
				if err := f.PredictionDiff(w); err != nil {
					return nil, fmt.Errorf("prediction derivative at step %d failed: %w", k, err)
				}
			}
		}
	}

	return history, nil
}
