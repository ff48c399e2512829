// Package fit exposes prediction-error-method estimation callables to an
// external nonlinear optimizer: the merit function (Gaussian measurement
// log-likelihood of a filter run), its exact gradient obtained from the
// filter's derivative propagation, and a packed Hessian approximation.
// Every call performs one or more independent filter runs, each with its
// own work context, so the callables may be invoked concurrently.
package fit

import (
	"fmt"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/ukf"
)

// Config contains estimation problem configuration parameters
type Config struct {
	// Filter configures the underlying unscented filter. SaveHistory
	// and CalculateGradients are managed per call and ignored here.
	Filter ukf.Config
	// Maximize makes Merit return the log-likelihood instead of its
	// negative, for optimizers that maximize
	Maximize bool
	// HessStep is the relative step of the Hessian gradient differences.
	// Zero selects the default of 1e-5.
	HessStep float64
}

// Problem is a prediction-error parameter estimation problem: a
// parametrized model, an initial condition and a measurement record.
type Problem struct {
	pm   pem.ParametrizedModel
	init pem.InitCond
	ys   []*pem.Measurement
	cfg  Config
}

// NewProblem creates a new estimation problem.
// It returns error if the model has no parameters or the measurement
// record is empty.
func NewProblem(pm pem.ParametrizedModel, init pem.InitCond, ys []*pem.Measurement, c *Config) (*Problem, error) {
	if c == nil {
		c = &Config{}
	}

	if pm.NumParams() <= 0 {
		return nil, fmt.Errorf("model has %d parameters: %w", pm.NumParams(), pem.ErrInvalidConfiguration)
	}

	if len(ys) == 0 {
		return nil, fmt.Errorf("empty measurement record: %w", pem.ErrInvalidConfiguration)
	}

	cfg := *c
	if cfg.HessStep == 0 {
		cfg.HessStep = 1e-5
	}

	return &Problem{
		pm:   pm,
		init: init,
		ys:   ys,
		cfg:  cfg,
	}, nil
}

// NumParams returns the parameter vector length
func (p *Problem) NumParams() int {
	return p.pm.NumParams()
}

// run performs one full filter pass at the parameter vector q
func (p *Problem) run(q []float64, gradients bool) (*ukf.Work, error) {
	m, err := p.pm.ModelAt(q)
	if err != nil {
		return nil, fmt.Errorf("model evaluation failed: %w", err)
	}

	fc := p.cfg.Filter
	fc.SaveHistory = false
	fc.CalculateGradients = gradients

	f, err := ukf.New(m, &fc)
	if err != nil {
		return nil, err
	}

	w, err := f.NewWork(p.init)
	if err != nil {
		return nil, err
	}

	if _, err := f.Run(w, p.ys); err != nil {
		return nil, err
	}

	return w, nil
}

// sign returns the factor mapping the log-likelihood to the merit
func (p *Problem) sign() float64 {
	if p.cfg.Maximize {
		return 1
	}

	return -1
}

// Merit returns the merit function value at q: the negative measurement
// log-likelihood of a filter run, or the log-likelihood itself when the
// problem is configured to maximize.
func (p *Problem) Merit(q []float64) (float64, error) {
	if len(q) != p.pm.NumParams() {
		return 0, fmt.Errorf("parameter vector length %d, model has %d parameters: %w", len(q), p.pm.NumParams(), pem.ErrShapeMismatch)
	}

	w, err := p.run(q, false)
	if err != nil {
		return 0, err
	}

	return p.sign() * w.LogLik, nil
}

// Gradient computes the exact merit gradient at q into dst, allocating it
// when nil, and returns it.
func (p *Problem) Gradient(dst, q []float64) ([]float64, error) {
	nq := p.pm.NumParams()
	if len(q) != nq {
		return nil, fmt.Errorf("parameter vector length %d, model has %d parameters: %w", len(q), nq, pem.ErrShapeMismatch)
	}
	if dst == nil {
		dst = make([]float64, nq)
	}
	if len(dst) != nq {
		return nil, fmt.Errorf("gradient destination length %d, model has %d parameters: %w", len(dst), nq, pem.ErrShapeMismatch)
	}

	w, err := p.run(q, true)
	if err != nil {
		return nil, err
	}

	s := p.sign()
	for a, g := range w.DLogLikDq {
		dst[a] = s * g
	}

	return dst, nil
}

// Hessian computes a merit Hessian approximation at q into dst, packed to
// the caller's sparsity pattern: dst[p] receives the (rows[p], cols[p])
// entry, which must lie in the lower triangle. The Hessian is assembled
// from central differences of the exact gradient and symmetrized, a
// consistent approximation for prediction-error problems where the exact
// second-order filter propagation is not available.
// It allocates dst when nil and returns it.
func (p *Problem) Hessian(dst, q []float64, rows, cols []int) ([]float64, error) {
	nq := p.pm.NumParams()
	if len(q) != nq {
		return nil, fmt.Errorf("parameter vector length %d, model has %d parameters: %w", len(q), nq, pem.ErrShapeMismatch)
	}
	if len(rows) != len(cols) {
		return nil, fmt.Errorf("sparsity pattern rows %d, cols %d: %w", len(rows), len(cols), pem.ErrShapeMismatch)
	}
	if dst == nil {
		dst = make([]float64, len(rows))
	}
	if len(dst) != len(rows) {
		return nil, fmt.Errorf("hessian destination length %d, pattern has %d entries: %w", len(dst), len(rows), pem.ErrShapeMismatch)
	}
	for i := range rows {
		if rows[i] < cols[i] || rows[i] >= nq || cols[i] < 0 {
			return nil, fmt.Errorf("pattern entry %d (%d, %d) outside the lower triangle: %w", i, rows[i], cols[i], pem.ErrShapeMismatch)
		}
	}

	// column j of the Hessian from central gradient differences
	h := make([][]float64, nq)
	qPert := make([]float64, nq)
	for j := 0; j < nq; j++ {
		step := p.cfg.HessStep * maxAbs(q[j])

		copy(qPert, q)
		qPert[j] = q[j] + step
		gPlus, err := p.Gradient(nil, qPert)
		if err != nil {
			return nil, fmt.Errorf("gradient at perturbed parameter %d failed: %w", j, err)
		}

		qPert[j] = q[j] - step
		gMinus, err := p.Gradient(nil, qPert)
		if err != nil {
			return nil, fmt.Errorf("gradient at perturbed parameter %d failed: %w", j, err)
		}

		col := make([]float64, nq)
		for a := 0; a < nq; a++ {
			col[a] = (gPlus[a] - gMinus[a]) / (2 * step)
		}
		h[j] = col
	}

	for i := range rows {
		dst[i] = 0.5 * (h[cols[i]][rows[i]] + h[rows[i]][cols[i]])
	}

	return dst, nil
}

// maxAbs returns the larger of |v| and one, the Hessian step scale
func maxAbs(v float64) float64 {
	if v < 0 {
		v = -v
	}
	if v < 1 {
		return 1
	}

	return v
}
