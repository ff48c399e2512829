// Package sim generates synthetic measurement records for state-space
// models, discretizes stochastic differential equations into the
// discrete-time form the filter consumes and plots filter results.
package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
)

// RolloutConfig contains trajectory generation parameters
type RolloutConfig struct {
	// MissEvery masks every n-th measurement entirely when positive,
	// mimicking records sampled slower than the model time step
	MissEvery int
}

// Rollout simulates steps time samples of the model from x0, drawing
// process and measurement noise from pn and mn, and returns the simulated
// state trajectory, one state per row, together with the measurement
// record for the filter.
// It returns error if the dimensions of x0 or the noise sources do not
// match the model.
func Rollout(m pem.Model, x0 mat.Vector, steps int, pn, mn pem.Noise, c *RolloutConfig) (*mat.Dense, []*pem.Measurement, error) {
	if c == nil {
		c = &RolloutConfig{}
	}

	nx, _, ny := m.SystemDims()
	if x0.Len() != nx {
		return nil, nil, fmt.Errorf("initial state length %d, model state dimension %d: %w", x0.Len(), nx, pem.ErrShapeMismatch)
	}
	if steps <= 0 {
		return nil, nil, fmt.Errorf("invalid number of steps %d: %w", steps, pem.ErrInvalidConfiguration)
	}

	x := mat.NewDense(steps, nx, nil)
	ys := make([]*pem.Measurement, steps)

	cur := &mat.VecDense{}
	cur.CloneFromVec(x0)

	for k := 0; k < steps; k++ {
		x.SetRow(k, rawVec(cur))

		y := &mat.VecDense{}
		y.CloneFromVec(m.H(k, cur))
		if v := mn.Sample(); v.Len() == ny {
			y.AddVec(y, v)
		}

		if c.MissEvery > 0 && k%c.MissEvery == 0 {
			missing := make([]bool, ny)
			for i := range missing {
				missing[i] = true
			}
			masked, err := pem.NewMeasurementWithMask(y, missing)
			if err != nil {
				return nil, nil, err
			}
			ys[k] = masked
		} else {
			ys[k] = pem.NewMeasurement(y)
		}

		if k == steps-1 {
			break
		}

		next := &mat.VecDense{}
		next.CloneFromVec(m.F(k, cur))
		if w := pn.Sample(); w.Len() == nx {
			next.AddVec(next, w)
		}
		cur = next
	}

	return x, ys, nil
}

func rawVec(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}

	return out
}
