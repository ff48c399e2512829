package sim

import (
	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// SDE is a stochastic differential equation
//
//	dx = f(t, x) dt + g(t, x) dW
//
// discretized with the Euler-Maruyama scheme at a fixed time step. It
// supplies the drift and process noise covariance of the discrete-time
// model the filter consumes:
//
//	x[k+1] = x[k] + f(t_k, x[k])*Ts + w[k],  w[k] ~ N(0, g*gT*Ts)
type SDE struct {
	// Drift is the drift function f(t, x)
	Drift func(t float64, x mat.Vector) mat.Vector
	// Diffusion is the nx×nw diffusion matrix g(t, x)
	Diffusion func(t float64, x mat.Vector) *mat.Dense
	// Ts is the discretization time step
	Ts float64
	// T0 is the time of the first sample
	T0 float64
}

// Time returns the time of the k-th sample
func (s *SDE) Time(k int) float64 {
	return s.T0 + float64(k)*s.Ts
}

// F returns the Euler-discretized drift x + f(t_k, x)*Ts
func (s *SDE) F(k int, x mat.Vector) mat.Vector {
	f := s.Drift(s.Time(k), x)

	out := mat.NewVecDense(x.Len(), nil)
	out.AddScaledVec(x, s.Ts, f)

	return out
}

// ProcessNoiseCov returns the discretized diffusion covariance g*gT*Ts at
// (t_k, x).
func (s *SDE) ProcessNoiseCov(k int, x mat.Vector) mat.Symmetric {
	g := s.Diffusion(s.Time(k), x)

	nx, _ := g.Dims()
	var ggt mat.Dense
	ggt.Mul(g, g.T())

	q := mat.NewSymDense(nx, nil)
	for i := 0; i < nx; i++ {
		for j := i; j < nx; j++ {
			q.SetSym(i, j, s.Ts*ggt.At(i, j))
		}
	}

	return q
}

// FDiffX returns the state derivative of the Euler-discretized drift,
// I + dfdx*Ts, given the state derivative dfdx of the continuous drift
// with rows indexing the differentiation variable.
func (s *SDE) FDiffX(dfdx *mat.Dense) *mat.Dense {
	nx, _ := dfdx.Dims()
	eye, _ := matrix.NewDenseValIdentity(nx, 1.0)

	out := mat.NewDense(nx, nx, nil)
	out.Scale(s.Ts, dfdx)
	out.Add(out, eye)

	return out
}

// FDiffQ returns the parameter derivative of the Euler-discretized drift,
// dfdq*Ts, given the parameter derivative dfdq of the continuous drift.
func (s *SDE) FDiffQ(dfdq *mat.Dense) *mat.Dense {
	r, c := dfdq.Dims()
	out := mat.NewDense(r, c, nil)
	out.Scale(s.Ts, dfdq)

	return out
}
