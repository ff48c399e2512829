package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
)

func TestNewInitCond(t *testing.T) {
	assert := assert.New(t)

	state := mat.NewVecDense(2, []float64{1.0, 3.0})
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	ic, err := NewInitCond(state, cov)
	assert.NoError(err)
	assert.Equal(1.0, ic.State().AtVec(0))
	assert.Equal(0.25, ic.Cov().At(1, 1))

	// the condition owns copies of its inputs
	state.SetVec(0, 9.0)
	assert.Equal(1.0, ic.State().AtVec(0))

	ic, err = NewInitCond(state, mat.NewSymDense(3, nil))
	assert.Nil(ic)
	assert.ErrorIs(err, pem.ErrShapeMismatch)
}

func TestNewLinear(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewDense(2, 2, []float64{1.0, 0.1, 0, 1.0})
	c := mat.NewDense(1, 2, []float64{1.0, 0})
	q := mat.NewSymDense(2, []float64{0.01, 0, 0, 0.01})
	r := mat.NewSymDense(1, []float64{0.25})

	l, err := NewLinear(a, c, q, r)
	assert.NoError(err)

	nx, nq, ny := l.SystemDims()
	assert.Equal(2, nx)
	assert.Equal(0, nq)
	assert.Equal(1, ny)

	x := mat.NewVecDense(2, []float64{1.0, 2.0})
	fx := l.F(0, x)
	assert.InDelta(1.2, fx.AtVec(0), 1e-12)
	assert.InDelta(2.0, fx.AtVec(1), 1e-12)

	hx := l.H(0, x)
	assert.InDelta(1.0, hx.AtVec(0), 1e-12)

	assert.Equal(0.01, l.ProcessNoiseCov(0, x).At(0, 0))
	assert.Equal(0.25, l.MeasurementNoiseCov().At(0, 0))

	// inconsistent dimensions
	_, err = NewLinear(mat.NewDense(2, 3, nil), c, q, r)
	assert.ErrorIs(err, pem.ErrShapeMismatch)

	_, err = NewLinear(a, mat.NewDense(1, 3, nil), q, r)
	assert.ErrorIs(err, pem.ErrShapeMismatch)

	_, err = NewLinear(a, c, mat.NewSymDense(3, nil), r)
	assert.ErrorIs(err, pem.ErrShapeMismatch)

	_, err = NewLinear(a, c, q, mat.NewSymDense(2, nil))
	assert.ErrorIs(err, pem.ErrShapeMismatch)
}
