package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
)

func TestNewBase(t *testing.T) {
	assert := assert.New(t)

	val := mat.NewVecDense(2, []float64{1.0, 3.0})

	b, err := NewBase(val)
	assert.NoError(err)
	assert.Equal(1.0, b.Val().AtVec(0))
	assert.Equal(3.0, b.Val().AtVec(1))
	assert.Equal(2, b.Cov().Symmetric())
	assert.Equal(0.0, b.Cov().At(0, 0))
}

func TestNewBaseWithCov(t *testing.T) {
	assert := assert.New(t)

	val := mat.NewVecDense(2, []float64{1.0, 3.0})
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	b, err := NewBaseWithCov(val, cov)
	assert.NoError(err)
	assert.Equal(0.25, b.Cov().At(0, 0))

	// the estimate owns copies of its inputs
	cov.SetSym(0, 0, 9.0)
	assert.Equal(0.25, b.Cov().At(0, 0))

	b, err = NewBaseWithCov(val, mat.NewSymDense(3, nil))
	assert.Nil(b)
	assert.ErrorIs(err, pem.ErrShapeMismatch)
}
