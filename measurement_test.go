package pem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewMeasurement(t *testing.T) {
	assert := assert.New(t)

	m := NewMeasurement(mat.NewVecDense(3, []float64{1, 2, 3}))
	assert.Equal(3, m.Len())
	assert.False(m.AllMissing())
	assert.Equal([]int{0, 1, 2}, m.Active())
	assert.Equal(2.0, m.At(1))
}

func TestNewMeasurementWithMask(t *testing.T) {
	assert := assert.New(t)

	y := mat.NewVecDense(3, []float64{1, 2, 3})

	m, err := NewMeasurementWithMask(y, []bool{true, false, true})
	assert.NoError(err)
	assert.True(m.Missing(0))
	assert.False(m.Missing(1))
	assert.Equal([]int{1}, m.Active())
	assert.False(m.AllMissing())

	m, err = NewMeasurementWithMask(y, []bool{true, true, true})
	assert.NoError(err)
	assert.True(m.AllMissing())

	m, err = NewMeasurementWithMask(y, []bool{true})
	assert.Nil(m)
	assert.ErrorIs(err, ErrShapeMismatch)
}

func TestMeasurementFromSlice(t *testing.T) {
	assert := assert.New(t)

	m := MeasurementFromSlice(1.5, math.NaN(), -2.0)
	assert.Equal(3, m.Len())
	assert.True(m.Missing(1))
	assert.Equal([]int{0, 2}, m.Active())

	c := m.Compress()
	assert.Equal(2, c.Len())
	assert.Equal(1.5, c.AtVec(0))
	assert.Equal(-2.0, c.AtVec(1))
}
