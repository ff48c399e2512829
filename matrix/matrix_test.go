package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestBatch(t *testing.T) {
	assert := assert.New(t)

	b := NewBatch(2, 2, 2)
	assert.Len(b, 2)

	b[0].Set(0, 1, 3.0)
	b[1].Set(1, 0, -1.0)

	c := b.Clone()
	c[0].Set(0, 1, 7.0)
	assert.Equal(3.0, b[0].At(0, 1))

	b.Add(c)
	assert.Equal(10.0, b[0].At(0, 1))
	assert.Equal(-2.0, b[1].At(1, 0))

	b.Scale(0.5)
	assert.Equal(5.0, b[0].At(0, 1))

	b.Sub(c)
	assert.Equal(-2.0, b[0].At(0, 1))
}

func TestBatchAddTranspose(t *testing.T) {
	assert := assert.New(t)

	b := NewBatch(1, 2, 2)
	b[0].Set(0, 1, 2.0)
	b[0].Set(0, 0, 1.0)

	b.AddTranspose()
	assert.Equal(2.0, b[0].At(0, 0))
	assert.Equal(2.0, b[0].At(0, 1))
	assert.Equal(2.0, b[0].At(1, 0))
	assert.Equal(0.0, b[0].At(1, 1))
}

func TestAddScaledOuter(t *testing.T) {
	assert := assert.New(t)

	dst := mat.NewDense(2, 2, nil)
	x := mat.NewVecDense(2, []float64{1, 2})
	y := mat.NewVecDense(2, []float64{3, 4})

	AddScaledOuter(dst, 0.5, x, y)
	assert.Equal(1.5, dst.At(0, 0))
	assert.Equal(2.0, dst.At(0, 1))
	assert.Equal(3.0, dst.At(1, 0))
	assert.Equal(4.0, dst.At(1, 1))

	s := mat.NewSymDense(2, nil)
	AddScaledOuterSym(s, 2.0, x)
	assert.Equal(2.0, s.At(0, 0))
	assert.Equal(4.0, s.At(0, 1))
	assert.Equal(4.0, s.At(1, 0))
	assert.Equal(8.0, s.At(1, 1))
}

func TestSymFromDense(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewDense(2, 2, []float64{1, 2, 4, 3})
	s := SymFromDense(a)
	assert.Equal(1.0, s.At(0, 0))
	assert.Equal(3.0, s.At(0, 1))
	assert.Equal(3.0, s.At(1, 0))

	assert.Panics(func() { SymFromDense(mat.NewDense(2, 3, nil)) })
}

func TestSymHelpers(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewSymDense(2, []float64{1, 2, 2, 3})
	b := mat.NewSymDense(2, []float64{4, 0, 0, 1})

	sum := AddSymDense(a, b)
	assert.Equal(5.0, sum.At(0, 0))
	assert.Equal(2.0, sum.At(0, 1))
	assert.Equal(4.0, sum.At(1, 1))

	sc := ScaledSym(2.0, a)
	assert.Equal(2.0, sc.At(0, 0))
	assert.Equal(4.0, sc.At(1, 0))
}

func TestSubsetting(t *testing.T) {
	assert := assert.New(t)

	v := mat.NewVecDense(3, []float64{1, 2, 3})
	sv := SubVector(v, []int{2, 0})
	assert.Equal(3.0, sv.AtVec(0))
	assert.Equal(1.0, sv.AtVec(1))

	a := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	sc := SubCols(a, []int{0, 2})
	_, nc := sc.Dims()
	assert.Equal(2, nc)
	assert.Equal(3.0, sc.At(0, 1))
	assert.Equal(6.0, sc.At(1, 1))

	sr := SubRows(a, []int{1})
	assert.Equal(4.0, sr.At(0, 0))

	s := mat.NewSymDense(3, []float64{
		1, 2, 3,
		2, 4, 5,
		3, 5, 6,
	})
	ss := SubSym(s, []int{0, 2})
	assert.Equal(1.0, ss.At(0, 0))
	assert.Equal(3.0, ss.At(0, 1))
	assert.Equal(6.0, ss.At(1, 1))
}
