package chol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/matrix"
)

// randSPD returns a well-conditioned symmetric positive-definite matrix
func randSPD(n int, rnd *rand.Rand) *mat.SymDense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, rnd.NormFloat64())
		}
	}

	q := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			var v float64
			for k := 0; k < n; k++ {
				v += m.At(k, i) * m.At(k, j)
			}
			if i == j {
				v += float64(n)
			}
			q.SetSym(i, j, v)
		}
	}

	return q
}

// randSymBatch returns m symmetric direction matrices of size n
func randSymBatch(m, n int, rnd *rand.Rand) matrix.Batch {
	b := matrix.NewBatch(m, n, n)
	for a := 0; a < m; a++ {
		for i := 0; i < n; i++ {
			for j := 0; j <= i; j++ {
				v := rnd.NormFloat64()
				b[a].Set(i, j, v)
				b[a].Set(j, i, v)
			}
		}
	}

	return b
}

// perturb returns q + eps*d as a symmetric matrix
func perturb(q mat.Symmetric, d *mat.Dense, eps float64) *mat.SymDense {
	n := q.Symmetric()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			out.SetSym(i, j, q.At(i, j)+eps*d.At(i, j))
		}
	}

	return out
}

func TestDecompose(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(1))

	for n := 1; n <= 10; n++ {
		q := randSPD(n, rnd)

		var w Work
		s, err := Decompose(&w, q)
		assert.NoError(err)

		var prod mat.Dense
		prod.Mul(s.T(), s)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				assert.InDelta(q.At(i, j), prod.At(i, j), 1e-10)
			}
		}

		// upper triangular with positive diagonal
		for i := 0; i < n; i++ {
			assert.True(s.At(i, i) > 0)
			for j := 0; j < i; j++ {
				assert.Equal(0.0, s.At(i, j))
			}
		}
	}
}

func TestDecomposeNotPD(t *testing.T) {
	assert := assert.New(t)

	q := mat.NewSymDense(2, []float64{1, 2, 2, 1})

	var w Work
	_, err := Decompose(&w, q)
	assert.Error(err)
	assert.ErrorIs(err, pem.ErrNotPositiveDefinite)
}

func TestDiffBeforeDecompose(t *testing.T) {
	assert := assert.New(t)

	var w Work
	_, err := Diff(&w, matrix.NewBatch(1, 2, 2))
	assert.Error(err)
	assert.ErrorIs(err, pem.ErrInvalidConfiguration)
}

func TestDiff(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(7))

	const eps = 1e-6

	for _, n := range []int{1, 2, 4, 6} {
		q := randSPD(n, rnd)
		dQ := randSymBatch(3, n, rnd)

		var w Work
		_, err := Decompose(&w, q)
		assert.NoError(err)

		dS, err := Diff(&w, dQ)
		assert.NoError(err)
		assert.Len(dS, 3)

		for a := range dQ {
			var wp, wm Work
			sp, err := Decompose(&wp, perturb(q, dQ[a], eps))
			assert.NoError(err)
			sm, err := Decompose(&wm, perturb(q, dQ[a], -eps))
			assert.NoError(err)

			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					fd := (sp.At(i, j) - sm.At(i, j)) / (2 * eps)
					assert.InDelta(fd, dS[a].At(i, j), 1e-6)
				}
			}
		}
	}
}

func TestDiffShapeMismatch(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(3))

	var w Work
	_, err := Decompose(&w, randSPD(3, rnd))
	assert.NoError(err)

	_, err = Diff(&w, matrix.NewBatch(1, 2, 2))
	assert.Error(err)
	assert.ErrorIs(err, pem.ErrShapeMismatch)
}

func TestDiff2(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(11))

	const (
		n   = 3
		m   = 2
		eps = 1e-5
	)

	q := randSPD(n, rnd)
	dQ := randSymBatch(m, n, rnd)

	var w Work
	_, err := Decompose(&w, q)
	assert.NoError(err)
	_, err = Diff(&w, dQ)
	assert.NoError(err)

	// the matrix depends linearly on the directions, so its second
	// directional derivatives vanish
	d2S, err := Diff2(&w, matrix.NewBatch(m*m, n, n))
	assert.NoError(err)
	assert.Len(d2S, m*m)

	// compare against central finite differences of the first derivative
	// along each direction
	for a := 0; a < m; a++ {
		var wp, wm Work
		_, err := Decompose(&wp, perturb(q, dQ[a], eps))
		assert.NoError(err)
		dSp, err := Diff(&wp, dQ)
		assert.NoError(err)

		_, err = Decompose(&wm, perturb(q, dQ[a], -eps))
		assert.NoError(err)
		dSm, err := Diff(&wm, dQ)
		assert.NoError(err)

		for b := 0; b < m; b++ {
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					fd := (dSp[b].At(i, j) - dSm[b].At(i, j)) / (2 * eps)
					assert.InDelta(fd, d2S[a*m+b].At(i, j), 1e-5)
				}
			}
		}
	}
}

func TestDiff2BeforeDiff(t *testing.T) {
	assert := assert.New(t)
	rnd := rand.New(rand.NewSource(5))

	var w Work
	_, err := Decompose(&w, randSPD(2, rnd))
	assert.NoError(err)

	_, err = Diff2(&w, matrix.NewBatch(1, 2, 2))
	assert.Error(err)
	assert.ErrorIs(err, pem.ErrInvalidConfiguration)
}
