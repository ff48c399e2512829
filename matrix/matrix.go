package matrix

import (
	"gonum.org/v1/gonum/mat"
)

// Batch is a stack of equally sized dense matrices indexed by parameter
// direction. It represents three-axis derivative quantities such as
// dP/dq, where b[a] is the derivative of P in the a-th direction.
type Batch []*mat.Dense

// NewBatch creates a batch of n zero matrices with r rows and c columns
func NewBatch(n, r, c int) Batch {
	b := make(Batch, n)
	for a := range b {
		b[a] = mat.NewDense(r, c, nil)
	}

	return b
}

// Clone returns a deep copy of the batch
func (b Batch) Clone() Batch {
	c := make(Batch, len(b))
	for a := range b {
		c[a] = &mat.Dense{}
		c[a].CloneFrom(b[a])
	}

	return c
}

// Add adds o to the batch element-wise.
// It panics if the batches have different sizes.
func (b Batch) Add(o Batch) {
	for a := range b {
		b[a].Add(b[a], o[a])
	}
}

// Sub subtracts o from the batch element-wise.
// It panics if the batches have different sizes.
func (b Batch) Sub(o Batch) {
	for a := range b {
		b[a].Sub(b[a], o[a])
	}
}

// Scale multiplies every matrix in the batch by f
func (b Batch) Scale(f float64) {
	for a := range b {
		b[a].Scale(f, b[a])
	}
}

// AddTranspose adds to each matrix in the batch its own transpose,
// symmetrizing quantities assembled from one-sided outer products.
func (b Batch) AddTranspose() {
	for a := range b {
		var t mat.Dense
		t.CloneFrom(b[a].T())
		b[a].Add(b[a], &t)
	}
}

// AddScaledOuter adds alpha * x * yT to dst.
// It panics if dst dimensions do not match the vector lengths.
func AddScaledOuter(dst *mat.Dense, alpha float64, x, y mat.Vector) {
	for i := 0; i < x.Len(); i++ {
		for j := 0; j < y.Len(); j++ {
			dst.Set(i, j, dst.At(i, j)+alpha*x.AtVec(i)*y.AtVec(j))
		}
	}
}

// AddScaledOuterSym adds alpha * x * xT to dst.
// It panics if dst dimension does not match the vector length.
func AddScaledOuterSym(dst *mat.SymDense, alpha float64, x mat.Vector) {
	for i := 0; i < x.Len(); i++ {
		for j := i; j < x.Len(); j++ {
			dst.SetSym(i, j, dst.At(i, j)+alpha*x.AtVec(i)*x.AtVec(j))
		}
	}
}

// SymFromDense returns the symmetric matrix (a + aT)/2.
// It panics if a is not square.
func SymFromDense(a mat.Matrix) *mat.SymDense {
	n, c := a.Dims()
	if n != c {
		panic("matrix: symmetrizing a non-square matrix")
	}

	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}

	return s
}

// ScaledSym returns f*a as a new symmetric matrix
func ScaledSym(f float64, a mat.Symmetric) *mat.SymDense {
	n := a.Symmetric()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, f*a.At(i, j))
		}
	}

	return s
}

// AddSymDense returns a + b as a new symmetric matrix.
// It panics if the matrices have different sizes.
func AddSymDense(a, b mat.Symmetric) *mat.SymDense {
	n := a.Symmetric()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, a.At(i, j)+b.At(i, j))
		}
	}

	return s
}

// SubVector returns the entries of v at idx as a new vector
func SubVector(v mat.Vector, idx []int) *mat.VecDense {
	s := mat.NewVecDense(len(idx), nil)
	for i, ix := range idx {
		s.SetVec(i, v.AtVec(ix))
	}

	return s
}

// SubCols returns the columns of a at idx as a new matrix
func SubCols(a mat.Matrix, idx []int) *mat.Dense {
	r, _ := a.Dims()
	s := mat.NewDense(r, len(idx), nil)
	for i := 0; i < r; i++ {
		for j, jx := range idx {
			s.Set(i, j, a.At(i, jx))
		}
	}

	return s
}

// SubRows returns the rows of a at idx as a new matrix
func SubRows(a mat.Matrix, idx []int) *mat.Dense {
	_, c := a.Dims()
	s := mat.NewDense(len(idx), c, nil)
	for i, ix := range idx {
		for j := 0; j < c; j++ {
			s.Set(i, j, a.At(ix, j))
		}
	}

	return s
}

// SubSym returns the principal submatrix of a at idx as a new symmetric
// matrix.
func SubSym(a mat.Symmetric, idx []int) *mat.SymDense {
	s := mat.NewSymDense(len(idx), nil)
	for i, ix := range idx {
		for j, jx := range idx {
			if j < i {
				continue
			}
			s.SetSym(i, j, a.At(ix, jx))
		}
	}

	return s
}
