package ut

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/chol"
	"github.com/dimasad/go-pem/matrix"
)

// sqrter is the square root method of an unscented transform. sqrt returns
// a factor S of q with St*S = q whose rows are the sigma point deviation
// directions; sqrtDiff returns the factor derivative for a batch of
// directions, reusing the working set of the preceding sqrt call.
type sqrter interface {
	sqrt(w *Work, q *mat.SymDense) (*mat.Dense, error)
	sqrtDiff(w *Work, dQ matrix.Batch) (matrix.Batch, error)
}

// choleskySqrt generates sigma points from the upper-triangular Cholesky
// factor. It is the only square root method with derivative support.
type choleskySqrt struct{}

func (choleskySqrt) sqrt(w *Work, q *mat.SymDense) (*mat.Dense, error) {
	s, err := chol.Decompose(&w.Chol, q)
	if err != nil {
		return nil, err
	}

	d := &mat.Dense{}
	d.CloneFrom(s)

	return d, nil
}

func (choleskySqrt) sqrtDiff(w *Work, dQ matrix.Batch) (matrix.Batch, error) {
	return chol.Diff(&w.Chol, dQ)
}

// svdSqrt generates sigma points from the singular value decomposition,
// which tolerates covariances that are only positive semi-definite. The
// factor derivative is not defined for this method.
type svdSqrt struct{}

func (svdSqrt) sqrt(w *Work, q *mat.SymDense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(q, mat.SVDFull); !ok {
		return nil, fmt.Errorf("svd factorization of %d×%d matrix failed: %w", q.Symmetric(), q.Symmetric(), pem.ErrNotPositiveDefinite)
	}

	var u mat.Dense
	svd.UTo(&u)
	vals := svd.Values(nil)

	// S = (U * sqrt(diag(s)))^T so that St*S = U diag(s) Ut = q
	n := q.Symmetric()
	s := mat.NewDense(n, n, nil)
	for i := range vals {
		sv := math.Sqrt(vals[i])
		for j := 0; j < n; j++ {
			s.Set(i, j, u.At(j, i)*sv)
		}
	}

	return s, nil
}

func (svdSqrt) sqrtDiff(w *Work, dQ matrix.Batch) (matrix.Batch, error) {
	return nil, fmt.Errorf("svd square root does not support derivative propagation: %w", pem.ErrInvalidConfiguration)
}
