// Package chol provides a Cholesky-type factorization of symmetric
// positive-definite matrices together with its exact first and second
// derivatives with respect to a batch of parameter directions.
//
// Decompose computes the upper-triangular factor S with St*S = Q.
// Differentiating that identity gives a linear relation between the free
// (triangular) entries of dS and those of dQ:
//
//	dSt*S + St*dS = dQ
//
// Diff assembles the relation as a dense linear operator A over the
// n(n+1)/2 free entries, inverts it once per factor and reuses the inverse
// for every derivative direction. Diff2 differentiates A itself, whose
// entries are linear in S, and applies d(A^-1) = -A^-1 dA A^-1.
package chol

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	pem "github.com/dimasad/go-pem"
	"github.com/dimasad/go-pem/matrix"
)

// Work holds the state shared between a factorization and its derivative
// calls. Diff is only valid after Decompose, and Diff2 only after Diff,
// on the same Work. The triangular index bookkeeping is derived once per
// matrix size and cached, so a Work may be reused across factorizations
// of equal size without reallocation.
type Work struct {
	// S is the upper-triangular factor of the last decomposition
	S *mat.TriDense

	n int

	// cached lower-triangular index pairs, rows[p] >= cols[p]
	rows, cols []int

	// aInv is the inverse of the free-entry operator built from S
	aInv *mat.Dense

	// derivative data retained for Diff2
	dQTril *mat.Dense
	dS     matrix.Batch
}

// initIndexData derives the triangular index bookkeeping for size n,
// reusing the cached arrays when the size is unchanged.
func (w *Work) initIndexData(n int) {
	if w.n == n && w.rows != nil {
		return
	}

	nt := n * (n + 1) / 2
	w.rows = make([]int, 0, nt)
	w.cols = make([]int, 0, nt)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			w.rows = append(w.rows, i)
			w.cols = append(w.cols, j)
		}
	}
	w.n = n
}

// Decompose computes the upper-triangular factor S of q with St*S = q and
// stores it on w for the derivative calls.
// It returns error wrapping pem.ErrNotPositiveDefinite if the
// factorization fails.
func Decompose(w *Work, q mat.Symmetric) (*mat.TriDense, error) {
	n := q.Symmetric()

	var ch mat.Cholesky
	if ok := ch.Factorize(q); !ok {
		return nil, fmt.Errorf("cholesky factorization of %d×%d matrix failed: %w", n, n, pem.ErrNotPositiveDefinite)
	}

	w.S = mat.NewTriDense(n, mat.Upper, nil)
	ch.UTo(w.S)
	w.initIndexData(n)
	w.aInv = nil
	w.dQTril = nil
	w.dS = nil

	return w.S, nil
}

// operator builds the nt×nt free-entry operator from s. Row p gives the
// coefficients of dQ[rows[p], cols[p]] in terms of the free entries
// dS[cols[q], rows[q]] of the upper-triangular factor derivative. The
// entries are linear in s, so the same assembly applied to a factor
// derivative yields the operator derivative.
func (w *Work) operator(s mat.Matrix) *mat.Dense {
	nt := len(w.rows)
	a := mat.NewDense(nt, nt, nil)
	for p := 0; p < nt; p++ {
		i, j := w.rows[p], w.cols[p]
		for q := 0; q < nt; q++ {
			av, bv := w.rows[q], w.cols[q]
			var v float64
			if av == i {
				v += s.At(bv, j)
			}
			if av == j {
				v += s.At(bv, i)
			}
			a.Set(p, q, v)
		}
	}

	return a
}

// Diff computes the derivative of the factor for every direction in dQ.
// Each dQ[a] must be symmetric and sized like the decomposed matrix.
// It must be called after Decompose on the same Work; the operator inverse
// and derivative data are retained for Diff2.
// It returns error if the preconditions are violated or the free-entry
// operator is singular.
func Diff(w *Work, dQ matrix.Batch) (matrix.Batch, error) {
	if w.S == nil {
		return nil, fmt.Errorf("factor derivative requested before decomposition: %w", pem.ErrInvalidConfiguration)
	}

	n := w.n
	nt := len(w.rows)
	m := len(dQ)

	for a := range dQ {
		r, c := dQ[a].Dims()
		if r != n || c != n {
			return nil, fmt.Errorf("derivative direction %d is %d×%d, factor is %d×%d: %w", a, r, c, n, n, pem.ErrShapeMismatch)
		}
	}

	if w.aInv == nil {
		var aInv mat.Dense
		if err := aInv.Inverse(w.operator(w.S)); err != nil {
			return nil, fmt.Errorf("free-entry operator inversion failed: %w", pem.ErrNotPositiveDefinite)
		}
		w.aInv = &aInv
	}

	if m == 0 {
		w.dQTril = &mat.Dense{}
		w.dS = matrix.Batch{}
		return matrix.Batch{}, nil
	}

	// flatten the lower-triangular entries of every direction
	dQTril := mat.NewDense(m, nt, nil)
	for a := 0; a < m; a++ {
		for p := 0; p < nt; p++ {
			dQTril.Set(a, p, dQ[a].At(w.rows[p], w.cols[p]))
		}
	}

	var dSTril mat.Dense
	dSTril.Mul(dQTril, w.aInv.T())

	dS := matrix.NewBatch(m, n, n)
	for a := 0; a < m; a++ {
		for p := 0; p < nt; p++ {
			// the free entries live in the upper triangle of dS
			dS[a].Set(w.cols[p], w.rows[p], dSTril.At(a, p))
		}
	}

	w.dQTril = dQTril
	w.dS = dS.Clone()

	return dS, nil
}

// Diff2 computes the second derivatives of the factor. d2Q holds the
// second directional derivatives of the decomposed matrix flattened
// row-major over direction pairs (a, b) with a, b in [0, m), where m is
// the number of directions passed to the preceding Diff call; the result
// uses the same layout. It must be called after Diff on the same Work.
func Diff2(w *Work, d2Q matrix.Batch) (matrix.Batch, error) {
	if w.aInv == nil || w.dS == nil {
		return nil, fmt.Errorf("second factor derivative requested before first: %w", pem.ErrInvalidConfiguration)
	}

	n := w.n
	nt := len(w.rows)
	m := len(w.dS)
	if len(d2Q) != m*m {
		return nil, fmt.Errorf("got %d second derivative directions, want %d: %w", len(d2Q), m*m, pem.ErrShapeMismatch)
	}

	d2S := matrix.NewBatch(m*m, n, n)
	var dAInv, tmp mat.Dense
	rhs := mat.NewVecDense(nt, nil)
	sol := mat.NewVecDense(nt, nil)
	var chain mat.VecDense

	for a := 0; a < m; a++ {
		// d(A^-1) = -A^-1 dA A^-1, with dA assembled from dS[a]
		tmp.Mul(w.operator(w.dS[a]), w.aInv)
		dAInv.Mul(w.aInv, &tmp)
		dAInv.Scale(-1, &dAInv)

		for b := 0; b < m; b++ {
			for p := 0; p < nt; p++ {
				rhs.SetVec(p, w.dQTril.At(b, p))
			}
			sol.MulVec(&dAInv, rhs)

			for p := 0; p < nt; p++ {
				rhs.SetVec(p, d2Q[a*m+b].At(w.rows[p], w.cols[p]))
			}
			chain.MulVec(w.aInv, rhs)
			sol.AddVec(sol, &chain)

			for p := 0; p < nt; p++ {
				d2S[a*m+b].Set(w.cols[p], w.rows[p], sol.AtVec(p))
			}
		}
	}

	return d2S, nil
}
