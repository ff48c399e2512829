package pem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Measurement is a measurement vector with a parallel missing-data mask.
// Masked entries are excluded from the correction step entirely: they are
// never imputed and contribute nothing to the likelihood.
type Measurement struct {
	y       *mat.VecDense
	missing []bool
}

// NewMeasurement creates a fully observed measurement from y
func NewMeasurement(y mat.Vector) *Measurement {
	v := &mat.VecDense{}
	v.CloneFromVec(y)

	return &Measurement{
		y:       v,
		missing: make([]bool, y.Len()),
	}
}

// NewMeasurementWithMask creates a measurement from y whose i-th entry is
// treated as missing when missing[i] is true.
// It returns error if the mask length does not match the vector length.
func NewMeasurementWithMask(y mat.Vector, missing []bool) (*Measurement, error) {
	if len(missing) != y.Len() {
		return nil, fmt.Errorf("mask length %d, vector length %d: %w", len(missing), y.Len(), ErrShapeMismatch)
	}

	v := &mat.VecDense{}
	v.CloneFromVec(y)

	m := make([]bool, len(missing))
	copy(m, missing)

	return &Measurement{
		y:       v,
		missing: m,
	}, nil
}

// MeasurementFromSlice creates a measurement from vals, treating NaN
// entries as missing.
func MeasurementFromSlice(vals ...float64) *Measurement {
	y := make([]float64, len(vals))
	missing := make([]bool, len(vals))

	for i, v := range vals {
		if math.IsNaN(v) {
			missing[i] = true
			continue
		}
		y[i] = v
	}

	return &Measurement{
		y:       mat.NewVecDense(len(vals), y),
		missing: missing,
	}
}

// Len returns the measurement vector length, counting missing entries
func (m *Measurement) Len() int {
	return m.y.Len()
}

// At returns the i-th measurement entry
func (m *Measurement) At(i int) float64 {
	return m.y.AtVec(i)
}

// Missing reports whether the i-th entry is missing
func (m *Measurement) Missing(i int) bool {
	return m.missing[i]
}

// Active returns the indices of the observed entries in increasing order
func (m *Measurement) Active() []int {
	var active []int
	for i, miss := range m.missing {
		if !miss {
			active = append(active, i)
		}
	}

	return active
}

// AllMissing reports whether every entry is missing
func (m *Measurement) AllMissing() bool {
	for _, miss := range m.missing {
		if !miss {
			return false
		}
	}

	return true
}

// Compress returns the observed entries as a dense vector, in index order
func (m *Measurement) Compress() *mat.VecDense {
	active := m.Active()
	v := mat.NewVecDense(len(active), nil)
	for i, idx := range active {
		v.SetVec(i, m.y.AtVec(idx))
	}

	return v
}
