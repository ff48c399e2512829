package pem

import "errors"

var (
	// ErrShapeMismatch is returned when input dimensions are inconsistent
	// with the dimensions declared by the model.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrNotPositiveDefinite is returned when the factorization of a
	// covariance matrix fails. It is fatal to the filter run that raised
	// it.
	ErrNotPositiveDefinite = errors.New("matrix not positive definite")

	// ErrInvalidConfiguration is returned by constructors when the
	// requested configuration cannot produce a valid filter, e.g. an
	// unknown square-root method name or n+kappa == 0.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
