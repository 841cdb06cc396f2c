// Package linalg wraps the gonum factorizations used by the statistics
// passes: covariance inversion with an explicit invertibility check, the
// Moore-Penrose pseudo-inverse, quadratic forms, and least-squares
// polynomial fitting.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularCovariance is returned when a covariance matrix cannot be
// inverted reliably.
var ErrSingularCovariance = errors.New("covariance matrix is singular")

// DefaultConditionLimit is the largest condition number accepted by Invertible.
const DefaultConditionLimit = 1e12

// Invertible reports whether a is positive definite with a condition number
// no larger than limit.
func Invertible(a mat.Symmetric, limit float64) bool {
	_, err := factorize(a, limit)
	return err == nil
}

// Invert returns the inverse of the symmetric positive definite matrix a,
// or ErrSingularCovariance if a fails the Invertible check.
func Invert(a mat.Symmetric, limit float64) (*mat.SymDense, error) {
	chol, err := factorize(a, limit)
	if err != nil {
		return nil, err
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSingularCovariance, err)
	}
	return &inv, nil
}

func factorize(a mat.Symmetric, limit float64) (*mat.Cholesky, error) {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, fmt.Errorf("%w: not positive definite", ErrSingularCovariance)
	}
	if cond := chol.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > limit {
		return nil, fmt.Errorf("%w: condition number %.3g exceeds %.3g", ErrSingularCovariance, cond, limit)
	}
	return &chol, nil
}

// PseudoInverse returns the Moore-Penrose pseudo-inverse of the symmetric
// matrix a. Singular values below max(n)*eps*σmax are treated as zero, so a
// zero matrix has a zero pseudo-inverse.
func PseudoInverse(a mat.Symmetric) (*mat.SymDense, error) {
	n := a.SymmetricDim()
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, fmt.Errorf("%w: SVD did not converge", ErrSingularCovariance)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var smax float64
	for _, s := range values {
		smax = math.Max(smax, s)
	}
	tol := float64(n) * 0x1p-52 * smax

	// A⁺ = V Σ⁺ Uᵀ
	inv := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k, s := range values {
				if s <= tol || s == 0 {
					continue
				}
				sum += v.At(i, k) * u.At(j, k) / s
			}
			inv.SetSym(i, j, sum)
		}
	}
	return inv, nil
}

// RowMajor returns the row-major elements of a symmetric matrix.
func RowMajor(a mat.Symmetric) []float64 {
	n := a.SymmetricDim()
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = a.At(i, j)
		}
	}
	return out
}

// QuadForm returns uᵀ A v for the n x n row-major matrix a.
func QuadForm(a []float64, u, v []float64) float64 {
	n := len(u)
	var sum float64
	for i, ui := range u {
		if ui == 0 {
			continue
		}
		row := a[i*n : (i+1)*n]
		var dot float64
		for j, vj := range v {
			dot += row[j] * vj
		}
		sum += ui * dot
	}
	return sum
}
