package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PolyFit returns the least-squares coefficients c[0..degree] of
// y ≈ Σ c[k]·x^k. It needs more points than the degree.
func PolyFit(x, y []float64, degree int) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("polyfit: %d x values, %d y values", len(x), len(y))
	}
	if degree < 0 || len(x) <= degree {
		return nil, fmt.Errorf("polyfit: degree %d needs more than %d points", degree, len(x))
	}
	cols := degree + 1
	vander := mat.NewDense(len(x), cols, nil)
	for i, xi := range x {
		p := 1.0
		for k := 0; k < cols; k++ {
			vander.Set(i, k, p)
			p *= xi
		}
	}
	var coef mat.Dense
	err := coef.Solve(vander, mat.NewVecDense(len(y), append([]float64(nil), y...)))
	var cond mat.Condition
	if err != nil && !errors.As(err, &cond) {
		return nil, fmt.Errorf("polyfit: %w", err)
	}
	out := make([]float64, cols)
	for k := range out {
		out[k] = coef.At(k, 0)
	}
	return out, nil
}

// PolyEval evaluates Σ c[k]·x^k.
func PolyEval(c []float64, x float64) float64 {
	var v float64
	for k := len(c) - 1; k >= 0; k-- {
		v = v*x + c[k]
	}
	return v
}
