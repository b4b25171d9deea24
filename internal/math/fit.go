package math

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// WeightedFit solves the ridge-regularised weighted least squares problem
// min Σ w_i (y_i - c0 - Σ c_j x_ij)^2 + ridge Σ c_j^2 and returns the coefficients of the columns of x. When intercept is set
// the intercept is returned separately and is not regularised.
func WeightedFit(x [][]float64, y, w []float64, ridge float64, intercept bool) ([]float64, float64, error) {
	n := len(x)
	if n == 0 || len(y) != n || len(w) != n {
		return nil, 0, fmt.Errorf("inconsistent dimensions: x=%d y=%d w=%d", n, len(y), len(w))
	}
	d := len(x[0])
	offset := 0
	if intercept {
		offset = 1
	}
	cols := d + offset
	rows := n
	if ridge > 0 {
		rows += d
	}

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewDense(rows, 1, nil)
	for i := 0; i < n; i++ {
		if len(x[i]) != d {
			return nil, 0, fmt.Errorf("row %d has %d columns instead of %d", i, len(x[i]), d)
		}
		sw := math.Sqrt(w[i])
		if intercept {
			a.Set(i, 0, sw)
		}
		for j := 0; j < d; j++ {
			a.Set(i, j+offset, sw*x[i][j])
		}
		b.Set(i, 0, sw*y[i])
	}
	// ridge penalty as augmented rows
	if ridge > 0 {
		sr := math.Sqrt(ridge)
		for j := 0; j < d; j++ {
			a.Set(n+j, j+offset, sr)
		}
	}

	c := mat.NewDense(cols, 1, nil)
	qr := new(mat.QR)
	qr.Factorize(a)
	if err := qr.SolveTo(c, false, b); err != nil {
		return nil, 0, fmt.Errorf("could not solve least squares: %w", err)
	}

	coef := make([]float64, d)
	for j := 0; j < d; j++ {
		coef[j] = c.At(j+offset, 0)
	}
	var c0 float64
	if intercept {
		c0 = c.At(0, 0)
	}
	return coef, c0, nil
}

// WeightedR2 is the weighted coefficient of determination of the fitted values.
func WeightedR2(y, fitted, w []float64) float64 {
	var sw, mean float64
	for i := range y {
		sw += w[i]
		mean += w[i] * y[i]
	}
	if sw == 0 {
		return 0
	}
	mean /= sw
	var ssRes, ssTot float64
	for i := range y {
		ssRes += w[i] * (y[i] - fitted[i]) * (y[i] - fitted[i])
		ssTot += w[i] * (y[i] - mean) * (y[i] - mean)
	}
	if ssTot == 0 {
		return 1
	}
	return 1 - ssRes/ssTot
}
