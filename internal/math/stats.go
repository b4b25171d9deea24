package math

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanStd returns the mean and the population standard deviation of the values.
func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean, variance := stat.MeanVariance(values, nil)
	n := float64(len(values))
	if n < 2 {
		return mean, 0
	}
	// MeanVariance is the unbiased estimate
	return mean, math.Sqrt(variance * (n - 1) / n)
}

// Column extracts the j-th column of the matrix.
func Column(x [][]float64, j int) []float64 {
	col := make([]float64, len(x))
	for i, row := range x {
		col[i] = row[j]
	}
	return col
}
