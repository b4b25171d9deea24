package ml

import (
	"fmt"

	rmath "github.com/drakos74/asthma-risk/internal/math"
)

// Scaler standardises features to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes the column statistics of x.
func FitScaler(x [][]float64) (*Scaler, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty data")
	}
	d := len(x[0])
	s := &Scaler{
		Mean: make([]float64, d),
		Std:  make([]float64, d),
	}
	for j := 0; j < d; j++ {
		mean, std := rmath.MeanStd(rmath.Column(x, j))
		if std == 0 || !rmath.IsFinite(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Std[j] = std
	}
	return s, nil
}

// Transform standardises a single row.
func (s *Scaler) Transform(x []float64) []float64 {
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return z
}

// TransformAll standardises all rows.
func (s *Scaler) TransformAll(x [][]float64) [][]float64 {
	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = s.Transform(row)
	}
	return z
}

// Inverse maps a standardised row back to the raw feature space.
func (s *Scaler) Inverse(z []float64) []float64 {
	x := make([]float64, len(z))
	for j, v := range z {
		x[j] = v*s.Std[j] + s.Mean[j]
	}
	return x
}
