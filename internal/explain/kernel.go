package explain

import (
	"context"
	"fmt"
	"math"

	rmath "github.com/drakos74/asthma-risk/internal/math"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/combin"
)

// valueFunc evaluates the explained model output on a point of the model input space.
type valueFunc func(z []float64) float64

// kernelSHAP approximates shapley values of any model output by fitting a weighted
// linear model over feature coalitions, the missing features take their values from
// the background rows.
// weights are the shares of the background rows, nil for a uniform background.
type kernelSHAP struct {
	f          valueFunc
	background [][]float64
	weights    []float64
	samples    int
	rng        *rand.Rand
}

func (k *kernelSHAP) weight(i int) float64 {
	if len(k.weights) == len(k.background) {
		return k.weights[i]
	}
	return 1 / float64(len(k.background))
}

// explain returns the attributions, the expected output over the background and the output at x.
func (k *kernelSHAP) explain(ctx context.Context, x []float64) ([]float64, float64, float64, error) {
	m := len(x)
	if len(k.background) == 0 {
		return nil, 0, 0, fmt.Errorf("empty background")
	}
	base := 0.0
	for i, b := range k.background {
		base += k.weight(i) * k.f(b)
	}
	fx := k.f(x)

	if m == 1 {
		return []float64{fx - base}, base, fx, nil
	}

	masks, weights := k.coalitions(m)
	values := make([]float64, len(masks))
	z := make([]float64, m)
	for i, mask := range masks {
		if err := ctx.Err(); err != nil {
			return nil, 0, 0, err
		}
		var v float64
		for r, b := range k.background {
			for j := range z {
				if mask[j] {
					z[j] = x[j]
				} else {
					z[j] = b[j]
				}
			}
			v += k.weight(r) * k.f(z)
		}
		values[i] = v
	}

	// the efficiency constraint sum(phi) = fx - base eliminates the last feature
	last := m - 1
	delta := fx - base
	design := make([][]float64, len(masks))
	target := make([]float64, len(masks))
	for i, mask := range masks {
		zl := indicator(mask[last])
		row := make([]float64, last)
		for j := 0; j < last; j++ {
			row[j] = indicator(mask[j]) - zl
		}
		design[i] = row
		target[i] = values[i] - base - zl*delta
	}
	coef, _, err := rmath.WeightedFit(design, target, weights, 0, false)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("could not fit coalition values: %w", err)
	}
	phi := make([]float64, m)
	copy(phi, coef)
	rest := delta
	for _, c := range coef {
		rest -= c
	}
	phi[last] = rest
	if !rmath.IsFinite(phi...) {
		return nil, 0, 0, fmt.Errorf("numerical failure in coalition fit")
	}
	return phi, base, fx, nil
}

// coalitions lists the feature subsets to evaluate with their regression weights.
// All proper subsets are enumerated when the budget allows it, otherwise subsets are
// sampled from the shapley kernel together with their complements.
func (k *kernelSHAP) coalitions(m int) ([][]bool, []float64) {
	total := math.Pow(2, float64(m)) - 2
	if float64(k.samples) >= total {
		masks := make([][]bool, 0, int(total))
		weights := make([]float64, 0, int(total))
		for bits := 1; bits < 1<<uint(m)-1; bits++ {
			mask := make([]bool, m)
			size := 0
			for j := 0; j < m; j++ {
				if bits&(1<<uint(j)) != 0 {
					mask[j] = true
					size++
				}
			}
			masks = append(masks, mask)
			weights = append(weights, kernelWeight(m, size))
		}
		return masks, weights
	}

	// subset sizes are drawn proportionally to their total kernel weight
	sizes := make([]float64, m-1)
	var sum float64
	for s := 1; s < m; s++ {
		sizes[s-1] = float64(m-1) / float64(s*(m-s))
		sum += sizes[s-1]
	}
	pairs := k.samples / 2
	if pairs < 1 {
		pairs = 1
	}
	masks := make([][]bool, 0, 2*pairs)
	weights := make([]float64, 0, 2*pairs)
	for p := 0; p < pairs; p++ {
		r := k.rng.Float64() * sum
		size := m - 1
		for s := range sizes {
			r -= sizes[s]
			if r <= 0 {
				size = s + 1
				break
			}
		}
		mask := make([]bool, m)
		for _, j := range k.rng.Perm(m)[:size] {
			mask[j] = true
		}
		complement := make([]bool, m)
		for j := range mask {
			complement[j] = !mask[j]
		}
		masks = append(masks, mask, complement)
		weights = append(weights, 1, 1)
	}
	return masks, weights
}

// kernelWeight is the shapley kernel weight of a coalition of the given size.
func kernelWeight(m, size int) float64 {
	return float64(m-1) / (float64(combin.Binomial(m, size)) * float64(size) * float64(m-size))
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
